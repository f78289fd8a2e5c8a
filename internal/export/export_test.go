package export

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gocarina/gocsv"

	"github.com/opsxjacky/portfolio-backtest/internal/report"
	"github.com/opsxjacky/portfolio-backtest/pkg/types"
)

func sampleReport(t *testing.T) *report.BacktestReport {
	t.Helper()
	r, err := report.New(report.Input{
		Strategy:       "BnH(periodic:2)",
		Symbols:        []string{"A", "B"},
		Dates:          []string{"2020-01-02", "2020-01-03", "2020-01-06", "2020-01-07"},
		InitialCapital: 10000,
		Cash:           60.5,
		Holdings:       map[string]int64{"A": 45, "B": 111},
		DailyReturn:    []float64{0, 0.1, 0.1, -0.05},
		BalanceHistory: []float64{0, 11000, 60.5, 60.5},
		ValueHistory:   []float64{10000, 11000, 12100, 11495},
		RiskFree:       []float64{0, 0, 0, 0},
		Trades: []types.Trade{
			{Day: 1, Date: "2020-01-02", Symbol: "A", Side: types.SideBuy, Shares: 50, Price: 100, Value: 5000},
			{Day: 2, Date: "2020-01-03", Symbol: "A", Side: types.SideSell, Shares: -50, Price: 110, Value: 5500},
		},
		Window: 2,
	})
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestBaseName(t *testing.T) {
	r := sampleReport(t)
	name := BaseName(r)
	if !strings.HasPrefix(name, "BnH_periodic_2_") || len(name) != len("BnH_periodic_2_")+8 {
		t.Errorf("BaseName = %q", name)
	}
}

func TestWriteJSONNonFinite(t *testing.T) {
	r := sampleReport(t)
	// 窗口 [0.1, 0.1] 方差为零, 滚动夏普为 +Inf
	if !math.IsInf(r.RollingSharpe[3], 1) {
		t.Fatalf("rolling sharpe[3] = %v, want +Inf", r.RollingSharpe[3])
	}

	path := filepath.Join(t.TempDir(), "out.json")
	if err := WriteJSON(path, r); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var out struct {
		Summary struct {
			Strategy    string  `json:"strategy"`
			TotalTrades int     `json:"total_trades"`
			FinalValue  float64 `json:"final_value"`
		} `json:"summary"`
		Holdings map[string]int64 `json:"holdings"`
		Daily    []struct {
			RollingSharpe *float64 `json:"rolling_sharpe"`
		} `json:"daily"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatal(err)
	}
	if out.Summary.Strategy != "BnH(periodic:2)" || out.Summary.TotalTrades != 2 || out.Summary.FinalValue != 11495 {
		t.Errorf("summary = %+v", out.Summary)
	}
	if out.Holdings["B"] != 111 {
		t.Errorf("holdings = %v", out.Holdings)
	}
	if len(out.Daily) != 4 || out.Daily[3].RollingSharpe != nil {
		t.Errorf("non-finite value should be null, daily = %+v", out.Daily)
	}
}

func TestWriteCSV(t *testing.T) {
	r := sampleReport(t)
	base := filepath.Join(t.TempDir(), "run")
	paths, err := WriteCSV(base, r)
	if err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("paths = %v", paths)
	}

	f, err := os.Open(base + "_trades.csv")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	var trades []types.Trade
	if err := gocsv.UnmarshalFile(f, &trades); err != nil {
		t.Fatal(err)
	}
	if len(trades) != 2 || trades[1].Shares != -50 || trades[1].Side != types.SideSell {
		t.Errorf("trades = %+v", trades)
	}

	daily, err := os.ReadFile(base + "_daily.csv")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(daily), "day,date,daily_return,cumulative_return") {
		t.Errorf("daily header = %q", strings.SplitN(string(daily), "\n", 2)[0])
	}
}

func TestWriteParquet(t *testing.T) {
	r := sampleReport(t)
	base := filepath.Join(t.TempDir(), "run")
	paths, err := WriteParquet(base, r)
	if err != nil {
		t.Fatalf("WriteParquet failed: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("paths = %v", paths)
	}

	rows, err := ReadParquetRows(paths[0])
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 4 || rows[2].Date != "2020-01-06" || rows[2].Value != 12100 {
		t.Errorf("rows = %+v", rows)
	}
}

func TestRenderChart(t *testing.T) {
	buf, err := RenderChart(sampleReport(t))
	if err != nil {
		t.Fatalf("RenderChart failed: %v", err)
	}
	if !bytes.HasPrefix(buf, []byte("\x89PNG")) {
		t.Error("chart is not a PNG")
	}

	empty, _ := report.New(report.Input{Strategy: "x", InitialCapital: 1})
	if _, err := RenderChart(empty); err == nil {
		t.Error("empty report should not render")
	}
}

func TestExport(t *testing.T) {
	r := sampleReport(t)
	dir := t.TempDir()

	paths, err := Export(dir, FormatAll, r, true)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if len(paths) != 6 {
		t.Errorf("paths = %v, want json + 2 csv + 2 parquet + png", paths)
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("%s: %v", p, err)
		}
	}

	if _, err := Export(dir, "xml", r, false); err == nil {
		t.Error("unknown format should fail")
	}
}
