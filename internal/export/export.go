package export

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/parquet-go/parquet-go"

	"github.com/opsxjacky/portfolio-backtest/internal/report"
	"github.com/opsxjacky/portfolio-backtest/pkg/types"
)

// 输出格式
const (
	FormatJSON    = "json"
	FormatCSV     = "csv"
	FormatParquet = "parquet"
	FormatAll     = "all"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// BaseName 输出文件名前缀: 策略名 + 短 ID, 仅含文件名安全字符
func BaseName(r *report.BacktestReport) string {
	name := strings.Trim(unsafeChars.ReplaceAllString(r.Strategy, "_"), "_")
	if name == "" {
		name = "backtest"
	}
	id := r.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return name + "_" + id
}

// Export 按格式将报告写入 dir, 返回写出的文件路径.
// chart 为 true 时另外生成累计收益与回撤的 PNG 图表.
func Export(dir, format string, r *report.BacktestReport, chart bool) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	base := filepath.Join(dir, BaseName(r))

	var paths []string
	format = strings.ToLower(format)
	if format == "" {
		format = FormatJSON
	}

	if format == FormatJSON || format == FormatAll {
		p := base + ".json"
		if err := WriteJSON(p, r); err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
	if format == FormatCSV || format == FormatAll {
		written, err := WriteCSV(base, r)
		paths = append(paths, written...)
		if err != nil {
			return paths, err
		}
	}
	if format == FormatParquet || format == FormatAll {
		written, err := WriteParquet(base, r)
		paths = append(paths, written...)
		if err != nil {
			return paths, err
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("unknown output format %q", format)
	}

	if chart && !r.IsEmpty() {
		p := base + ".png"
		if err := WriteChart(p, r); err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// number 非有限值序列化为 JSON null
type number float64

func (n number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

type jsonSummary struct {
	ID             string `json:"id"`
	Strategy       string `json:"strategy"`
	Symbols        string `json:"symbols"`
	StartDate      string `json:"start_date"`
	EndDate        string `json:"end_date"`
	Days           int    `json:"days"`
	Window         int    `json:"window"`
	InitialCapital number `json:"initial_capital"`
	FinalValue     number `json:"final_value"`
	TotalReturn    number `json:"total_return"`
	CAGR           number `json:"cagr"`
	Volatility     number `json:"volatility"`
	Sharpe         number `json:"sharpe"`
	MaxDrawdown    number `json:"max_drawdown"`
	TotalTrades    int    `json:"total_trades"`
	TotalFees      number `json:"total_fees"`
}

type jsonRow struct {
	Day           int    `json:"day"`
	Date          string `json:"date"`
	DailyReturn   number `json:"daily_return"`
	Cumulative    number `json:"cumulative_return"`
	RollingVol    number `json:"rolling_volatility"`
	RollingSharpe number `json:"rolling_sharpe"`
	Drawdown      number `json:"drawdown"`
	Balance       number `json:"balance"`
	Value         number `json:"value"`
	RiskFree      number `json:"risk_free"`
}

// WriteJSON 导出摘要, 期末持仓, 成交记录与逐日数据
func WriteJSON(path string, r *report.BacktestReport) error {
	s := r.Summary()
	rows := r.Rows()

	output := struct {
		Summary  jsonSummary      `json:"summary"`
		Cash     number           `json:"cash"`
		Holdings map[string]int64 `json:"holdings"`
		Trades   []types.Trade    `json:"trades"`
		Daily    []jsonRow        `json:"daily"`
	}{
		Summary: jsonSummary{
			ID:             s.ID,
			Strategy:       s.Strategy,
			Symbols:        s.Symbols,
			StartDate:      s.StartDate,
			EndDate:        s.EndDate,
			Days:           s.Days,
			Window:         s.Window,
			InitialCapital: number(s.InitialCapital),
			FinalValue:     number(s.FinalValue),
			TotalReturn:    number(s.TotalReturn),
			CAGR:           number(s.CAGR),
			Volatility:     number(s.Volatility),
			Sharpe:         number(s.Sharpe),
			MaxDrawdown:    number(s.MaxDrawdown),
			TotalTrades:    s.TotalTrades,
			TotalFees:      number(s.TotalFees),
		},
		Cash:     number(r.Cash),
		Holdings: r.Holdings,
		Trades:   r.Trades,
		Daily:    make([]jsonRow, len(rows)),
	}
	if output.Trades == nil {
		output.Trades = []types.Trade{}
	}
	for i, row := range rows {
		output.Daily[i] = jsonRow{
			Day:           row.Day,
			Date:          row.Date,
			DailyReturn:   number(row.DailyReturn),
			Cumulative:    number(row.Cumulative),
			RollingVol:    number(row.RollingVol),
			RollingSharpe: number(row.RollingSharpe),
			Drawdown:      number(row.Drawdown),
			Balance:       number(row.Balance),
			Value:         number(row.Value),
			RiskFree:      number(row.RiskFree),
		}
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// WriteCSV 导出 <base>_daily.csv 与 <base>_trades.csv
func WriteCSV(base string, r *report.BacktestReport) ([]string, error) {
	rows := r.Rows()
	trades := r.Trades
	if trades == nil {
		trades = []types.Trade{}
	}

	var paths []string
	for _, item := range []struct {
		path string
		data interface{}
	}{
		{base + "_daily.csv", &rows},
		{base + "_trades.csv", &trades},
	} {
		if err := writeCSVFile(item.path, item.data); err != nil {
			return paths, err
		}
		paths = append(paths, item.path)
	}
	return paths, nil
}

func writeCSVFile(path string, in interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()
	if err := gocsv.MarshalFile(in, f); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// WriteParquet 导出 <base>_daily.parquet 与 <base>_summary.parquet
func WriteParquet(base string, r *report.BacktestReport) ([]string, error) {
	daily := base + "_daily.parquet"
	if err := parquet.WriteFile(daily, r.Rows()); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", daily, err)
	}
	summary := base + "_summary.parquet"
	if err := parquet.WriteFile(summary, []report.Summary{r.Summary()}); err != nil {
		return []string{daily}, fmt.Errorf("failed to write %s: %w", summary, err)
	}
	return []string{daily, summary}, nil
}

// ReadParquetRows 读取 WriteParquet 写出的逐日数据
func ReadParquetRows(path string) ([]report.Row, error) {
	return parquet.ReadFile[report.Row](path)
}
