package report

import (
	"bytes"
	"math"
	"reflect"
	"strings"
	"testing"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestDeriveCumulativeAndDrawdown(t *testing.T) {
	daily := []float64{0.1, -0.5, 0.2, 1.0}
	rf := make([]float64, len(daily))

	m, err := Derive(daily, rf, 2)
	if err != nil {
		t.Fatal(err)
	}

	wantCum := []float64{1.1, 0.55, 0.66, 1.32}
	wantDD := []float64{0, 0.5, 0.4, 0}
	for i := range daily {
		if !approx(m.Cumulative[i], wantCum[i]) {
			t.Errorf("cumulative[%d] = %v, want %v", i, m.Cumulative[i], wantCum[i])
		}
		if !approx(m.Drawdown[i], wantDD[i]) {
			t.Errorf("drawdown[%d] = %v, want %v", i, m.Drawdown[i], wantDD[i])
		}
	}
	if !approx(m.MaxDrawdown, 0.5) {
		t.Errorf("max drawdown = %v, want 0.5", m.MaxDrawdown)
	}
	if want := math.Pow(1.32, 252.0/4) - 1; !approx(m.CAGR, want) {
		t.Errorf("cagr = %v, want %v", m.CAGR, want)
	}
}

func TestDeriveRollingWindow(t *testing.T) {
	daily := []float64{0.01, 0.03, 0.02, -0.01, 0.04}
	rf := []float64{0.001, 0.001, 0.001, 0.001, 0.001}
	const window = 2

	m, err := Derive(daily, rf, window)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < window; i++ {
		if m.RollingVol[i] != 0 || m.RollingSharpe[i] != 0 {
			t.Errorf("day %d inside warm-up: vol=%v sharpe=%v", i, m.RollingVol[i], m.RollingSharpe[i])
		}
	}

	// 第 i 日取 daily[i-2:i], 不含当日
	sd := math.Abs(daily[1]-daily[0]) / math.Sqrt(2)
	if want := sd * math.Sqrt(252); !approx(m.RollingVol[2], want) {
		t.Errorf("rolling vol[2] = %v, want %v", m.RollingVol[2], want)
	}
	meanExcess := (daily[0]+daily[1])/2 - 0.001
	if want := meanExcess / sd * math.Sqrt(252); !approx(m.RollingSharpe[2], want) {
		t.Errorf("rolling sharpe[2] = %v, want %v", m.RollingSharpe[2], want)
	}
}

func TestDeriveZeroVarianceIsNonFinite(t *testing.T) {
	daily := []float64{0.25, 0.25, 0.25}
	m, err := Derive(daily, make([]float64, 3), 2)
	if err != nil {
		t.Fatal(err)
	}
	if !math.IsInf(m.RollingSharpe[2], 1) {
		t.Errorf("rolling sharpe over constant window = %v, want +Inf", m.RollingSharpe[2])
	}
	if !math.IsInf(m.Sharpe, 1) {
		t.Errorf("sharpe = %v, want +Inf", m.Sharpe)
	}
}

func TestDeriveValidation(t *testing.T) {
	if _, err := Derive([]float64{0.1}, []float64{0}, 0); err == nil {
		t.Error("window 0 should fail")
	}
	if _, err := Derive([]float64{0.1}, nil, 1); err == nil {
		t.Error("length mismatch should fail")
	}
}

func sampleInput() Input {
	return Input{
		Strategy:       "BnH(periodic:2)",
		Symbols:        []string{"A", "B"},
		Dates:          []string{"2020-01-02", "2020-01-03", "2020-01-06"},
		InitialCapital: 10000,
		Cash:           60.5,
		Holdings:       map[string]int64{"A": 45, "B": 111},
		DailyReturn:    []float64{0, 0.1, -0.05},
		BalanceHistory: []float64{0, 11000, 60.5},
		ValueHistory:   []float64{10000, 11000, 10450},
		RiskFree:       []float64{0, 0, 0},
		TotalFees:      0,
		Window:         2,
	}
}

func TestNewReport(t *testing.T) {
	r, err := New(sampleInput())
	if err != nil {
		t.Fatal(err)
	}
	if r.ID == "" {
		t.Error("report should carry an id")
	}
	if r.FinalValue() != 10450 {
		t.Errorf("final value = %v", r.FinalValue())
	}
	if !approx(r.TotalReturn(), 1.1*0.95-1) {
		t.Errorf("total return = %v", r.TotalReturn())
	}

	s := r.Summary()
	if s.StartDate != "2020-01-02" || s.EndDate != "2020-01-06" || s.Days != 3 {
		t.Errorf("summary period = %+v", s)
	}
	if s.Symbols != "A,B" {
		t.Errorf("summary symbols = %q", s.Symbols)
	}

	rows := r.Rows()
	if len(rows) != 3 || rows[1].Day != 2 || rows[1].Value != 11000 {
		t.Errorf("rows = %+v", rows)
	}
}

func TestReportViewsAreIdempotent(t *testing.T) {
	r, err := New(sampleInput())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(r.Summary(), r.Summary()) {
		t.Error("Summary() differs between calls")
	}
	if !reflect.DeepEqual(r.Rows(), r.Rows()) {
		t.Error("Rows() differs between calls")
	}
}

func TestNewReportEmpty(t *testing.T) {
	r, err := New(Input{Strategy: "BnH(never)", Symbols: []string{"A"}, InitialCapital: 5000})
	if err != nil {
		t.Fatal(err)
	}
	if !r.IsEmpty() {
		t.Error("report should be empty")
	}
	if r.CAGR != 0 || r.Volatility != 0 || r.Sharpe != 0 || r.MaxDrawdown != 0 {
		t.Errorf("empty report scalars should be zero: %+v", r.Metrics)
	}
	if r.FinalValue() != 5000 || len(r.Rows()) != 0 {
		t.Errorf("final value = %v, rows = %d", r.FinalValue(), len(r.Rows()))
	}
	if r.Window != DefaultWindow {
		t.Errorf("window = %d, want default", r.Window)
	}

	var buf bytes.Buffer
	r.Print(&buf)
	if !strings.Contains(buf.String(), "no common trading days") {
		t.Errorf("empty summary output:\n%s", buf.String())
	}
}

func TestNewReportLengthMismatch(t *testing.T) {
	in := sampleInput()
	in.ValueHistory = in.ValueHistory[:2]
	if _, err := New(in); err == nil {
		t.Error("length mismatch should fail")
	}
}

func TestSortBySharpe(t *testing.T) {
	mk := func(name string, sharpe float64) *BacktestReport {
		return &BacktestReport{Strategy: name, Metrics: Metrics{Sharpe: sharpe}}
	}
	reports := []*BacktestReport{
		mk("nan-1", math.NaN()),
		mk("low", -0.5),
		mk("nan-2", math.NaN()),
		mk("high", 1.2),
		mk("inf", math.Inf(1)),
		mk("mid", 0.3),
	}
	SortBySharpe(reports)

	want := []string{"inf", "high", "mid", "low", "nan-1", "nan-2"}
	for i, name := range want {
		if reports[i].Strategy != name {
			t.Errorf("reports[%d] = %s, want %s", i, reports[i].Strategy, name)
		}
	}
}
