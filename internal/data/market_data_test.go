package data

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/opsxjacky/portfolio-backtest/pkg/types"
)

func bars(closes map[string]float64) []types.DatedChart {
	out := make([]types.DatedChart, 0, len(closes))
	for date, c := range closes {
		out = append(out, types.DatedChart{Date: date, Chart: types.Chart{Close: c, AdjClose: c}})
	}
	return out
}

var testRange = types.DateRange{From: "2020-01-01", To: "2020-12-31"}

func TestAlignIntersection(t *testing.T) {
	series := map[string][]types.DatedChart{
		"A": bars(map[string]float64{"2020-01-03": 3, "2020-01-01": 1, "2020-01-02": 2, "2020-01-06": 6}),
		"B": bars(map[string]float64{"2020-01-02": 20, "2020-01-03": 30, "2020-01-06": 60, "2020-01-07": 70}),
	}
	riskFree := bars(map[string]float64{"2020-01-01": 4, "2020-01-03": 4, "2020-01-06": 4, "2020-01-07": 4})

	md, err := Align(testRange, []string{"A", "B"}, series, riskFree)
	if err != nil {
		t.Fatalf("Align failed: %v", err)
	}

	want := []string{"2020-01-03", "2020-01-06"}
	if got := md.Dates(); !reflect.DeepEqual(got, want) {
		t.Fatalf("dates = %v, want %v", got, want)
	}
	if len(md.RiskFree()) != md.Len() {
		t.Fatalf("risk-free length %d != %d", len(md.RiskFree()), md.Len())
	}

	// 按日期而非位置对应
	snap, err := md.Snapshot(2)
	if err != nil {
		t.Fatal(err)
	}
	if p, _ := snap.AdjClose("A"); p != 6 {
		t.Errorf("A on %s = %v, want 6", snap.Date, p)
	}
	if p, _ := snap.AdjClose("B"); p != 60 {
		t.Errorf("B on %s = %v, want 60", snap.Date, p)
	}

	if got, ok := md.Series("B"); !ok || !reflect.DeepEqual(got, []float64{30, 60}) {
		t.Errorf("Series(B) = %v, %v", got, ok)
	}
	if _, ok := md.Series("C"); ok {
		t.Error("Series(C) should not exist")
	}
}

func TestAlignDisjointDatesIsEmpty(t *testing.T) {
	series := map[string][]types.DatedChart{
		"A": bars(map[string]float64{"2020-01-01": 1}),
		"B": bars(map[string]float64{"2020-01-02": 2}),
	}
	riskFree := bars(map[string]float64{"2020-01-01": 1, "2020-01-02": 1})

	md, err := Align(testRange, []string{"A", "B"}, series, riskFree)
	if err != nil {
		t.Fatalf("disjoint dates should not fail: %v", err)
	}
	if !md.IsEmpty() || md.Len() != 0 {
		t.Errorf("expected empty market data, got %d days", md.Len())
	}
	if _, err := md.Snapshot(1); err == nil {
		t.Error("Snapshot on empty market data should fail")
	}
}

func TestAlignMissingSeries(t *testing.T) {
	series := map[string][]types.DatedChart{
		"A": bars(map[string]float64{"2020-01-01": 1}),
	}
	riskFree := bars(map[string]float64{"2020-01-01": 1})

	_, err := Align(testRange, []string{"A", "B"}, series, riskFree)
	if !errors.Is(err, ErrDataUnavailable) {
		t.Errorf("expected ErrDataUnavailable, got %v", err)
	}

	_, err = Align(testRange, []string{"A"}, series, nil)
	if !errors.Is(err, ErrDataUnavailable) {
		t.Errorf("expected ErrDataUnavailable for risk-free, got %v", err)
	}

	_, err = Align(testRange, []string{"A", "A"}, series, riskFree)
	if err == nil {
		t.Error("duplicate symbols should fail")
	}
}

func TestDailyRate(t *testing.T) {
	got := DailyRate(4)
	want := math.Pow(1.04, 1.0/252) - 1
	if math.Abs(got-want) > 1e-15 {
		t.Errorf("DailyRate(4) = %v, want %v", got, want)
	}
	if DailyRate(0) != 0 {
		t.Error("zero annual rate should give zero daily rate")
	}
	// 252 天复利回到年化
	if compounded := math.Pow(1+got, 252) - 1; math.Abs(compounded-0.04) > 1e-12 {
		t.Errorf("compounded rate = %v, want 0.04", compounded)
	}
}

func TestNewMarketDataFromStaticSource(t *testing.T) {
	src := StaticSource{
		"A":    bars(map[string]float64{"2019-12-31": 1, "2020-01-02": 2, "2020-01-03": 3}),
		"^TNX": bars(map[string]float64{"2020-01-02": 1.5, "2020-01-03": 1.6}),
	}
	if src.SourceType() != "static" {
		t.Errorf("SourceType() = %q", src.SourceType())
	}
	md, err := NewMarketData(context.Background(), src, []string{"A"}, "", testRange, 2)
	if err != nil {
		t.Fatalf("NewMarketData failed: %v", err)
	}
	if want := []string{"2020-01-02", "2020-01-03"}; !reflect.DeepEqual(md.Dates(), want) {
		t.Errorf("dates = %v, want %v", md.Dates(), want)
	}

	_, err = NewMarketData(context.Background(), src, []string{"A", "MISSING"}, "", testRange, 2)
	if !errors.Is(err, ErrDataUnavailable) {
		t.Errorf("expected ErrDataUnavailable, got %v", err)
	}

	_, err = NewMarketData(context.Background(), src, []string{"A"}, "", types.DateRange{From: "2020-02-01", To: "2020-01-01"}, 2)
	if err == nil {
		t.Error("reversed range should fail")
	}
}

func TestNewSnapshot(t *testing.T) {
	snap := NewSnapshot(3, "2020-01-03", map[string]types.Chart{
		"B": {AdjClose: 2},
		"A": {AdjClose: 1},
	})
	if got := snap.Symbols(); !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Errorf("symbols = %v", got)
	}
	if snap.At(1).AdjClose != 2 {
		t.Errorf("At(1) = %v, want B's chart", snap.At(1))
	}
	if _, ok := snap.Chart("C"); ok {
		t.Error("unknown symbol reported present")
	}
}
