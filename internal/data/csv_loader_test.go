package data

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/opsxjacky/portfolio-backtest/pkg/types"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCSVSourceFetch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "SPY.csv", "Date,Open,High,Low,Close,Adj Close,Volume\r\n"+
		"2020-01-03,10,11,9,10.5,10.4,1000\r\n"+
		"2020-01-02,9,10,8,9.5,9.4,900\r\n"+
		"2020-01-06,null,null,null,null,null,null\r\n"+
		"not-a-date,1,1,1,1,1,1\r\n"+
		"2019-12-31,8,9,7,8.5,8.4,800\r\n")

	var src Source = NewCSVSource(dir)
	if src.SourceType() != "csv" {
		t.Errorf("SourceType() = %q", src.SourceType())
	}
	rows, err := src.Fetch(context.Background(), "SPY", testRange)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d: %+v", len(rows), rows)
	}
	if rows[0].Date != "2020-01-02" || rows[1].Date != "2020-01-03" {
		t.Errorf("rows not sorted: %s, %s", rows[0].Date, rows[1].Date)
	}
	want := types.Chart{Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 1000, AdjClose: 10.4}
	if rows[1].Chart != want {
		t.Errorf("chart = %+v, want %+v", rows[1].Chart, want)
	}
}

func TestCSVSourceAdjCloseFallback(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "^TNX.csv", "date,close\n2020/01/02,1.88\n2020/01/02,1.90\n")

	rows, err := NewCSVSource(dir).Fetch(context.Background(), "^TNX", testRange)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("duplicate dates should collapse, got %d rows", len(rows))
	}
	if rows[0].Chart.AdjClose != 1.90 || rows[0].Chart.Close != 1.90 {
		t.Errorf("expected last row with adj close fallback, got %+v", rows[0].Chart)
	}
}

func TestCSVSourceUnavailable(t *testing.T) {
	dir := t.TempDir()
	src := NewCSVSource(dir)

	if _, err := src.Fetch(context.Background(), "NOPE", testRange); !errors.Is(err, ErrDataUnavailable) {
		t.Errorf("missing file: expected ErrDataUnavailable, got %v", err)
	}

	writeFile(t, dir, "OLD.csv", "Date,Close\n2010-01-04,1\n")
	if _, err := src.Fetch(context.Background(), "OLD", testRange); !errors.Is(err, ErrDataUnavailable) {
		t.Errorf("out of range: expected ErrDataUnavailable, got %v", err)
	}
}

func TestFetchAll(t *testing.T) {
	src := StaticSource{
		"A":    bars(map[string]float64{"2020-01-02": 1}),
		"B":    bars(map[string]float64{"2020-01-02": 2}),
		"^IRX": bars(map[string]float64{"2020-01-02": 3}),
	}
	series, rf, err := FetchAll(context.Background(), src, []string{"A", "B"}, "^IRX", testRange, 1)
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if len(series) != 2 || series["B"][0].Chart.Close != 2 {
		t.Errorf("unexpected series: %+v", series)
	}
	if len(rf) != 1 || rf[0].Chart.Close != 3 {
		t.Errorf("unexpected risk-free series: %+v", rf)
	}

	_, _, err = FetchAll(context.Background(), src, []string{"A"}, "^TNX", testRange, 4)
	if !errors.Is(err, ErrDataUnavailable) {
		t.Errorf("expected ErrDataUnavailable, got %v", err)
	}
}
