package data

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/opsxjacky/portfolio-backtest/pkg/types"
)

// CSVSource CSV数据源, 每个标的一个文件: <dataDir>/<symbol>.csv
type CSVSource struct {
	dataDir string
}

// NewCSVSource 创建CSV数据源
func NewCSVSource(dataDir string) *CSVSource {
	return &CSVSource{dataDir: dataDir}
}

// SourceType 返回数据源类型
func (l *CSVSource) SourceType() string {
	return "csv"
}

// csvRow CSV行
type csvRow struct {
	Date     string `csv:"date"`
	Open     string `csv:"open"`
	High     string `csv:"high"`
	Low      string `csv:"low"`
	Close    string `csv:"close"`
	Volume   string `csv:"volume"`
	AdjClose string `csv:"adj_close"`
}

// parseField 解析数值列, 空值与 "null" 视为缺失
func parseField(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" || strings.EqualFold(s, "null") {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// Fetch 实现 Source
func (l *CSVSource) Fetch(_ context.Context, symbol string, r types.DateRange) ([]types.DatedChart, error) {
	filePath := filepath.Join(l.dataDir, symbol+".csv")
	raw, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", filePath, ErrDataUnavailable)
		}
		return nil, fmt.Errorf("failed to open file %s: %w", filePath, err)
	}

	rows, err := decodeRows(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV %s: %w", filePath, err)
	}

	// 同一日期保留最后一行
	byDate := make(map[string]types.Chart, len(rows))
	for _, row := range rows {
		date, err := parseDate(row.Date)
		if err != nil {
			continue // 跳过解析错误的行
		}
		closePrice, ok := parseField(row.Close)
		if !ok || !r.Contains(date) {
			continue
		}
		chart := types.Chart{Close: closePrice}
		chart.Open, _ = parseField(row.Open)
		chart.High, _ = parseField(row.High)
		chart.Low, _ = parseField(row.Low)
		chart.Volume, _ = parseField(row.Volume)
		if chart.AdjClose, ok = parseField(row.AdjClose); !ok {
			chart.AdjClose = chart.Close // 默认使用收盘价
		}
		byDate[date] = chart
	}

	if len(byDate) == 0 {
		return nil, fmt.Errorf("%s in %s: %w", symbol, r, ErrDataUnavailable)
	}

	result := make([]types.DatedChart, 0, len(byDate))
	for date, chart := range byDate {
		result = append(result, types.DatedChart{Date: date, Chart: chart})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date < result[j].Date })
	return result, nil
}

// decodeRows 规范化表头后交给 gocsv 解码
func decodeRows(raw []byte) ([]csvRow, error) {
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	header, body := raw, []byte(nil)
	if idx := bytes.IndexByte(raw, '\n'); idx >= 0 {
		header, body = raw[:idx], raw[idx+1:]
	}

	cols, err := csv.NewReader(bytes.NewReader(bytes.TrimRight(header, "\r"))).Read()
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	for i, col := range cols {
		cols[i] = normalizeColumn(col)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(cols); err != nil {
		return nil, err
	}
	w.Flush()

	var rows []csvRow
	if err := gocsv.Unmarshal(io.MultiReader(&buf, bytes.NewReader(body)), &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New("CSV file has no data rows")
	}
	return rows, nil
}

// normalizeColumn 解析CSV表头别名
func normalizeColumn(col string) string {
	switch strings.TrimSpace(col) {
	case "Date", "date", "DATE", "Timestamp", "timestamp":
		return "date"
	case "Open", "open", "OPEN":
		return "open"
	case "High", "high", "HIGH":
		return "high"
	case "Low", "low", "LOW":
		return "low"
	case "Close", "close", "CLOSE":
		return "close"
	case "Volume", "volume", "VOLUME":
		return "volume"
	case "Adj Close", "adj_close", "AdjClose", "Adj_Close", "adjclose":
		return "adj_close"
	}
	return strings.TrimSpace(col)
}

// parseDate 解析日期字符串, 统一为 YYYY-MM-DD
func parseDate(dateStr string) (string, error) {
	formats := []string{
		types.DateLayout,
		"2006/01/02",
		"01/02/2006",
		"2006-01-02 15:04:05",
		time.RFC3339,
	}

	dateStr = strings.TrimSpace(dateStr)
	for _, format := range formats {
		if t, err := time.Parse(format, dateStr); err == nil {
			return t.Format(types.DateLayout), nil
		}
	}

	return "", fmt.Errorf("unable to parse date: %s", dateStr)
}
