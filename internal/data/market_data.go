package data

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/opsxjacky/portfolio-backtest/pkg/types"
)

// ErrAlignment 对齐后交易日数与无风险利率序列长度不一致 (内部逻辑错误)
var ErrAlignment = errors.New("market data alignment invariant violated")

// MarketData 按共同交易日对齐后的行情, 构造后不可变
type MarketData struct {
	rng      types.DateRange
	symbols  []string
	index    map[string]int
	dates    []string
	charts   [][]types.Chart // [day][symbol index]
	riskFree []float64       // 日化无风险利率
}

// NewMarketData 获取并对齐所有标的与无风险利率序列
func NewMarketData(
	ctx context.Context,
	src Source,
	symbols []string,
	riskFreeSymbol string,
	r types.DateRange,
	parallelism int,
) (*MarketData, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if riskFreeSymbol == "" {
		riskFreeSymbol = DefaultRiskFreeSymbol
	}
	series, riskFree, err := FetchAll(ctx, src, symbols, riskFreeSymbol, r, parallelism)
	if err != nil {
		return nil, err
	}
	return Align(r, symbols, series, riskFree)
}

// Align 取所有序列日期的交集, 升序排列后按日期重建索引.
// 无风险利率由年化百分比转换为日复利利率.
func Align(
	r types.DateRange,
	symbols []string,
	series map[string][]types.DatedChart,
	riskFree []types.DatedChart,
) (*MarketData, error) {
	if len(symbols) == 0 {
		return nil, errors.New("no symbols specified")
	}

	index := make(map[string]int, len(symbols))
	byDate := make([]map[string]types.Chart, len(symbols))
	for i, sym := range symbols {
		if _, dup := index[sym]; dup {
			return nil, fmt.Errorf("duplicate symbol %s", sym)
		}
		index[sym] = i
		rows := series[sym]
		if len(rows) == 0 {
			return nil, fmt.Errorf("%s: %w", sym, ErrDataUnavailable)
		}
		byDate[i] = chartsByDate(rows)
	}
	if len(riskFree) == 0 {
		return nil, fmt.Errorf("risk-free series: %w", ErrDataUnavailable)
	}
	rfByDate := chartsByDate(riskFree)

	common := make(map[string]struct{}, len(byDate[0]))
	for date := range byDate[0] {
		common[date] = struct{}{}
	}
	for _, m := range byDate[1:] {
		retain(common, m)
	}
	retain(common, rfByDate)

	dates := make([]string, 0, len(common))
	for date := range common {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	charts := make([][]types.Chart, len(dates))
	rates := make([]float64, 0, len(dates))
	for d, date := range dates {
		row := make([]types.Chart, len(symbols))
		for i := range symbols {
			row[i] = byDate[i][date]
		}
		charts[d] = row
		rates = append(rates, DailyRate(rfByDate[date].Close))
	}

	if len(dates) != len(rates) || len(dates) != len(charts) {
		return nil, fmt.Errorf("%w: %d dates, %d risk-free rates", ErrAlignment, len(dates), len(rates))
	}

	return &MarketData{
		rng:      r,
		symbols:  append([]string(nil), symbols...),
		index:    index,
		dates:    dates,
		charts:   charts,
		riskFree: rates,
	}, nil
}

// DailyRate 年化百分比利率 -> 日复利利率
func DailyRate(annualPercent float64) float64 {
	return math.Pow(1+annualPercent/100, 1/types.TradingDaysPerYear) - 1
}

func chartsByDate(rows []types.DatedChart) map[string]types.Chart {
	m := make(map[string]types.Chart, len(rows))
	for _, row := range rows {
		m[row.Date] = row.Chart
	}
	return m
}

func retain(set map[string]struct{}, other map[string]types.Chart) {
	for date := range set {
		if _, ok := other[date]; !ok {
			delete(set, date)
		}
	}
}

// Len 交易日数量
func (m *MarketData) Len() int {
	return len(m.dates)
}

// IsEmpty 是否没有共同交易日
func (m *MarketData) IsEmpty() bool {
	return len(m.dates) == 0
}

// Range 请求的日期区间
func (m *MarketData) Range() types.DateRange {
	return m.rng
}

// Dates 对齐后的交易日 (副本)
func (m *MarketData) Dates() []string {
	return append([]string(nil), m.dates...)
}

// Symbols 标的列表, 顺序即标的索引
func (m *MarketData) Symbols() []string {
	return append([]string(nil), m.symbols...)
}

// RiskFree 日化无风险利率序列 (副本)
func (m *MarketData) RiskFree() []float64 {
	return append([]float64(nil), m.riskFree...)
}

// Snapshot 返回第 day 个交易日 (从1开始) 的行情快照
func (m *MarketData) Snapshot(day int) (Snapshot, error) {
	if day < 1 || day > len(m.dates) {
		return Snapshot{}, fmt.Errorf("day %d out of range [1, %d]", day, len(m.dates))
	}
	return Snapshot{
		Day:      day,
		Date:     m.dates[day-1],
		RiskFree: m.riskFree[day-1],
		symbols:  m.symbols,
		index:    m.index,
		charts:   m.charts[day-1],
	}, nil
}

// Series 标的复权收盘价序列
func (m *MarketData) Series(symbol string) ([]float64, bool) {
	i, ok := m.index[symbol]
	if !ok {
		return nil, false
	}
	out := make([]float64, len(m.charts))
	for d, row := range m.charts {
		out[d] = row[i].AdjClose
	}
	return out, true
}
