package data

import (
	"sort"

	"github.com/opsxjacky/portfolio-backtest/pkg/types"
)

// Snapshot 单个交易日所有标的的行情
type Snapshot struct {
	Day      int
	Date     string
	RiskFree float64

	symbols []string
	index   map[string]int
	charts  []types.Chart
}

// NewSnapshot 由行情映射直接构造快照, 标的按字母序编号
func NewSnapshot(day int, date string, charts map[string]types.Chart) Snapshot {
	symbols := make([]string, 0, len(charts))
	for sym := range charts {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	index := make(map[string]int, len(symbols))
	row := make([]types.Chart, len(symbols))
	for i, sym := range symbols {
		index[sym] = i
		row[i] = charts[sym]
	}
	return Snapshot{Day: day, Date: date, symbols: symbols, index: index, charts: row}
}

// Chart 标的当日行情
func (s Snapshot) Chart(symbol string) (types.Chart, bool) {
	i, ok := s.index[symbol]
	if !ok {
		return types.Chart{}, false
	}
	return s.charts[i], true
}

// AdjClose 标的当日复权收盘价
func (s Snapshot) AdjClose(symbol string) (float64, bool) {
	c, ok := s.Chart(symbol)
	return c.AdjClose, ok
}

// At 按标的索引取行情
func (s Snapshot) At(i int) types.Chart {
	return s.charts[i]
}

// Len 标的数量
func (s Snapshot) Len() int {
	return len(s.charts)
}

// Symbols 标的列表
func (s Snapshot) Symbols() []string {
	return append([]string(nil), s.symbols...)
}
