package report

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/opsxjacky/portfolio-backtest/pkg/types"
)

// DefaultWindow 默认滚动窗口 (交易日)
const DefaultWindow = 21

var annualize = math.Sqrt(types.TradingDaysPerYear)

// Metrics 由日收益率序列派生的指标
type Metrics struct {
	Cumulative    []float64 // 累计净值 Π(1+r)
	RollingVol    []float64 // 滚动年化波动率
	RollingSharpe []float64 // 滚动年化夏普比率
	Drawdown      []float64 // 回撤 (相对历史最高累计净值)

	CAGR        float64
	Volatility  float64
	Sharpe      float64
	MaxDrawdown float64
}

// Derive 计算累计收益, 滚动波动率/夏普, 回撤及汇总指标.
// 第 i 日的滚动指标取 daily[i-window:i], i < window 时为0.
// 方差为零的窗口产生的非有限值原样保留.
func Derive(daily, riskFree []float64, window int) (Metrics, error) {
	if window < 1 {
		return Metrics{}, fmt.Errorf("rolling window must be at least 1, got %d", window)
	}
	if len(daily) != len(riskFree) {
		return Metrics{}, fmt.Errorf("daily returns (%d) and risk-free rates (%d) differ in length", len(daily), len(riskFree))
	}

	n := len(daily)
	m := Metrics{
		Cumulative:    make([]float64, n),
		RollingVol:    make([]float64, n),
		RollingSharpe: make([]float64, n),
		Drawdown:      make([]float64, n),
	}
	if n == 0 {
		return m, nil
	}

	excess := make([]float64, n)
	for i, r := range daily {
		excess[i] = r - riskFree[i]
	}

	cum := 1.0
	peak := math.Inf(-1)
	for i, r := range daily {
		cum *= 1 + r
		m.Cumulative[i] = cum
		if cum > peak {
			peak = cum
		}
		if peak > 0 {
			m.Drawdown[i] = (peak - cum) / peak
		}
		if m.Drawdown[i] > m.MaxDrawdown {
			m.MaxDrawdown = m.Drawdown[i]
		}

		if i < window {
			continue
		}
		sd := stat.StdDev(daily[i-window:i], nil)
		m.RollingVol[i] = sd * annualize
		m.RollingSharpe[i] = stat.Mean(excess[i-window:i], nil) / sd * annualize
	}

	sd := stat.StdDev(daily, nil)
	m.CAGR = math.Pow(m.Cumulative[n-1], types.TradingDaysPerYear/float64(n)) - 1
	m.Volatility = sd * annualize
	m.Sharpe = stat.Mean(excess, nil) / sd * annualize
	return m, nil
}
