package strategy

import (
	"fmt"
	"math"

	"github.com/opsxjacky/portfolio-backtest/internal/data"
	"github.com/opsxjacky/portfolio-backtest/internal/indicator"
	"github.com/opsxjacky/portfolio-backtest/internal/portfolio"
	"github.com/opsxjacky/portfolio-backtest/pkg/types"
)

// exposureRule 根据价格历史给出标的的目标仓位比例 [0, 1]
type exposureRule func(symbol string, history []float64) float64

// exposureStrategy 每日按 总价值 × 权重 × 仓位比例 调整持仓
type exposureStrategy struct {
	name    string
	weights map[string]float64
	history map[string][]float64
	rule    exposureRule
}

func newExposureStrategy(name string, weights map[string]float64, rule exposureRule) (*exposureStrategy, error) {
	if err := ValidateWeights(weights); err != nil {
		return nil, err
	}
	return &exposureStrategy{
		name:    name,
		weights: copyWeights(weights),
		history: make(map[string][]float64, len(weights)),
		rule:    rule,
	}, nil
}

// Name 返回策略名称
func (s *exposureStrategy) Name() string {
	return s.name
}

// SetName 设置显示名称
func (s *exposureStrategy) SetName(name string) {
	s.name = name
}

// Orders 生成当日订单: 先卖出后买入, 买入额度不超过可用现金
func (s *exposureStrategy) Orders(_ int, snap data.Snapshot, pf *portfolio.Portfolio) (types.OrderMap, error) {
	symbols := pf.Symbols()
	orders := zeroOrders(symbols)

	total, err := pf.Value(snap)
	if err != nil {
		return nil, err
	}

	targets := make([]float64, len(symbols))
	prices := make([]float64, len(symbols))
	for i, sym := range symbols {
		w, ok := s.weights[sym]
		if !ok {
			return nil, fmt.Errorf("%s: %w", sym, ErrMissingWeight)
		}
		price, ok := snap.AdjClose(sym)
		if !ok || price <= 0 {
			return nil, fmt.Errorf("%s has no usable price on %s", sym, snap.Date)
		}
		s.history[sym] = append(s.history[sym], price)
		exposure := math.Max(0, math.Min(1, s.rule(sym, s.history[sym])))
		targets[i] = total * w * exposure
		prices[i] = price
	}

	available := pf.Cash()
	for i, sym := range symbols {
		held := pf.SharesAt(i)
		want := int64(targets[i] / prices[i])
		if want < held {
			notional := prices[i] * float64(held-want)
			available += notional - pf.Fee(-notional, types.SideSell)
			orders[sym] = types.NewOrder(sym, want-held)
		}
	}
	for i, sym := range symbols {
		held := pf.SharesAt(i)
		gap := targets[i] - prices[i]*float64(held)
		if gap <= 0 || available <= 0 {
			continue
		}
		n := pf.MaxShares(math.Min(gap, available), prices[i])
		if n <= 0 {
			continue
		}
		notional := prices[i] * float64(n)
		available -= notional + pf.Fee(notional, types.SideBuy)
		orders[sym] = types.NewOrder(sym, n)
	}
	return orders, nil
}

// MACrossover 均线交叉: 短期均线高于长期均线时满仓, 否则空仓.
// 支持简单均线与指数均线.
type MACrossover struct {
	*exposureStrategy
	fast, slow int
	kind       types.MAType
}

// NewMACrossover 创建均线交叉策略, kind 为空时使用简单均线
func NewMACrossover(weights map[string]float64, fast, slow int, kind types.MAType) (*MACrossover, error) {
	if fast <= 0 || slow <= fast {
		return nil, fmt.Errorf("need 0 < fast < slow, got fast=%d slow=%d", fast, slow)
	}
	label := "MA"
	switch kind {
	case types.MASimple, "":
		kind = types.MASimple
	case types.MAExponential:
		label = "EMA"
	default:
		return nil, fmt.Errorf("unknown moving average type %q", kind)
	}
	s := &MACrossover{fast: fast, slow: slow, kind: kind}
	base, err := newExposureStrategy(fmt.Sprintf("%s(%d,%d)", label, fast, slow), weights, s.exposure)
	if err != nil {
		return nil, err
	}
	s.exposureStrategy = base
	return s, nil
}

func (s *MACrossover) exposure(_ string, history []float64) float64 {
	if len(history) < s.slow {
		return 0
	}
	var fast, slow []float64
	if s.kind == types.MAExponential {
		fast = indicator.EMA(history, s.fast)
		slow = indicator.EMA(history, s.slow)
	} else {
		tail := history[len(history)-s.slow:]
		fast = indicator.SMA(tail, s.fast)
		slow = indicator.SMA(tail, s.slow)
	}
	if fast[len(fast)-1] > slow[len(slow)-1] {
		return 1
	}
	return 0
}

// RSIBand RSI 区间: 低于超卖线时满仓, 高于超买线时空仓, 其间维持上一状态
type RSIBand struct {
	*exposureStrategy
	period     int
	oversold   float64
	overbought float64
	state      map[string]float64
}

// NewRSIBand 创建 RSI 区间策略
func NewRSIBand(weights map[string]float64, period int, oversold, overbought float64) (*RSIBand, error) {
	if period < 2 {
		return nil, fmt.Errorf("rsi period must be at least 2, got %d", period)
	}
	if !(0 <= oversold && oversold < overbought && overbought <= 100) {
		return nil, fmt.Errorf("need 0 <= oversold < overbought <= 100, got %v/%v", oversold, overbought)
	}
	s := &RSIBand{
		period:     period,
		oversold:   oversold,
		overbought: overbought,
		state:      make(map[string]float64),
	}
	base, err := newExposureStrategy(fmt.Sprintf("RSI(%d,%g,%g)", period, oversold, overbought), weights, s.exposure)
	if err != nil {
		return nil, err
	}
	s.exposureStrategy = base
	return s, nil
}

func (s *RSIBand) exposure(symbol string, history []float64) float64 {
	if len(history) <= s.period {
		return s.state[symbol]
	}
	rsi := indicator.RSI(history, s.period)
	last := rsi[len(rsi)-1]
	switch {
	case last < s.oversold:
		s.state[symbol] = 1
	case last > s.overbought:
		s.state[symbol] = 0
	}
	return s.state[symbol]
}
