package strategy

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// ValuationParams 估值分位策略参数
type ValuationParams struct {
	Lookback  int     // 分位回看窗口 (交易日)
	LowRank   float64 // 低估分位, 低于等于时恢复满仓
	HighRank  float64 // 高估分位, 高于等于时减仓
	TrimRatio float64 // 高估时减仓比例
}

// DefaultValuationParams 默认参数
func DefaultValuationParams() ValuationParams {
	return ValuationParams{
		Lookback:  252,
		LowRank:   0.3,
		HighRank:  0.8,
		TrimRatio: 0.5,
	}
}

// Validate 检查参数范围
func (p ValuationParams) Validate() error {
	if p.Lookback < 2 {
		return fmt.Errorf("valuation lookback must be at least 2, got %d", p.Lookback)
	}
	if !(0 <= p.LowRank && p.LowRank < p.HighRank && p.HighRank <= 1) {
		return fmt.Errorf("need 0 <= low_rank < high_rank <= 1, got %v/%v", p.LowRank, p.HighRank)
	}
	if p.TrimRatio <= 0 || p.TrimRatio > 1 {
		return fmt.Errorf("trim_ratio must be in (0, 1], got %v", p.TrimRatio)
	}
	return nil
}

// Valuation 估值分位驱动策略.
// 以当日价格在回看窗口中的分位作为估值: 高估时按 TrimRatio 减仓,
// 回落到低估区间时恢复满仓, 其间维持上一状态. 窗口未满时满仓.
type Valuation struct {
	*exposureStrategy
	params ValuationParams
	state  map[string]float64
}

// NewValuation 创建估值分位策略, 参数按原值校验, 默认值见 DefaultValuationParams
func NewValuation(weights map[string]float64, params ValuationParams) (*Valuation, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	s := &Valuation{
		params: params,
		state:  make(map[string]float64),
	}
	name := fmt.Sprintf("Valuation(%d,%g,%g)", params.Lookback, params.LowRank, params.HighRank)
	base, err := newExposureStrategy(name, weights, s.exposure)
	if err != nil {
		return nil, err
	}
	s.exposureStrategy = base
	return s, nil
}

// Params 生效参数
func (s *Valuation) Params() ValuationParams {
	return s.params
}

// Rank 价格在窗口内的经验分位, 即窗口中不高于当前价格的比例
func Rank(window []float64) float64 {
	if len(window) == 0 {
		return 0
	}
	sorted := append([]float64(nil), window...)
	sort.Float64s(sorted)
	return stat.CDF(window[len(window)-1], stat.Empirical, sorted, nil)
}

func (s *Valuation) exposure(symbol string, history []float64) float64 {
	state, ok := s.state[symbol]
	if !ok {
		state = 1
	}
	if len(history) >= s.params.Lookback {
		rank := Rank(history[len(history)-s.params.Lookback:])
		switch {
		case rank >= s.params.HighRank:
			state = 1 - s.params.TrimRatio
		case rank <= s.params.LowRank:
			state = 1
		}
	}
	s.state[symbol] = state
	return state
}
