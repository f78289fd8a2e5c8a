package strategy

import (
	"fmt"

	"github.com/opsxjacky/portfolio-backtest/pkg/types"
)

// RebalanceFromConfig 根据配置创建再平衡触发器
func RebalanceFromConfig(config types.RebalanceConfig, weights map[string]float64) (RebalanceStrategy, error) {
	switch config.Type {
	case types.RebalancePeriodic:
		return NewPeriodic(config.Period)
	case types.RebalanceThreshold:
		return NewThreshold(config.Threshold, weights)
	case types.RebalanceNever, "":
		return Never{}, nil
	default:
		return nil, fmt.Errorf("unknown rebalance type %q", config.Type)
	}
}

// FromConfig 根据配置创建策略
func FromConfig(config types.StrategyConfig) (Strategy, error) {
	var (
		s    Strategy
		name func(string)
	)
	switch config.Type {
	case types.StrategyBuyAndHold, "":
		rebalance, err := RebalanceFromConfig(config.Rebalance, config.TargetWeights)
		if err != nil {
			return nil, err
		}
		bnh, err := NewBuyAndHold(config.TargetWeights, rebalance)
		if err != nil {
			return nil, err
		}
		s, name = bnh, bnh.SetName
	case types.StrategyMACrossover:
		ma, err := NewMACrossover(config.TargetWeights, config.FastPeriod, config.SlowPeriod, config.MAType)
		if err != nil {
			return nil, err
		}
		s, name = ma, ma.SetName
	case types.StrategyRSIBand:
		rsi, err := NewRSIBand(config.TargetWeights, config.RSIPeriod, config.Oversold, config.Overbought)
		if err != nil {
			return nil, err
		}
		s, name = rsi, rsi.SetName
	case types.StrategyValuation:
		v, err := NewValuation(config.TargetWeights, valuationParams(config))
		if err != nil {
			return nil, err
		}
		s, name = v, v.SetName
	default:
		return nil, fmt.Errorf("unknown strategy type %q", config.Type)
	}

	if config.Name != "" {
		name(config.Name)
	}
	return s, nil
}

// valuationParams 在默认参数上覆盖已配置的字段
func valuationParams(config types.StrategyConfig) ValuationParams {
	p := DefaultValuationParams()
	if config.Lookback > 0 {
		p.Lookback = config.Lookback
	}
	if config.LowRank != nil {
		p.LowRank = *config.LowRank
	}
	if config.HighRank > 0 {
		p.HighRank = config.HighRank
	}
	if config.TrimRatio > 0 {
		p.TrimRatio = config.TrimRatio
	}
	return p
}
