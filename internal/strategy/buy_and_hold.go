package strategy

import (
	"fmt"

	"github.com/opsxjacky/portfolio-backtest/internal/data"
	"github.com/opsxjacky/portfolio-backtest/internal/portfolio"
	"github.com/opsxjacky/portfolio-backtest/pkg/types"
)

// BuyAndHold 买入持有 + 可插拔再平衡触发.
// 未持仓时按目标权重用全部现金建仓; 持仓中触发再平衡时全部清仓,
// 次日再按当时现金重新建仓.
type BuyAndHold struct {
	name      string
	weights   map[string]float64
	rebalance RebalanceStrategy
	holding   bool
}

// NewBuyAndHold 创建买入持有策略, rebalance 为 nil 时从不再平衡
func NewBuyAndHold(weights map[string]float64, rebalance RebalanceStrategy) (*BuyAndHold, error) {
	if err := ValidateWeights(weights); err != nil {
		return nil, err
	}
	if rebalance == nil {
		rebalance = Never{}
	}
	return &BuyAndHold{
		weights:   copyWeights(weights),
		rebalance: rebalance,
	}, nil
}

// SetName 设置显示名称
func (s *BuyAndHold) SetName(name string) {
	s.name = name
}

// Name 返回策略名称
func (s *BuyAndHold) Name() string {
	if s.name != "" {
		return s.name
	}
	return fmt.Sprintf("BnH(%s)", s.rebalance.Name())
}

// Holding 当前是否持仓
func (s *BuyAndHold) Holding() bool {
	return s.holding
}

// Orders 生成当日订单
func (s *BuyAndHold) Orders(day int, snap data.Snapshot, pf *portfolio.Portfolio) (types.OrderMap, error) {
	symbols := pf.Symbols()
	orders := zeroOrders(symbols)

	if !s.holding {
		cash := pf.Cash()
		for _, sym := range symbols {
			w, ok := s.weights[sym]
			if !ok {
				return nil, fmt.Errorf("%s: %w", sym, ErrMissingWeight)
			}
			price, ok := snap.AdjClose(sym)
			if !ok {
				return nil, fmt.Errorf("%s has no price on %s", sym, snap.Date)
			}
			orders[sym] = types.NewOrder(sym, pf.MaxShares(cash*w, price))
		}
		s.holding = true
		return orders, nil
	}

	fire, err := s.rebalance.ShouldRebalance(day, snap, pf)
	if err != nil {
		return nil, err
	}
	if fire {
		for _, sym := range symbols {
			shares, _ := pf.Shares(sym)
			orders[sym] = types.NewOrder(sym, -shares)
		}
		s.holding = false
	}
	return orders, nil
}
