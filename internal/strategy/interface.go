package strategy

import (
	"errors"

	"github.com/opsxjacky/portfolio-backtest/internal/data"
	"github.com/opsxjacky/portfolio-backtest/internal/portfolio"
	"github.com/opsxjacky/portfolio-backtest/pkg/types"
)

var (
	// ErrMissingWeight 标的没有配置目标权重
	ErrMissingWeight = errors.New("missing target weight")
	// ErrInvalidWeights 目标权重为负或总和超过1
	ErrInvalidWeights = errors.New("invalid target weights")
)

// RebalanceStrategy 再平衡触发接口
type RebalanceStrategy interface {
	// Name 触发器名称
	Name() string

	// ShouldRebalance 判断当日是否触发再平衡, day 从1开始
	ShouldRebalance(day int, snap data.Snapshot, pf *portfolio.Portfolio) (bool, error)
}

// Strategy 交易策略接口
type Strategy interface {
	// Name 策略名称
	Name() string

	// Orders 生成当日订单
	Orders(day int, snap data.Snapshot, pf *portfolio.Portfolio) (types.OrderMap, error)
}

// zeroOrders 所有标的的空订单
func zeroOrders(symbols []string) types.OrderMap {
	orders := make(types.OrderMap, len(symbols))
	for _, sym := range symbols {
		orders[sym] = types.NewOrder(sym, 0)
	}
	return orders
}
