package portfolio

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/opsxjacky/portfolio-backtest/internal/cost"
	"github.com/opsxjacky/portfolio-backtest/internal/data"
	"github.com/opsxjacky/portfolio-backtest/pkg/types"
)

var (
	// ErrUnknownSymbol 订单标的不在组合中
	ErrUnknownSymbol = errors.New("unknown symbol")
	// ErrNegativeShares 卖出数量超过持仓
	ErrNegativeShares = errors.New("order would leave negative shares")
	// ErrInsufficientCash 当日订单执行后现金为负
	ErrInsufficientCash = errors.New("insufficient cash")
)

// cashTolerance 浮点舍入允许的现金负值
const cashTolerance = 1e-6

// Portfolio 现金 + 按标的索引存放的整数持仓
type Portfolio struct {
	cash      float64
	symbols   []string
	index     map[string]int
	shares    []int64
	costModel cost.CostModel
}

// New 创建投资组合, 标的索引在此固定
func New(initialCash float64, symbols []string, costModel cost.CostModel) (*Portfolio, error) {
	if costModel == nil {
		costModel = cost.NewZeroCostModel()
	}
	index := make(map[string]int, len(symbols))
	for i, sym := range symbols {
		if _, dup := index[sym]; dup {
			return nil, fmt.Errorf("duplicate symbol %s", sym)
		}
		index[sym] = i
	}
	return &Portfolio{
		cash:      initialCash,
		symbols:   append([]string(nil), symbols...),
		index:     index,
		shares:    make([]int64, len(symbols)),
		costModel: costModel,
	}, nil
}

// Cash 当前现金
func (p *Portfolio) Cash() float64 {
	return p.cash
}

// Symbols 标的列表, 顺序即索引
func (p *Portfolio) Symbols() []string {
	return append([]string(nil), p.symbols...)
}

// Index 标的索引
func (p *Portfolio) Index(symbol string) (int, bool) {
	i, ok := p.index[symbol]
	return i, ok
}

// Shares 标的持仓
func (p *Portfolio) Shares(symbol string) (int64, bool) {
	i, ok := p.index[symbol]
	if !ok {
		return 0, false
	}
	return p.shares[i], true
}

// SharesAt 按索引取持仓
func (p *Portfolio) SharesAt(i int) int64 {
	return p.shares[i]
}

// Holdings 持仓副本
func (p *Portfolio) Holdings() map[string]int64 {
	out := make(map[string]int64, len(p.symbols))
	for i, sym := range p.symbols {
		out[sym] = p.shares[i]
	}
	return out
}

// PositionValue 持仓市值
func (p *Portfolio) PositionValue(snap data.Snapshot) (float64, error) {
	var total float64
	for i, sym := range p.symbols {
		if p.shares[i] == 0 {
			continue
		}
		price, ok := snap.AdjClose(sym)
		if !ok {
			return 0, fmt.Errorf("%s on %s: %w", sym, snap.Date, ErrUnknownSymbol)
		}
		total += price * float64(p.shares[i])
	}
	return total, nil
}

// Value 总价值 = 现金 + 持仓市值
func (p *Portfolio) Value(snap data.Snapshot) (float64, error) {
	positions, err := p.PositionValue(snap)
	if err != nil {
		return 0, err
	}
	return p.cash + positions, nil
}

// fill 待执行的单笔成交
type fill struct {
	slot     int
	shares   int64
	side     types.Side
	price    float64
	notional float64
	fee      float64
}

// Execute 以当日复权收盘价执行订单, 返回成交记录与总费用.
// 先校验全部订单再统一执行, 任一订单无效或执行后现金为负时组合不变.
// 成交顺序: 先卖后买, 同方向按标的索引.
func (p *Portfolio) Execute(orders types.OrderMap, snap data.Snapshot) ([]types.Trade, float64, error) {
	fills := make([]fill, 0, len(orders))
	cash := p.cash
	var fees float64
	for sym, order := range orders {
		if order.Shares == 0 {
			continue
		}
		i, ok := p.index[sym]
		if !ok {
			return nil, 0, fmt.Errorf("%s: %w", sym, ErrUnknownSymbol)
		}
		price, ok := snap.AdjClose(sym)
		if !ok {
			return nil, 0, fmt.Errorf("%s has no price on %s: %w", sym, snap.Date, ErrUnknownSymbol)
		}
		if p.shares[i]+order.Shares < 0 {
			return nil, 0, fmt.Errorf("%s: hold %d, order %d: %w", sym, p.shares[i], order.Shares, ErrNegativeShares)
		}
		notional := price * float64(order.Shares)
		side := order.Side()
		fee := p.costModel.Fee(notional, side)
		cash -= notional + fee
		fees += fee
		fills = append(fills, fill{slot: i, shares: order.Shares, side: side, price: price, notional: notional, fee: fee})
	}

	if cash < -cashTolerance {
		return nil, 0, fmt.Errorf("cash %.2f after orders on %s: %w", cash, snap.Date, ErrInsufficientCash)
	}

	sort.Slice(fills, func(a, b int) bool {
		sellA, sellB := fills[a].shares < 0, fills[b].shares < 0
		if sellA != sellB {
			return sellA
		}
		return fills[a].slot < fills[b].slot
	})

	trades := make([]types.Trade, 0, len(fills))
	for _, f := range fills {
		p.shares[f.slot] += f.shares
		trades = append(trades, types.Trade{
			Day:    snap.Day,
			Date:   snap.Date,
			Symbol: p.symbols[f.slot],
			Side:   f.side,
			Shares: f.shares,
			Price:  f.price,
			Value:  math.Abs(f.notional),
			Fee:    f.fee,
		})
	}
	p.cash = cash
	return trades, fees, nil
}

// Accrue 现金计息一天
func (p *Portfolio) Accrue(dailyRate float64) {
	p.cash *= 1 + dailyRate
}

// MaxShares 预算内可买入的最大整数股数 (含费用).
// 零费用时等于 floor(budget / price).
func (p *Portfolio) MaxShares(budget, price float64) int64 {
	if budget <= 0 || price <= 0 {
		return 0
	}
	n := int64(budget / price)
	if rater, ok := p.costModel.(interface{ Rate(types.Side) float64 }); ok {
		n = int64(budget / (price * (1 + rater.Rate(types.SideBuy))))
	}
	for n > 0 {
		notional := price * float64(n)
		fee := p.costModel.Fee(notional, types.SideBuy)
		if fee == 0 || notional+fee <= budget {
			break
		}
		n--
	}
	return n
}

// Fee 按组合的成本模型计算费用
func (p *Portfolio) Fee(notional float64, side types.Side) float64 {
	return p.costModel.Fee(notional, side)
}
