package cost

import (
	"math"

	"github.com/opsxjacky/portfolio-backtest/pkg/types"
)

// CostModel 成本模型接口
type CostModel interface {
	// Fee 计算一笔成交金额对应的费用, 始终非负
	Fee(notional float64, side types.Side) float64
}

// DefaultCostModel 默认成本模型
type DefaultCostModel struct {
	CommissionRate float64 // 佣金率
	MinCommission  float64 // 最低佣金
	SlippageRate   float64 // 滑点率 (按成交金额计入费用)
	TaxRate        float64 // 税率 (卖出时收取)
}

// NewDefaultCostModel 创建默认成本模型
func NewDefaultCostModel(config types.CostConfig) *DefaultCostModel {
	return &DefaultCostModel{
		CommissionRate: config.CommissionRate,
		MinCommission:  config.MinCommission,
		SlippageRate:   config.SlippageRate,
		TaxRate:        config.TaxRate,
	}
}

// NewFlatFee 按固定比例收取证券交易费
func NewFlatFee(rate float64) *DefaultCostModel {
	return &DefaultCostModel{CommissionRate: rate}
}

// NewZeroCostModel 创建零成本模型 (用于测试)
func NewZeroCostModel() *DefaultCostModel {
	return &DefaultCostModel{}
}

// Fee 计算交易成本
func (m *DefaultCostModel) Fee(notional float64, side types.Side) float64 {
	value := math.Abs(notional)
	if value == 0 || side == types.SideNone {
		return 0
	}

	commission := value * m.CommissionRate
	if commission < m.MinCommission {
		commission = m.MinCommission
	}

	var tax float64
	if side == types.SideSell {
		tax = value * m.TaxRate
	}

	return commission + tax + value*m.SlippageRate
}

// Rate 每单位成交金额的比例费用 (不含最低佣金)
func (m *DefaultCostModel) Rate(side types.Side) float64 {
	rate := m.CommissionRate + m.SlippageRate
	if side == types.SideSell {
		rate += m.TaxRate
	}
	return rate
}
