package types

import (
	"fmt"
	"time"
)

// DateLayout ISO-8601 日期格式
const DateLayout = "2006-01-02"

// TradingDaysPerYear 年化交易日
const TradingDaysPerYear = 252.0

// Chart 单个标的单日行情快照
type Chart struct {
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
	AdjClose float64
}

// DatedChart 带日期的行情
type DatedChart struct {
	Date  string // YYYY-MM-DD
	Chart Chart
}

// DateRange 回测日期区间 (闭区间)
type DateRange struct {
	From string
	To   string
}

// Validate 校验日期格式与先后顺序
func (r DateRange) Validate() error {
	from, err := time.Parse(DateLayout, r.From)
	if err != nil {
		return fmt.Errorf("invalid from date %q: %w", r.From, err)
	}
	to, err := time.Parse(DateLayout, r.To)
	if err != nil {
		return fmt.Errorf("invalid to date %q: %w", r.To, err)
	}
	if to.Before(from) {
		return fmt.Errorf("date range %s..%s is reversed", r.From, r.To)
	}
	return nil
}

// Contains 日期是否在区间内
func (r DateRange) Contains(date string) bool {
	return date >= r.From && date <= r.To
}

func (r DateRange) String() string {
	return r.From + ".." + r.To
}

// Side 交易方向
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
	SideNone Side = "NONE"
)

// Order 交易订单: 正数买入, 负数卖出
type Order struct {
	Symbol string
	Shares int64
}

// NewOrder 创建订单
func NewOrder(symbol string, shares int64) Order {
	return Order{Symbol: symbol, Shares: shares}
}

// Side 返回订单方向
func (o Order) Side() Side {
	switch {
	case o.Shares > 0:
		return SideBuy
	case o.Shares < 0:
		return SideSell
	default:
		return SideNone
	}
}

// OrderMap 单日订单, 每个标的一笔
type OrderMap map[string]Order

// Trade 成交记录
type Trade struct {
	Day    int     `json:"day" csv:"day"`
	Date   string  `json:"date" csv:"date"`
	Symbol string  `json:"symbol" csv:"symbol"`
	Side   Side    `json:"side" csv:"side"`
	Shares int64   `json:"shares" csv:"shares"`
	Price  float64 `json:"price" csv:"price"`
	Value  float64 `json:"value" csv:"value"` // 交易金额 (不含手续费)
	Fee    float64 `json:"fee" csv:"fee"`
}

// BacktestConfig 回测配置
type BacktestConfig struct {
	Symbols        []string
	Range          DateRange
	InitialCapital float64
	InterestRate   float64 // 现金年化利率, 0.04 = 4%
	RiskFreeSymbol string
}

// CostConfig 成本配置
type CostConfig struct {
	CommissionRate float64 // 佣金率 (证券交易费率)
	MinCommission  float64 // 最低佣金
	SlippageRate   float64 // 滑点率
	TaxRate        float64 // 卖出税率
}

// RebalanceType 再平衡触发类型
type RebalanceType string

const (
	RebalancePeriodic  RebalanceType = "periodic"
	RebalanceThreshold RebalanceType = "threshold"
	RebalanceNever     RebalanceType = "never"
)

// RebalanceConfig 再平衡触发配置
type RebalanceConfig struct {
	Type      RebalanceType
	Period    int     // 定期再平衡间隔 (交易日)
	Threshold float64 // 偏离阈值 (百分点, 5.0 = 5%)
}

// StrategyType 策略类型
type StrategyType string

const (
	StrategyBuyAndHold  StrategyType = "buy_and_hold"
	StrategyMACrossover StrategyType = "ma_crossover"
	StrategyRSIBand     StrategyType = "rsi_band"
	StrategyValuation   StrategyType = "valuation"
)

// MAType 均线类型
type MAType string

const (
	MASimple      MAType = "sma"
	MAExponential MAType = "ema"
)

// StrategyConfig 策略配置
type StrategyConfig struct {
	Name          string
	Type          StrategyType
	TargetWeights map[string]float64
	Rebalance     RebalanceConfig

	// 均线交叉参数
	FastPeriod int
	SlowPeriod int
	MAType     MAType

	// RSI 参数
	RSIPeriod  int
	Oversold   float64
	Overbought float64

	// 估值分位参数, 分位取值 [0, 1]. LowRank 为 nil 时取默认, 0 表示仅在窗口最低价恢复
	Lookback  int
	LowRank   *float64
	HighRank  float64
	TrimRatio float64
}
