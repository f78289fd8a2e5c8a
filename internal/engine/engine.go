package engine

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/opsxjacky/portfolio-backtest/internal/cost"
	"github.com/opsxjacky/portfolio-backtest/internal/data"
	"github.com/opsxjacky/portfolio-backtest/internal/logging"
	"github.com/opsxjacky/portfolio-backtest/internal/portfolio"
	"github.com/opsxjacky/portfolio-backtest/internal/report"
	"github.com/opsxjacky/portfolio-backtest/internal/strategy"
	"github.com/opsxjacky/portfolio-backtest/pkg/types"
)

// progressEvery 每隔多少个交易日输出一次进度
const progressEvery = 250

// ErrAlreadyRun 同一个回测器只能运行一次
var ErrAlreadyRun = errors.New("backtest already run")

// DegenerateValueError 组合总价值非正, 日收益率无法定义
type DegenerateValueError struct {
	Day          int
	Date         string
	LastValidDay int
	Value        float64
}

func (e *DegenerateValueError) Error() string {
	return fmt.Sprintf("portfolio value %.4f on day %d (%s) is not positive, last valid day %d",
		e.Value, e.Day, e.Date, e.LastValidDay)
}

// Backtester 回测引擎
type Backtester struct {
	logger    *zap.Logger
	config    types.BacktestConfig
	data      *data.MarketData
	strategy  strategy.Strategy
	costModel cost.CostModel
	ran       bool
}

// New 获取并对齐行情后创建回测器
func New(
	ctx context.Context,
	logger *zap.Logger,
	src data.Source,
	s strategy.Strategy,
	config types.BacktestConfig,
	costModel cost.CostModel,
) (*Backtester, error) {
	if err := validate(config, s); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	if src == nil {
		return nil, errors.New("data source not set")
	}

	logger = logging.OrNop(logger)
	logger.Info("loading market data",
		zap.String("source", src.SourceType()),
		zap.Strings("symbols", config.Symbols),
		zap.String("range", config.Range.String()),
		zap.String("risk_free", config.RiskFreeSymbol))

	md, err := data.NewMarketData(ctx, src, config.Symbols, config.RiskFreeSymbol, config.Range, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load market data: %w", err)
	}
	return NewFromMarketData(logger, md, s, config, costModel)
}

// NewFromMarketData 使用已对齐的行情创建回测器
func NewFromMarketData(
	logger *zap.Logger,
	md *data.MarketData,
	s strategy.Strategy,
	config types.BacktestConfig,
	costModel cost.CostModel,
) (*Backtester, error) {
	if md == nil {
		return nil, errors.New("market data not set")
	}
	config.Symbols = md.Symbols()
	if err := validate(config, s); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	if costModel == nil {
		costModel = cost.NewZeroCostModel()
	}
	return &Backtester{
		logger:    logging.OrNop(logger),
		config:    config,
		data:      md,
		strategy:  s,
		costModel: costModel,
	}, nil
}

// validate 验证配置
func validate(config types.BacktestConfig, s strategy.Strategy) error {
	if s == nil {
		return errors.New("strategy not set")
	}
	if len(config.Symbols) == 0 {
		return errors.New("no symbols specified")
	}
	if !(config.InitialCapital > 0) {
		return errors.New("initial capital must be positive")
	}
	if config.InterestRate <= -1 || math.IsNaN(config.InterestRate) {
		return fmt.Errorf("invalid interest rate %v", config.InterestRate)
	}
	return nil
}

// MarketData 回测使用的行情
func (b *Backtester) MarketData() *data.MarketData {
	return b.data
}

// Run 按交易日顺序运行回测: 生成订单, 执行, 现金计息, 估值, 记录日收益率
func (b *Backtester) Run(window int) (*report.BacktestReport, error) {
	if b.ran {
		return nil, ErrAlreadyRun
	}
	b.ran = true
	if window < 1 {
		return nil, fmt.Errorf("rolling window must be at least 1, got %d", window)
	}

	pf, err := portfolio.New(b.config.InitialCapital, b.data.Symbols(), b.costModel)
	if err != nil {
		return nil, err
	}

	n := b.data.Len()
	dates := b.data.Dates()
	daily := make([]float64, n)
	balances := make([]float64, n)
	values := make([]float64, n)
	interest := math.Pow(1+b.config.InterestRate, 1/types.TradingDaysPerYear) - 1

	if n == 0 {
		b.logger.Warn("no common trading days, returning empty report",
			zap.Strings("symbols", b.data.Symbols()),
			zap.String("range", b.data.Range().String()))
	} else {
		b.logger.Info("running backtest",
			zap.String("strategy", b.strategy.Name()),
			zap.String("from", dates[0]),
			zap.String("to", dates[n-1]),
			zap.Int("days", n))
	}

	var trades []types.Trade
	var totalFees float64
	prev := b.config.InitialCapital

	for day := 1; day <= n; day++ {
		snap, err := b.data.Snapshot(day)
		if err != nil {
			return nil, err
		}

		orders, err := b.strategy.Orders(day, snap, pf)
		if err != nil {
			return nil, fmt.Errorf("day %d (%s): %w", day, snap.Date, err)
		}
		executed, fees, err := pf.Execute(orders, snap)
		if err != nil {
			return nil, fmt.Errorf("day %d (%s): %w", day, snap.Date, err)
		}
		if len(executed) > 0 {
			b.logger.Debug("orders executed",
				zap.Int("day", day),
				zap.String("date", snap.Date),
				zap.Int("trades", len(executed)),
				zap.Float64("fees", fees))
		}
		trades = append(trades, executed...)
		totalFees += fees

		pf.Accrue(interest)

		value, err := pf.Value(snap)
		if err != nil {
			return nil, fmt.Errorf("day %d (%s): %w", day, snap.Date, err)
		}
		if !(value > 0) {
			return nil, &DegenerateValueError{Day: day, Date: snap.Date, LastValidDay: day - 1, Value: value}
		}

		daily[day-1] = (value - prev) / prev
		balances[day-1] = pf.Cash()
		values[day-1] = value
		prev = value

		if day%progressEvery == 0 {
			b.logger.Debug("progress",
				zap.Int("day", day),
				zap.Int("days", n),
				zap.Float64("value", value))
		}
	}

	rep, err := report.New(report.Input{
		Strategy:       b.strategy.Name(),
		Symbols:        b.data.Symbols(),
		Dates:          dates,
		InitialCapital: b.config.InitialCapital,
		Cash:           pf.Cash(),
		Holdings:       pf.Holdings(),
		DailyReturn:    daily,
		BalanceHistory: balances,
		ValueHistory:   values,
		RiskFree:       b.data.RiskFree(),
		Trades:         trades,
		TotalFees:      totalFees,
		Window:         window,
	})
	if err != nil {
		return nil, err
	}

	b.logger.Info("backtest finished",
		zap.String("id", rep.ID),
		zap.String("strategy", rep.Strategy),
		zap.Float64("final_value", rep.FinalValue()),
		zap.Float64("cagr", rep.CAGR),
		zap.Float64("sharpe", rep.Sharpe),
		zap.Float64("max_drawdown", rep.MaxDrawdown),
		zap.Int("trades", len(rep.Trades)))
	return rep, nil
}
