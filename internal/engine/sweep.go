package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/opsxjacky/portfolio-backtest/internal/cost"
	"github.com/opsxjacky/portfolio-backtest/internal/data"
	"github.com/opsxjacky/portfolio-backtest/internal/logging"
	"github.com/opsxjacky/portfolio-backtest/internal/report"
	"github.com/opsxjacky/portfolio-backtest/internal/strategy"
	"github.com/opsxjacky/portfolio-backtest/pkg/types"
)

// defaultSweepParallelism 参数扫描默认并发数
const defaultSweepParallelism = 4

// Case 参数扫描中的一组回测
type Case struct {
	Name      string
	Strategy  strategy.Strategy
	Config    types.BacktestConfig
	CostModel cost.CostModel
	Window    int
}

// Result 单组回测结果, 失败时 Err 非空
type Result struct {
	Name   string
	Report *report.BacktestReport
	Err    error
}

// Sweep 在共享的只读行情上并发运行多组独立回测.
// 单组失败记录在对应 Result 中, 仅上下文取消时返回错误.
func Sweep(ctx context.Context, logger *zap.Logger, md *data.MarketData, cases []Case, parallelism int) ([]Result, error) {
	logger = logging.OrNop(logger)
	if parallelism <= 0 {
		parallelism = defaultSweepParallelism
	}

	results := make([]Result, len(cases))
	sem := make(chan struct{}, parallelism)
	g, gctx := errgroup.WithContext(ctx)

	for i, c := range cases {
		i, c := i, c
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-sem }()
			if err := gctx.Err(); err != nil {
				return err
			}

			name := c.Name
			if name == "" && c.Strategy != nil {
				name = c.Strategy.Name()
			}
			results[i].Name = name

			bt, err := NewFromMarketData(logger.With(zap.String("case", name)), md, c.Strategy, c.Config, c.CostModel)
			if err != nil {
				results[i].Err = err
				return nil
			}
			rep, err := bt.Run(c.Window)
			if err != nil {
				results[i].Err = fmt.Errorf("%s: %w", name, err)
				return nil
			}
			results[i].Report = rep
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// SweepCases 由策略配置与再平衡参数网格生成扫描用例
func SweepCases(
	base types.StrategyConfig,
	periods []int,
	thresholds []float64,
	config types.BacktestConfig,
	costConfig types.CostConfig,
	window int,
) ([]Case, error) {
	if len(periods)+len(thresholds) > 0 && base.Type != "" && base.Type != types.StrategyBuyAndHold {
		return nil, fmt.Errorf("rebalance grid needs a %s strategy, got %s", types.StrategyBuyAndHold, base.Type)
	}

	var configs []types.StrategyConfig
	for _, p := range periods {
		c := base
		c.Name = ""
		c.Rebalance = types.RebalanceConfig{Type: types.RebalancePeriodic, Period: p}
		configs = append(configs, c)
	}
	for _, th := range thresholds {
		c := base
		c.Name = ""
		c.Rebalance = types.RebalanceConfig{Type: types.RebalanceThreshold, Threshold: th}
		configs = append(configs, c)
	}
	if len(configs) == 0 {
		configs = append(configs, base)
	}

	cases := make([]Case, 0, len(configs))
	for _, sc := range configs {
		s, err := strategy.FromConfig(sc)
		if err != nil {
			return nil, err
		}
		cases = append(cases, Case{
			Name:      s.Name(),
			Strategy:  s,
			Config:    config,
			CostModel: cost.NewDefaultCostModel(costConfig),
			Window:    window,
		})
	}
	return cases, nil
}
