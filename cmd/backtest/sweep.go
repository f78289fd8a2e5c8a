package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/opsxjacky/portfolio-backtest/internal/data"
	"github.com/opsxjacky/portfolio-backtest/internal/engine"
	"github.com/opsxjacky/portfolio-backtest/internal/report"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run the rebalance parameter grid from the config file in parallel",
	RunE:  runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	btConfig, err := cfg.ToBacktestConfig()
	if err != nil {
		return err
	}
	cases, err := engine.SweepCases(cfg.ToStrategyConfig(), cfg.Sweep.Periods, cfg.Sweep.Thresholds,
		btConfig, cfg.ToCostConfig(), cfg.GetRollingWindow())
	if err != nil {
		return err
	}

	md, err := data.NewMarketData(cmd.Context(), data.NewCSVSource(cfg.GetDataDir()),
		btConfig.Symbols, btConfig.RiskFreeSymbol, btConfig.Range, cfg.Sweep.Parallelism)
	if err != nil {
		return err
	}
	logger.Info("running sweep", zap.Int("cases", len(cases)), zap.Int("days", md.Len()))

	results, err := engine.Sweep(cmd.Context(), logger, md, cases, cfg.Sweep.Parallelism)
	if err != nil {
		return err
	}

	var reports []*report.BacktestReport
	for _, r := range results {
		if r.Err != nil {
			logger.Warn("case failed", zap.String("case", r.Name), zap.Error(r.Err))
			continue
		}
		reports = append(reports, r.Report)
	}
	report.SortBySharpe(reports)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STRATEGY\tRETURN\tCAGR\tVOL\tSHARPE\tMAX DD\tTRADES")
	for _, rep := range reports {
		s := rep.Summary()
		fmt.Fprintf(w, "%s\t%.2f%%\t%.2f%%\t%.2f%%\t%.3f\t%.2f%%\t%d\n",
			s.Strategy, s.TotalReturn*100, s.CAGR*100, s.Volatility*100, s.Sharpe, s.MaxDrawdown*100, s.TotalTrades)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	return persist(cmd.Context(), cfg, logger, reports...)
}
