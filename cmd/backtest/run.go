package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/opsxjacky/portfolio-backtest/internal/config"
	"github.com/opsxjacky/portfolio-backtest/internal/cost"
	"github.com/opsxjacky/portfolio-backtest/internal/data"
	"github.com/opsxjacky/portfolio-backtest/internal/engine"
	"github.com/opsxjacky/portfolio-backtest/internal/export"
	"github.com/opsxjacky/portfolio-backtest/internal/report"
	"github.com/opsxjacky/portfolio-backtest/internal/store"
	"github.com/opsxjacky/portfolio-backtest/internal/strategy"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single backtest from the config file",
	RunE:  runBacktest,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runBacktest(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	btConfig, err := cfg.ToBacktestConfig()
	if err != nil {
		return err
	}
	s, err := strategy.FromConfig(cfg.ToStrategyConfig())
	if err != nil {
		return fmt.Errorf("invalid strategy: %w", err)
	}

	src := data.NewCSVSource(cfg.GetDataDir())
	bt, err := engine.New(cmd.Context(), logger, src, s, btConfig, cost.NewDefaultCostModel(cfg.ToCostConfig()))
	if err != nil {
		return err
	}
	rep, err := bt.Run(cfg.GetRollingWindow())
	if err != nil {
		return err
	}

	rep.Print(cmd.OutOrStdout())
	return persist(cmd.Context(), cfg, logger, rep)
}

// persist 按输出配置导出文件并写入 SQLite
func persist(ctx context.Context, cfg *config.Config, logger *zap.Logger, reports ...*report.BacktestReport) error {
	var db *store.SQLiteStore
	if cfg.Output.SQLitePath != "" {
		var err error
		db, err = store.Open(cfg.Output.SQLitePath)
		if err != nil {
			return fmt.Errorf("failed to open result store: %w", err)
		}
		defer db.Close()
	}

	for _, rep := range reports {
		paths, err := export.Export(cfg.GetOutputPath(), cfg.GetOutputFormat(), rep, cfg.Output.GenerateReport)
		if err != nil {
			return err
		}
		for _, p := range paths {
			logger.Info("results exported", zap.String("strategy", rep.Strategy), zap.String("path", p))
		}
		if db != nil {
			if err := db.SaveReport(ctx, rep); err != nil {
				return err
			}
		}
	}
	return nil
}
