package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/opsxjacky/portfolio-backtest/internal/config"
	"github.com/opsxjacky/portfolio-backtest/internal/logging"
)

// version 构建时通过 -ldflags "-X main.version=..." 注入
var version = "dev"

var (
	configPath   string
	logLevel     string
	outputFormat string
	outputDir    string
)

var rootCmd = &cobra.Command{
	Use:           "backtest",
	Short:         "Portfolio rebalancing backtester",
	Long:          "Simulate buy-and-hold, rebalancing and indicator strategies over aligned daily price history",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/balanced.yaml", "Config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug|info|warn|error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "", "Output format: json|csv|parquet|all (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output", "o", "", "Output directory (overrides config)")

	rootCmd.AddCommand(versionCmd)
}

// setup 加载配置并按配置与命令行参数创建日志器
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config %s: %w", configPath, err)
	}
	if outputFormat != "" {
		cfg.Output.Format = outputFormat
	}
	if outputDir != "" {
		cfg.Output.Path = outputDir
	}

	level := cfg.GetLogLevel()
	if logLevel != "" {
		level = logLevel
	}
	logger, err := logging.New(level, cfg.GetLogFormat())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, logger, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
