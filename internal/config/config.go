package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/opsxjacky/portfolio-backtest/pkg/types"
)

// Config 配置文件结构
type Config struct {
	Backtest BacktestSection `yaml:"backtest"`
	Assets   []AssetConfig   `yaml:"assets"`
	Strategy StrategySection `yaml:"strategy"`
	Costs    CostsSection    `yaml:"costs"`
	Output   OutputSection   `yaml:"output"`
	Logging  LoggingSection  `yaml:"logging"`
	Sweep    SweepSection    `yaml:"sweep"`
}

// BacktestSection 回测配置
type BacktestSection struct {
	StartDate      string  `yaml:"start_date"`
	EndDate        string  `yaml:"end_date"`
	InitialCapital float64 `yaml:"initial_capital"`
	InterestRate   float64 `yaml:"interest_rate"`
	RiskFreeSymbol string  `yaml:"risk_free_symbol"`
	DataDir        string  `yaml:"data_dir"`
	RollingWindow  int     `yaml:"rolling_window"`
}

// AssetConfig 资产配置
type AssetConfig struct {
	Symbol string `yaml:"symbol"`
	Name   string `yaml:"name"`
}

// StrategySection 策略配置
type StrategySection struct {
	Type   string         `yaml:"type"`
	Name   string         `yaml:"name"`
	Params StrategyParams `yaml:"params"`
}

// StrategyParams 策略参数
type StrategyParams struct {
	TargetWeights map[string]float64 `yaml:"target_weights"`
	Rebalance     RebalanceParams    `yaml:"rebalance"`
	FastPeriod    int                `yaml:"fast_period"`
	SlowPeriod    int                `yaml:"slow_period"`
	MAType        string             `yaml:"ma_type"`
	RSIPeriod     int                `yaml:"rsi_period"`
	Oversold      float64            `yaml:"oversold"`
	Overbought    float64            `yaml:"overbought"`
	Lookback      int                `yaml:"lookback"`
	LowRank       *float64           `yaml:"low_rank"`
	HighRank      float64            `yaml:"high_rank"`
	TrimRatio     float64            `yaml:"trim_ratio"`
}

// RebalanceParams 再平衡触发参数
type RebalanceParams struct {
	Type      string  `yaml:"type"`
	Period    int     `yaml:"period"`
	Threshold float64 `yaml:"threshold"`
}

// CostsSection 成本配置
type CostsSection struct {
	CommissionRate float64 `yaml:"commission_rate"`
	MinCommission  float64 `yaml:"min_commission"`
	SlippageRate   float64 `yaml:"slippage_rate"`
	TaxRate        float64 `yaml:"tax_rate"`
}

// OutputSection 输出配置
type OutputSection struct {
	Format         string `yaml:"format"`
	Path           string `yaml:"path"`
	GenerateReport bool   `yaml:"generate_report"`
	SQLitePath     string `yaml:"sqlite_path"`
}

// LoggingSection 日志配置
type LoggingSection struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SweepSection 参数扫描配置
type SweepSection struct {
	Periods     []int     `yaml:"periods"`
	Thresholds  []float64 `yaml:"thresholds"`
	Parallelism int       `yaml:"parallelism"`
}

// LoadConfig 从文件加载配置
func LoadConfig(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse 解析 YAML 配置
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &config, nil
}

// Validate 检查日期, 资金与标的
func (c *Config) Validate() error {
	if _, err := c.DateRange(); err != nil {
		return err
	}
	if c.Backtest.InitialCapital <= 0 {
		return errors.New("initial_capital must be positive")
	}
	if len(c.Assets) == 0 {
		return errors.New("no assets configured")
	}
	seen := make(map[string]bool, len(c.Assets))
	for _, a := range c.Assets {
		if a.Symbol == "" {
			return errors.New("asset with empty symbol")
		}
		if seen[a.Symbol] {
			return fmt.Errorf("duplicate asset %s", a.Symbol)
		}
		seen[a.Symbol] = true
	}
	if c.Backtest.RollingWindow < 0 {
		return fmt.Errorf("rolling_window must be positive, got %d", c.Backtest.RollingWindow)
	}
	return nil
}

// DateRange 回测区间
func (c *Config) DateRange() (types.DateRange, error) {
	r := types.DateRange{From: c.Backtest.StartDate, To: c.Backtest.EndDate}
	if err := r.Validate(); err != nil {
		return types.DateRange{}, fmt.Errorf("invalid backtest dates: %w", err)
	}
	return r, nil
}

// Symbols 标的列表, 按配置顺序
func (c *Config) Symbols() []string {
	symbols := make([]string, len(c.Assets))
	for i, asset := range c.Assets {
		symbols[i] = asset.Symbol
	}
	return symbols
}

// ToBacktestConfig 转换为回测配置
func (c *Config) ToBacktestConfig() (types.BacktestConfig, error) {
	r, err := c.DateRange()
	if err != nil {
		return types.BacktestConfig{}, err
	}
	return types.BacktestConfig{
		Symbols:        c.Symbols(),
		Range:          r,
		InitialCapital: c.Backtest.InitialCapital,
		InterestRate:   c.Backtest.InterestRate,
		RiskFreeSymbol: c.Backtest.RiskFreeSymbol,
	}, nil
}

// ToCostConfig 转换为成本配置
func (c *Config) ToCostConfig() types.CostConfig {
	return types.CostConfig{
		CommissionRate: c.Costs.CommissionRate,
		MinCommission:  c.Costs.MinCommission,
		SlippageRate:   c.Costs.SlippageRate,
		TaxRate:        c.Costs.TaxRate,
	}
}

// ToStrategyConfig 转换为策略配置
func (c *Config) ToStrategyConfig() types.StrategyConfig {
	p := c.Strategy.Params
	return types.StrategyConfig{
		Name:          c.Strategy.Name,
		Type:          types.StrategyType(c.Strategy.Type),
		TargetWeights: p.TargetWeights,
		Rebalance: types.RebalanceConfig{
			Type:      types.RebalanceType(p.Rebalance.Type),
			Period:    p.Rebalance.Period,
			Threshold: p.Rebalance.Threshold,
		},
		FastPeriod: p.FastPeriod,
		SlowPeriod: p.SlowPeriod,
		MAType:     types.MAType(p.MAType),
		RSIPeriod:  p.RSIPeriod,
		Oversold:   p.Oversold,
		Overbought: p.Overbought,
		Lookback:   p.Lookback,
		LowRank:    p.LowRank,
		HighRank:   p.HighRank,
		TrimRatio:  p.TrimRatio,
	}
}

// GetDataDir 获取数据目录
func (c *Config) GetDataDir() string {
	if c.Backtest.DataDir != "" {
		return c.Backtest.DataDir
	}
	return "data/sample"
}

// GetOutputPath 获取输出路径
func (c *Config) GetOutputPath() string {
	if c.Output.Path != "" {
		return c.Output.Path
	}
	return "output"
}

// GetOutputFormat 获取输出格式
func (c *Config) GetOutputFormat() string {
	if c.Output.Format != "" {
		return c.Output.Format
	}
	return "json"
}

// GetRollingWindow 获取滚动窗口
func (c *Config) GetRollingWindow() int {
	if c.Backtest.RollingWindow > 0 {
		return c.Backtest.RollingWindow
	}
	return 21
}

// GetLogLevel 获取日志级别
func (c *Config) GetLogLevel() string {
	if c.Logging.Level != "" {
		return c.Logging.Level
	}
	return "info"
}

// GetLogFormat 获取日志格式
func (c *Config) GetLogFormat() string {
	if c.Logging.Format != "" {
		return c.Logging.Format
	}
	return "console"
}
