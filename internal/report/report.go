package report

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/opsxjacky/portfolio-backtest/pkg/types"
)

// Input 一次回测运行的原始记录
type Input struct {
	Strategy       string
	Symbols        []string
	Dates          []string
	InitialCapital float64
	Cash           float64
	Holdings       map[string]int64
	DailyReturn    []float64
	BalanceHistory []float64 // 每日收盘现金
	ValueHistory   []float64 // 每日收盘总价值
	RiskFree       []float64
	Trades         []types.Trade
	TotalFees      float64
	Window         int
}

// BacktestReport 回测报告, 构造后只读
type BacktestReport struct {
	ID        string
	CreatedAt time.Time

	Strategy       string
	Symbols        []string
	Dates          []string
	InitialCapital float64
	Cash           float64
	Holdings       map[string]int64
	DailyReturn    []float64
	BalanceHistory []float64
	ValueHistory   []float64
	RiskFree       []float64
	Trades         []types.Trade
	TotalFees      float64
	Window         int

	Metrics
}

// New 由运行记录派生全部指标
func New(in Input) (*BacktestReport, error) {
	n := len(in.Dates)
	if len(in.DailyReturn) != n || len(in.BalanceHistory) != n || len(in.ValueHistory) != n {
		return nil, fmt.Errorf("series lengths differ: dates=%d daily=%d balance=%d value=%d",
			n, len(in.DailyReturn), len(in.BalanceHistory), len(in.ValueHistory))
	}
	if in.Window == 0 {
		in.Window = DefaultWindow
	}

	metrics, err := Derive(in.DailyReturn, in.RiskFree, in.Window)
	if err != nil {
		return nil, err
	}

	holdings := make(map[string]int64, len(in.Holdings))
	for sym, shares := range in.Holdings {
		holdings[sym] = shares
	}

	return &BacktestReport{
		ID:             uuid.NewString(),
		CreatedAt:      time.Now().UTC(),
		Strategy:       in.Strategy,
		Symbols:        append([]string(nil), in.Symbols...),
		Dates:          append([]string(nil), in.Dates...),
		InitialCapital: in.InitialCapital,
		Cash:           in.Cash,
		Holdings:       holdings,
		DailyReturn:    append([]float64(nil), in.DailyReturn...),
		BalanceHistory: append([]float64(nil), in.BalanceHistory...),
		ValueHistory:   append([]float64(nil), in.ValueHistory...),
		RiskFree:       append([]float64(nil), in.RiskFree...),
		Trades:         append([]types.Trade(nil), in.Trades...),
		TotalFees:      in.TotalFees,
		Window:         in.Window,
		Metrics:        metrics,
	}, nil
}

// IsEmpty 是否没有任何交易日
func (r *BacktestReport) IsEmpty() bool {
	return len(r.Dates) == 0
}

// FinalValue 期末总价值, 无交易日时为初始资金
func (r *BacktestReport) FinalValue() float64 {
	if len(r.ValueHistory) == 0 {
		return r.InitialCapital
	}
	return r.ValueHistory[len(r.ValueHistory)-1]
}

// TotalReturn 总收益率
func (r *BacktestReport) TotalReturn() float64 {
	if len(r.Cumulative) == 0 {
		return 0
	}
	return r.Cumulative[len(r.Cumulative)-1] - 1
}

// Summary 结果摘要
type Summary struct {
	ID             string  `json:"id" csv:"id" parquet:"id"`
	Strategy       string  `json:"strategy" csv:"strategy" parquet:"strategy"`
	Symbols        string  `json:"symbols" csv:"symbols" parquet:"symbols"`
	StartDate      string  `json:"start_date" csv:"start_date" parquet:"start_date"`
	EndDate        string  `json:"end_date" csv:"end_date" parquet:"end_date"`
	Days           int     `json:"days" csv:"days" parquet:"days"`
	Window         int     `json:"window" csv:"window" parquet:"window"`
	InitialCapital float64 `json:"initial_capital" csv:"initial_capital" parquet:"initial_capital"`
	FinalValue     float64 `json:"final_value" csv:"final_value" parquet:"final_value"`
	TotalReturn    float64 `json:"total_return" csv:"total_return" parquet:"total_return"`
	CAGR           float64 `json:"cagr" csv:"cagr" parquet:"cagr"`
	Volatility     float64 `json:"volatility" csv:"volatility" parquet:"volatility"`
	Sharpe         float64 `json:"sharpe" csv:"sharpe" parquet:"sharpe"`
	MaxDrawdown    float64 `json:"max_drawdown" csv:"max_drawdown" parquet:"max_drawdown"`
	TotalTrades    int     `json:"total_trades" csv:"total_trades" parquet:"total_trades"`
	TotalFees      float64 `json:"total_fees" csv:"total_fees" parquet:"total_fees"`
}

// Summary 获取结果摘要
func (r *BacktestReport) Summary() Summary {
	s := Summary{
		ID:             r.ID,
		Strategy:       r.Strategy,
		Symbols:        strings.Join(r.Symbols, ","),
		Days:           len(r.Dates),
		Window:         r.Window,
		InitialCapital: r.InitialCapital,
		FinalValue:     r.FinalValue(),
		TotalReturn:    r.TotalReturn(),
		CAGR:           r.CAGR,
		Volatility:     r.Volatility,
		Sharpe:         r.Sharpe,
		MaxDrawdown:    r.MaxDrawdown,
		TotalTrades:    len(r.Trades),
		TotalFees:      r.TotalFees,
	}
	if len(r.Dates) > 0 {
		s.StartDate = r.Dates[0]
		s.EndDate = r.Dates[len(r.Dates)-1]
	}
	return s
}

// Row 单个交易日的指标行
type Row struct {
	Day           int     `json:"day" csv:"day" parquet:"day"`
	Date          string  `json:"date" csv:"date" parquet:"date"`
	DailyReturn   float64 `json:"daily_return" csv:"daily_return" parquet:"daily_return"`
	Cumulative    float64 `json:"cumulative_return" csv:"cumulative_return" parquet:"cumulative_return"`
	RollingVol    float64 `json:"rolling_volatility" csv:"rolling_volatility" parquet:"rolling_volatility"`
	RollingSharpe float64 `json:"rolling_sharpe" csv:"rolling_sharpe" parquet:"rolling_sharpe"`
	Drawdown      float64 `json:"drawdown" csv:"drawdown" parquet:"drawdown"`
	Balance       float64 `json:"balance" csv:"balance" parquet:"balance"`
	Value         float64 `json:"value" csv:"value" parquet:"value"`
	RiskFree      float64 `json:"risk_free" csv:"risk_free" parquet:"risk_free"`
}

// Rows 按交易日展开的指标表
func (r *BacktestReport) Rows() []Row {
	rows := make([]Row, len(r.Dates))
	for i, date := range r.Dates {
		rows[i] = Row{
			Day:           i + 1,
			Date:          date,
			DailyReturn:   r.DailyReturn[i],
			Cumulative:    r.Cumulative[i],
			RollingVol:    r.RollingVol[i],
			RollingSharpe: r.RollingSharpe[i],
			Drawdown:      r.Drawdown[i],
			Balance:       r.BalanceHistory[i],
			Value:         r.ValueHistory[i],
			RiskFree:      r.RiskFree[i],
		}
	}
	return rows
}

// Print 打印回测摘要
func (r *BacktestReport) Print(w io.Writer) {
	s := r.Summary()
	fmt.Fprintln(w, "\n========== Backtest Summary ==========")
	fmt.Fprintf(w, "Strategy: %s\n", s.Strategy)
	fmt.Fprintf(w, "Symbols: %s\n", s.Symbols)
	if r.IsEmpty() {
		fmt.Fprintln(w, "Period: no common trading days")
	} else {
		fmt.Fprintf(w, "Period: %s to %s (%d trading days)\n", s.StartDate, s.EndDate, s.Days)
	}
	fmt.Fprintf(w, "Initial Capital: $%.2f\n", s.InitialCapital)
	fmt.Fprintf(w, "Final Value: $%.2f\n", s.FinalValue)
	fmt.Fprintf(w, "Total Return: %.2f%%\n", s.TotalReturn*100)
	fmt.Fprintf(w, "CAGR: %.2f%%\n", s.CAGR*100)
	fmt.Fprintf(w, "Volatility: %.2f%%\n", s.Volatility*100)
	fmt.Fprintf(w, "Sharpe: %.3f\n", s.Sharpe)
	fmt.Fprintf(w, "Max Drawdown: %.2f%%\n", s.MaxDrawdown*100)
	fmt.Fprintf(w, "Total Trades: %d\n", s.TotalTrades)
	fmt.Fprintf(w, "Total Fees: $%.2f\n", s.TotalFees)

	if len(r.Holdings) > 0 {
		fmt.Fprintf(w, "Final Cash: $%.2f\n", r.Cash)
		symbols := make([]string, 0, len(r.Holdings))
		for sym := range r.Holdings {
			symbols = append(symbols, sym)
		}
		sort.Strings(symbols)
		for _, sym := range symbols {
			fmt.Fprintf(w, "  %-10s %d shares\n", sym, r.Holdings[sym])
		}
	}
	fmt.Fprintln(w, "========================================")
}

// SortBySharpe 按夏普比率从高到低稳定排序, NaN 排在最后
func SortBySharpe(reports []*BacktestReport) {
	sort.SliceStable(reports, func(i, j int) bool {
		a, b := reports[i].Sharpe, reports[j].Sharpe
		if math.IsNaN(a) || math.IsNaN(b) {
			return !math.IsNaN(a) && math.IsNaN(b)
		}
		return a > b
	})
}
