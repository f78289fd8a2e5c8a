package export

import (
	"errors"
	"fmt"
	"math"
	"os"

	charts "github.com/vicanso/go-charts/v2"

	"github.com/opsxjacky/portfolio-backtest/internal/report"
)

// RenderChart 绘制累计收益与回撤 (百分比) 的 PNG 图表
func RenderChart(r *report.BacktestReport) ([]byte, error) {
	if r.IsEmpty() {
		return nil, errors.New("no data to chart")
	}

	n := len(r.Dates)
	returns := make([]float64, n)
	drawdowns := make([]float64, n)
	yMin, yMax := 0.0, 0.0
	for i := 0; i < n; i++ {
		returns[i] = (r.Cumulative[i] - 1) * 100
		drawdowns[i] = -r.Drawdown[i] * 100
		yMin = math.Min(yMin, math.Min(returns[i], drawdowns[i]))
		yMax = math.Max(yMax, returns[i])
	}
	padding := (yMax - yMin) * 0.05
	if padding == 0 {
		padding = 1
	}
	yMin -= padding
	yMax += padding

	splitNum := 6
	if n <= 30 {
		splitNum = n / 3
		if splitNum < 3 {
			splitNum = 3
		}
	}

	s := r.Summary()
	title := fmt.Sprintf("%s (%s)", s.Strategy, s.Symbols)
	subtitle := fmt.Sprintf("Return: %.2f%% | CAGR: %.2f%% | Sharpe: %.2f | MaxDD: %.2f%%",
		s.TotalReturn*100, s.CAGR*100, s.Sharpe, s.MaxDrawdown*100)

	p, err := charts.LineRender(
		[][]float64{returns, drawdowns},
		charts.TitleTextOptionFunc(title, subtitle),
		charts.XAxisOptionFunc(charts.XAxisOption{
			Data:        r.Dates,
			SplitNumber: splitNum,
			BoundaryGap: charts.FalseFlag(),
		}),
		charts.YAxisOptionFunc(charts.YAxisOption{
			Min:         &yMin,
			Max:         &yMax,
			DivideCount: 5,
		}),
		charts.LegendOptionFunc(charts.LegendOption{
			Data: []string{"Cumulative return %", "Drawdown %"},
		}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(1000),
		charts.HeightOptionFunc(600),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}

	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to generate chart bytes: %w", err)
	}
	return buf, nil
}

// WriteChart 生成图表并写入文件
func WriteChart(path string, r *report.BacktestReport) error {
	buf, err := RenderChart(r)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("failed to write chart: %w", err)
	}
	return nil
}
