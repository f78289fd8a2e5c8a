package data

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/opsxjacky/portfolio-backtest/pkg/types"
	"golang.org/x/sync/errgroup"
)

// ErrDataUnavailable 数据源在指定区间内没有该标的的数据
var ErrDataUnavailable = errors.New("market data unavailable")

// DefaultRiskFreeSymbol 默认无风险利率代理 (10年期美债收益率, 年化百分比)
const DefaultRiskFreeSymbol = "^TNX"

// Source 行情数据源接口
type Source interface {
	// Fetch 返回区间内按日期升序排列的日线数据
	Fetch(ctx context.Context, symbol string, r types.DateRange) ([]types.DatedChart, error)

	// SourceType 数据源类型, 用于日志
	SourceType() string
}

// StaticSource 内存数据源
type StaticSource map[string][]types.DatedChart

// SourceType 实现 Source
func (s StaticSource) SourceType() string {
	return "static"
}

// Fetch 实现 Source
func (s StaticSource) Fetch(_ context.Context, symbol string, r types.DateRange) ([]types.DatedChart, error) {
	var out []types.DatedChart
	for _, c := range s[symbol] {
		if r.Contains(c.Date) {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s in %s: %w", symbol, r, ErrDataUnavailable)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// FetchAll 并发获取所有标的及无风险利率序列, 任一失败立即返回
func FetchAll(
	ctx context.Context,
	src Source,
	symbols []string,
	riskFreeSymbol string,
	r types.DateRange,
	parallelism int,
) (map[string][]types.DatedChart, []types.DatedChart, error) {
	if parallelism <= 0 {
		parallelism = 4
	}

	all := append(append([]string{}, symbols...), riskFreeSymbol)
	results := make([][]types.DatedChart, len(all))
	sem := make(chan struct{}, parallelism)

	g, gctx := errgroup.WithContext(ctx)
	for i, sym := range all {
		i, sym := i, sym
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-sem }()

			rows, err := src.Fetch(gctx, sym, r)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", sym, err)
			}
			if len(rows) == 0 {
				return fmt.Errorf("fetch %s in %s: %w", sym, r, ErrDataUnavailable)
			}
			results[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	series := make(map[string][]types.DatedChart, len(symbols))
	for i, sym := range symbols {
		series[sym] = results[i]
	}
	return series, results[len(all)-1], nil
}
