package strategy

import (
	"fmt"

	"github.com/opsxjacky/portfolio-backtest/internal/data"
	"github.com/opsxjacky/portfolio-backtest/internal/portfolio"
)

// Periodic 定期再平衡: day % period == 0 时触发
type Periodic struct {
	period int
}

// NewPeriodic 创建定期再平衡触发器
func NewPeriodic(period int) (*Periodic, error) {
	if period <= 0 {
		return nil, fmt.Errorf("rebalance period must be positive, got %d", period)
	}
	return &Periodic{period: period}, nil
}

// Name 返回触发器名称
func (p *Periodic) Name() string {
	return fmt.Sprintf("periodic:%d", p.period)
}

// Period 再平衡间隔
func (p *Periodic) Period() int {
	return p.period
}

// ShouldRebalance 判断是否需要再平衡
func (p *Periodic) ShouldRebalance(day int, _ data.Snapshot, _ *portfolio.Portfolio) (bool, error) {
	return day%p.period == 0, nil
}

// Never 从不触发, 即纯买入持有
type Never struct{}

// Name 返回触发器名称
func (Never) Name() string {
	return "never"
}

// ShouldRebalance 始终返回 false
func (Never) ShouldRebalance(int, data.Snapshot, *portfolio.Portfolio) (bool, error) {
	return false, nil
}
