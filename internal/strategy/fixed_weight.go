package strategy

import (
	"fmt"
	"math"

	"github.com/opsxjacky/portfolio-backtest/internal/data"
	"github.com/opsxjacky/portfolio-backtest/internal/portfolio"
)

// weightTolerance 权重总和允许的浮点误差
const weightTolerance = 1e-9

// ValidateWeights 检查权重非负且总和不超过1
func ValidateWeights(weights map[string]float64) error {
	if len(weights) == 0 {
		return fmt.Errorf("%w: no weights configured", ErrInvalidWeights)
	}
	var sum float64
	for sym, w := range weights {
		if w < 0 || math.IsNaN(w) {
			return fmt.Errorf("%w: %s has weight %v", ErrInvalidWeights, sym, w)
		}
		sum += w
	}
	if sum > 1+weightTolerance {
		return fmt.Errorf("%w: weights sum to %.6f", ErrInvalidWeights, sum)
	}
	return nil
}

func copyWeights(weights map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(weights))
	for k, v := range weights {
		out[k] = v
	}
	return out
}

// Threshold 偏离阈值再平衡.
// 将各标的与现金的当前权重和目标权重 (现金目标 = 1 - Σw) 比较,
// 绝对偏离之和 (百分点) 严格大于阈值时触发.
type Threshold struct {
	threshold float64
	weights   map[string]float64
}

// NewThreshold 创建阈值触发器, threshold 以百分点计 (5.0 = 5%)
func NewThreshold(threshold float64, weights map[string]float64) (*Threshold, error) {
	if threshold < 0 || math.IsNaN(threshold) {
		return nil, fmt.Errorf("threshold must be non-negative, got %v", threshold)
	}
	if err := ValidateWeights(weights); err != nil {
		return nil, err
	}
	return &Threshold{threshold: threshold, weights: copyWeights(weights)}, nil
}

// Name 返回触发器名称
func (s *Threshold) Name() string {
	return fmt.Sprintf("threshold:%g", s.threshold)
}

// Deviation 当前配置与目标配置的总偏离 (百分点)
func (s *Threshold) Deviation(snap data.Snapshot, pf *portfolio.Portfolio) (float64, error) {
	symbols := pf.Symbols()
	values := make([]float64, len(symbols))
	targets := make([]float64, len(symbols))

	total := pf.Cash()
	var targetSum float64
	for i, sym := range symbols {
		w, ok := s.weights[sym]
		if !ok {
			return 0, fmt.Errorf("%s: %w", sym, ErrMissingWeight)
		}
		price, ok := snap.AdjClose(sym)
		if !ok {
			return 0, fmt.Errorf("%s has no price on %s", sym, snap.Date)
		}
		targets[i] = w
		targetSum += w
		values[i] = price * float64(pf.SharesAt(i))
		total += values[i]
	}
	if total <= 0 {
		return 0, nil
	}

	deviation := math.Abs(pf.Cash()/total-(1-targetSum)) * 100
	for i := range symbols {
		deviation += math.Abs(values[i]/total-targets[i]) * 100
	}
	return deviation, nil
}

// ShouldRebalance 判断是否需要再平衡
func (s *Threshold) ShouldRebalance(_ int, snap data.Snapshot, pf *portfolio.Portfolio) (bool, error) {
	deviation, err := s.Deviation(snap, pf)
	if err != nil {
		return false, err
	}
	return deviation > s.threshold, nil
}
