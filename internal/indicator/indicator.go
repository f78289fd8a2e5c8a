package indicator

import (
	talib "github.com/markcheno/go-talib"
)

// SMA 简单移动平均, 输出与输入等长.
// 首个完整窗口之前取已有数据的累计均值.
func SMA(in []float64, period int) []float64 {
	if len(in) == 0 {
		return []float64{}
	}
	if period <= 1 {
		return append([]float64(nil), in...)
	}
	if len(in) < period {
		return expandingMean(in, len(in))
	}

	out := talib.Sma(in, period)
	warm := expandingMean(in, period-1)
	copy(out, warm)
	return out
}

// EMA 指数移动平均, 以首个窗口的 SMA 为初值, 预热期取累计均值
func EMA(in []float64, period int) []float64 {
	if len(in) == 0 {
		return []float64{}
	}
	if period <= 1 {
		return append([]float64(nil), in...)
	}
	if len(in) < period {
		return expandingMean(in, len(in))
	}

	out := talib.Ema(in, period)
	copy(out, expandingMean(in, period-1))
	return out
}

// RSI Wilder 相对强弱指标, 预热期为 50
func RSI(in []float64, period int) []float64 {
	out := make([]float64, len(in))
	if len(in) <= period || period < 2 {
		for i := range out {
			out[i] = 50
		}
		return out
	}

	rsi := talib.Rsi(in, period)
	for i := range out {
		if i < period {
			out[i] = 50
			continue
		}
		out[i] = rsi[i]
	}
	return out
}

// MACD 返回 MACD 线, 信号线与柱状图
func MACD(in []float64, fast, slow, signal int) (line, sig, hist []float64) {
	if len(in) == 0 {
		return []float64{}, []float64{}, []float64{}
	}
	return talib.Macd(in, fast, slow, signal)
}

// TypicalPrice 典型价格 (high + low + close) / 3
func TypicalPrice(high, low, close []float64) []float64 {
	return talib.TypPrice(high, low, close)
}

func expandingMean(in []float64, n int) []float64 {
	out := make([]float64, n)
	var sum float64
	for i := 0; i < n; i++ {
		sum += in[i]
		out[i] = sum / float64(i+1)
	}
	return out
}
