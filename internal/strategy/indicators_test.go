package strategy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMA(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	out := sma(values, 3)

	require.Len(t, out, 5)
	assert.True(t, math.IsNaN(out[0]))
	assert.True(t, math.IsNaN(out[1]))
	assert.InDelta(t, 2.0, out[2], 1e-9)
	assert.InDelta(t, 3.0, out[3], 1e-9)
	assert.InDelta(t, 4.0, out[4], 1e-9)
}

func TestSMA_ShortInput(t *testing.T) {
	out := sma([]float64{1, 2}, 5)
	for _, v := range out {
		assert.True(t, math.IsNaN(v))
	}
}

func TestEMA(t *testing.T) {
	values := []float64{10, 10, 10, 10}
	out := ema(values, 3)

	// Constant input stays constant.
	for _, v := range out {
		assert.InDelta(t, 10.0, v, 1e-9)
	}

	rising := ema([]float64{10, 20}, 3)
	// alpha = 0.5: 0.5*20 + 0.5*10
	assert.InDelta(t, 15.0, rising[1], 1e-9)
}

func TestRSI_Extremes(t *testing.T) {
	up := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	out := rsi(up, 5)
	// Monotonic rise has no losses, RSI saturates at 100.
	assert.InDelta(t, 100.0, out[len(out)-1], 1e-9)

	down := []float64{8, 7, 6, 5, 4, 3, 2, 1}
	out = rsi(down, 5)
	assert.InDelta(t, 0.0, out[len(out)-1], 1e-9)
}

func TestBollinger_FlatSeries(t *testing.T) {
	values := []float64{5, 5, 5, 5, 5}
	upper, middle, lower := bollinger(values, 3, 2)

	assert.InDelta(t, 5.0, middle[4], 1e-9)
	assert.InDelta(t, 5.0, upper[4], 1e-9)
	assert.InDelta(t, 5.0, lower[4], 1e-9)
}

func TestStochastic(t *testing.T) {
	highs := []float64{10, 11, 12, 13}
	lows := []float64{8, 9, 10, 11}
	closes := []float64{9, 10, 11, 13}

	k, _ := stochastic(highs, lows, closes, 3, 2)
	assert.True(t, math.IsNaN(k[1]))
	// Last close equals the period high: %K = 100.
	assert.InDelta(t, 100.0, k[3], 1e-9)

	// Flat window pins %K at 50 instead of dividing by zero.
	flat := []float64{5, 5, 5}
	k, _ = stochastic(flat, flat, flat, 3, 2)
	assert.InDelta(t, 50.0, k[2], 1e-9)
}

func TestATR_ConstantRange(t *testing.T) {
	highs := []float64{12, 12, 12, 12, 12}
	lows := []float64{10, 10, 10, 10, 10}
	closes := []float64{11, 11, 11, 11, 11}

	out := atr(highs, lows, closes, 3)
	assert.InDelta(t, 2.0, out[len(out)-1], 1e-9)
}

func TestMACD_ConstantSeries(t *testing.T) {
	values := []float64{7, 7, 7, 7, 7, 7}
	line, signal, hist := macd(values, 2, 4, 3)

	for i := range values {
		assert.InDelta(t, 0.0, line[i], 1e-9)
		assert.InDelta(t, 0.0, signal[i], 1e-9)
		assert.InDelta(t, 0.0, hist[i], 1e-9)
	}
}
