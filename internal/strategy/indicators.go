package strategy

import "math"

// Indicator helpers over float64 slices. Every function returns a slice the
// same length as its input, front-padded with NaN where the indicator has not
// warmed up yet, so callers can index by candle position.

// sma is the simple moving average.
func sma(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// ema is the exponential moving average, seeded with the first value.
func ema(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	alpha := 2 / (float64(period) + 1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// rsi is the relative strength index over simple rolling averages of gains
// and losses.
func rsi(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if len(values) <= period {
		return out
	}
	gains := make([]float64, len(values)-1)
	losses := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		delta := values[i] - values[i-1]
		if delta > 0 {
			gains[i-1] = delta
		} else {
			losses[i-1] = -delta
		}
	}
	avgGains := sma(gains, period)
	avgLosses := sma(losses, period)
	for i := period - 1; i < len(gains); i++ {
		if avgLosses[i] == 0 {
			// No losses in the window, RSI saturates.
			out[i+1] = 100
			continue
		}
		rs := avgGains[i] / avgLosses[i]
		out[i+1] = 100 - 100/(1+rs)
	}
	return out
}

// macd returns the MACD line, signal line and histogram.
func macd(values []float64, fastPeriod, slowPeriod, signalPeriod int) (line, signal, histogram []float64) {
	emaFast := ema(values, fastPeriod)
	emaSlow := ema(values, slowPeriod)
	line = make([]float64, len(values))
	for i := range values {
		line[i] = emaFast[i] - emaSlow[i]
	}
	signal = ema(line, signalPeriod)
	histogram = make([]float64, len(values))
	for i := range values {
		histogram[i] = line[i] - signal[i]
	}
	return line, signal, histogram
}

// bollinger returns the upper band, middle (SMA) and lower band.
func bollinger(values []float64, period int, stdDev float64) (upper, middle, lower []float64) {
	middle = sma(values, period)
	upper = nanSlice(len(values))
	lower = nanSlice(len(values))
	for i := range values {
		lo := i - period + 1
		if lo < 0 {
			lo = 0
		}
		window := values[lo : i+1]
		sd := stddev(window)
		if !math.IsNaN(middle[i]) {
			upper[i] = middle[i] + sd*stdDev
			lower[i] = middle[i] - sd*stdDev
		}
	}
	return upper, middle, lower
}

// stochastic returns the %K and %D lines of the stochastic oscillator.
func stochastic(highs, lows, closes []float64, kPeriod, dPeriod int) (k, d []float64) {
	k = nanSlice(len(closes))
	for i := range closes {
		if i < kPeriod-1 {
			continue
		}
		periodHigh := math.Inf(-1)
		periodLow := math.Inf(1)
		for j := i - kPeriod + 1; j <= i; j++ {
			periodHigh = math.Max(periodHigh, highs[j])
			periodLow = math.Min(periodLow, lows[j])
		}
		if periodHigh == periodLow {
			k[i] = 50
		} else {
			k[i] = 100 * (closes[i] - periodLow) / (periodHigh - periodLow)
		}
	}
	d = sma(k, dPeriod)
	return k, d
}

// atr is the average true range.
func atr(highs, lows, closes []float64, period int) []float64 {
	out := nanSlice(len(closes))
	tr := trueRange(highs, lows, closes)
	smoothed := sma(tr, period)
	// tr starts at the second candle, shift back into candle positions
	for i, v := range smoothed {
		if !math.IsNaN(v) {
			out[i+1] = v
		}
	}
	return out
}

// adx is the average directional index: smoothed DX over +DI/-DI.
func adx(highs, lows, closes []float64, period int) []float64 {
	out := nanSlice(len(closes))
	n := len(closes)
	if n < 2*period+1 {
		return out
	}

	plusDM := make([]float64, n-1)
	minusDM := make([]float64, n-1)
	for i := 1; i < n; i++ {
		up := highs[i] - highs[i-1]
		down := lows[i-1] - lows[i]
		if up > down && up > 0 {
			plusDM[i-1] = up
		}
		if down > up && down > 0 {
			minusDM[i-1] = down
		}
	}

	tr := trueRange(highs, lows, closes)
	atrRaw := sma(tr, period)
	plusRaw := sma(plusDM, period)
	minusRaw := sma(minusDM, period)

	dx := nanSlice(len(tr))
	for i := period - 1; i < len(tr); i++ {
		if atrRaw[i] == 0 || math.IsNaN(atrRaw[i]) {
			continue
		}
		plusDI := 100 * plusRaw[i] / atrRaw[i]
		minusDI := 100 * minusRaw[i] / atrRaw[i]
		denom := plusDI + minusDI
		if denom == 0 {
			dx[i] = 0
			continue
		}
		dx[i] = 100 * math.Abs(plusDI-minusDI) / denom
	}

	smoothed := smaSkipNaN(dx, period)
	for i, v := range smoothed {
		if !math.IsNaN(v) {
			out[i+1] = v
		}
	}
	return out
}

// trueRange returns TR per candle starting from the second one.
func trueRange(highs, lows, closes []float64) []float64 {
	tr := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		hl := highs[i] - lows[i]
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		tr[i-1] = math.Max(hl, math.Max(hc, lc))
	}
	return tr
}

// smaSkipNaN averages the trailing period entries, ignoring NaN warmup.
func smaSkipNaN(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	for i := period - 1; i < len(values); i++ {
		var sum float64
		count := 0
		for j := i - period + 1; j <= i; j++ {
			if math.IsNaN(values[j]) {
				continue
			}
			sum += values[j]
			count++
		}
		if count == period {
			out[i] = sum / float64(count)
		}
	}
	return out
}

func stddev(window []float64) float64 {
	if len(window) == 0 {
		return 0
	}
	var mean float64
	for _, v := range window {
		mean += v
	}
	mean /= float64(len(window))
	var variance float64
	for _, v := range window {
		variance += (v - mean) * (v - mean)
	}
	return math.Sqrt(variance / float64(len(window)))
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
