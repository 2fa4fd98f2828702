package strategy

import (
	"context"
	"math"

	"github.com/alejandrodnm/spotbot/internal/domain"
)

// Trend follows the prevailing direction: a moving average for direction,
// RSI to avoid exhausted moves, ADX to require the trend actually exists.
type Trend struct {
	maPeriod  int
	rsiPeriod int
	adxPeriod int
}

// NewTrend builds the trend-following strategy with its standard periods.
func NewTrend() *Trend {
	return &Trend{maPeriod: 20, rsiPeriod: 14, adxPeriod: 14}
}

func (t *Trend) Config() Config {
	return Config{
		Name:                  "trend",
		SignalIntervalMinutes: 15,
		CandleInterval:        "30",
		LookbackPeriods:       200,
		PositionSizeUSD:       100,
		Description:           "Trend following on MA direction, filtered by RSI and ADX strength",
	}
}

func (t *Trend) Predict(_ context.Context, symbol string, candles []domain.Candle) (domain.Prediction, error) {
	closes, highs, lows, _ := unpack(candles)

	ma := sma(closes, t.maPeriod)
	rsiVals := rsi(closes, t.rsiPeriod)
	adxVals := adx(highs, lows, closes, t.adxPeriod)
	atrVals := atr(highs, lows, closes, t.adxPeriod)

	last := len(closes) - 1
	lastClose := closes[last]
	lastMA := ma[last]
	lastRSI := rsiVals[last]
	lastADX := adxVals[last]
	lastATR := atrVals[last]

	if anyNaN(lastMA, lastRSI, lastADX, lastATR) {
		return domain.Nothing(symbol), nil
	}

	action := domain.ActionNothing
	if lastADX > 25 {
		switch {
		case lastClose > lastMA && lastRSI < 70:
			action = domain.ActionBuy
		case lastClose < lastMA && lastRSI > 30:
			action = domain.ActionSell
		}
	}
	if action == domain.ActionNothing {
		return domain.Nothing(symbol), nil
	}

	// Risk levels scale with volatility, floored so they stay meaningful
	// on quiet markets.
	stopLoss := math.Max(1.5*lastATR/lastClose*100, 0.2)
	takeProfit := math.Max(2.5*lastATR/lastClose*100, 0.3)
	return domain.NewPrediction(symbol, action, &stopLoss, &takeProfit)
}

// unpack splits candles into float64 slices for indicator math.
func unpack(candles []domain.Candle) (closes, highs, lows, volumes []float64) {
	closes = make([]float64, len(candles))
	highs = make([]float64, len(candles))
	lows = make([]float64, len(candles))
	volumes = make([]float64, len(candles))
	for i, c := range candles {
		closes[i], _ = c.Close.Float64()
		highs[i], _ = c.High.Float64()
		lows[i], _ = c.Low.Float64()
		volumes[i], _ = c.Volume.Float64()
	}
	return closes, highs, lows, volumes
}

func anyNaN(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
