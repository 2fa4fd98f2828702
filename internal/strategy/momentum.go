package strategy

import (
	"context"
	"math"

	"github.com/alejandrodnm/spotbot/internal/domain"
)

// Momentum is the aggressive variant: it requires four of five independent
// conditions (RSI room, MACD direction, Bollinger position, stochastic cross,
// volume expansion) to line up before entering, and sizes its stops off ATR.
type Momentum struct{}

// NewMomentum builds the momentum strategy.
func NewMomentum() *Momentum {
	return &Momentum{}
}

func (m *Momentum) Config() Config {
	return Config{
		Name:                  "momentum",
		SignalIntervalMinutes: 5,
		CandleInterval:        "15",
		LookbackPeriods:       500,
		PositionSizeUSD:       150,
		Description:           "Aggressive momentum on RSI, MACD, Bollinger, Stochastic and volume",
	}
}

const (
	momentumATRStopMult = 1.2
	momentumATRTakeMult = 3.0
	momentumMinStopPct  = 0.15
	momentumMinTakePct  = 0.25
)

func (m *Momentum) Predict(_ context.Context, symbol string, candles []domain.Candle) (domain.Prediction, error) {
	closes, highs, lows, volumes := unpack(candles)

	rsiVals := rsi(closes, 14)
	macdLine, signalLine, histogram := macd(closes, 12, 26, 9)
	bbUpper, _, bbLower := bollinger(closes, 20, 2.0)
	stochK, stochD := stochastic(highs, lows, closes, 14, 3)
	atrVals := atr(highs, lows, closes, 14)
	volumeSMA := sma(volumes, 20)

	last := len(closes) - 1
	curClose := closes[last]
	curRSI := rsiVals[last]
	curMACD := macdLine[last]
	curSignal := signalLine[last]
	curHist := histogram[last]
	prevHist := histogram[last-1]
	curStochK := stochK[last]
	curStochD := stochD[last]
	curATR := atrVals[last]
	curVolume := volumes[last]
	avgVolume := volumeSMA[last]

	if anyNaN(curRSI, curMACD, curSignal, curStochK, curStochD, curATR, avgVolume, bbUpper[last], bbLower[last]) {
		return domain.Nothing(symbol), nil
	}

	buyConditions := []bool{
		30 < curRSI && curRSI < 70,
		curMACD > curSignal || (curHist > prevHist && curHist > 0),
		curClose <= bbLower[last]*1.05,
		curStochK > curStochD && curStochK < 80,
		curVolume > avgVolume*1.2,
	}
	sellConditions := []bool{
		30 < curRSI && curRSI < 70,
		curMACD < curSignal || (curHist < prevHist && curHist < 0),
		curClose >= bbUpper[last]*0.95,
		curStochK < curStochD && curStochK > 20,
		curVolume > avgVolume*1.2,
	}

	action := domain.ActionNothing
	switch {
	case countTrue(buyConditions) >= 4:
		action = domain.ActionBuy
	case countTrue(sellConditions) >= 4:
		action = domain.ActionSell
	default:
		return domain.Nothing(symbol), nil
	}

	stopLoss := math.Max(momentumATRStopMult*curATR/curClose*100, momentumMinStopPct)
	takeProfit := math.Max(momentumATRTakeMult*curATR/curClose*100, momentumMinTakePct)
	return domain.NewPrediction(symbol, action, &stopLoss, &takeProfit)
}

func countTrue(conditions []bool) int {
	n := 0
	for _, ok := range conditions {
		if ok {
			n++
		}
	}
	return n
}
