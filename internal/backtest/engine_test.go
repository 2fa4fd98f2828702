package backtest_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/spotbot/internal/backtest"
	"github.com/alejandrodnm/spotbot/internal/domain"
	"github.com/alejandrodnm/spotbot/internal/strategy"
)

// --- mocks ---

type mockCandleProvider struct {
	candles []domain.Candle
	err     error
}

func (m *mockCandleProvider) GetCandles(_ context.Context, _, _ string, limit int, start *time.Time) ([]domain.Candle, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.Candle
	for _, c := range m.candles {
		if start != nil && c.Timestamp < start.UnixMilli() {
			continue
		}
		out = append(out, c)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// scriptedStrategy replays a fixed sequence of actions, one per Predict call,
// then keeps returning NOTHING.
type scriptedStrategy struct {
	cfg     strategy.Config
	actions []domain.Action
	calls   int
}

func (s *scriptedStrategy) Config() strategy.Config { return s.cfg }

func (s *scriptedStrategy) Predict(_ context.Context, symbol string, _ []domain.Candle) (domain.Prediction, error) {
	action := domain.ActionNothing
	if s.calls < len(s.actions) {
		action = s.actions[s.calls]
	}
	s.calls++
	if action == domain.ActionNothing {
		return domain.Nothing(symbol), nil
	}
	sl, tp := 2.0, 40.0
	return domain.NewPrediction(symbol, action, &sl, &tp)
}

// --- helpers ---

var t0 = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func testConfig() strategy.Config {
	return strategy.Config{
		Name:                  "scripted",
		SignalIntervalMinutes: 60,
		CandleInterval:        "60",
		LookbackPeriods:       3,
		PositionSizeUSD:       100,
	}
}

// hourlyCandles builds flat candles at the given closes, one per hour starting
// well before t0 so every tick has a full lookback window.
func hourlyCandles(closes ...float64) []domain.Candle {
	out := make([]domain.Candle, 0, len(closes)+3)
	start := t0.Add(-3 * time.Hour)
	for i := 0; i < 3; i++ {
		out = append(out, flatCandle(start.Add(time.Duration(i)*time.Hour), closes[0]))
	}
	for i, c := range closes {
		out = append(out, flatCandle(t0.Add(time.Duration(i)*time.Hour), c))
	}
	return out
}

func flatCandle(at time.Time, close float64) domain.Candle {
	c := decimal.NewFromFloat(close)
	return domain.Candle{Open: c, High: c, Low: c, Close: c, Timestamp: at.UnixMilli()}
}

func TestEngine_BuyThenSell(t *testing.T) {
	provider := &mockCandleProvider{candles: hourlyCandles(100, 101, 102, 103)}
	strat := &scriptedStrategy{cfg: testConfig(), actions: []domain.Action{
		domain.ActionBuy,
		domain.ActionBuy, // ignored, a trade is already open
		domain.ActionSell,
	}}

	result, err := backtest.NewEngine(provider).Run(context.Background(), strat, "BTCUSDT", t0, t0.Add(3*time.Hour))
	require.NoError(t, err)

	require.Equal(t, 1, result.TotalTrades)
	require.Len(t, result.Trades, 1)
	tr := result.Trades[0]
	require.True(t, tr.IsClosed())
	assert.True(t, tr.OpenPrice.Equal(decimal.NewFromInt(100)))
	assert.True(t, tr.ClosePrice.Equal(decimal.NewFromInt(102)))
	assert.InDelta(t, 2.0, result.TotalReturnPercent, 1e-9)
	assert.InDelta(t, 100.0, result.WinRate, 1e-9)
}

func TestEngine_ForceCloseAtHorizon(t *testing.T) {
	provider := &mockCandleProvider{candles: hourlyCandles(100, 100.5, 101, 101.5)}
	strat := &scriptedStrategy{cfg: testConfig(), actions: []domain.Action{domain.ActionBuy}}

	result, err := backtest.NewEngine(provider).Run(context.Background(), strat, "BTCUSDT", t0, t0.Add(3*time.Hour))
	require.NoError(t, err)

	// Never hit TP or SL, closed at the final window's close.
	require.Equal(t, 1, result.TotalTrades)
	tr := result.Trades[0]
	require.True(t, tr.IsClosed())
	assert.True(t, tr.ClosePrice.Equal(decimal.NewFromFloat(101.5)))
}

func TestEngine_StopLossCloses(t *testing.T) {
	// SL is 2% below 100; the drop to 97 crosses it.
	provider := &mockCandleProvider{candles: hourlyCandles(100, 97, 97, 97)}
	strat := &scriptedStrategy{cfg: testConfig(), actions: []domain.Action{domain.ActionBuy}}

	result, err := backtest.NewEngine(provider).Run(context.Background(), strat, "BTCUSDT", t0, t0.Add(3*time.Hour))
	require.NoError(t, err)

	require.Equal(t, 1, result.TotalTrades)
	tr := result.Trades[0]
	assert.True(t, tr.ClosePrice.Equal(decimal.NewFromInt(97)))
	assert.InDelta(t, -3.0, tr.PnLPercent(), 1e-9)
	assert.Zero(t, result.WinRate)
}

func TestEngine_SellWithoutOpenIsNoOp(t *testing.T) {
	provider := &mockCandleProvider{candles: hourlyCandles(100, 101, 102, 103)}
	strat := &scriptedStrategy{cfg: testConfig(), actions: []domain.Action{
		domain.ActionSell, // nothing open yet
		domain.ActionBuy,
		domain.ActionSell,
	}}

	result, err := backtest.NewEngine(provider).Run(context.Background(), strat, "BTCUSDT", t0, t0.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, result.TotalTrades)
}

func TestEngine_InvertedRange(t *testing.T) {
	provider := &mockCandleProvider{candles: hourlyCandles(100)}
	strat := &scriptedStrategy{cfg: testConfig()}

	result, err := backtest.NewEngine(provider).Run(context.Background(), strat, "BTCUSDT", t0.Add(time.Hour), t0)
	require.NoError(t, err)
	assert.Zero(t, result.TotalTrades)
	assert.Empty(t, result.Trades)
}

func TestEngine_EmptyStore(t *testing.T) {
	provider := &mockCandleProvider{}
	strat := &scriptedStrategy{cfg: testConfig(), actions: []domain.Action{domain.ActionBuy}}

	result, err := backtest.NewEngine(provider).Run(context.Background(), strat, "BTCUSDT", t0, t0.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, result.TotalTrades)
	assert.Zero(t, strat.calls, "no full lookback window, strategy never consulted")
}

func TestEngine_ProviderError(t *testing.T) {
	provider := &mockCandleProvider{err: errors.New("boom")}
	strat := &scriptedStrategy{cfg: testConfig()}

	_, err := backtest.NewEngine(provider).Run(context.Background(), strat, "BTCUSDT", t0, t0.Add(time.Hour))
	assert.Error(t, err)
}
