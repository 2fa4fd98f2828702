package backtest

// Offline backtesting: replays a strategy over historical candles at its
// signal cadence and books simulated trades against candle closes. The
// execution price fiction is the tick's candle close: no slippage, no spread.

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/spotbot/internal/domain"
	"github.com/alejandrodnm/spotbot/internal/ports"
	"github.com/alejandrodnm/spotbot/internal/strategy"
)

// candlePageSize bounds each candle store request. The cursor advances past
// the newest candle of every page, so overlapping or partial pages are fine.
const candlePageSize = 1000

// Engine walks simulated time over a candle series and keeps a single open
// trade slot per run.
type Engine struct {
	candles ports.CandleProvider
}

// NewEngine builds an engine on top of the given candle store.
func NewEngine(candles ports.CandleProvider) *Engine {
	return &Engine{candles: candles}
}

// Run backtests the strategy over [start, end]. Ticks advance by the
// strategy's signal interval; each tick sees the last LookbackPeriods candles
// at or before it. An inverted range yields an empty result, an empty candle
// store yields a zero-trade result, transport errors abort the run.
func (e *Engine) Run(ctx context.Context, strat strategy.Strategy, symbol string, start, end time.Time) (domain.BacktestResult, error) {
	if !start.Before(end) {
		return calculateResults(nil), nil
	}

	cfg := strat.Config()
	series, err := e.loadCandles(ctx, symbol, cfg, start, end)
	if err != nil {
		return domain.BacktestResult{}, fmt.Errorf("backtest: load candles for %s: %w", symbol, err)
	}
	slog.Info("candles loaded",
		"symbol", symbol,
		"strategy", cfg.Name,
		"candles", series.Len(),
		"start", start,
		"end", end,
	)

	var trades []domain.Trade
	var open *domain.Trade

	step := cfg.SignalInterval()
	for tick := start; !tick.After(end); tick = tick.Add(step) {
		window := series.WindowBefore(tick.UnixMilli(), cfg.LookbackPeriods)
		if len(window) < cfg.LookbackPeriods {
			// Not enough history for the strategy to be trusted.
			continue
		}

		prediction, err := strat.Predict(ctx, symbol, window)
		if err != nil {
			return domain.BacktestResult{}, fmt.Errorf("backtest: predict %s at %s: %w", symbol, tick, err)
		}
		current := window[len(window)-1]

		switch {
		case open == nil && prediction.Action == domain.ActionBuy:
			t := domain.OpenTrade(symbol, tick, current.Close,
				*prediction.StopLossPercent, *prediction.TakeProfitPercent, cfg.PositionSizeUSD)
			open = &t
			slog.Debug("opening trade", "symbol", symbol, "time", tick, "price", current.Close)

		case open != nil && shouldClose(prediction, current, *open):
			open.Close(tick, current.Close)
			trades = append(trades, *open)
			slog.Debug("closing trade",
				"symbol", symbol,
				"time", tick,
				"price", current.Close,
				"income", open.Income(),
			)
			open = nil
		}
		// A BUY while a trade is open is ignored: no pyramiding. SELL and
		// NOTHING without an open trade are no-ops.
	}

	// Best-effort mark-to-close of a trade still open at the horizon.
	if open != nil {
		final := series.WindowBefore(end.UnixMilli(), cfg.LookbackPeriods)
		if len(final) > 0 {
			open.Close(end, final[len(final)-1].Close)
			trades = append(trades, *open)
		}
	}

	return calculateResults(trades), nil
}

// shouldClose groups the three exit conditions in a single OR: if several
// trigger on the same tick the trade still closes exactly once, at the
// current close price.
func shouldClose(prediction domain.Prediction, current domain.Candle, open domain.Trade) bool {
	return prediction.Action == domain.ActionSell ||
		current.Close.LessThan(open.SLPrice) ||
		current.Close.GreaterThanOrEqual(open.TPPrice)
}

// loadCandles pages through the candle store from start minus the lookback
// buffer up to end, deduplicating by timestamp.
func (e *Engine) loadCandles(ctx context.Context, symbol string, cfg strategy.Config, start, end time.Time) (*domain.Series, error) {
	lookback := cfg.CandleDuration() * time.Duration(cfg.LookbackPeriods)
	cursor := start.Add(-lookback)

	series := domain.NewSeries(nil)
	for cursor.Before(end) {
		page, err := e.candles.GetCandles(ctx, symbol, cfg.CandleInterval, candlePageSize, &cursor)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		series.Add(page...)

		maxTS := page[0].Timestamp
		for _, c := range page {
			if c.Timestamp > maxTS {
				maxTS = c.Timestamp
			}
		}
		cursor = time.UnixMilli(maxTS).UTC().Add(cfg.CandleDuration())

		if len(page) < candlePageSize {
			// Short page: the store ran out of data.
			break
		}
	}
	return series, nil
}

// calculateResults aggregates the closed subset of trades. It never mutates
// its input, so recomputing over the same list is idempotent.
func calculateResults(trades []domain.Trade) domain.BacktestResult {
	result := domain.BacktestResult{
		Trades:      trades,
		TotalIncome: decimal.Zero,
		TotalVolume: decimal.Zero,
	}

	closed := 0
	winning := 0
	for _, t := range trades {
		if !t.IsClosed() {
			continue
		}
		closed++
		pnl := t.PnLPercent()
		result.TotalReturnPercent += pnl
		if pnl > 0 {
			winning++
		}
		result.TotalIncome = result.TotalIncome.Add(t.Income())
		result.TotalVolume = result.TotalVolume.Add(t.TradedVolume())
	}

	if closed == 0 {
		return domain.BacktestResult{Trades: trades, TotalIncome: decimal.Zero, TotalVolume: decimal.Zero}
	}
	result.TotalTrades = closed
	result.WinRate = float64(winning) / float64(closed) * 100
	return result
}
