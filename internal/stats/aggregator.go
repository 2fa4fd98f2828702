package stats

// Retrospective deal statistics: replays historical candles against stored
// deals to infer how each one resolved (take-profit, stop-loss, or neither)
// and aggregates realized P&L over a time window.

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/alejandrodnm/spotbot/internal/domain"
	"github.com/alejandrodnm/spotbot/internal/ports"
)

const (
	// candleFetchLimit is the per-symbol history request size. The provider
	// caps pages at this size, so long windows are a best-effort scan.
	candleFetchLimit = 200

	// extensionWindow is the one-time "look a bit further" allowance for
	// deals unresolved inside the requested window. Not an unbounded retry.
	extensionWindow = 7 * 24 * time.Hour
)

type outcome string

const (
	outcomeTakeProfit outcome = "tp"
	outcomeStopLoss   outcome = "sl"
	outcomeUnresolved outcome = ""
)

// Aggregator computes DealStats from persisted deals plus historical candles.
type Aggregator struct {
	deals           ports.DealStorage
	candles         ports.CandleProvider
	candlesInterval string
	now             func() time.Time
}

// NewAggregator builds the aggregator. Interval is the candle interval used
// for outcome inference; empty means 15-minute candles.
func NewAggregator(deals ports.DealStorage, candles ports.CandleProvider, interval string) *Aggregator {
	if interval == "" {
		interval = "15"
	}
	return &Aggregator{deals: deals, candles: candles, candlesInterval: interval, now: time.Now}
}

// Compute aggregates BUY deals created in [start, end). Empty symbol or
// source means "any". Unresolved deals count toward Count but are excluded
// from realized P&L.
func (a *Aggregator) Compute(ctx context.Context, start, end time.Time, symbol, source string) (domain.DealStats, error) {
	deals, err := a.deals.ListByPeriod(ctx, start, end, symbol, source)
	if err != nil {
		return domain.DealStats{}, fmt.Errorf("stats: list deals: %w", err)
	}

	extendedEnd := end.Add(extensionWindow)
	if now := a.now().UTC(); extendedEnd.After(now) {
		extendedEnd = now
	}

	// Prefetch candles once per symbol; the same slice serves both the
	// in-window pass and the extended retry.
	candlesBySymbol, err := a.loadCandles(ctx, deals, extendedEnd)
	if err != nil {
		return domain.DealStats{}, err
	}

	return a.computeStats(deals, candlesBySymbol, end, extendedEnd), nil
}

func (a *Aggregator) computeStats(deals []domain.Deal, candlesBySymbol map[string][]domain.Candle, end, extendedEnd time.Time) domain.DealStats {
	stats := domain.DealStats{Count: len(deals), USDDiffs: []float64{}}
	if len(deals) == 0 {
		return stats
	}

	var prices []float64
	for _, d := range deals {
		qty, _ := d.Qty.Float64()
		stats.TotalInvestedUSD += qty
		prices = append(prices, d.Price)

		how, exitPrice := inferOutcome(d, candlesBySymbol[d.Symbol], end)
		if how == outcomeUnresolved && extendedEnd.After(end) {
			how, exitPrice = inferOutcome(d, candlesBySymbol[d.Symbol], extendedEnd)
		}
		if how == outcomeUnresolved {
			slog.Debug("deal unresolved within window", "deal", d.ID, "symbol", d.Symbol)
			continue
		}

		if how == outcomeTakeProfit {
			stats.TakeProfitTriggered++
		} else {
			stats.StopLossTriggered++
		}

		// Qty is invested quote currency; convert to units at entry.
		pnl := (exitPrice - d.Price) * (qty / d.Price)
		stats.USDDiffs = append(stats.USDDiffs, pnl)
		stats.TotalEarnedUSD += pnl
		if pnl > 0 {
			stats.WinningDeals++
		} else if pnl < 0 {
			stats.LosingDeals++
		}
	}

	if len(prices) > 0 {
		avg, minP, maxP := priceSummary(prices)
		stats.AvgBuyPrice = &avg
		stats.MinBuyPrice = &minP
		stats.MaxBuyPrice = &maxP
	}
	return stats
}

// inferOutcome scans candles strictly after the deal's creation up to
// endLimit. The first candle whose low touches the stop level resolves to
// stop-loss; only then is take-profit considered, so a candle spanning both
// levels conservatively books the loss. The exit price is the level itself,
// not the candle extreme that touched it.
func inferOutcome(deal domain.Deal, candles []domain.Candle, endLimit time.Time) (outcome, float64) {
	take := deal.TakeProfitPrice
	stop := deal.StopLossPrice
	if take == nil && stop == nil {
		return outcomeUnresolved, 0
	}

	startMS := deal.CreatedAt.UnixMilli()
	endMS := endLimit.UnixMilli()
	for _, c := range candles {
		if c.Timestamp <= startMS || c.Timestamp > endMS {
			continue
		}
		low, _ := c.Low.Float64()
		high, _ := c.High.Float64()
		if stop != nil && low <= *stop {
			return outcomeStopLoss, *stop
		}
		if take != nil && high >= *take {
			return outcomeTakeProfit, *take
		}
	}
	return outcomeUnresolved, 0
}

// loadCandles fetches recent candles once per distinct symbol, sorted
// ascending and clipped to endLimit to keep future bars out of inference.
func (a *Aggregator) loadCandles(ctx context.Context, deals []domain.Deal, endLimit time.Time) (map[string][]domain.Candle, error) {
	out := make(map[string][]domain.Candle)
	endMS := endLimit.UnixMilli()
	for _, d := range deals {
		if _, done := out[d.Symbol]; done {
			continue
		}
		candles, err := a.candles.GetCandles(ctx, d.Symbol, a.candlesInterval, candleFetchLimit, nil)
		if err != nil {
			return nil, fmt.Errorf("stats: candles for %s: %w", d.Symbol, err)
		}
		kept := candles[:0]
		for _, c := range candles {
			if c.Timestamp <= endMS {
				kept = append(kept, c)
			}
		}
		sort.Slice(kept, func(i, j int) bool { return kept[i].Timestamp < kept[j].Timestamp })
		out[d.Symbol] = kept
	}
	return out, nil
}

func priceSummary(prices []float64) (avg, minP, maxP float64) {
	minP = prices[0]
	maxP = prices[0]
	var sum float64
	for _, p := range prices {
		sum += p
		if p < minP {
			minP = p
		}
		if p > maxP {
			maxP = p
		}
	}
	return sum / float64(len(prices)), minP, maxP
}
