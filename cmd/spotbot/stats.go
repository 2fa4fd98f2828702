package main

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/spotbot/config"
	"github.com/alejandrodnm/spotbot/internal/adapters/bybit"
	"github.com/alejandrodnm/spotbot/internal/adapters/notify"
	"github.com/alejandrodnm/spotbot/internal/adapters/storage"
	"github.com/alejandrodnm/spotbot/internal/stats"
)

// backtestHistoryLimit caps the stored-run listing in stats mode.
const backtestHistoryLimit = 20

// runStats aggregates deal statistics for the period and prints them together
// with the stored backtest history for the symbol.
func runStats(ctx context.Context, cfg *config.Config, store *storage.SQLiteStorage, symbol, source, startArg, endArg string, verbose bool) error {
	start, end, err := parsePeriod(startArg, endArg)
	if err != nil {
		return err
	}

	client := bybit.NewClient(cfg.Exchange.BaseURL, cfg.Exchange.APIKey, cfg.Exchange.APISecret, cfg.Exchange.Testnet)
	aggregator := stats.NewAggregator(store, client, cfg.Stats.CandleInterval)

	dealStats, err := aggregator.Compute(ctx, start, end, symbol, source)
	if err != nil {
		return fmt.Errorf("compute stats: %w", err)
	}

	console := notify.NewConsole(verbose)
	console.PrintStats(dealStats, start, end)

	runs, err := store.ListBacktestRuns(ctx, symbol, backtestHistoryLimit)
	if err != nil {
		return fmt.Errorf("list backtest runs: %w", err)
	}
	console.PrintBacktestRuns(runs)
	return nil
}
