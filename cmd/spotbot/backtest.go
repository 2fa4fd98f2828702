package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/spotbot/config"
	"github.com/alejandrodnm/spotbot/internal/adapters/bybit"
	"github.com/alejandrodnm/spotbot/internal/adapters/notify"
	"github.com/alejandrodnm/spotbot/internal/adapters/storage"
	"github.com/alejandrodnm/spotbot/internal/backtest"
	"github.com/alejandrodnm/spotbot/internal/domain"
	"github.com/alejandrodnm/spotbot/internal/strategy"
)

// runBacktest replays a strategy over historical candles, prints the report,
// and stores the aggregate result.
func runBacktest(ctx context.Context, cfg *config.Config, store *storage.SQLiteStorage, strategyName, symbol, startArg, endArg string, verbose bool) error {
	strat, err := strategy.New(strategyName)
	if err != nil {
		return err
	}
	start, end, err := parsePeriod(startArg, endArg)
	if err != nil {
		return err
	}

	client := bybit.NewClient(cfg.Exchange.BaseURL, cfg.Exchange.APIKey, cfg.Exchange.APISecret, cfg.Exchange.Testnet)
	engine := backtest.NewEngine(client)

	slog.Info("running backtest",
		"strategy", strategyName,
		"symbol", symbol,
		"start", start,
		"end", end,
	)

	result, err := engine.Run(ctx, strat, symbol, start, end)
	if err != nil {
		return fmt.Errorf("backtest run: %w", err)
	}

	run := domain.BacktestRun{
		ID:        uuid.New(),
		CreatedAt: time.Now().UTC(),
		Strategy:  strategyName,
		Symbol:    symbol,
		Start:     start,
		End:       end,
		Result:    result,
	}

	notify.NewConsole(verbose).PrintBacktest(run)

	if err := store.SaveBacktestResult(ctx, run); err != nil {
		return fmt.Errorf("persist backtest run: %w", err)
	}
	slog.Info("backtest stored", "run", run.ID, "trades", result.TotalTrades)
	return nil
}
