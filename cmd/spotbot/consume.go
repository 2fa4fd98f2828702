package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/spotbot/config"
	"github.com/alejandrodnm/spotbot/internal/adapters/bybit"
	"github.com/alejandrodnm/spotbot/internal/adapters/notify"
	"github.com/alejandrodnm/spotbot/internal/adapters/queue"
	"github.com/alejandrodnm/spotbot/internal/adapters/storage"
	"github.com/alejandrodnm/spotbot/internal/trading"
)

// runConsume is the live mode: consume trading signals from the queue and run
// the periodic open-position sweep until interrupted.
func runConsume(ctx context.Context, cfg *config.Config, store *storage.SQLiteStorage) error {
	client := bybit.NewClient(cfg.Exchange.BaseURL, cfg.Exchange.APIKey, cfg.Exchange.APISecret, cfg.Exchange.Testnet)

	service := trading.NewService(client, store, cfg.Cooldown())
	manager := trading.NewPositionManager(store, trading.NewOrderProcessor(client))

	if err := manager.Start(ctx, cfg.Trading.SweepCron); err != nil {
		return fmt.Errorf("start position sweep: %w", err)
	}
	defer manager.Stop()

	consumer, err := queue.NewConsumer(cfg.Queue.URL, service)
	if err != nil {
		return err
	}
	defer consumer.Close()

	slog.Info("live mode running",
		"queue_url", cfg.Queue.URL,
		"sweep", cfg.Trading.SweepCron,
		"cooldown", cfg.Cooldown(),
	)

	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// runSweep checks every open position once against the current ticker price
// and prints what remains open.
func runSweep(ctx context.Context, cfg *config.Config, store *storage.SQLiteStorage) error {
	client := bybit.NewClient(cfg.Exchange.BaseURL, cfg.Exchange.APIKey, cfg.Exchange.APISecret, cfg.Exchange.Testnet)
	manager := trading.NewPositionManager(store, trading.NewOrderProcessor(client))

	if err := manager.Sweep(ctx); err != nil {
		return fmt.Errorf("sweep: %w", err)
	}

	open, err := store.ListOpenPositions(ctx)
	if err != nil {
		return fmt.Errorf("list open positions: %w", err)
	}
	notify.NewConsole(false).PrintOpenPositions(open)
	return nil
}
