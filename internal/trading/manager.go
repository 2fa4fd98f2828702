package trading

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/alejandrodnm/spotbot/internal/domain"
	"github.com/alejandrodnm/spotbot/internal/ports"
)

// PositionManager is the reconciliation loop that turns "possibly closed"
// open deals into terminal state by checking each against the live ticker.
type PositionManager struct {
	deals     ports.DealStorage
	processor *OrderProcessor
	cron      *cron.Cron
}

// NewPositionManager builds the manager on top of the deal storage and a
// ticker-backed order processor.
func NewPositionManager(deals ports.DealStorage, processor *OrderProcessor) *PositionManager {
	return &PositionManager{deals: deals, processor: processor, cron: cron.New()}
}

// Start registers the sweep on the given cron spec (e.g. "@every 1m") and
// starts the scheduler.
func (m *PositionManager) Start(ctx context.Context, spec string) error {
	_, err := m.cron.AddFunc(spec, func() {
		if err := m.Sweep(ctx); err != nil {
			slog.Error("position sweep failed", "err", err)
		}
	})
	if err != nil {
		return err
	}
	m.cron.Start()
	slog.Info("position manager started", "schedule", spec)
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (m *PositionManager) Stop() {
	<-m.cron.Stop().Done()
}

// Sweep evaluates every open deal once. One symbol's failure must not abort
// the sweep for the others: errors are logged per position and the loop
// continues; only listing the open deals can fail the sweep as a whole.
func (m *PositionManager) Sweep(ctx context.Context) error {
	open, err := m.deals.ListOpenPositions(ctx)
	if err != nil {
		return err
	}
	slog.Info("sweeping open positions", "count", len(open))

	for _, deal := range open {
		if err := m.sweepOne(ctx, deal); err != nil {
			slog.Error("position evaluation failed",
				"deal", deal.ID,
				"symbol", deal.Symbol,
				"source", deal.Source,
				"err", err,
			)
		}
	}
	return nil
}

func (m *PositionManager) sweepOne(ctx context.Context, deal domain.Deal) error {
	status, price, err := m.processor.PositionStatus(ctx, deal)
	if err != nil {
		return err
	}

	switch status {
	case domain.StatusClosedByTP:
		slog.Info("position closed by take profit", "deal", deal.ID, "symbol", deal.Symbol, "price", price)
		return m.deals.MarkTakeProfitExecuted(ctx, deal.ID, price)
	case domain.StatusClosedBySL:
		slog.Info("position closed by stop loss", "deal", deal.ID, "symbol", deal.Symbol, "price", price)
		return m.deals.MarkStopLossExecuted(ctx, deal.ID, price)
	default:
		slog.Debug("position still open", "deal", deal.ID, "symbol", deal.Symbol)
		return nil
	}
}
