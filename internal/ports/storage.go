package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/spotbot/internal/domain"
)

// DealStorage persists the live position lifecycle. At most one open BUY deal
// may exist per (symbol, source); implementations must enforce this at the
// storage level, not just via the guard queries.
type DealStorage interface {
	// HasOpenBuy reports whether an open BUY deal exists for the key.
	HasOpenBuy(ctx context.Context, symbol, source string) (bool, error)

	// GetOpenPosition returns the single open deal for the key, or
	// domain.ErrNoOpenPosition.
	GetOpenPosition(ctx context.Context, symbol, source string) (domain.Deal, error)

	// CreateFromBuy inserts a new open deal from a signal and the exchange
	// buy acknowledgement. Returns domain.ErrPositionExists if an open deal
	// already holds the (symbol, source) slot.
	CreateFromBuy(ctx context.Context, signal domain.Signal, resp OrderResponse) (domain.Deal, error)

	// ClosePosition marks the open deal for the key as manually closed and
	// records the sell price. Returns domain.ErrNoOpenPosition if none exists.
	ClosePosition(ctx context.Context, signal domain.Signal, resp OrderResponse) (domain.Deal, error)

	// MarkTakeProfitExecuted / MarkStopLossExecuted flip the respective flag
	// and record the sell price. Calling twice rewrites the same values.
	MarkTakeProfitExecuted(ctx context.Context, dealID uuid.UUID, price float64) error
	MarkStopLossExecuted(ctx context.Context, dealID uuid.UUID, price float64) error

	// HasRecentlyClosed reports whether any deal for the key reached a
	// terminal state within the trailing window.
	HasRecentlyClosed(ctx context.Context, symbol, source string, window time.Duration) (bool, error)

	// ListOpenPositions returns every open BUY deal across all keys.
	ListOpenPositions(ctx context.Context) ([]domain.Deal, error)

	// ListByPeriod returns BUY deals created in [start, end). Empty symbol or
	// source means "any".
	ListByPeriod(ctx context.Context, start, end time.Time, symbol, source string) ([]domain.Deal, error)

	// Close releases the underlying database handle.
	Close() error
}

// BacktestStorage persists completed backtest runs for later comparison.
type BacktestStorage interface {
	SaveBacktestResult(ctx context.Context, run domain.BacktestRun) error
	ListBacktestRuns(ctx context.Context, symbol string, limit int) ([]domain.BacktestRun, error)
}
