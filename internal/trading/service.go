package trading

// Live signal handling. One signal is processed at a time (the queue consumer
// runs with prefetch=1), and the storage layer additionally enforces the
// single-open-position invariant with a partial unique index, so two racing
// BUY signals cannot both create an open deal.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/spotbot/internal/domain"
	"github.com/alejandrodnm/spotbot/internal/ports"
)

// DefaultCooldown is the minimum time after a position closes before a new
// one may open for the same (symbol, source).
const DefaultCooldown = 60 * time.Minute

// Service turns trading signals into exchange orders and deal rows.
type Service struct {
	executor ports.OrderExecutor
	deals    ports.DealStorage
	cooldown time.Duration
}

// NewService builds the trading service. A zero cooldown falls back to
// DefaultCooldown.
func NewService(executor ports.OrderExecutor, deals ports.DealStorage, cooldown time.Duration) *Service {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Service{executor: executor, deals: deals, cooldown: cooldown}
}

// ProcessSignal routes a validated signal. BUY and SELL return the exchange
// acknowledgement; guarded no-ops return a nil response and no error.
func (s *Service) ProcessSignal(ctx context.Context, signal domain.Signal) (*ports.OrderResponse, error) {
	if err := signal.Validate(); err != nil {
		return nil, fmt.Errorf("trading: %w", err)
	}

	switch signal.Action {
	case domain.ActionBuy:
		return s.processBuy(ctx, signal)
	case domain.ActionSell:
		return s.processSell(ctx, signal)
	default:
		slog.Info("skipping signal", "symbol", signal.Symbol, "source", signal.Source, "action", signal.Action)
		return nil, nil
	}
}

func (s *Service) processBuy(ctx context.Context, signal domain.Signal) (*ports.OrderResponse, error) {
	canOpen, err := s.canOpenNew(ctx, signal.Symbol, signal.Source)
	if err != nil {
		return nil, err
	}
	if !canOpen {
		return nil, nil
	}

	resp, err := s.executor.Buy(ctx, signal.Symbol, signal.Amount, signal.StopLoss, signal.TakeProfit)
	if err != nil {
		return nil, fmt.Errorf("trading: buy %s: %w", signal.Symbol, err)
	}
	slog.Info("buy order placed",
		"symbol", signal.Symbol,
		"source", signal.Source,
		"order_id", resp.OrderID,
		"qty", resp.Qty,
		"price", resp.Price,
	)

	deal, err := s.deals.CreateFromBuy(ctx, signal, resp)
	if err != nil {
		// The exchange order is live but untracked until the next sweep.
		// There is no compensation path; shout so the operator can reconcile.
		slog.Error("order placed but deal not persisted, position is untracked",
			"symbol", signal.Symbol,
			"source", signal.Source,
			"order_id", resp.OrderID,
			"err", err,
		)
		return nil, fmt.Errorf("trading: persist buy %s: %w", signal.Symbol, err)
	}
	slog.Info("deal opened", "deal", deal.ID, "symbol", deal.Symbol, "source", deal.Source)
	return &resp, nil
}

func (s *Service) processSell(ctx context.Context, signal domain.Signal) (*ports.OrderResponse, error) {
	open, err := s.deals.GetOpenPosition(ctx, signal.Symbol, signal.Source)
	if err != nil {
		if errors.Is(err, domain.ErrNoOpenPosition) {
			slog.Info("skipping sell, no open position", "symbol", signal.Symbol, "source", signal.Source)
			return nil, nil
		}
		return nil, fmt.Errorf("trading: load open position %s: %w", signal.Symbol, err)
	}

	resp, err := s.executor.Sell(ctx, signal.Symbol, open.Qty)
	if err != nil {
		return nil, fmt.Errorf("trading: sell %s: %w", signal.Symbol, err)
	}
	slog.Info("sell order placed",
		"symbol", signal.Symbol,
		"source", signal.Source,
		"order_id", resp.OrderID,
		"qty", resp.Qty,
		"price", resp.Price,
	)

	deal, err := s.deals.ClosePosition(ctx, signal, resp)
	if err != nil {
		slog.Error("sell executed but deal not closed in storage",
			"symbol", signal.Symbol,
			"source", signal.Source,
			"order_id", resp.OrderID,
			"err", err,
		)
		return nil, fmt.Errorf("trading: close position %s: %w", signal.Symbol, err)
	}
	slog.Info("deal closed manually", "deal", deal.ID, "symbol", deal.Symbol, "source", deal.Source)
	return &resp, nil
}

// canOpenNew is the entry guard: no open position for the key and no position
// closed within the cooldown window.
func (s *Service) canOpenNew(ctx context.Context, symbol, source string) (bool, error) {
	hasOpen, err := s.deals.HasOpenBuy(ctx, symbol, source)
	if err != nil {
		return false, fmt.Errorf("trading: open position guard %s: %w", symbol, err)
	}
	if hasOpen {
		slog.Info("skipping buy, open position exists", "symbol", symbol, "source", source)
		return false, nil
	}

	recentlyClosed, err := s.deals.HasRecentlyClosed(ctx, symbol, source, s.cooldown)
	if err != nil {
		return false, fmt.Errorf("trading: cooldown guard %s: %w", symbol, err)
	}
	if recentlyClosed {
		slog.Info("skipping buy, position closed within cooldown",
			"symbol", symbol,
			"source", source,
			"cooldown", s.cooldown,
		)
		return false, nil
	}
	return true, nil
}
