package trading

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/spotbot/internal/domain"
	"github.com/alejandrodnm/spotbot/internal/ports"
)

// OrderProcessor classifies an open deal against the live ticker price.
type OrderProcessor struct {
	ticker ports.TickerProvider
}

// NewOrderProcessor builds a processor reading prices from the given ticker.
func NewOrderProcessor(ticker ports.TickerProvider) *OrderProcessor {
	return &OrderProcessor{ticker: ticker}
}

// PositionStatus fetches the current price and classifies the deal. Returns
// the status and the price used, so callers can persist it as the sell price.
func (p *OrderProcessor) PositionStatus(ctx context.Context, deal domain.Deal) (domain.PositionStatus, float64, error) {
	price, err := p.ticker.GetTickerPrice(ctx, deal.Symbol)
	if err != nil {
		return "", 0, fmt.Errorf("trading: ticker price for %s: %w", deal.Symbol, err)
	}
	current, _ := price.Float64()
	slog.Debug("checking position", "deal", deal.ID, "symbol", deal.Symbol, "price", current)
	return Classify(deal, current), current, nil
}

// Classify resolves a deal against a price sample. Stop-loss is checked
// before take-profit: when a sample crosses both thresholds the loss is
// recorded, never the gain.
func Classify(deal domain.Deal, price float64) domain.PositionStatus {
	if deal.StopLossPrice != nil && price <= *deal.StopLossPrice {
		return domain.StatusClosedBySL
	}
	if deal.TakeProfitPrice != nil && price >= *deal.TakeProfitPrice {
		return domain.StatusClosedByTP
	}
	return domain.StatusOpen
}
