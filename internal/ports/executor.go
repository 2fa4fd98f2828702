package ports

import (
	"context"

	"github.com/shopspring/decimal"
)

// OrderResponse is the exchange acknowledgement for a filled market order.
type OrderResponse struct {
	OrderID         string
	Symbol          string
	Qty             decimal.Decimal
	Price           decimal.Decimal
	StopLossPrice   *decimal.Decimal
	TakeProfitPrice *decimal.Decimal
}

// OrderExecutor places real orders on the exchange.
type OrderExecutor interface {
	// Buy places a market buy for usdtAmount of the symbol. Optional percent
	// levels attach exchange-side stop-loss/take-profit to the position.
	Buy(ctx context.Context, symbol string, usdtAmount decimal.Decimal, stopLossPercent, takeProfitPercent *float64) (OrderResponse, error)

	// Sell places a market sell for qty units of the symbol.
	Sell(ctx context.Context, symbol string, qty decimal.Decimal) (OrderResponse, error)
}
