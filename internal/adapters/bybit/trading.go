package bybit

// Order endpoints. Buys are sized in quote currency (USDT), converted to base
// units at the current ticker price and truncated to the instrument's lot
// precision. Stop-loss/take-profit ride on the order itself, triggered by
// last price, executed as market orders.

import (
	"context"
	"fmt"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/spotbot/internal/ports"
)

// tickPrecision is the quote price granularity used for SL/TP levels.
const tickPrecision int32 = 2

type instrumentResult struct {
	List []struct {
		Symbol        string `json:"symbol"`
		LotSizeFilter struct {
			BasePrecision string `json:"basePrecision"`
		} `json:"lotSizeFilter"`
	} `json:"list"`
}

type orderResult struct {
	OrderID     string `json:"orderId"`
	OrderLinkID string `json:"orderLinkId"`
}

type orderRequest struct {
	Category    string `json:"category"`
	Symbol      string `json:"symbol"`
	Side        string `json:"side"`
	OrderType   string `json:"orderType"`
	Qty         string `json:"qty"`
	Price       string `json:"price,omitempty"`
	TimeInForce string `json:"timeInForce,omitempty"`
	StopLoss    string `json:"stopLoss,omitempty"`
	SLTriggerBy string `json:"slTriggerBy,omitempty"`
	SLOrderType string `json:"slOrderType,omitempty"`
	TakeProfit  string `json:"takeProfit,omitempty"`
	TPTriggerBy string `json:"tpTriggerBy,omitempty"`
	TPOrderType string `json:"tpOrderType,omitempty"`
}

// lotPrecision returns the base asset decimal places for the symbol, cached
// after the first instruments-info lookup.
func (c *Client) lotPrecision(ctx context.Context, symbol string) (int32, error) {
	c.precisionMu.Lock()
	cached, ok := c.precisionCache[symbol]
	c.precisionMu.Unlock()
	if ok {
		return cached, nil
	}

	params := url.Values{}
	params.Set("category", "spot")
	params.Set("symbol", symbol)

	var result instrumentResult
	if err := c.get(ctx, c.marketLimiter, "/v5/market/instruments-info", params, &result); err != nil {
		return 0, fmt.Errorf("bybit.lotPrecision %s: %w", symbol, err)
	}
	if len(result.List) == 0 {
		return 0, fmt.Errorf("bybit.lotPrecision %s: unknown instrument", symbol)
	}

	step, err := decimal.NewFromString(result.List[0].LotSizeFilter.BasePrecision)
	if err != nil {
		return 0, fmt.Errorf("bybit.lotPrecision %s: parse precision: %w", symbol, err)
	}
	places := -step.Exponent()

	c.precisionMu.Lock()
	c.precisionCache[symbol] = places
	c.precisionMu.Unlock()
	return places, nil
}

// Buy places a limit GTC buy at the current ticker price for usdtAmount of
// the symbol, with optional exchange-side SL/TP levels derived from the
// percent fields.
func (c *Client) Buy(ctx context.Context, symbol string, usdtAmount decimal.Decimal, stopLossPercent, takeProfitPercent *float64) (ports.OrderResponse, error) {
	places, err := c.lotPrecision(ctx, symbol)
	if err != nil {
		return ports.OrderResponse{}, err
	}
	price, err := c.GetTickerPrice(ctx, symbol)
	if err != nil {
		return ports.OrderResponse{}, err
	}

	qty := usdtAmount.Div(price).RoundDown(places)
	req := orderRequest{
		Category:    "spot",
		Symbol:      symbol,
		Side:        "Buy",
		OrderType:   "Limit",
		Qty:         qty.String(),
		Price:       price.String(),
		TimeInForce: "GTC",
	}

	var stopPrice, takePrice *decimal.Decimal
	if stopLossPercent != nil {
		p := levelPrice(price, -*stopLossPercent)
		stopPrice = &p
		req.StopLoss = p.String()
		req.SLTriggerBy = "LastPrice"
		req.SLOrderType = "Market"
	}
	if takeProfitPercent != nil {
		p := levelPrice(price, *takeProfitPercent)
		takePrice = &p
		req.TakeProfit = p.String()
		req.TPTriggerBy = "LastPrice"
		req.TPOrderType = "Market"
	}

	var result orderResult
	if err := c.post(ctx, c.orderLimiter, "/v5/order/create", req, &result); err != nil {
		return ports.OrderResponse{}, fmt.Errorf("bybit.Buy %s: %w", symbol, err)
	}
	return ports.OrderResponse{
		OrderID:         result.OrderID,
		Symbol:          symbol,
		Qty:             qty,
		Price:           price,
		StopLossPrice:   stopPrice,
		TakeProfitPrice: takePrice,
	}, nil
}

// Sell places a market sell for qty units of the symbol. The reported price
// is the ticker at submission time.
func (c *Client) Sell(ctx context.Context, symbol string, qty decimal.Decimal) (ports.OrderResponse, error) {
	price, err := c.GetTickerPrice(ctx, symbol)
	if err != nil {
		return ports.OrderResponse{}, err
	}

	req := orderRequest{
		Category:  "spot",
		Symbol:    symbol,
		Side:      "Sell",
		OrderType: "Market",
		Qty:       qty.String(),
	}
	var result orderResult
	if err := c.post(ctx, c.orderLimiter, "/v5/order/create", req, &result); err != nil {
		return ports.OrderResponse{}, fmt.Errorf("bybit.Sell %s: %w", symbol, err)
	}
	return ports.OrderResponse{
		OrderID: result.OrderID,
		Symbol:  symbol,
		Qty:     qty,
		Price:   price,
	}, nil
}

// levelPrice offsets price by pct percent and truncates to the quote tick.
func levelPrice(price decimal.Decimal, pct float64) decimal.Decimal {
	factor := decimal.NewFromFloat(1 + pct/100)
	return price.Mul(factor).RoundDown(tickPrecision)
}
