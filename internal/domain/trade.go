package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is a simulated position during a backtest run. It is opened at most
// once, closed at most once, and never reopened.
type Trade struct {
	Symbol          string
	OpenTime        time.Time
	OpenPrice       decimal.Decimal
	TPPrice         decimal.Decimal
	SLPrice         decimal.Decimal
	PositionSizeUSD float64
	CloseTime       *time.Time
	ClosePrice      *decimal.Decimal
}

// OpenTrade builds a trade opened at the given candle close, with take-profit
// and stop-loss levels derived from the prediction percents.
func OpenTrade(symbol string, openTime time.Time, openPrice decimal.Decimal, slPercent, tpPercent, sizeUSD float64) Trade {
	return Trade{
		Symbol:          symbol,
		OpenTime:        openTime,
		OpenPrice:       openPrice,
		TPPrice:         openPrice.Mul(decimal.NewFromFloat(1 + tpPercent/100)),
		SLPrice:         openPrice.Mul(decimal.NewFromFloat(1 - slPercent/100)),
		PositionSizeUSD: sizeUSD,
	}
}

// Close records the close time and price. Calling it on a closed trade just
// rewrites the same fields.
func (t *Trade) Close(at time.Time, price decimal.Decimal) {
	t.CloseTime = &at
	t.ClosePrice = &price
}

// IsClosed reports whether both close fields are set.
func (t Trade) IsClosed() bool {
	return t.CloseTime != nil && t.ClosePrice != nil
}

// PnLPercent is (close-open)/open*100, or 0 for an open trade.
func (t Trade) PnLPercent() float64 {
	if !t.IsClosed() {
		return 0
	}
	pct, _ := t.ClosePrice.Sub(t.OpenPrice).Div(t.OpenPrice).Mul(decimal.NewFromInt(100)).Float64()
	return pct
}

// Income is the realized USD gain: (close-open) * (size/open). Zero while open.
func (t Trade) Income() decimal.Decimal {
	if !t.IsClosed() {
		return decimal.Zero
	}
	units := decimal.NewFromFloat(t.PositionSizeUSD).Div(t.OpenPrice)
	return t.ClosePrice.Sub(t.OpenPrice).Mul(units)
}

// TradedVolume is the round-trip notional: position size counted on both legs.
func (t Trade) TradedVolume() decimal.Decimal {
	return decimal.NewFromFloat(t.PositionSizeUSD * 2)
}

// BacktestResult aggregates a backtest run. All fields derive from the closed
// subset of Trades; the full trades list (including a possibly unresolved
// last trade) is attached as-is.
type BacktestResult struct {
	Trades             []Trade
	TotalReturnPercent float64
	WinRate            float64
	TotalTrades        int
	TotalIncome        decimal.Decimal
	TotalVolume        decimal.Decimal
}
