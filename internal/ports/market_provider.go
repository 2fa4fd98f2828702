package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/spotbot/internal/domain"
)

// CandleProvider supplies OHLCV bars for a symbol/interval. The returned
// slice may be unordered or contain overlapping pages; callers re-sort and
// deduplicate by timestamp.
type CandleProvider interface {
	// GetCandles fetches up to limit candles for the symbol and interval.
	// A nil start means "most recent"; otherwise candles from start onward.
	GetCandles(ctx context.Context, symbol, interval string, limit int, start *time.Time) ([]domain.Candle, error)
}

// TickerProvider supplies the current market price for a symbol.
type TickerProvider interface {
	GetTickerPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}
