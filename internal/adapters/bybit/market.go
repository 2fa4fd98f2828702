package bybit

// Market data endpoints: candles and ticker. Bybit returns klines newest
// first as string septuples; callers get domain candles in whatever order the
// exchange sent them and re-sort.

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/spotbot/internal/domain"
)

type klineResult struct {
	List [][]string `json:"list"`
}

type tickerResult struct {
	List []struct {
		Symbol    string `json:"symbol"`
		LastPrice string `json:"lastPrice"`
	} `json:"list"`
}

// GetCandles fetches up to limit spot klines. A nil start means the most
// recent window; otherwise candles from start onward.
func (c *Client) GetCandles(ctx context.Context, symbol, interval string, limit int, start *time.Time) ([]domain.Candle, error) {
	params := url.Values{}
	params.Set("category", "spot")
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))
	if start != nil {
		params.Set("start", strconv.FormatInt(start.UnixMilli(), 10))
	}

	var result klineResult
	if err := c.get(ctx, c.marketLimiter, "/v5/market/kline", params, &result); err != nil {
		return nil, fmt.Errorf("bybit.GetCandles %s/%s: %w", symbol, interval, err)
	}

	candles := make([]domain.Candle, 0, len(result.List))
	for _, raw := range result.List {
		candle, err := parseKline(raw)
		if err != nil {
			return nil, fmt.Errorf("bybit.GetCandles %s/%s: %w", symbol, interval, err)
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

// parseKline maps one [startTime, open, high, low, close, volume, turnover]
// septuple to a domain candle.
func parseKline(raw []string) (domain.Candle, error) {
	if len(raw) < 6 {
		return domain.Candle{}, fmt.Errorf("kline has %d fields, want at least 6", len(raw))
	}
	ts, err := strconv.ParseInt(raw[0], 10, 64)
	if err != nil {
		return domain.Candle{}, fmt.Errorf("parse kline timestamp %q: %w", raw[0], err)
	}

	fields := make([]decimal.Decimal, 5)
	for i, s := range raw[1:6] {
		if fields[i], err = decimal.NewFromString(s); err != nil {
			return domain.Candle{}, fmt.Errorf("parse kline field %q: %w", s, err)
		}
	}
	return domain.Candle{
		Timestamp: ts,
		Open:      fields[0],
		High:      fields[1],
		Low:       fields[2],
		Close:     fields[3],
		Volume:    fields[4],
	}, nil
}

// GetTickerPrice returns the last traded spot price for the symbol.
func (c *Client) GetTickerPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	params := url.Values{}
	params.Set("category", "spot")
	params.Set("symbol", symbol)

	var result tickerResult
	if err := c.get(ctx, c.marketLimiter, "/v5/market/tickers", params, &result); err != nil {
		return decimal.Zero, fmt.Errorf("bybit.GetTickerPrice %s: %w", symbol, err)
	}
	if len(result.List) == 0 {
		return decimal.Zero, fmt.Errorf("bybit.GetTickerPrice %s: empty ticker list", symbol)
	}

	price, err := decimal.NewFromString(result.List[len(result.List)-1].LastPrice)
	if err != nil {
		return decimal.Zero, fmt.Errorf("bybit.GetTickerPrice %s: parse price: %w", symbol, err)
	}
	return price, nil
}
