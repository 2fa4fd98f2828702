package bybit_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/spotbot/internal/adapters/bybit"
)

// newTestServer wires the v5 endpoints a test needs, wrapped in the Bybit
// response envelope.
func newTestServer(t *testing.T, results map[string]any) (*httptest.Server, *[]*http.Request) {
	t.Helper()
	var seen []*http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clone := r.Clone(context.Background())
		seen = append(seen, clone)

		result, ok := results[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		raw, err := json.Marshal(result)
		require.NoError(t, err)
		response := map[string]any{"retCode": 0, "retMsg": "OK", "result": json.RawMessage(raw)}
		require.NoError(t, json.NewEncoder(w).Encode(response))
	}))
	t.Cleanup(server.Close)
	return server, &seen
}

func klinePayload() map[string]any {
	return map[string]any{
		"list": [][]string{
			// Newest first, the Bybit way.
			{"1714557600000", "50100", "50200", "50000", "50150", "12.5", "626875"},
			{"1714554000000", "50000", "50120", "49900", "50100", "10.0", "501000"},
		},
	}
}

func tickerPayload(price string) map[string]any {
	return map[string]any{
		"list": []map[string]string{{"symbol": "BTCUSDT", "lastPrice": price}},
	}
}

func TestClient_GetCandles(t *testing.T) {
	server, _ := newTestServer(t, map[string]any{"/v5/market/kline": klinePayload()})
	client := bybit.NewClient(server.URL, "", "", false)

	start := time.UnixMilli(1714554000000).UTC()
	candles, err := client.GetCandles(context.Background(), "BTCUSDT", "60", 200, &start)
	require.NoError(t, err)
	require.Len(t, candles, 2)

	newest := candles[0]
	assert.EqualValues(t, 1714557600000, newest.Timestamp)
	assert.True(t, newest.Open.Equal(decimal.NewFromInt(50100)))
	assert.True(t, newest.Close.Equal(decimal.NewFromInt(50150)))
	assert.True(t, newest.Volume.Equal(decimal.NewFromFloat(12.5)))
}

func TestClient_GetCandlesBadPayload(t *testing.T) {
	server, _ := newTestServer(t, map[string]any{
		"/v5/market/kline": map[string]any{"list": [][]string{{"not-a-timestamp", "1", "1", "1", "1", "1"}}},
	})
	client := bybit.NewClient(server.URL, "", "", false)

	_, err := client.GetCandles(context.Background(), "BTCUSDT", "60", 10, nil)
	assert.Error(t, err)
}

func TestClient_GetTickerPrice(t *testing.T) {
	server, _ := newTestServer(t, map[string]any{"/v5/market/tickers": tickerPayload("50123.45")})
	client := bybit.NewClient(server.URL, "", "", false)

	price, err := client.GetTickerPrice(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromFloat(50123.45)))
}

func TestClient_RetCodeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"retCode":10001,"retMsg":"params error","result":{}}`))
	}))
	defer server.Close()
	client := bybit.NewClient(server.URL, "", "", false)

	_, err := client.GetTickerPrice(context.Background(), "BTCUSDT")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "10001")
}

func TestClient_Buy(t *testing.T) {
	server, seen := newTestServer(t, map[string]any{
		"/v5/market/instruments-info": map[string]any{
			"list": []map[string]any{{
				"symbol":        "BTCUSDT",
				"lotSizeFilter": map[string]string{"basePrecision": "0.000001"},
			}},
		},
		"/v5/market/tickers": tickerPayload("50000"),
		"/v5/order/create":   map[string]string{"orderId": "ord-123", "orderLinkId": ""},
	})
	client := bybit.NewClient(server.URL, "test-key", "test-secret", false)

	sl, tp := 2.0, 5.0
	resp, err := client.Buy(context.Background(), "BTCUSDT", decimal.NewFromInt(100), &sl, &tp)
	require.NoError(t, err)

	assert.Equal(t, "ord-123", resp.OrderID)
	// 100 USDT at 50000 is 0.002 base units, within 6 decimal places.
	assert.True(t, resp.Qty.Equal(decimal.NewFromFloat(0.002)), "qty %s", resp.Qty)
	assert.True(t, resp.Price.Equal(decimal.NewFromInt(50000)))
	require.NotNil(t, resp.StopLossPrice)
	require.NotNil(t, resp.TakeProfitPrice)
	assert.True(t, resp.StopLossPrice.Equal(decimal.NewFromInt(49000)), "sl %s", resp.StopLossPrice)
	assert.True(t, resp.TakeProfitPrice.Equal(decimal.NewFromInt(52500)), "tp %s", resp.TakeProfitPrice)

	// Order endpoint was hit last, with auth headers attached.
	last := (*seen)[len(*seen)-1]
	assert.Equal(t, "/v5/order/create", last.URL.Path)
	assert.Equal(t, "test-key", last.Header.Get("X-BAPI-API-KEY"))
	assert.NotEmpty(t, last.Header.Get("X-BAPI-SIGN"))
	assert.NotEmpty(t, last.Header.Get("X-BAPI-TIMESTAMP"))
}

func TestClient_Sell(t *testing.T) {
	server, _ := newTestServer(t, map[string]any{
		"/v5/market/tickers": tickerPayload("51000"),
		"/v5/order/create":   map[string]string{"orderId": "ord-456"},
	})
	client := bybit.NewClient(server.URL, "test-key", "test-secret", false)

	resp, err := client.Sell(context.Background(), "BTCUSDT", decimal.NewFromFloat(0.002))
	require.NoError(t, err)
	assert.Equal(t, "ord-456", resp.OrderID)
	assert.True(t, resp.Price.Equal(decimal.NewFromInt(51000)))
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		raw, _ := json.Marshal(tickerPayload("100"))
		response := map[string]any{"retCode": 0, "retMsg": "OK", "result": json.RawMessage(raw)}
		_ = json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()
	client := bybit.NewClient(server.URL, "", "", false)

	price, err := client.GetTickerPrice(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, 2, calls)
}
