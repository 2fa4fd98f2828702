package bybit

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://api.bybit.com"
	testnetBaseURL = "https://api-testnet.bybit.com"

	// Bybit allows 600 req/5s per endpoint group for market data; stay well
	// under it.
	marketRatePerSec = 40
	orderRatePerSec  = 5

	recvWindow = "5000"

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// Client is the Bybit v5 REST client with rate limiting and retries. Market
// data endpoints work without credentials; order endpoints need key+secret.
type Client struct {
	http          *http.Client
	baseURL       string
	apiKey        string
	apiSecret     string
	marketLimiter *rate.Limiter
	orderLimiter  *rate.Limiter

	precisionMu    sync.Mutex
	precisionCache map[string]int32
}

// NewClient builds a client for the given environment. An empty baseURL
// selects production; testnet selects the Bybit demo environment.
func NewClient(baseURL, apiKey, apiSecret string, testnet bool) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
		if testnet {
			baseURL = testnetBaseURL
		}
	}
	return &Client{
		http:           &http.Client{Timeout: 10 * time.Second},
		baseURL:        baseURL,
		apiKey:         apiKey,
		apiSecret:      apiSecret,
		marketLimiter:  rate.NewLimiter(marketRatePerSec, 10),
		orderLimiter:   rate.NewLimiter(orderRatePerSec, 1),
		precisionCache: make(map[string]int32),
	}
}

// envelope is the common Bybit v5 response wrapper.
type envelope struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
}

// get performs a signed GET against a v5 endpoint with query params.
func (c *Client) get(ctx context.Context, limiter *rate.Limiter, endpoint string, params url.Values, out any) error {
	query := params.Encode()
	fullURL := c.baseURL + endpoint
	if query != "" {
		fullURL += "?" + query
	}
	return c.doWithRetry(ctx, limiter, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, err
		}
		c.sign(req, query)
		return c.http.Do(req)
	}, out)
}

// post performs a signed JSON POST against a v5 endpoint.
func (c *Client) post(ctx context.Context, limiter *rate.Limiter, endpoint string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}
	return c.doWithRetry(ctx, limiter, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		c.sign(req, string(payload))
		return c.http.Do(req)
	}, out)
}

// sign attaches the X-BAPI auth headers. payload is the query string for GET
// or the JSON body for POST.
func (c *Client) sign(req *http.Request, payload string) {
	if c.apiKey == "" {
		return
	}
	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(timestamp + c.apiKey + recvWindow + payload))

	req.Header.Set("X-BAPI-API-KEY", c.apiKey)
	req.Header.Set("X-BAPI-TIMESTAMP", timestamp)
	req.Header.Set("X-BAPI-RECV-WINDOW", recvWindow)
	req.Header.Set("X-BAPI-SIGN", hex.EncodeToString(mac.Sum(nil)))
}

// doWithRetry runs the request with exponential backoff and jitter, decoding
// the Bybit envelope on success.
func (c *Client) doWithRetry(ctx context.Context, limiter *rate.Limiter, fn func() (*http.Response, error), out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		resp, err := fn()
		if err != nil {
			if attempt == maxRetries {
				return fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("status %d after %d retries", resp.StatusCode, maxRetries)
			}
			slog.Warn("bybit request retrying", "status", resp.StatusCode, "attempt", attempt+1)
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("client error %d: %s", resp.StatusCode, string(body))
		}

		var env envelope
		err = json.NewDecoder(resp.Body).Decode(&env)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		if env.RetCode != 0 {
			return fmt.Errorf("bybit error %d: %s", env.RetCode, env.RetMsg)
		}
		if out != nil {
			if err := json.Unmarshal(env.Result, out); err != nil {
				return fmt.Errorf("decode result: %w", err)
			}
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

// sleep waits with exponential backoff and jitter, respecting the context.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	wait += time.Duration(rand.Int63n(int64(baseRetryWait)))
	select {
	case <-ctx.Done():
	case <-time.After(wait):
	}
}
