package notify_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/spotbot/internal/adapters/notify"
	"github.com/alejandrodnm/spotbot/internal/domain"
)

func sampleRun() domain.BacktestRun {
	start := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	trade := domain.OpenTrade("BTCUSDT", start, decimal.NewFromInt(50000), 2, 5, 100)
	trade.Close(start.Add(6*time.Hour), decimal.NewFromInt(52500))

	return domain.BacktestRun{
		ID:        uuid.New(),
		CreatedAt: end,
		Strategy:  "trend",
		Symbol:    "BTCUSDT",
		Start:     start,
		End:       end,
		Result: domain.BacktestResult{
			Trades:             []domain.Trade{trade},
			TotalReturnPercent: 5,
			WinRate:            100,
			TotalTrades:        1,
			TotalIncome:        decimal.NewFromInt(5),
			TotalVolume:        decimal.NewFromInt(200),
		},
	}
}

func TestConsole_PrintBacktest(t *testing.T) {
	var buf bytes.Buffer
	notify.NewConsoleWriter(&buf, false).PrintBacktest(sampleRun())

	out := buf.String()
	assert.Contains(t, out, "BACKTEST trend / BTCUSDT")
	assert.Contains(t, out, "1 closed")
	assert.Contains(t, out, "100.00%")
	assert.NotContains(t, out, "Opened", "per-trade table only in verbose mode")
}

func TestConsole_PrintBacktestVerbose(t *testing.T) {
	var buf bytes.Buffer
	notify.NewConsoleWriter(&buf, true).PrintBacktest(sampleRun())

	out := buf.String()
	assert.Contains(t, out, "52500")
}

func TestConsole_PrintStats(t *testing.T) {
	avg := 50000.0
	stats := domain.DealStats{
		Count:               2,
		TotalInvestedUSD:    200,
		AvgBuyPrice:         &avg,
		MinBuyPrice:         &avg,
		MaxBuyPrice:         &avg,
		TakeProfitTriggered: 1,
		StopLossTriggered:   1,
		TotalEarnedUSD:      1.5,
		WinningDeals:        1,
		LosingDeals:         1,
		USDDiffs:            []float64{5, -3.5},
	}

	var buf bytes.Buffer
	start := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	notify.NewConsoleWriter(&buf, false).PrintStats(stats, start, start.AddDate(0, 1, 0))

	out := buf.String()
	assert.Contains(t, out, "Deals:          2")
	assert.Contains(t, out, "$1.50")
}

func TestConsole_PrintStatsEmpty(t *testing.T) {
	var buf bytes.Buffer
	start := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	notify.NewConsoleWriter(&buf, false).PrintStats(domain.DealStats{}, start, start.AddDate(0, 1, 0))

	assert.Contains(t, buf.String(), "No deals in period.")
}

func TestConsole_PrintOpenPositions(t *testing.T) {
	tp, sl := 52500.0, 49000.0
	deal := domain.Deal{
		ID:              uuid.New(),
		CreatedAt:       time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC),
		Symbol:          "BTCUSDT",
		Qty:             decimal.NewFromFloat(0.002),
		Price:           50000,
		TakeProfitPrice: &tp,
		StopLossPrice:   &sl,
		Action:          domain.ActionBuy,
		Source:          "trend",
	}

	var buf bytes.Buffer
	console := notify.NewConsoleWriter(&buf, false)
	console.PrintOpenPositions([]domain.Deal{deal})
	require.Contains(t, buf.String(), "BTCUSDT")

	buf.Reset()
	console.PrintOpenPositions(nil)
	assert.Contains(t, buf.String(), "No open positions.")
}
