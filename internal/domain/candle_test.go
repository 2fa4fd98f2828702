package domain_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/spotbot/internal/domain"
)

func candleAt(ts int64, close float64) domain.Candle {
	c := decimal.NewFromFloat(close)
	return domain.Candle{Open: c, High: c, Low: c, Close: c, Timestamp: ts}
}

func TestSeries_DeduplicatesByTimestamp(t *testing.T) {
	s := domain.NewSeries([]domain.Candle{
		candleAt(1000, 10),
		candleAt(2000, 20),
		candleAt(1000, 11), // same bar re-fetched, last write wins
	})

	require.Equal(t, 2, s.Len())
	sorted := s.Sorted()
	assert.True(t, sorted[0].Close.Equal(decimal.NewFromInt(11)))
	assert.True(t, sorted[1].Close.Equal(decimal.NewFromInt(20)))
}

func TestSeries_WindowBefore(t *testing.T) {
	s := domain.NewSeries([]domain.Candle{
		candleAt(1000, 1),
		candleAt(2000, 2),
		candleAt(3000, 3),
		candleAt(4000, 4),
	})

	window := s.WindowBefore(3000, 2)
	require.Len(t, window, 2)
	assert.EqualValues(t, 2000, window[0].Timestamp)
	assert.EqualValues(t, 3000, window[1].Timestamp)

	// Short series returns what it has.
	window = s.WindowBefore(1500, 5)
	require.Len(t, window, 1)
	assert.EqualValues(t, 1000, window[0].Timestamp)

	assert.Empty(t, s.WindowBefore(500, 3))
}
