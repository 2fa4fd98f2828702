package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Candle is one OHLCV bar. Timestamp is the bar open time in Unix milliseconds
// and identifies the candle within its series.
type Candle struct {
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
	Timestamp int64
}

// Time returns the bar open time as time.Time in UTC.
func (c Candle) Time() time.Time {
	return time.UnixMilli(c.Timestamp).UTC()
}

// Series is a candle time series keyed by timestamp. Duplicate timestamps
// collapse to a single candle, last write wins.
type Series struct {
	byTime map[int64]Candle
}

// NewSeries builds a Series from the given candles, in any order, possibly
// with overlapping pages from the candle store.
func NewSeries(candles []Candle) *Series {
	s := &Series{byTime: make(map[int64]Candle, len(candles))}
	s.Add(candles...)
	return s
}

// Add ingests candles into the series, overwriting existing timestamps.
func (s *Series) Add(candles ...Candle) {
	for _, c := range candles {
		s.byTime[c.Timestamp] = c
	}
}

// Len returns the number of unique candles in the series.
func (s *Series) Len() int {
	return len(s.byTime)
}

// Sorted returns all candles sorted ascending by timestamp.
func (s *Series) Sorted() []Candle {
	out := make([]Candle, 0, len(s.byTime))
	for _, c := range s.byTime {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}

// WindowBefore returns the last n candles with timestamp <= cutoff (ms),
// sorted ascending. Returns fewer than n when the series is short.
func (s *Series) WindowBefore(cutoff int64, n int) []Candle {
	visible := make([]Candle, 0, len(s.byTime))
	for ts, c := range s.byTime {
		if ts <= cutoff {
			visible = append(visible, c)
		}
	}
	sort.Slice(visible, func(i, j int) bool { return visible[i].Timestamp < visible[j].Timestamp })
	if len(visible) > n {
		visible = visible[len(visible)-n:]
	}
	return visible
}
