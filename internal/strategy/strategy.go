package strategy

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/alejandrodnm/spotbot/internal/domain"
)

// Config describes how a strategy wants to be driven: signal cadence, the
// candle interval it analyzes, minimum window length, and sizing.
type Config struct {
	Name                  string
	SignalIntervalMinutes int
	CandleInterval        string // exchange interval token, minutes ("5", "15", "30")
	LookbackPeriods       int
	PositionSizeUSD       float64
	Description           string
}

// SignalInterval returns the cadence as a duration.
func (c Config) SignalInterval() time.Duration {
	return time.Duration(c.SignalIntervalMinutes) * time.Minute
}

// CandleDuration returns the candle interval as a duration.
func (c Config) CandleDuration() time.Duration {
	var minutes int
	fmt.Sscanf(c.CandleInterval, "%d", &minutes)
	return time.Duration(minutes) * time.Minute
}

// Strategy turns a window of candles into a prediction. Implementations must
// be pure with respect to the window: same candles, same answer.
type Strategy interface {
	// Config returns the parameters the caller needs to drive the strategy.
	Config() Config

	// Predict analyzes the candle window (sorted ascending, at least
	// Config().LookbackPeriods entries) and decides an action for the symbol.
	Predict(ctx context.Context, symbol string, candles []domain.Candle) (domain.Prediction, error)
}

var registry = map[string]func() Strategy{
	"trend":    func() Strategy { return NewTrend() },
	"momentum": func() Strategy { return NewMomentum() },
}

// New builds the named strategy variant.
func New(name string) (Strategy, error) {
	build, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("strategy.New: unknown strategy %q (have %v)", name, Names())
	}
	return build(), nil
}

// Names lists the registered strategy names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
