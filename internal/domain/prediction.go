package domain

import (
	"errors"
	"fmt"
)

// Action is the decision a strategy makes for a symbol.
type Action int

const (
	ActionBuy Action = iota + 1
	ActionSell
	ActionNothing
)

var actionNames = map[Action]string{
	ActionBuy:     "BUY",
	ActionSell:    "SELL",
	ActionNothing: "NOTHING",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// ParseAction maps the wire representation back to an Action.
func ParseAction(s string) (Action, error) {
	for a, name := range actionNames {
		if name == s {
			return a, nil
		}
	}
	return 0, fmt.Errorf("domain.ParseAction: unknown action %q", s)
}

// MarshalText implements encoding.TextMarshaler so Action round-trips
// through JSON payloads as its name.
func (a Action) MarshalText() ([]byte, error) {
	name, ok := actionNames[a]
	if !ok {
		return nil, fmt.Errorf("domain.Action: cannot marshal %d", int(a))
	}
	return []byte(name), nil
}

func (a *Action) UnmarshalText(b []byte) error {
	parsed, err := ParseAction(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Percent bounds for stop-loss and take-profit on actionable predictions.
const (
	minPercent = 0.1
	maxPercent = 50.0
)

// ErrInvalidPrediction is returned when percent fields do not match the action.
var ErrInvalidPrediction = errors.New("invalid prediction")

// Prediction is a strategy decision for a symbol. For BUY and SELL both
// percent fields must be set and within (0.1, 50.0]; for NOTHING both must be
// absent. Immutable after construction.
type Prediction struct {
	Symbol            string
	Action            Action
	StopLossPercent   *float64
	TakeProfitPercent *float64
}

// NewPrediction validates and builds a Prediction.
func NewPrediction(symbol string, action Action, stopLoss, takeProfit *float64) (Prediction, error) {
	if symbol == "" {
		return Prediction{}, fmt.Errorf("domain.NewPrediction: %w: missing symbol", ErrInvalidPrediction)
	}
	switch action {
	case ActionBuy, ActionSell:
		if stopLoss == nil || takeProfit == nil {
			return Prediction{}, fmt.Errorf("domain.NewPrediction: %w: %s requires stop-loss and take-profit percents",
				ErrInvalidPrediction, action)
		}
		for _, pct := range []float64{*stopLoss, *takeProfit} {
			if pct <= minPercent || pct > maxPercent {
				return Prediction{}, fmt.Errorf("domain.NewPrediction: %w: percent %.4f out of (%.1f, %.1f]",
					ErrInvalidPrediction, pct, minPercent, maxPercent)
			}
		}
	case ActionNothing:
		if stopLoss != nil || takeProfit != nil {
			return Prediction{}, fmt.Errorf("domain.NewPrediction: %w: NOTHING forbids percent fields", ErrInvalidPrediction)
		}
	default:
		return Prediction{}, fmt.Errorf("domain.NewPrediction: %w: unknown action %d", ErrInvalidPrediction, int(action))
	}
	return Prediction{Symbol: symbol, Action: action, StopLossPercent: stopLoss, TakeProfitPercent: takeProfit}, nil
}

// Nothing is a shortcut for a validated no-op prediction.
func Nothing(symbol string) Prediction {
	return Prediction{Symbol: symbol, Action: ActionNothing}
}
