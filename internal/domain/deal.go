package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Domain errors surfaced by the deal storage and trading service.
var (
	// ErrNoOpenPosition is returned when a close is requested for a
	// (symbol, source) key with no open deal.
	ErrNoOpenPosition = errors.New("no open position")

	// ErrPositionExists is returned when a second open deal would be created
	// for the same (symbol, source) key.
	ErrPositionExists = errors.New("open position already exists")
)

// PositionStatus is the lifecycle state of a deal, derived from its flags.
// OPEN is the only non-terminal state.
type PositionStatus string

const (
	StatusOpen           PositionStatus = "OPEN"
	StatusClosedByTP     PositionStatus = "CLOSED_BY_TP"
	StatusClosedBySL     PositionStatus = "CLOSED_BY_SL"
	StatusClosedManually PositionStatus = "CLOSED_MANUALLY"
)

// Deal is a persisted live position: one executed BUY order and its eventual
// close. Rows are never deleted; closing flips exactly one of the three flags.
type Deal struct {
	ID                   uuid.UUID
	CreatedAt            time.Time
	ExternalID           string
	Symbol               string
	Qty                  decimal.Decimal
	Price                float64
	TakeProfitPrice      *float64
	StopLossPrice        *float64
	IsTakeProfitExecuted bool
	IsStopLossExecuted   bool
	IsManuallyClosed     bool
	SellPrice            *float64
	Action               Action
	Source               string
	ClosedAt             *time.Time
}

// Status derives the lifecycle state from the flag triple. Stop-loss is
// checked first so a row with two flags set (which the schema does not
// prevent) still classifies deterministically.
func (d Deal) Status() PositionStatus {
	switch {
	case d.IsStopLossExecuted:
		return StatusClosedBySL
	case d.IsTakeProfitExecuted:
		return StatusClosedByTP
	case d.IsManuallyClosed:
		return StatusClosedManually
	default:
		return StatusOpen
	}
}

// IsOpen reports whether the deal is an open BUY position.
func (d Deal) IsOpen() bool {
	return d.Action == ActionBuy && d.Status() == StatusOpen
}

// Signal is a trading instruction produced by a strategy producer and consumed
// from the queue. Source tags the producer and scopes position exclusivity.
type Signal struct {
	Symbol     string          `json:"symbol"`
	Amount     decimal.Decimal `json:"amount"`
	TakeProfit *float64        `json:"take_profit,omitempty"`
	StopLoss   *float64        `json:"stop_loss,omitempty"`
	Action     Action          `json:"action"`
	Source     string          `json:"source"`
}

// Validate checks the fields every signal needs before it reaches the
// trading service.
func (s Signal) Validate() error {
	if s.Symbol == "" {
		return errors.New("signal: missing symbol")
	}
	if s.Source == "" {
		return errors.New("signal: missing source")
	}
	if s.Action == ActionBuy && s.Amount.LessThanOrEqual(decimal.Zero) {
		return errors.New("signal: buy amount must be positive")
	}
	return nil
}

// DealStats aggregates a deal population over a time window. Purely derived,
// recomputed wholesale on every call.
type DealStats struct {
	Count               int
	TotalInvestedUSD    float64
	AvgBuyPrice         *float64
	MinBuyPrice         *float64
	MaxBuyPrice         *float64
	TakeProfitTriggered int
	StopLossTriggered   int
	TotalEarnedUSD      float64
	WinningDeals        int
	LosingDeals         int
	USDDiffs            []float64
}
