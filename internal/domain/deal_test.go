package domain_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/alejandrodnm/spotbot/internal/domain"
)

func TestDeal_Status(t *testing.T) {
	tests := []struct {
		name        string
		tp, sl, man bool
		want        domain.PositionStatus
	}{
		{"open", false, false, false, domain.StatusOpen},
		{"take profit", true, false, false, domain.StatusClosedByTP},
		{"stop loss", false, true, false, domain.StatusClosedBySL},
		{"manual", false, false, true, domain.StatusClosedManually},
		{"both levels set resolves to stop loss", true, true, false, domain.StatusClosedBySL},
		{"manual and stop loss resolves to stop loss", false, true, true, domain.StatusClosedBySL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := domain.Deal{
				Action:               domain.ActionBuy,
				IsTakeProfitExecuted: tt.tp,
				IsStopLossExecuted:   tt.sl,
				IsManuallyClosed:     tt.man,
			}
			assert.Equal(t, tt.want, d.Status())
			assert.Equal(t, tt.want == domain.StatusOpen, d.IsOpen())
		})
	}
}

func TestSignal_Validate(t *testing.T) {
	valid := domain.Signal{
		Symbol: "BTCUSDT",
		Amount: decimal.NewFromInt(100),
		Action: domain.ActionBuy,
		Source: "trend",
	}
	assert.NoError(t, valid.Validate())

	noSymbol := valid
	noSymbol.Symbol = ""
	assert.Error(t, noSymbol.Validate())

	noSource := valid
	noSource.Source = ""
	assert.Error(t, noSource.Validate())

	zeroAmount := valid
	zeroAmount.Amount = decimal.Zero
	assert.Error(t, zeroAmount.Validate())

	// SELL closes the whole position, no amount required.
	sell := domain.Signal{Symbol: "BTCUSDT", Action: domain.ActionSell, Source: "trend"}
	assert.NoError(t, sell.Validate())
}
