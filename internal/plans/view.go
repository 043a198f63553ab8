package plans

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var oneHundred = decimal.NewFromInt(100)

// RateView is the resolved rate for one (user, level, instant) lookup. It
// carries everything the calculator needs without exposing storage rows.
type RateView struct {
	PlanID           uuid.UUID
	Level            int
	Percentage       decimal.Decimal
	MinTradingVolume *decimal.Decimal
	MaxCommission    *decimal.Decimal
}

// Commission applies the rate to an event amount: percentage of amount,
// capped by MaxCommission when set, rounded to eight decimal places. The
// result never exceeds the amount itself because percentages are bounded at
// one hundred.
func (v *RateView) Commission(amount decimal.Decimal) decimal.Decimal {
	commission := amount.Mul(v.Percentage).Div(oneHundred)
	if v.MaxCommission != nil && commission.GreaterThan(*v.MaxCommission) {
		commission = *v.MaxCommission
	}
	return commission.Round(8)
}

// VolumeGateSatisfied reports whether the caller-supplied trailing volume
// clears the rate's minimum. Rates without a gate always pass; a gated rate
// with no supplied volume never does.
func (v *RateView) VolumeGateSatisfied(contextVolume *decimal.Decimal) bool {
	if v.MinTradingVolume == nil {
		return true
	}
	if contextVolume == nil {
		return false
	}
	return contextVolume.GreaterThanOrEqual(*v.MinTradingVolume)
}
