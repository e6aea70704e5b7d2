package model

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/recmatch/recmatch/internal/common"
)

// Margins holds the date and amount tolerances used during candidate search,
// plus the behavioral switches supplied by the caller.
type Margins struct {
	// DateDays is the maximum calendar-day distance between the receipt
	// date and a candidate's posting date.
	DateDays int
	// AmountFraction bounds the net-amount difference relative to the
	// target amount.
	AmountFraction decimal.Decimal
	// AutoSwap enables the automatic day/month swap attempt on zero
	// candidates.
	AutoSwap bool
	// AllowSharedBankLinks permits multiple receipts to link the same
	// bank transaction. When false the uniqueness check is enforced.
	AllowSharedBankLinks bool
}

// DefaultMargins returns the tolerances used when the caller supplies none.
func DefaultMargins() Margins {
	return Margins{
		DateDays:       2,
		AmountFraction: decimal.NewFromFloat(0.05),
		AutoSwap:       true,
	}
}

// Validate rejects negative tolerances.
func (m Margins) Validate() error {
	if m.DateDays < 0 {
		return fmt.Errorf("%w: date margin %d is negative", common.ErrValidation, m.DateDays)
	}
	if m.AmountFraction.IsNegative() {
		return fmt.Errorf("%w: amount margin %s is negative", common.ErrValidation, m.AmountFraction)
	}
	return nil
}
