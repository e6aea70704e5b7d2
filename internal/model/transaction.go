package model

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/recmatch/recmatch/internal/common"
)

// Transaction is the capability shared by the two transaction kinds: a
// bank-feed row and a receipt-side payment leg. All margin and hash logic
// operates through this interface only.
type Transaction interface {
	Date() time.Time
	Currency() string
	AmountOut() decimal.Decimal
	ChangeReturned() decimal.Decimal
	Hash() string
}

// Net returns the net amount of a transaction: amount paid out minus change
// returned. Receipt legs are never negative; a bank-feed credit row is.
func Net(t Transaction) decimal.Decimal {
	return t.AmountOut().Sub(t.ChangeReturned())
}

// contentHash produces the deterministic digest of a transaction's essential
// fields: date at day+time resolution, amounts at two decimals, and the
// descriptive text.
func contentHash(date time.Time, out, change decimal.Decimal, text string) string {
	data := fmt.Sprintf("%s:%s:%s:%s",
		date.Format("2006-01-02T15:04:05"),
		out.StringFixed(2),
		change.StringFixed(2),
		text)
	sum := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", sum)
}

// validateAmounts enforces the amount invariants shared by both transaction
// kinds: neither amount is negative and at least one is set. Statement credit
// rows legitimately carry change without an amount out; the stricter
// change-cannot-exceed-paid rule applies to receipt legs only.
func validateAmounts(out, change decimal.Decimal) error {
	if out.IsNegative() {
		return fmt.Errorf("%w: amount paid %s is negative", common.ErrValidation, out)
	}
	if change.IsNegative() {
		return fmt.Errorf("%w: change returned %s is negative", common.ErrValidation, change)
	}
	if out.IsZero() && change.IsZero() {
		return fmt.Errorf("%w: amount paid and change returned are both zero", common.ErrValidation)
	}
	return nil
}
