package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/recmatch/recmatch/internal/common"
)

// AccountTransaction is the payment leg attached to a receipt. It is mutable
// only through whole-value replacement: WithLink returns a new value with the
// bank-feed back-reference set, leaving the original untouched.
type AccountTransaction struct {
	account  Account
	date     time.Time
	currency string
	out      decimal.Decimal
	change   decimal.Decimal
	hash     string
	original *BankFeedTransaction
}

// NewAccountTransaction validates and constructs a payment leg.
func NewAccountTransaction(account Account, date time.Time, currency string, amountOut, changeReturned decimal.Decimal) (AccountTransaction, error) {
	if date.IsZero() {
		return AccountTransaction{}, fmt.Errorf("%w: payment leg has no date", common.ErrValidation)
	}
	if account == (Account{}) {
		return AccountTransaction{}, fmt.Errorf("%w: payment leg has no account", common.ErrValidation)
	}
	out := amountOut.Round(2)
	change := changeReturned.Round(2)
	if err := validateAmounts(out, change); err != nil {
		return AccountTransaction{}, err
	}
	// Change handed back never exceeds the amount tendered, so a leg's net
	// amount is floored at zero.
	if change.GreaterThan(out) {
		return AccountTransaction{}, fmt.Errorf("%w: change returned %s exceeds amount paid %s", common.ErrValidation, change, out)
	}

	t := AccountTransaction{
		account:  account,
		date:     date,
		currency: currency,
		out:      out,
		change:   change,
	}
	t.hash = contentHash(t.date, t.out, t.change, t.account.String())
	return t, nil
}

// Account returns the paying account.
func (t AccountTransaction) Account() Account { return t.account }

// Date returns the purchase date.
func (t AccountTransaction) Date() time.Time { return t.date }

// Currency returns the leg currency.
func (t AccountTransaction) Currency() string { return t.currency }

// AmountOut returns the amount tendered.
func (t AccountTransaction) AmountOut() decimal.Decimal { return t.out }

// ChangeReturned returns the change handed back.
func (t AccountTransaction) ChangeReturned() decimal.Decimal { return t.change }

// Hash returns the content hash used for deduplication and link identity.
func (t AccountTransaction) Hash() string { return t.hash }

// Linked reports whether this leg already references a bank-feed transaction.
func (t AccountTransaction) Linked() bool { return t.original != nil }

// LinkedTo returns the linked bank-feed transaction, or nil.
func (t AccountTransaction) LinkedTo() *BankFeedTransaction {
	if t.original == nil {
		return nil
	}
	cp := *t.original
	return &cp
}

// WithLink returns a copy of the leg with its original_transaction reference
// replaced by the given bank-feed transaction.
func (t AccountTransaction) WithLink(bank BankFeedTransaction) AccountTransaction {
	t.original = &bank
	return t
}
