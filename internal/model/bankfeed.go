package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/recmatch/recmatch/internal/common"
)

// BankFeedTransaction is a transaction parsed from a bank-provided feed.
// It is immutable; all fields are fixed at construction.
type BankFeedTransaction struct {
	date      time.Time
	currency  string
	amountOut decimal.Decimal
	change    decimal.Decimal
	payee     string
	balance   decimal.Decimal
	reference string
	hash      string
}

// NewBankFeedTransaction validates and constructs a bank-feed transaction.
// Feed rows with a negative statement amount must be normalized by the
// caller into a positive amountOut before construction.
func NewBankFeedTransaction(date time.Time, currency string, amountOut, changeReturned decimal.Decimal, payee string, balance decimal.Decimal, reference string) (BankFeedTransaction, error) {
	if date.IsZero() {
		return BankFeedTransaction{}, fmt.Errorf("%w: bank transaction has no date", common.ErrValidation)
	}
	out := amountOut.Round(2)
	change := changeReturned.Round(2)
	if err := validateAmounts(out, change); err != nil {
		return BankFeedTransaction{}, err
	}

	t := BankFeedTransaction{
		date:      date,
		currency:  currency,
		amountOut: out,
		change:    change,
		payee:     payee,
		balance:   balance.Round(2),
		reference: reference,
	}
	t.hash = contentHash(t.date, t.amountOut, t.change, t.payee)
	return t, nil
}

// Date returns the posting date.
func (t BankFeedTransaction) Date() time.Time { return t.date }

// Currency returns the transaction currency.
func (t BankFeedTransaction) Currency() string { return t.currency }

// AmountOut returns the amount paid out of the account.
func (t BankFeedTransaction) AmountOut() decimal.Decimal { return t.amountOut }

// ChangeReturned returns the amount returned to the account.
func (t BankFeedTransaction) ChangeReturned() decimal.Decimal { return t.change }

// Payee returns the bank-provided payee text.
func (t BankFeedTransaction) Payee() string { return t.payee }

// Balance returns the running balance after this transaction.
func (t BankFeedTransaction) Balance() decimal.Decimal { return t.balance }

// Reference returns the bank reference code, if any.
func (t BankFeedTransaction) Reference() string { return t.reference }

// Hash returns the content hash used for deduplication and link identity.
func (t BankFeedTransaction) Hash() string { return t.hash }
