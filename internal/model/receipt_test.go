package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recmatch/recmatch/internal/common"
)

func mustLeg(t *testing.T, date time.Time, out float64) AccountTransaction {
	t.Helper()
	leg, err := NewAccountTransaction(testAccount, date, "EUR", decimal.NewFromFloat(out), decimal.Zero)
	require.NoError(t, err)
	return leg
}

func mustBank(t *testing.T, date time.Time, out float64, payee string) BankFeedTransaction {
	t.Helper()
	txn, err := NewBankFeedTransaction(date, "EUR", decimal.NewFromFloat(out), decimal.Zero, payee, decimal.NewFromInt(500), "")
	require.NoError(t, err)
	return txn
}

func item(date time.Time, legs ...AccountTransaction) ExchangedItem {
	return ExchangedItem{
		Quantity:    decimal.NewFromInt(1),
		Description: "groceries",
		Date:        date,
		Payments:    legs,
	}
}

func TestNewReceipt_RequiresPaymentLeg(t *testing.T) {
	date := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	_, err := NewReceipt("abc123", date, "Grocer", []ExchangedItem{item(date)}, nil)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestNewReceipt_RejectsDuplicateLegs(t *testing.T) {
	date := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	leg := mustLeg(t, date, 42.17)

	_, err := NewReceipt("abc123", date, "Grocer",
		[]ExchangedItem{item(date, leg), item(date, leg)}, nil)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestReceipt_WithLinkedLeg(t *testing.T) {
	date := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	legA := mustLeg(t, date, 42.17)
	legB := mustLeg(t, date, 9.99)
	bank := mustBank(t, date, 42.17, "GROCER 42")

	receipt, err := NewReceipt("abc123", date, "Grocer",
		[]ExchangedItem{item(date, legA, legB)}, nil)
	require.NoError(t, err)

	updated, err := receipt.WithLinkedLeg(legA.Hash(), bank)
	require.NoError(t, err)

	assert.False(t, receipt.ContainsBankHash(bank.Hash()), "original receipt must stay untouched")
	assert.True(t, updated.ContainsBankHash(bank.Hash()))
	assert.Len(t, updated.UnlinkedLegs(), 1)
	assert.Equal(t, legB.Hash(), updated.UnlinkedLegs()[0].Hash())
}

func TestReceipt_WithLinkedLeg_UnknownLeg(t *testing.T) {
	date := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	leg := mustLeg(t, date, 42.17)
	bank := mustBank(t, date, 42.17, "GROCER 42")

	receipt, err := NewReceipt("abc123", date, "Grocer", []ExchangedItem{item(date, leg)}, nil)
	require.NoError(t, err)

	_, err = receipt.WithLinkedLeg("not-a-hash", bank)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestReceipt_LegsAcrossBoughtAndReturned(t *testing.T) {
	date := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	bought := mustLeg(t, date, 42.17)
	returned := mustLeg(t, date, 9.99)

	receipt, err := NewReceipt("abc123", date, "Grocer",
		[]ExchangedItem{item(date, bought)},
		[]ExchangedItem{item(date, returned)})
	require.NoError(t, err)

	assert.Len(t, receipt.Legs(), 2)
}
