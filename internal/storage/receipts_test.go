package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recmatch/recmatch/internal/model"
)

var testAccount = model.Account{Holder: "Jo Naylor", Bank: "Fern Bank", Kind: "checking", Currency: "EUR"}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func mustLeg(t *testing.T, date time.Time, out float64) model.AccountTransaction {
	t.Helper()
	leg, err := model.NewAccountTransaction(testAccount, date, "EUR",
		decimal.NewFromFloat(out), decimal.Zero)
	require.NoError(t, err)
	return leg
}

func mustReceipt(t *testing.T, key string, date time.Time, legs ...model.AccountTransaction) model.Receipt {
	t.Helper()
	receipt, err := model.NewReceipt(key, date, "Grocer", []model.ExchangedItem{{
		Quantity:    decimal.NewFromInt(1),
		Description: "groceries",
		Date:        date,
		Payments:    legs,
	}}, nil)
	require.NoError(t, err)
	return receipt
}

func TestReceiptDir_SaveAndGet(t *testing.T) {
	store, err := NewReceiptDir(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	date := day(2025, time.June, 15)
	leg := mustLeg(t, date, 42.17)
	receipt := mustReceipt(t, "r1", date, leg)

	require.NoError(t, store.Save(ctx, receipt))

	loaded, err := store.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "r1", loaded.Key)
	assert.Equal(t, date, loaded.Date)
	assert.Equal(t, "Grocer", loaded.Shop)

	legs := loaded.Legs()
	require.Len(t, legs, 1)
	assert.Equal(t, leg.Hash(), legs[0].Hash())
	assert.False(t, legs[0].Linked())
}

func TestReceiptDir_RoundTripsLinkedLeg(t *testing.T) {
	store, err := NewReceiptDir(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	date := day(2025, time.June, 15)
	leg := mustLeg(t, date, 42.17)
	bank, err := model.NewBankFeedTransaction(day(2025, time.June, 16), "EUR",
		decimal.NewFromFloat(42.17), decimal.Zero, "GROCER 42",
		decimal.NewFromFloat(1021.50), "REF-1")
	require.NoError(t, err)

	receipt := mustReceipt(t, "r1", date, leg)
	linked, err := receipt.WithLinkedLeg(leg.Hash(), bank)
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, linked))

	loaded, err := store.Get(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, loaded.ContainsBankHash(bank.Hash()))
	assert.Empty(t, loaded.UnlinkedLegs())

	orig := loaded.Legs()[0].LinkedTo()
	require.NotNil(t, orig)
	assert.Equal(t, "GROCER 42", orig.Payee())
	assert.Equal(t, "REF-1", orig.Reference())
	assert.Equal(t, "42.17", orig.AmountOut().StringFixed(2))
}

func TestReceiptDir_SaveReplacesWholeRecord(t *testing.T) {
	store, err := NewReceiptDir(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	date := day(2025, time.June, 15)
	first := mustReceipt(t, "r1", date, mustLeg(t, date, 42.17))
	require.NoError(t, store.Save(ctx, first))

	corrected := mustReceipt(t, "r1", date, mustLeg(t, date, 9.99))
	require.NoError(t, store.Save(ctx, corrected))

	loaded, err := store.Get(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, loaded.Legs(), 1)
	assert.Equal(t, "9.99", loaded.Legs()[0].AmountOut().StringFixed(2))
}

func TestReceiptDir_List(t *testing.T) {
	store, err := NewReceiptDir(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	date := day(2025, time.June, 15)
	require.NoError(t, store.Save(ctx, mustReceipt(t, "bbb", date, mustLeg(t, date, 1))))
	require.NoError(t, store.Save(ctx, mustReceipt(t, "aaa", date, mustLeg(t, date, 2))))

	receipts, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, receipts, 2)
	assert.Equal(t, "aaa", receipts[0].Key)
	assert.Equal(t, "bbb", receipts[1].Key)
}

func TestReceiptDir_RecordFieldNames(t *testing.T) {
	dir := t.TempDir()
	store, err := NewReceiptDir(dir)
	require.NoError(t, err)
	ctx := context.Background()

	date := day(2025, time.June, 15)
	require.NoError(t, store.Save(ctx, mustReceipt(t, "r1", date, mustLeg(t, date, 42.17))))

	data, err := os.ReadFile(filepath.Join(dir, "r1.json"))
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "the_date")
	assert.Contains(t, raw, "shop_identifier")
	assert.Contains(t, raw, "net_bought_items")

	var items []map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw["net_bought_items"], &items))
	require.Len(t, items, 1)
	assert.Contains(t, items[0], "account_transactions")

	var legs []map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(items[0]["account_transactions"], &legs))
	require.Len(t, legs, 1)
	assert.Contains(t, legs[0], "tendered_amount_out")
	assert.Contains(t, legs[0], "change_returned")
	assert.NotContains(t, legs[0], "original_transaction")
}

func TestReceiptDir_GetUnknownKey(t *testing.T) {
	store, err := NewReceiptDir(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "missing")
	assert.Error(t, err)
}
