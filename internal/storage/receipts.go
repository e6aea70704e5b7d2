// Package storage implements the persistence collaborators: the JSON receipt
// store, the asset-ledger CSV, and the SQLite resolution audit log.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/recmatch/recmatch/internal/model"
)

const receiptDateLayout = "2006-01-02"

// ReceiptDir persists receipts as one JSON document per receipt key. Writes
// replace the whole file via a temp-file rename, so a crash never leaves a
// half-updated record on disk.
type ReceiptDir struct {
	dir string
}

// NewReceiptDir creates the directory if needed and returns the store.
func NewReceiptDir(dir string) (*ReceiptDir, error) {
	if dir == "" {
		return nil, fmt.Errorf("receipt directory is required")
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create receipt directory: %w", err)
	}
	return &ReceiptDir{dir: dir}, nil
}

func (s *ReceiptDir) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// Save overwrites the receipt's record in full.
func (s *ReceiptDir) Save(ctx context.Context, receipt model.Receipt) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	record := toRecord(receipt)
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode receipt %s: %w", receipt.Key, err)
	}

	final := s.path(receipt.Key)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write receipt %s: %w", receipt.Key, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("failed to replace receipt %s: %w", receipt.Key, err)
	}
	return nil
}

// Get reads one receipt by key.
func (s *ReceiptDir) Get(ctx context.Context, key string) (*model.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path(key))
	if err != nil {
		return nil, fmt.Errorf("failed to read receipt %s: %w", key, err)
	}

	var record receiptRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode receipt %s: %w", key, err)
	}

	receipt, err := fromRecord(key, record)
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}

// List loads every receipt in the directory, ordered by key.
func (s *ReceiptDir) List(ctx context.Context) ([]model.Receipt, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read receipt directory: %w", err)
	}

	var keys []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(keys)

	receipts := make([]model.Receipt, 0, len(keys))
	for _, key := range keys {
		receipt, err := s.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, *receipt)
	}
	return receipts, nil
}

// Persisted record shapes. Field names follow the labeling collaborator's
// output format.

type receiptRecord struct {
	TheDate          string       `json:"the_date"`
	ShopIdentifier   string       `json:"shop_identifier"`
	NetBoughtItems   []itemRecord `json:"net_bought_items"`
	NetReturnedItems []itemRecord `json:"net_returned_items,omitempty"`
}

type itemRecord struct {
	Quantity            float64     `json:"quantity"`
	Description         string      `json:"description"`
	TheDate             string      `json:"the_date"`
	AccountTransactions []legRecord `json:"account_transactions"`
}

type legRecord struct {
	Account             accountRecord `json:"account"`
	Currency            string        `json:"currency"`
	TenderedAmountOut   float64       `json:"tendered_amount_out"`
	ChangeReturned      float64       `json:"change_returned"`
	OriginalTransaction *bankRecord   `json:"original_transaction,omitempty"`
}

type accountRecord struct {
	Holder   string `json:"holder"`
	Bank     string `json:"bank"`
	Type     string `json:"type"`
	Currency string `json:"currency"`
}

type bankRecord struct {
	TheDate        string  `json:"the_date"`
	Currency       string  `json:"currency"`
	AmountOut      float64 `json:"amount_out"`
	ChangeReturned float64 `json:"change_returned"`
	Payee          string  `json:"payee"`
	Balance        float64 `json:"balance"`
	Reference      string  `json:"reference,omitempty"`
}

func toRecord(receipt model.Receipt) receiptRecord {
	return receiptRecord{
		TheDate:          receipt.Date.Format(receiptDateLayout),
		ShopIdentifier:   receipt.Shop,
		NetBoughtItems:   toItemRecords(receipt.Bought),
		NetReturnedItems: toItemRecords(receipt.Returned),
	}
}

func toItemRecords(items []model.ExchangedItem) []itemRecord {
	records := make([]itemRecord, len(items))
	for i, item := range items {
		legs := make([]legRecord, len(item.Payments))
		for j, leg := range item.Payments {
			legs[j] = toLegRecord(leg)
		}
		records[i] = itemRecord{
			Quantity:            item.Quantity.InexactFloat64(),
			Description:         item.Description,
			TheDate:             item.Date.Format(receiptDateLayout),
			AccountTransactions: legs,
		}
	}
	return records
}

func toLegRecord(leg model.AccountTransaction) legRecord {
	account := leg.Account()
	record := legRecord{
		Account: accountRecord{
			Holder:   account.Holder,
			Bank:     account.Bank,
			Type:     account.Kind,
			Currency: account.Currency,
		},
		Currency:          leg.Currency(),
		TenderedAmountOut: leg.AmountOut().InexactFloat64(),
		ChangeReturned:    leg.ChangeReturned().InexactFloat64(),
	}
	if orig := leg.LinkedTo(); orig != nil {
		record.OriginalTransaction = &bankRecord{
			TheDate:        orig.Date().Format(time.RFC3339),
			Currency:       orig.Currency(),
			AmountOut:      orig.AmountOut().InexactFloat64(),
			ChangeReturned: orig.ChangeReturned().InexactFloat64(),
			Payee:          orig.Payee(),
			Balance:        orig.Balance().InexactFloat64(),
			Reference:      orig.Reference(),
		}
	}
	return record
}

func fromRecord(key string, record receiptRecord) (model.Receipt, error) {
	date, err := time.Parse(receiptDateLayout, record.TheDate)
	if err != nil {
		return model.Receipt{}, fmt.Errorf("receipt %s has a malformed date %q: %w", key, record.TheDate, err)
	}

	bought, err := fromItemRecords(key, record.NetBoughtItems)
	if err != nil {
		return model.Receipt{}, err
	}
	returned, err := fromItemRecords(key, record.NetReturnedItems)
	if err != nil {
		return model.Receipt{}, err
	}

	return model.NewReceipt(key, date, record.ShopIdentifier, bought, returned)
}

func fromItemRecords(key string, records []itemRecord) ([]model.ExchangedItem, error) {
	if len(records) == 0 {
		return nil, nil
	}
	items := make([]model.ExchangedItem, len(records))
	for i, record := range records {
		date, err := time.Parse(receiptDateLayout, record.TheDate)
		if err != nil {
			return nil, fmt.Errorf("receipt %s item %d has a malformed date %q: %w", key, i, record.TheDate, err)
		}

		legs := make([]model.AccountTransaction, len(record.AccountTransactions))
		for j, legRec := range record.AccountTransactions {
			leg, err := fromLegRecord(date, legRec)
			if err != nil {
				return nil, fmt.Errorf("receipt %s item %d leg %d: %w", key, i, j, err)
			}
			legs[j] = leg
		}

		items[i] = model.ExchangedItem{
			Quantity:    decimal.NewFromFloat(record.Quantity),
			Description: record.Description,
			Date:        date,
			Payments:    legs,
		}
	}
	return items, nil
}

func fromLegRecord(date time.Time, record legRecord) (model.AccountTransaction, error) {
	account := model.Account{
		Holder:   record.Account.Holder,
		Bank:     record.Account.Bank,
		Kind:     record.Account.Type,
		Currency: record.Account.Currency,
	}
	leg, err := model.NewAccountTransaction(account, date, record.Currency,
		decimal.NewFromFloat(record.TenderedAmountOut),
		decimal.NewFromFloat(record.ChangeReturned))
	if err != nil {
		return model.AccountTransaction{}, err
	}

	if record.OriginalTransaction != nil {
		orig := record.OriginalTransaction
		bankDate, err := time.Parse(time.RFC3339, orig.TheDate)
		if err != nil {
			return model.AccountTransaction{}, fmt.Errorf("linked transaction has a malformed date %q: %w", orig.TheDate, err)
		}
		bank, err := model.NewBankFeedTransaction(bankDate, orig.Currency,
			decimal.NewFromFloat(orig.AmountOut),
			decimal.NewFromFloat(orig.ChangeReturned),
			orig.Payee,
			decimal.NewFromFloat(orig.Balance),
			orig.Reference)
		if err != nil {
			return model.AccountTransaction{}, err
		}
		leg = leg.WithLink(bank)
	}
	return leg, nil
}
