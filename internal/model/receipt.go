package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/recmatch/recmatch/internal/common"
)

// ExchangedItem is one bought or returned position on a receipt, carrying the
// payment legs that settled it.
type ExchangedItem struct {
	Quantity    decimal.Decimal
	Description string
	Date        time.Time
	Payments    []AccountTransaction
}

// Receipt records one shopping event. Its persistence key is the content hash
// of the receipt's processed photo, assigned by the labeling collaborator.
// Receipts are replaced as whole values; a successful link produces a new
// Receipt which is persisted in full.
type Receipt struct {
	Key      string
	Date     time.Time
	Shop     string
	Bought   []ExchangedItem
	Returned []ExchangedItem
}

// NewReceipt validates and constructs a receipt. A receipt must carry at
// least one payment leg across its items, and no two legs may share a
// content hash.
func NewReceipt(key string, date time.Time, shop string, bought, returned []ExchangedItem) (Receipt, error) {
	if key == "" {
		return Receipt{}, fmt.Errorf("%w: receipt has no persistence key", common.ErrValidation)
	}
	if date.IsZero() {
		return Receipt{}, fmt.Errorf("%w: receipt has no date", common.ErrValidation)
	}

	r := Receipt{Key: key, Date: date, Shop: shop, Bought: bought, Returned: returned}

	seen := make(map[string]bool)
	count := 0
	for _, leg := range r.Legs() {
		if seen[leg.Hash()] {
			return Receipt{}, fmt.Errorf("%w: duplicate payment leg %s on receipt %s", common.ErrValidation, leg.Hash(), key)
		}
		seen[leg.Hash()] = true
		count++
	}
	if count == 0 {
		return Receipt{}, fmt.Errorf("%w: receipt %s has no payment legs", common.ErrValidation, key)
	}

	return r, nil
}

// Legs returns every payment leg on the receipt, bought items first.
func (r Receipt) Legs() []AccountTransaction {
	var legs []AccountTransaction
	for _, item := range r.Bought {
		legs = append(legs, item.Payments...)
	}
	for _, item := range r.Returned {
		legs = append(legs, item.Payments...)
	}
	return legs
}

// UnlinkedLegs returns the payment legs that do not yet reference a bank-feed
// transaction.
func (r Receipt) UnlinkedLegs() []AccountTransaction {
	var legs []AccountTransaction
	for _, leg := range r.Legs() {
		if !leg.Linked() {
			legs = append(legs, leg)
		}
	}
	return legs
}

// ContainsBankHash reports whether any payment leg on the receipt is linked
// to a bank-feed transaction with the given content hash.
func (r Receipt) ContainsBankHash(hash string) bool {
	for _, leg := range r.Legs() {
		if orig := leg.LinkedTo(); orig != nil && orig.Hash() == hash {
			return true
		}
	}
	return false
}

// WithLinkedLeg returns a new receipt in which the unlinked leg identified by
// legHash references the given bank-feed transaction. Item slices are copied
// so the original receipt value is preserved for diffing.
func (r Receipt) WithLinkedLeg(legHash string, bank BankFeedTransaction) (Receipt, error) {
	replaced := false

	linkItems := func(items []ExchangedItem) []ExchangedItem {
		out := make([]ExchangedItem, len(items))
		for i, item := range items {
			payments := make([]AccountTransaction, len(item.Payments))
			for j, leg := range item.Payments {
				if !replaced && !leg.Linked() && leg.Hash() == legHash {
					payments[j] = leg.WithLink(bank)
					replaced = true
				} else {
					payments[j] = leg
				}
			}
			item.Payments = payments
			out[i] = item
		}
		return out
	}

	updated := r
	updated.Bought = linkItems(r.Bought)
	updated.Returned = linkItems(r.Returned)

	if !replaced {
		return Receipt{}, fmt.Errorf("%w: no unlinked payment leg %s on receipt %s", common.ErrValidation, legHash, r.Key)
	}
	return updated, nil
}

// WithDate returns a copy of the receipt carrying a corrected date. Payment
// legs are untouched; their own dates identify the original purchase.
func (r Receipt) WithDate(date time.Time) Receipt {
	r.Date = date
	return r
}
