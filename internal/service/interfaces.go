// Package service defines the interfaces between the engine and its
// persistence collaborators.
package service

import (
	"context"
	"time"

	"github.com/recmatch/recmatch/internal/model"
)

// ReceiptStore persists receipts as whole values. Save overwrites the
// receipt's record in full; it never append-edits.
type ReceiptStore interface {
	Save(ctx context.Context, receipt model.Receipt) error
	Get(ctx context.Context, key string) (*model.Receipt, error)
	List(ctx context.Context) ([]model.Receipt, error)
}

// AssetLedger is the append-only destination for payments drawn on accounts
// that have no bank feed. Append refuses a leg whose content hash is already
// present.
type AssetLedger interface {
	Contains(ctx context.Context, account model.Account, hash string) (bool, error)
	Append(ctx context.Context, account model.Account, leg model.AccountTransaction) error
}

// ResolutionRecord is one audited resolution outcome.
type ResolutionRecord struct {
	ID             string
	ReceiptKey     string
	LegHash        string
	BankHash       string
	Outcome        string
	DateMarginDays int
	AmountFraction string
	ResolvedAt     time.Time
}

// AuditLog records resolution outcomes. Implementations are best-effort
// collaborators; the engine logs and continues when recording fails.
type AuditLog interface {
	RecordResolution(ctx context.Context, record ResolutionRecord) error
}
