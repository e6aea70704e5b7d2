// Package common provides shared utilities and error types used across the application.
package common

import (
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Validation errors. Malformed data fails at construction time and
	// never enters the matching pipeline.
	ErrValidation = errors.New("validation failed")

	// Integrity errors. These indicate a broken contract and are fatal.
	ErrAlreadyLinked     = errors.New("bank transaction already linked")
	ErrLinkNotVerified   = errors.New("link absent after write")
	ErrSwapRepeated      = errors.New("day/month swap already attempted")
	ErrSwapAfterEstimate = errors.New("day/month swap after currency estimate")
	ErrEstimateRepeated  = errors.New("currency estimate already applied")
	ErrSwapNotApplicable = errors.New("date is not day/month swappable")

	// Export errors.
	ErrDuplicateExport = errors.New("asset transaction already exported")

	// Configuration errors.
	ErrUnknownAccount = errors.New("unknown account")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

// IntegrityError wraps a fatal contract violation with context about the
// receipt and transaction involved. It is never retried.
type IntegrityError struct {
	Err        error
	ReceiptKey string
	Hash       string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity violation on receipt %s (hash %s): %v", e.ReceiptKey, e.Hash, e.Err)
}

func (e *IntegrityError) Unwrap() error {
	return e.Err
}

// NewIntegrityError creates an integrity error for the given receipt and hash.
func NewIntegrityError(err error, receiptKey, hash string) error {
	return &IntegrityError{Err: err, ReceiptKey: receiptKey, Hash: hash}
}
