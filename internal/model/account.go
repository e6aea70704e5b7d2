// Package model defines the core value types shared across the reconciliation engine.
package model

import (
	"fmt"
	"strings"
)

// Account identifies one real-world account a payment can be drawn from.
// Equality is structural; values are immutable once constructed.
type Account struct {
	Holder   string
	Bank     string
	Kind     string
	Currency string
}

// String returns a human-readable identity for the account.
func (a Account) String() string {
	return fmt.Sprintf("%s/%s/%s", a.Holder, a.Bank, a.Kind)
}

// Slug returns a filesystem-safe identifier derived from the account identity.
func (a Account) Slug() string {
	parts := []string{a.Holder, a.Bank, a.Kind}
	for i, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		parts[i] = strings.ReplaceAll(p, " ", "-")
	}
	return strings.Join(parts, "_")
}
