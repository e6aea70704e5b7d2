package engine

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/recmatch/recmatch/internal/match"
	"github.com/recmatch/recmatch/internal/model"
)

// DecisionKind identifies the operator's choice on the zero-candidate branch.
type DecisionKind int

// Zero-candidate decisions.
const (
	// DecisionDecline leaves the leg unresolved; the caller continues.
	DecisionDecline DecisionKind = iota
	// DecisionCurrencyEstimate declares an alternate-currency withdrawal
	// with an estimated conversion ratio.
	DecisionCurrencyEstimate
	// DecisionReopenReceipt retries with a corrected receipt.
	DecisionReopenReceipt
	// DecisionWidenDateMargin retries with a wider date window.
	DecisionWidenDateMargin
	// DecisionWidenAmountMargin retries with a wider amount window.
	DecisionWidenAmountMargin
	// DecisionForceSwap manually forces the day/month swap.
	DecisionForceSwap
)

// Decision carries the operator's zero-candidate choice and its payload.
type Decision struct {
	Kind DecisionKind
	// Ratio is the estimated conversion ratio for DecisionCurrencyEstimate.
	Ratio decimal.Decimal
	// Receipt and Leg carry corrected values for DecisionReopenReceipt.
	Receipt *model.Receipt
	Leg     *model.AccountTransaction
	// Days is the new date margin for DecisionWidenDateMargin.
	Days int
	// Fraction is the new amount margin for DecisionWidenAmountMargin.
	Fraction decimal.Decimal
}

// MarginNarrowing carries the operator's narrowed margins for the
// too-many-candidates branch.
type MarginNarrowing struct {
	Days     int
	Fraction decimal.Decimal
}

// Prompter is the synchronous human operator consulted on the ambiguous
// branches. Implementations block until the operator answers or declines.
type Prompter interface {
	// PickCandidate asks the operator to choose among a small candidate
	// list. It returns the chosen index, or -1 to leave the leg
	// unresolved.
	PickCandidate(ctx context.Context, s *match.Session, candidates []model.BankFeedTransaction) (int, error)
	// ResolveZeroMatches asks the operator how to proceed when no
	// candidate qualifies.
	ResolveZeroMatches(ctx context.Context, s *match.Session) (Decision, error)
	// NarrowMargins asks the operator for tighter margins when the
	// candidate list is too large to enumerate. ok is false when the
	// operator declines.
	NarrowMargins(ctx context.Context, s *match.Session, count int) (narrowing MarginNarrowing, ok bool, err error)
}
