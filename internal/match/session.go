package match

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/recmatch/recmatch/internal/common"
	"github.com/recmatch/recmatch/internal/model"
)

// ActionKind tags one corrective action applied during a resolution.
type ActionKind string

// Corrective action kinds, in the order an operator may encounter them.
const (
	ActionSwapDate          ActionKind = "swap_date"
	ActionCurrencyEstimate  ActionKind = "currency_estimate"
	ActionWidenDateMargin   ActionKind = "widen_date_margin"
	ActionWidenAmountMargin ActionKind = "widen_amount_margin"
	ActionNarrowMargins     ActionKind = "narrow_margins"
	ActionReopenReceipt     ActionKind = "reopen_receipt"
)

// Action is one entry of the session's append-only corrective log.
type Action struct {
	At       time.Time
	Kind     ActionKind
	Ratio    decimal.Decimal
	Days     int
	Fraction decimal.Decimal
}

// Session is the engine's working state for resolving one payment leg: the
// receipt, the target leg, the candidate pool, the margins in effect, and the
// ordered log of corrective actions applied so far. Margin and date changes
// touch only the session's private fields, so retries are pure
// re-evaluations.
type Session struct {
	receipt    model.Receipt
	leg        model.AccountTransaction
	pool       Pool
	margins    model.Margins
	searchDate time.Time
	targetNet  decimal.Decimal
	actions    []Action

	// Backups taken at most once each, enforcing the ordering invariants.
	preEstimateLeg *model.AccountTransaction
	preSwapReceipt *model.Receipt
}

// NewSession starts a resolution for one payment leg of a receipt.
func NewSession(receipt model.Receipt, leg model.AccountTransaction, pool Pool, margins model.Margins) (*Session, error) {
	if err := margins.Validate(); err != nil {
		return nil, err
	}
	return &Session{
		receipt:    receipt,
		leg:        leg,
		pool:       pool,
		margins:    margins,
		searchDate: receipt.Date,
		targetNet:  model.Net(leg),
	}, nil
}

// Receipt returns the receipt being resolved.
func (s *Session) Receipt() model.Receipt { return s.receipt }

// Leg returns the payment leg being matched.
func (s *Session) Leg() model.AccountTransaction { return s.leg }

// Margins returns the margins currently in effect.
func (s *Session) Margins() model.Margins { return s.margins }

// SearchDate returns the date candidate search currently targets. It starts
// as the receipt date and changes only through a day/month swap or a receipt
// correction.
func (s *Session) SearchDate() time.Time { return s.searchDate }

// TargetNet returns the net amount candidate search currently targets.
func (s *Session) TargetNet() decimal.Decimal { return s.targetNet }

// Actions returns a copy of the corrective action log.
func (s *Session) Actions() []Action {
	out := make([]Action, len(s.actions))
	copy(out, s.actions)
	return out
}

// OriginalLeg returns the leg as it stood before any currency estimate, or
// nil when no estimate has been applied.
func (s *Session) OriginalLeg() *model.AccountTransaction { return s.preEstimateLeg }

// OriginalReceipt returns the receipt as it stood before any date correction,
// or nil when none has been applied.
func (s *Session) OriginalReceipt() *model.Receipt { return s.preSwapReceipt }

// Swapped reports whether the day/month swap has been attempted.
func (s *Session) Swapped() bool { return s.has(ActionSwapDate) }

// EstimateApplied reports whether a currency estimate has been applied.
func (s *Session) EstimateApplied() bool { return s.has(ActionCurrencyEstimate) }

// CanAutoSwap reports whether the automatic swap attempt is still available:
// not yet tried, not preceded by a currency estimate, and applicable to the
// current search date.
func (s *Session) CanAutoSwap() bool {
	return !s.Swapped() && !s.EstimateApplied() && CanSwapDayMonth(s.searchDate)
}

func (s *Session) has(kind ActionKind) bool {
	for _, a := range s.actions {
		if a.Kind == kind {
			return true
		}
	}
	return false
}

func (s *Session) log(a Action) {
	a.At = time.Now()
	s.actions = append(s.actions, a)
}

// ApplySwap substitutes the day/month-swapped date for the current search
// date. It may run at most once per session and never after a currency
// estimate has altered the search target; violations are errors, not skips.
func (s *Session) ApplySwap() error {
	if s.EstimateApplied() {
		return fmt.Errorf("%w: on receipt %s", common.ErrSwapAfterEstimate, s.receipt.Key)
	}
	if s.Swapped() {
		return fmt.Errorf("%w: on receipt %s", common.ErrSwapRepeated, s.receipt.Key)
	}
	swapped, err := SwapDayMonth(s.searchDate)
	if err != nil {
		return err
	}
	s.backupReceipt()
	s.log(Action{Kind: ActionSwapDate})
	s.searchDate = swapped
	return nil
}

// ApplyCurrencyEstimate declares the leg an alternate-currency withdrawal and
// rescales the target amount by the estimated conversion ratio. Permitted at
// most once per session.
func (s *Session) ApplyCurrencyEstimate(ratio decimal.Decimal) error {
	if s.EstimateApplied() {
		return fmt.Errorf("%w: on receipt %s", common.ErrEstimateRepeated, s.receipt.Key)
	}
	if !ratio.IsPositive() {
		return fmt.Errorf("%w: conversion ratio %s is not positive", common.ErrValidation, ratio)
	}
	if s.preEstimateLeg == nil {
		leg := s.leg
		s.preEstimateLeg = &leg
	}
	s.log(Action{Kind: ActionCurrencyEstimate, Ratio: ratio})
	s.targetNet = s.targetNet.Mul(ratio).Round(2)
	return nil
}

// WidenDateMargin raises the date margin to the given number of days.
func (s *Session) WidenDateMargin(days int) error {
	if days <= s.margins.DateDays {
		return fmt.Errorf("%w: %d days does not widen the current %d-day margin", common.ErrValidation, days, s.margins.DateDays)
	}
	s.log(Action{Kind: ActionWidenDateMargin, Days: days})
	s.margins.DateDays = days
	return nil
}

// WidenAmountMargin raises the amount margin to the given fraction.
func (s *Session) WidenAmountMargin(fraction decimal.Decimal) error {
	if fraction.LessThanOrEqual(s.margins.AmountFraction) {
		return fmt.Errorf("%w: fraction %s does not widen the current %s margin", common.ErrValidation, fraction, s.margins.AmountFraction)
	}
	s.log(Action{Kind: ActionWidenAmountMargin, Fraction: fraction})
	s.margins.AmountFraction = fraction
	return nil
}

// NarrowMargins lowers the margins for the too-many-candidates branch. At
// least one of the two must shrink strictly, and neither may grow.
func (s *Session) NarrowMargins(days int, fraction decimal.Decimal) error {
	if days < 0 || fraction.IsNegative() {
		return fmt.Errorf("%w: margins cannot be negative", common.ErrValidation)
	}
	if days > s.margins.DateDays || fraction.GreaterThan(s.margins.AmountFraction) {
		return fmt.Errorf("%w: narrowing cannot widen a margin", common.ErrValidation)
	}
	if days == s.margins.DateDays && fraction.Equal(s.margins.AmountFraction) {
		return fmt.Errorf("%w: margins unchanged", common.ErrValidation)
	}
	s.log(Action{Kind: ActionNarrowMargins, Days: days, Fraction: fraction})
	s.margins.DateDays = days
	s.margins.AmountFraction = fraction
	return nil
}

// ReopenReceipt replaces the receipt and target leg with corrected values and
// resets the search date and target amount from them.
func (s *Session) ReopenReceipt(corrected model.Receipt, leg model.AccountTransaction) error {
	if corrected.Key != s.receipt.Key {
		return fmt.Errorf("%w: corrected receipt %s does not replace %s", common.ErrValidation, corrected.Key, s.receipt.Key)
	}
	s.backupReceipt()
	s.log(Action{Kind: ActionReopenReceipt})
	s.receipt = corrected
	s.leg = leg
	s.searchDate = corrected.Date
	s.targetNet = model.Net(leg)
	return nil
}

func (s *Session) backupReceipt() {
	if s.preSwapReceipt == nil {
		receipt := s.receipt
		s.preSwapReceipt = &receipt
	}
}
