// Package engine implements the resolution state machine that links receipt
// payment legs to bank-feed transactions, or exports them to the asset
// ledger when the account has no feed.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/recmatch/recmatch/internal/common"
	"github.com/recmatch/recmatch/internal/match"
	"github.com/recmatch/recmatch/internal/model"
	"github.com/recmatch/recmatch/internal/service"
)

// maxEnumerated is the largest candidate list presented to the operator for
// direct disambiguation. Above it the operator must narrow the margins.
const maxEnumerated = 14

// Outcome is the terminal state of one leg resolution.
type Outcome int

// Terminal outcomes. Every resolution path ends in one of these.
const (
	// OutcomeLinked means the leg now references a bank-feed transaction.
	OutcomeLinked Outcome = iota
	// OutcomeExported means the leg was appended to the asset ledger.
	OutcomeExported
	// OutcomeSkipped means the operator declined; the leg stays
	// unresolved and the caller continues.
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeLinked:
		return "linked"
	case OutcomeExported:
		return "exported"
	default:
		return "skipped"
	}
}

// Result describes how one payment leg was resolved.
type Result struct {
	Outcome    Outcome
	ReceiptKey string
	LegHash    string
	BankHash   string
}

// Engine orchestrates resolution across receipts. It holds no locks; the
// caller serializes access per account and per receipt file.
type Engine struct {
	receipts service.ReceiptStore
	ledger   service.AssetLedger
	audit    service.AuditLog
	prompter Prompter
	feeds    map[model.Account]bool

	// linkedBank maps a bank hash to the receipt that claimed it, so the
	// uniqueness invariant holds across receipts within one run.
	linkedBank map[string]string
}

// New creates an engine. feedAccounts lists the accounts backed by a live
// bank feed; payments on any other account go to the asset ledger. audit may
// be nil.
func New(receipts service.ReceiptStore, ledger service.AssetLedger, audit service.AuditLog, prompter Prompter, feedAccounts []model.Account) *Engine {
	feeds := make(map[model.Account]bool, len(feedAccounts))
	for _, a := range feedAccounts {
		feeds[a] = true
	}
	return &Engine{
		receipts:   receipts,
		ledger:     ledger,
		audit:      audit,
		prompter:   prompter,
		feeds:      feeds,
		linkedBank: make(map[string]string),
	}
}

// HasFeed reports whether the account is backed by a bank feed.
func (e *Engine) HasFeed(account model.Account) bool {
	return e.feeds[account]
}

// ReconcileAll loads every receipt from the store and resolves each unlinked
// payment leg in turn. progress, if non-nil, is invoked once per receipt.
// Integrity errors abort the run; skipped legs do not.
func (e *Engine) ReconcileAll(ctx context.Context, pool match.Pool, margins model.Margins, progress func()) ([]Result, error) {
	receipts, err := e.receipts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load receipts: %w", err)
	}

	// Register links recorded in earlier runs so uniqueness spans the
	// whole receipt set, not just this invocation.
	for _, r := range receipts {
		for _, leg := range r.Legs() {
			if orig := leg.LinkedTo(); orig != nil {
				e.linkedBank[orig.Hash()] = r.Key
			}
		}
	}

	slog.Info("Starting reconciliation",
		"receipts", len(receipts),
		"pooled_transactions", pool.Size(),
		"date_margin_days", margins.DateDays,
		"amount_margin", margins.AmountFraction)

	var results []Result
	for _, receipt := range receipts {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
		}

		receiptResults, err := e.ReconcileReceipt(ctx, receipt, pool, margins)
		results = append(results, receiptResults...)
		if err != nil {
			return results, err
		}
		if progress != nil {
			progress()
		}
	}

	linked, exported, skipped := tally(results)
	slog.Info("Reconciliation complete",
		"linked", linked,
		"exported", exported,
		"skipped", skipped)
	return results, nil
}

// ReconcileReceipt resolves every unlinked payment leg of one receipt. The
// receipt is re-read from the store after each link so later legs see the
// updated value.
func (e *Engine) ReconcileReceipt(ctx context.Context, receipt model.Receipt, pool match.Pool, margins model.Margins) ([]Result, error) {
	var results []Result
	current := receipt

	for _, leg := range receipt.UnlinkedLegs() {
		result, err := e.ResolveLeg(ctx, current, leg, pool, margins)
		if errors.Is(err, common.ErrDuplicateExport) {
			// Already in the asset ledger from an earlier run; report
			// it and keep going.
			slog.Warn("Skipping already-exported payment leg",
				"receipt", current.Key,
				"leg", leg.Hash(),
				"error", err)
			continue
		}
		if err != nil {
			return results, err
		}
		results = append(results, result)

		if result.Outcome == OutcomeLinked {
			updated, err := e.receipts.Get(ctx, current.Key)
			if err != nil {
				return results, fmt.Errorf("failed to reload receipt %s: %w", current.Key, err)
			}
			current = *updated
		}
	}
	return results, nil
}

// ResolveLeg runs the resolution state machine for one payment leg.
// Resolving a leg that is already linked is an integrity error.
func (e *Engine) ResolveLeg(ctx context.Context, receipt model.Receipt, leg model.AccountTransaction, pool match.Pool, margins model.Margins) (Result, error) {
	if leg.Linked() {
		return Result{}, common.NewIntegrityError(common.ErrAlreadyLinked, receipt.Key, leg.Hash())
	}

	session, err := match.NewSession(receipt, leg, pool, margins)
	if err != nil {
		return Result{}, err
	}
	return e.resolve(ctx, session)
}

// resolve is the state machine proper. Corrective actions recurse through it
// with the updated session; the only exits are link, export, and skip.
func (e *Engine) resolve(ctx context.Context, s *match.Session) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	default:
	}

	leg := s.Leg()
	if !e.feeds[leg.Account()] {
		return e.export(ctx, s)
	}

	candidates := match.Candidates(s)
	slog.Debug("Candidate search",
		"receipt", s.Receipt().Key,
		"leg", leg.Hash(),
		"search_date", s.SearchDate().Format("2006-01-02"),
		"target_net", s.TargetNet(),
		"candidates", len(candidates))

	switch {
	case len(candidates) == 1:
		return e.link(ctx, s, candidates[0])

	case len(candidates) == 0:
		if s.Margins().AutoSwap && s.CanAutoSwap() {
			if err := s.ApplySwap(); err != nil {
				return Result{}, err
			}
			slog.Info("Retrying with day/month-swapped date",
				"receipt", s.Receipt().Key,
				"search_date", s.SearchDate().Format("2006-01-02"))
			// The silent swap resolves only an unambiguous match; zero
			// or several candidates under the swapped date go to the
			// operator's zero-match menu, not the pick list.
			if swapped := match.Candidates(s); len(swapped) == 1 {
				return e.link(ctx, s, swapped[0])
			}
			return e.escalateZero(ctx, s)
		}
		return e.escalateZero(ctx, s)

	case len(candidates) <= maxEnumerated:
		index, err := e.prompter.PickCandidate(ctx, s, candidates)
		if err != nil {
			return Result{}, fmt.Errorf("candidate selection failed: %w", err)
		}
		if index < 0 {
			return e.skip(ctx, s)
		}
		if index >= len(candidates) {
			return Result{}, fmt.Errorf("%w: candidate index %d out of range", common.ErrValidation, index)
		}
		return e.link(ctx, s, candidates[index])

	default:
		narrowing, ok, err := e.prompter.NarrowMargins(ctx, s, len(candidates))
		if err != nil {
			return Result{}, fmt.Errorf("margin narrowing failed: %w", err)
		}
		if !ok {
			return e.skip(ctx, s)
		}
		if err := s.NarrowMargins(narrowing.Days, narrowing.Fraction); err != nil {
			return Result{}, err
		}
		return e.resolve(ctx, s)
	}
}

// escalateZero routes the zero-candidate branch to the operator and applies
// the chosen corrective action. Each action is logged by the session before
// it takes effect, then the whole state machine re-runs.
func (e *Engine) escalateZero(ctx context.Context, s *match.Session) (Result, error) {
	decision, err := e.prompter.ResolveZeroMatches(ctx, s)
	if err != nil {
		return Result{}, fmt.Errorf("zero-candidate escalation failed: %w", err)
	}

	switch decision.Kind {
	case DecisionDecline:
		return e.skip(ctx, s)
	case DecisionCurrencyEstimate:
		err = s.ApplyCurrencyEstimate(decision.Ratio)
	case DecisionReopenReceipt:
		if decision.Receipt == nil || decision.Leg == nil {
			return Result{}, fmt.Errorf("%w: reopen decision without corrected values", common.ErrValidation)
		}
		err = s.ReopenReceipt(*decision.Receipt, *decision.Leg)
		if err == nil {
			// A correction replaces the stored receipt right away; it
			// must survive even when no link lands afterwards.
			if err := e.receipts.Save(ctx, s.Receipt()); err != nil {
				return Result{}, fmt.Errorf("failed to persist corrected receipt %s: %w", s.Receipt().Key, err)
			}
		}
	case DecisionWidenDateMargin:
		err = s.WidenDateMargin(decision.Days)
	case DecisionWidenAmountMargin:
		err = s.WidenAmountMargin(decision.Fraction)
	case DecisionForceSwap:
		err = s.ApplySwap()
	default:
		return Result{}, fmt.Errorf("%w: unknown decision kind %d", common.ErrValidation, decision.Kind)
	}
	if err != nil {
		return Result{}, err
	}
	return e.resolve(ctx, s)
}

// link injects the chosen bank transaction into the receipt, persists the
// whole receipt, and verifies the link landed on disk.
func (e *Engine) link(ctx context.Context, s *match.Session, bank model.BankFeedTransaction) (Result, error) {
	receipt := s.Receipt()

	// Structurally impossible given the state machine; reaching it means a
	// logic defect, not a recoverable condition.
	if receipt.ContainsBankHash(bank.Hash()) {
		return Result{}, common.NewIntegrityError(common.ErrAlreadyLinked, receipt.Key, bank.Hash())
	}
	if !s.Margins().AllowSharedBankLinks {
		if claimedBy, ok := e.linkedBank[bank.Hash()]; ok && claimedBy != receipt.Key {
			return Result{}, common.NewIntegrityError(
				fmt.Errorf("%w: claimed by receipt %s", common.ErrAlreadyLinked, claimedBy),
				receipt.Key, bank.Hash())
		}
	}

	updated, err := receipt.WithLinkedLeg(s.Leg().Hash(), bank)
	if err != nil {
		return Result{}, err
	}
	if err := e.receipts.Save(ctx, updated); err != nil {
		return Result{}, fmt.Errorf("failed to persist receipt %s: %w", receipt.Key, err)
	}

	stored, err := e.receipts.Get(ctx, receipt.Key)
	if err != nil {
		return Result{}, fmt.Errorf("failed to re-read receipt %s: %w", receipt.Key, err)
	}
	if !stored.ContainsBankHash(bank.Hash()) {
		return Result{}, common.NewIntegrityError(common.ErrLinkNotVerified, receipt.Key, bank.Hash())
	}

	e.linkedBank[bank.Hash()] = receipt.Key

	result := Result{
		Outcome:    OutcomeLinked,
		ReceiptKey: receipt.Key,
		LegHash:    s.Leg().Hash(),
		BankHash:   bank.Hash(),
	}
	e.recordAudit(ctx, s, result)

	slog.Info("Linked payment leg",
		"receipt", receipt.Key,
		"payee", bank.Payee(),
		"net", model.Net(bank),
		"actions", len(s.Actions()))
	return result, nil
}

// export records the leg in the account's asset ledger. A hash already
// present there is refused, so the caller can tell "already done" from
// "just succeeded".
func (e *Engine) export(ctx context.Context, s *match.Session) (Result, error) {
	leg := s.Leg()
	account := leg.Account()

	present, err := e.ledger.Contains(ctx, account, leg.Hash())
	if err != nil {
		return Result{}, fmt.Errorf("failed to check asset ledger for %s: %w", account, err)
	}
	if present {
		return Result{}, fmt.Errorf("%w: leg %s on account %s", common.ErrDuplicateExport, leg.Hash(), account)
	}
	if err := e.ledger.Append(ctx, account, leg); err != nil {
		return Result{}, fmt.Errorf("failed to append to asset ledger for %s: %w", account, err)
	}

	result := Result{
		Outcome:    OutcomeExported,
		ReceiptKey: s.Receipt().Key,
		LegHash:    leg.Hash(),
	}
	e.recordAudit(ctx, s, result)

	slog.Info("Exported payment leg to asset ledger",
		"receipt", s.Receipt().Key,
		"account", account.String(),
		"net", model.Net(leg))
	return result, nil
}

// skip is the operator-declined outcome: the leg stays unresolved.
func (e *Engine) skip(ctx context.Context, s *match.Session) (Result, error) {
	result := Result{
		Outcome:    OutcomeSkipped,
		ReceiptKey: s.Receipt().Key,
		LegHash:    s.Leg().Hash(),
	}
	e.recordAudit(ctx, s, result)

	slog.Info("Left payment leg unresolved",
		"receipt", s.Receipt().Key,
		"leg", s.Leg().Hash())
	return result, nil
}

// recordAudit writes the outcome to the audit log. Failures are logged and
// swallowed; auditing never aborts a resolution.
func (e *Engine) recordAudit(ctx context.Context, s *match.Session, result Result) {
	if e.audit == nil {
		return
	}
	record := service.ResolutionRecord{
		ID:             uuid.NewString(),
		ReceiptKey:     result.ReceiptKey,
		LegHash:        result.LegHash,
		BankHash:       result.BankHash,
		Outcome:        result.Outcome.String(),
		DateMarginDays: s.Margins().DateDays,
		AmountFraction: s.Margins().AmountFraction.String(),
		ResolvedAt:     time.Now(),
	}
	if err := e.audit.RecordResolution(ctx, record); err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("Failed to record resolution audit",
			"receipt", result.ReceiptKey,
			"error", err)
	}
}

func tally(results []Result) (linked, exported, skipped int) {
	for _, r := range results {
		switch r.Outcome {
		case OutcomeLinked:
			linked++
		case OutcomeExported:
			exported++
		case OutcomeSkipped:
			skipped++
		}
	}
	return linked, exported, skipped
}
