// Package match implements candidate search and the working state of one
// receipt-leg resolution.
package match

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/recmatch/recmatch/internal/model"
)

// amountFloor prevents a zero-amount target from requiring an exact-zero
// margin.
var amountFloor = decimal.NewFromFloat(0.01)

// PoolKey buckets bank-feed transactions by account and calendar year.
type PoolKey struct {
	Account model.Account
	Year    int
}

// Pool is the full candidate pool supplied by the caller: all bank-feed
// transactions, bucketed by account and year. Search never mutates it.
type Pool map[PoolKey][]model.BankFeedTransaction

// NewPool returns an empty candidate pool.
func NewPool() Pool {
	return make(Pool)
}

// Add buckets a bank-feed transaction under its account and posting year.
func (p Pool) Add(account model.Account, t model.BankFeedTransaction) {
	key := PoolKey{Account: account, Year: t.Date().Year()}
	p[key] = append(p[key], t)
}

// Size returns the total number of pooled transactions.
func (p Pool) Size() int {
	n := 0
	for _, txns := range p {
		n += len(txns)
	}
	return n
}

// Candidates returns the bank-feed transactions that are plausible matches
// for the session's target leg under its current search date, target amount,
// and margins.
func Candidates(s *Session) []model.BankFeedTransaction {
	account := s.Leg().Account()
	date := s.SearchDate()
	margins := s.Margins()

	var out []model.BankFeedTransaction
	for _, year := range yearsInWindow(date, margins.DateDays) {
		for _, cand := range s.pool[PoolKey{Account: account, Year: year}] {
			if dayDistance(cand.Date(), date) > margins.DateDays {
				continue
			}
			if !amountWithin(model.Net(cand), s.TargetNet(), margins.AmountFraction) {
				continue
			}
			out = append(out, cand)
		}
	}
	return out
}

// yearsInWindow returns the year buckets the date window touches: the date's
// own year, plus an adjacent year when the margin crosses a year boundary.
func yearsInWindow(date time.Time, marginDays int) []int {
	year := date.Year()
	years := []int{year}
	if date.AddDate(0, 0, -marginDays).Year() < year {
		years = append(years, year-1)
	}
	if date.AddDate(0, 0, marginDays).Year() > year {
		years = append(years, year+1)
	}
	return years
}

// dayDistance returns the absolute distance between two dates in whole
// calendar days, ignoring the time of day.
func dayDistance(a, b time.Time) int {
	a = time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	b = time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	d := int(a.Sub(b).Hours() / 24)
	if d < 0 {
		d = -d
	}
	return d
}

// amountWithin reports whether a candidate net amount lies inside the
// fractional margin around the target. Absolute values are compared because
// statement conventions differ in sign.
func amountWithin(candidate, target, fraction decimal.Decimal) bool {
	floor := target.Abs()
	if floor.LessThan(amountFloor) {
		floor = amountFloor
	}
	diff := candidate.Abs().Sub(target.Abs()).Abs()
	return diff.LessThanOrEqual(fraction.Mul(floor))
}
