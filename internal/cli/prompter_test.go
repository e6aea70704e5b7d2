package cli

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recmatch/recmatch/internal/engine"
	"github.com/recmatch/recmatch/internal/match"
	"github.com/recmatch/recmatch/internal/model"
)

var testAccount = model.Account{Holder: "Jo Naylor", Bank: "Fern Bank", Kind: "checking", Currency: "EUR"}

func testSession(t *testing.T, date time.Time) *match.Session {
	t.Helper()
	leg, err := model.NewAccountTransaction(testAccount, date, "EUR",
		decimal.NewFromFloat(42.17), decimal.Zero)
	require.NoError(t, err)
	receipt, err := model.NewReceipt("abc123def456", date, "Grocer", []model.ExchangedItem{{
		Quantity:    decimal.NewFromInt(1),
		Description: "groceries",
		Date:        date,
		Payments:    []model.AccountTransaction{leg},
	}}, nil)
	require.NoError(t, err)
	s, err := match.NewSession(receipt, leg, match.NewPool(), model.DefaultMargins())
	require.NoError(t, err)
	return s
}

func testCandidates(t *testing.T) []model.BankFeedTransaction {
	t.Helper()
	date := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	var out []model.BankFeedTransaction
	for _, payee := range []string{"GROCER 42", "OTHER GROCER"} {
		txn, err := model.NewBankFeedTransaction(date, "EUR",
			decimal.NewFromFloat(42.17), decimal.Zero, payee, decimal.Zero, "")
		require.NoError(t, err)
		out = append(out, txn)
	}
	return out
}

func TestPrompter_PickCandidate(t *testing.T) {
	var out strings.Builder
	p := NewPrompter(strings.NewReader("2\n"), &out)

	index, err := p.PickCandidate(context.Background(), testSession(t, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)), testCandidates(t))
	require.NoError(t, err)
	assert.Equal(t, 1, index)
	assert.Contains(t, out.String(), "GROCER 42")
}

func TestPrompter_PickCandidateDecline(t *testing.T) {
	var out strings.Builder
	p := NewPrompter(strings.NewReader("s\n"), &out)

	index, err := p.PickCandidate(context.Background(), testSession(t, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)), testCandidates(t))
	require.NoError(t, err)
	assert.Equal(t, -1, index)
}

func TestPrompter_PickCandidateRejectsBadInput(t *testing.T) {
	var out strings.Builder
	// Out-of-range and non-numeric answers are re-prompted.
	p := NewPrompter(strings.NewReader("9\nnope\n1\n"), &out)

	index, err := p.PickCandidate(context.Background(), testSession(t, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)), testCandidates(t))
	require.NoError(t, err)
	assert.Equal(t, 0, index)
}

func TestPrompter_ResolveZeroMatches(t *testing.T) {
	swappableDate := time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		date  time.Time
		input string
		want  engine.DecisionKind
	}{
		{name: "widen date margin", date: swappableDate, input: "d\n7\n", want: engine.DecisionWidenDateMargin},
		{name: "widen amount margin", date: swappableDate, input: "a\n0.2\n", want: engine.DecisionWidenAmountMargin},
		{name: "currency estimate", date: swappableDate, input: "c\n0.91\n", want: engine.DecisionCurrencyEstimate},
		{name: "force swap", date: swappableDate, input: "f\n", want: engine.DecisionForceSwap},
		{name: "decline", date: time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), input: "s\n", want: engine.DecisionDecline},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out strings.Builder
			p := NewPrompter(strings.NewReader(tt.input), &out)

			decision, err := p.ResolveZeroMatches(context.Background(), testSession(t, tt.date))
			require.NoError(t, err)
			assert.Equal(t, tt.want, decision.Kind)
		})
	}
}

func TestPrompter_ResolveZeroMatchesHidesSwapForHighDay(t *testing.T) {
	var out strings.Builder
	// Day 15 cannot become a month: forcing the swap is re-prompted, not
	// accepted.
	p := NewPrompter(strings.NewReader("f\ns\n"), &out)

	decision, err := p.ResolveZeroMatches(context.Background(), testSession(t, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	assert.Equal(t, engine.DecisionDecline, decision.Kind)
	assert.NotContains(t, out.String(), "force the day/month swap")
}

func TestPrompter_ResolveZeroMatchesReopen(t *testing.T) {
	var out strings.Builder
	p := NewPrompter(strings.NewReader("r\n2025-06-18\n"), &out)

	decision, err := p.ResolveZeroMatches(context.Background(), testSession(t, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	assert.Equal(t, engine.DecisionReopenReceipt, decision.Kind)
	require.NotNil(t, decision.Receipt)
	assert.Equal(t, time.Date(2025, 6, 18, 0, 0, 0, 0, time.UTC), decision.Receipt.Date)
	assert.Equal(t, "abc123def456", decision.Receipt.Key)
	require.NotNil(t, decision.Leg)
}

func TestPrompter_NarrowMargins(t *testing.T) {
	var out strings.Builder
	p := NewPrompter(strings.NewReader("y\n1\n0.01\n"), &out)

	narrowing, ok, err := p.NarrowMargins(context.Background(), testSession(t, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)), 20)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, narrowing.Days)
	assert.Equal(t, "0.01", narrowing.Fraction.String())
}

func TestPrompter_NarrowMarginsDecline(t *testing.T) {
	var out strings.Builder
	p := NewPrompter(strings.NewReader("n\n"), &out)

	_, ok, err := p.NarrowMargins(context.Background(), testSession(t, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)), 20)
	require.NoError(t, err)
	assert.False(t, ok)
}
