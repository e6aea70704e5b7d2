package engine

import (
	"context"
	"sync"

	"github.com/recmatch/recmatch/internal/match"
	"github.com/recmatch/recmatch/internal/model"
)

// MockPrompter is a scripted test implementation of the Prompter interface.
// Responses are consumed in order; an exhausted script declines.
type MockPrompter struct {
	mu sync.Mutex

	// PickIndexes are returned by successive PickCandidate calls.
	PickIndexes []int
	// ZeroDecisions are returned by successive ResolveZeroMatches calls.
	ZeroDecisions []Decision
	// Narrowings are returned by successive NarrowMargins calls.
	Narrowings []MarginNarrowing

	// Recorded calls, for assertions.
	PickCalls   [][]model.BankFeedTransaction
	ZeroCalls   int
	NarrowCalls []int
}

// NewMockPrompter creates an empty scripted prompter that declines everything.
func NewMockPrompter() *MockPrompter {
	return &MockPrompter{}
}

// PickCandidate returns the next scripted index, or -1 when the script is
// exhausted.
func (m *MockPrompter) PickCandidate(_ context.Context, _ *match.Session, candidates []model.BankFeedTransaction) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PickCalls = append(m.PickCalls, candidates)
	if len(m.PickIndexes) == 0 {
		return -1, nil
	}
	index := m.PickIndexes[0]
	m.PickIndexes = m.PickIndexes[1:]
	return index, nil
}

// ResolveZeroMatches returns the next scripted decision, or a decline.
func (m *MockPrompter) ResolveZeroMatches(_ context.Context, _ *match.Session) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ZeroCalls++
	if len(m.ZeroDecisions) == 0 {
		return Decision{Kind: DecisionDecline}, nil
	}
	decision := m.ZeroDecisions[0]
	m.ZeroDecisions = m.ZeroDecisions[1:]
	return decision, nil
}

// NarrowMargins returns the next scripted narrowing, or declines.
func (m *MockPrompter) NarrowMargins(_ context.Context, _ *match.Session, count int) (MarginNarrowing, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.NarrowCalls = append(m.NarrowCalls, count)
	if len(m.Narrowings) == 0 {
		return MarginNarrowing{}, false, nil
	}
	narrowing := m.Narrowings[0]
	m.Narrowings = m.Narrowings[1:]
	return narrowing, true, nil
}
