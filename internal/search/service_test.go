package search

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"domainflip/internal/availability"
	"domainflip/internal/discovery"
	"domainflip/internal/ledger"
	"domainflip/internal/store"
	"domainflip/internal/suggest"
)

type fakeRegistrar struct {
	calls     atomic.Int32
	available map[string]bool
	err       error
}

func (f *fakeRegistrar) Check(_ context.Context, name string) (availability.PrimaryResult, error) {
	f.calls.Add(1)
	if f.err != nil {
		return availability.PrimaryResult{}, f.err
	}
	avail := f.available[name]
	return availability.PrimaryResult{Available: &avail}, nil
}

type fakeRegistry struct {
	calls  atomic.Int32
	active map[string]bool
}

func (f *fakeRegistry) Lookup(_ context.Context, name string) (availability.SecondaryResult, error) {
	f.calls.Add(1)
	if f.active[name] {
		return availability.SecondaryResult{Status: []string{"active"}}, nil
	}
	return availability.SecondaryResult{}, availability.ErrNotFound
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []availability.ValidationLogEntry
}

func (r *recordingAudit) Append(_ context.Context, entry availability.ValidationLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

func (r *recordingAudit) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

type recordingHistory struct {
	mu      sync.Mutex
	entries []*store.SearchHistory
}

func (r *recordingHistory) SaveSearch(_ context.Context, entry *store.SearchHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingNotifier) Publish(evt Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

type harness struct {
	svc       *Service
	primary   *fakeRegistrar
	secondary *fakeRegistry
	audit     *recordingAudit
	ledger    *ledger.MemoryStore
	history   *recordingHistory
	notifier  *recordingNotifier
}

func newHarness(t *testing.T, costs Costs, available map[string]bool) *harness {
	t.Helper()
	h := &harness{
		primary:   &fakeRegistrar{available: available},
		secondary: &fakeRegistry{active: map[string]bool{}},
		audit:     &recordingAudit{},
		ledger:    ledger.NewMemoryStore(),
		history:   &recordingHistory{},
		notifier:  &recordingNotifier{},
	}
	resolver := availability.NewResolver(availability.Config{}, h.primary, h.secondary, h.audit, nil)
	h.svc = NewService(Config{Costs: costs}, Deps{
		Resolver:  resolver,
		Gate:      ledger.NewGate(h.ledger, 10, nil),
		Suggester: suggest.ExpanderSuggester{},
		History:   h.history,
		Notifier:  h.notifier,
	})
	return h
}

var alice = ledger.Principal{UserID: "alice", Role: ledger.RoleUser}

func findDomain(records []availability.Record, name string) (availability.Record, bool) {
	for _, r := range records {
		if r.Name == name {
			return r, true
		}
	}
	return availability.Record{}, false
}

func TestSearchWildcardEndToEnd(t *testing.T) {
	h := newHarness(t, DefaultCosts(), map[string]bool{"aihub.com": true, "aiapp.com": false})

	resp, err := h.svc.Search(context.Background(), Request{Pattern: "ai*", Principal: alice})
	require.NoError(t, err)
	assert.Equal(t, discovery.OperationWildcardExplore, resp.Operation)
	assert.Equal(t, ledger.StatusOK, resp.Outcome.Status)
	assert.Equal(t, 8, resp.Outcome.NewBalance)
	assert.NotEmpty(t, resp.RequestID)

	hub, ok := findDomain(resp.Domains, "aihub.com")
	require.True(t, ok)
	assert.True(t, hub.Available)
	require.NotNil(t, hub.FlipScore)
	assert.GreaterOrEqual(t, *hub.FlipScore, 1)
	require.NotNil(t, hub.Price)
	_, ok = findDomain(resp.Domains, "aiapp.com")
	assert.False(t, ok, "unavailable domains are excluded by default")
	assert.Len(t, resp.Domains, 1)
	assert.Empty(t, resp.Message)

	resp, err = h.svc.Search(context.Background(), Request{Pattern: "ai*", Principal: alice, IncludeUnavailable: true})
	require.NoError(t, err)
	app, ok := findDomain(resp.Domains, "aiapp.com")
	require.True(t, ok)
	assert.False(t, app.Available)
	assert.Nil(t, app.Price)
	assert.Nil(t, app.FlipScore)
	assert.Equal(t, "aihub.com", resp.Domains[0].Name)
	assert.Zero(t, h.audit.count())
}

func TestSearchPrimaryNegativeNeverAvailable(t *testing.T) {
	h := newHarness(t, DefaultCosts(), map[string]bool{})

	resp, err := h.svc.Search(context.Background(), Request{Pattern: "getsupermind", Principal: alice, IncludeUnavailable: true})
	require.NoError(t, err)
	assert.Equal(t, discovery.OperationSearch, resp.Operation)
	assert.Equal(t, 9, resp.Outcome.NewBalance)

	rec, ok := findDomain(resp.Domains, "getsupermind.com")
	require.True(t, ok)
	assert.False(t, rec.Available)
	assert.Nil(t, rec.Price)
	assert.Equal(t, MessageNoneAvailable, resp.Message)
	assert.Zero(t, h.secondary.calls.Load())

	resp, err = h.svc.Search(context.Background(), Request{Pattern: "getsupermind", Principal: alice})
	require.NoError(t, err)
	assert.Empty(t, resp.Domains)
}

func TestSearchEmptyPatternDoesNoIO(t *testing.T) {
	h := newHarness(t, DefaultCosts(), map[string]bool{})

	for _, pattern := range []string{"", "   ", "*", "**"} {
		_, err := h.svc.Search(context.Background(), Request{Pattern: pattern, Principal: alice})
		assert.ErrorIs(t, err, discovery.ErrEmptyKeyword, pattern)
	}
	assert.Zero(t, h.primary.calls.Load())
	assert.Zero(t, h.secondary.calls.Load())
	assert.Zero(t, h.audit.count())
	_, found, _ := h.ledger.ReadBalance(context.Background(), "alice")
	assert.False(t, found, "no ledger row may be created for a rejected pattern")
	assert.Empty(t, h.history.entries)
}

func TestSearchOverlongKeywordIsRejectedBeforeGate(t *testing.T) {
	h := newHarness(t, DefaultCosts(), map[string]bool{})

	_, err := h.svc.Search(context.Background(), Request{Pattern: "abcdefghijklmnopqrstu", Principal: alice})
	assert.ErrorIs(t, err, discovery.ErrNoCandidates)
	assert.Zero(t, h.primary.calls.Load())
	assert.Zero(t, h.audit.count())
	_, found, _ := h.ledger.ReadBalance(context.Background(), "alice")
	assert.False(t, found, "no credit may be taken for a pattern with no candidates")
	assert.Empty(t, h.history.entries)
	assert.Empty(t, h.notifier.events)
}

func TestSearchInsufficientCreditsBlocksPipeline(t *testing.T) {
	h := newHarness(t, Costs{Search: 11}, map[string]bool{"flip.com": true})

	resp, err := h.svc.Search(context.Background(), Request{Pattern: "flip", Principal: alice})
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusInsufficientCredits, resp.Outcome.Status)
	assert.Equal(t, 10, resp.Outcome.AvailableCredits)
	assert.Equal(t, 11, resp.Outcome.RequiredCredits)
	assert.Empty(t, resp.Domains)
	assert.Zero(t, h.primary.calls.Load())
	require.NotEmpty(t, h.notifier.events)
	assert.Equal(t, EventRejected, h.notifier.events[0].Type)
}

func TestSearchAdminBypassesLedger(t *testing.T) {
	h := newHarness(t, DefaultCosts(), map[string]bool{"flip.com": true})

	resp, err := h.svc.Search(context.Background(), Request{Pattern: "flip", Principal: ledger.Principal{UserID: "root", Role: ledger.RoleAdmin}})
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusBypassed, resp.Outcome.Status)
	assert.Equal(t, 1, resp.Available)
	_, found, _ := h.ledger.ReadBalance(context.Background(), "root")
	assert.False(t, found)
}

func TestSearchTotalOutage(t *testing.T) {
	h := newHarness(t, DefaultCosts(), nil)
	h.primary.err = errors.New("connection refused")

	resp, err := h.svc.Search(context.Background(), Request{Pattern: "flip", Principal: alice})
	require.NoError(t, err)
	assert.Empty(t, resp.Domains)
	assert.Equal(t, MessageUnavailable, resp.Message)
	assert.Equal(t, resp.Candidates, h.audit.count(), "one anomaly entry per failed candidate")
}

func TestSearchRecordsHistoryAndEvents(t *testing.T) {
	h := newHarness(t, DefaultCosts(), map[string]bool{"flip.com": true, "getflip.com": true})
	h.secondary.active["getflip.com"] = true

	resp, err := h.svc.Search(context.Background(), Request{Pattern: "flip", Principal: alice})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Available)
	assert.Equal(t, 1, h.audit.count(), "secondary override is audited")

	require.Len(t, h.history.entries, 1)
	entry := h.history.entries[0]
	assert.Equal(t, resp.RequestID, entry.RequestID)
	assert.Equal(t, "alice", entry.UserID)
	assert.Equal(t, []string{"flip.com"}, entry.Results())

	types := make([]string, 0, len(h.notifier.events))
	for _, evt := range h.notifier.events {
		types = append(types, evt.Type)
	}
	assert.Equal(t, []string{EventStarted, EventDomain, EventCompleted}, types)
}

func TestSuggestUsesSuggesterNames(t *testing.T) {
	h := newHarness(t, DefaultCosts(), map[string]bool{"flip.com": true})

	resp, err := h.svc.Suggest(context.Background(), Request{Pattern: "Flip", Principal: alice})
	require.NoError(t, err)
	assert.Equal(t, discovery.OperationAISuggest, resp.Operation)
	assert.Equal(t, 7, resp.Outcome.NewBalance)
	assert.Equal(t, 1, resp.Available)

	_, err = h.svc.Suggest(context.Background(), Request{Pattern: " ", Principal: alice})
	assert.ErrorIs(t, err, discovery.ErrEmptyKeyword)

	disabled := NewService(Config{Costs: DefaultCosts()}, Deps{Gate: ledger.NewGate(ledger.NewMemoryStore(), 10, nil)})
	_, err = disabled.Suggest(context.Background(), Request{Pattern: "flip", Principal: alice})
	assert.ErrorIs(t, err, suggest.ErrDisabled)
}

func TestScorePreview(t *testing.T) {
	h := newHarness(t, DefaultCosts(), nil)

	result, outcome, err := h.svc.ScorePreview(context.Background(), "https://www.AI.com/path", alice)
	require.NoError(t, err)
	assert.True(t, outcome.Allowed())
	assert.GreaterOrEqual(t, result.FlipScore, 90)
	_, found, _ := h.ledger.ReadBalance(context.Background(), "alice")
	assert.False(t, found, "free previews skip the gate")

	paid := newHarness(t, Costs{ScorePreview: 20}, nil)
	_, outcome, err = paid.svc.ScorePreview(context.Background(), "ai.com", alice)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusInsufficientCredits, outcome.Status)

	_, _, err = h.svc.ScorePreview(context.Background(), "", alice)
	assert.ErrorIs(t, err, discovery.ErrEmptyKeyword)
}

func TestCostsFor(t *testing.T) {
	costs := DefaultCosts()
	assert.Equal(t, 1, costs.For(discovery.OperationSearch))
	assert.Equal(t, 2, costs.For(discovery.OperationWildcardExplore))
	assert.Equal(t, 3, costs.For(discovery.OperationAISuggest))
	assert.Equal(t, 0, costs.For(discovery.OperationScorePreview))
}
