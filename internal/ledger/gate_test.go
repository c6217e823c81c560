package ledger

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStore wraps a Store and counts every call reaching it.
type countingStore struct {
	Store
	calls   atomic.Int32
	readErr error
}

func (c *countingStore) ReadBalance(ctx context.Context, userID string) (Balance, bool, error) {
	c.calls.Add(1)
	if c.readErr != nil {
		return Balance{}, false, c.readErr
	}
	return c.Store.ReadBalance(ctx, userID)
}

func (c *countingStore) Provision(ctx context.Context, userID string, credits int) (Balance, error) {
	c.calls.Add(1)
	return c.Store.Provision(ctx, userID, credits)
}

func (c *countingStore) AtomicDebit(ctx context.Context, userID string, amount int, reason string) (int, bool, error) {
	c.calls.Add(1)
	return c.Store.AtomicDebit(ctx, userID, amount, reason)
}

func (c *countingStore) Credit(ctx context.Context, userID string, amount int, reason string) (Balance, error) {
	c.calls.Add(1)
	return c.Store.Credit(ctx, userID, amount, reason)
}

var alice = Principal{UserID: "alice", Role: RoleUser}

func TestGateAdminBypassTouchesNoStorage(t *testing.T) {
	store := &countingStore{Store: NewMemoryStore()}
	gate := NewGate(store, 10, nil)

	out := gate.TryDebit(context.Background(), Principal{UserID: "root", Role: RoleAdmin}, 1000, "search")
	assert.Equal(t, StatusBypassed, out.Status)
	assert.True(t, out.Allowed())
	assert.Zero(t, store.calls.Load())

	broken := &countingStore{Store: NewMemoryStore(), readErr: errors.New("db down")}
	out = NewGate(broken, 10, nil).TryDebit(context.Background(), Principal{UserID: "root", Role: RoleAdmin}, 5, "search")
	assert.Equal(t, StatusBypassed, out.Status)
	assert.Zero(t, broken.calls.Load())
}

func TestGateProvisionsLazilyAndDebits(t *testing.T) {
	store := NewMemoryStore()
	gate := NewGate(store, 10, nil)

	out := gate.TryDebit(context.Background(), alice, 3, "search")
	require.Equal(t, StatusOK, out.Status)
	assert.Equal(t, 7, out.NewBalance)

	balance, found, err := store.ReadBalance(context.Background(), "alice")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 7, balance.CurrentCredits)
	assert.Zero(t, balance.TotalPurchasedCredits)
}

func TestGateInsufficientCreditsLeavesBalance(t *testing.T) {
	store := NewMemoryStore()
	gate := NewGate(store, 2, nil)

	out := gate.TryDebit(context.Background(), alice, 3, "ai_suggest")
	assert.Equal(t, StatusInsufficientCredits, out.Status)
	assert.False(t, out.Allowed())
	assert.Equal(t, 2, out.AvailableCredits)
	assert.Equal(t, 3, out.RequiredCredits)

	balance, _, _ := store.ReadBalance(context.Background(), "alice")
	assert.Equal(t, 2, balance.CurrentCredits)
}

func TestGateLedgerUnavailableIsDistinct(t *testing.T) {
	store := &countingStore{Store: NewMemoryStore(), readErr: errors.New("connection refused")}
	gate := NewGate(store, 10, nil)

	out := gate.TryDebit(context.Background(), alice, 1, "search")
	assert.Equal(t, StatusLedgerUnavailable, out.Status)
	assert.False(t, out.Allowed())
	assert.ErrorIs(t, out.Err, ErrLedgerUnavailable)

	out = NewGate(nil, 10, nil).TryDebit(context.Background(), alice, 1, "search")
	assert.Equal(t, StatusLedgerUnavailable, out.Status)

	_, err := gate.Balance(context.Background(), "alice")
	assert.ErrorIs(t, err, ErrLedgerUnavailable)
}

func TestGateRejectsNonPositiveAmountWithoutIO(t *testing.T) {
	store := &countingStore{Store: NewMemoryStore()}
	gate := NewGate(store, 10, nil)

	for _, amount := range []int{0, -4} {
		out := gate.TryDebit(context.Background(), alice, amount, "search")
		assert.Equal(t, StatusInvalidAmount, out.Status)
		assert.False(t, out.Allowed())
	}
	assert.Zero(t, store.calls.Load())

	_, err := gate.Grant(context.Background(), "alice", 0, "topup")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestGateGrant(t *testing.T) {
	gate := NewGate(NewMemoryStore(), 10, nil)

	balance, err := gate.Grant(context.Background(), "bob", 25, "purchase")
	require.NoError(t, err)
	assert.Equal(t, 35, balance.CurrentCredits)
	assert.Equal(t, 25, balance.TotalPurchasedCredits)

	balance, err = gate.Balance(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, 35, balance.CurrentCredits)
}

func TestGateEmptyUserIsUnavailable(t *testing.T) {
	gate := NewGate(NewMemoryStore(), 10, nil)
	out := gate.TryDebit(context.Background(), Principal{}, 1, "search")
	assert.Equal(t, StatusLedgerUnavailable, out.Status)
}

func TestParseRole(t *testing.T) {
	assert.Equal(t, RoleAdmin, ParseRole(" Admin "))
	assert.Equal(t, RoleUser, ParseRole("superuser"))
	assert.Equal(t, RoleUser, ParseRole(""))
}

// assertConcurrentDebits runs n concurrent debits of 5 against a balance of 12.
func assertConcurrentDebits(t *testing.T, store Store, n int) {
	t.Helper()
	ctx := context.Background()
	gate := NewGate(store, 12, nil)
	_, err := gate.Balance(ctx, "alice")
	require.NoError(t, err)

	var wg sync.WaitGroup
	var ok, insufficient atomic.Int32
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			switch gate.TryDebit(ctx, alice, 5, "search").Status {
			case StatusOK:
				ok.Add(1)
			case StatusInsufficientCredits:
				insufficient.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(2), ok.Load())
	assert.Equal(t, int32(n-2), insufficient.Load())

	balance, found, err := store.ReadBalance(ctx, "alice")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 2, balance.CurrentCredits)
}

func TestMemoryStoreConcurrentDebits(t *testing.T) {
	assertConcurrentDebits(t, NewMemoryStore(), 20)
}

func TestMemoryStoreUsersAreIndependent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	gate := NewGate(store, 5, nil)

	require.Equal(t, StatusOK, gate.TryDebit(ctx, alice, 5, "search").Status)
	require.Equal(t, StatusInsufficientCredits, gate.TryDebit(ctx, alice, 1, "search").Status)
	out := gate.TryDebit(ctx, Principal{UserID: "bob"}, 5, "search")
	assert.Equal(t, StatusOK, out.Status)
	assert.Zero(t, out.NewBalance)
}

func TestMemoryStoreUnprovisionedAccount(t *testing.T) {
	store := NewMemoryStore()
	_, _, err := store.AtomicDebit(context.Background(), "ghost", 1, "search")
	assert.ErrorIs(t, err, ErrAccountNotFound)
	_, err = store.Credit(context.Background(), "ghost", 1, "purchase")
	assert.ErrorIs(t, err, ErrAccountNotFound)

	first, err := store.Provision(context.Background(), "ghost", 4)
	require.NoError(t, err)
	again, err := store.Provision(context.Background(), "ghost", 99)
	require.NoError(t, err)
	assert.Equal(t, first.CurrentCredits, again.CurrentCredits)
}
