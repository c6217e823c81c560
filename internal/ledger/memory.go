package ledger

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps balances in process memory. Each account has its own lock, so debits
// for one user serialize while different users never contend.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[string]*memoryAccount
	now      func() time.Time
}

type memoryAccount struct {
	mu      sync.Mutex
	balance Balance
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[string]*memoryAccount), now: time.Now}
}

func (s *MemoryStore) account(userID string) *memoryAccount {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[userID]
}

// ReadBalance implements Store.
func (s *MemoryStore) ReadBalance(_ context.Context, userID string) (Balance, bool, error) {
	acct := s.account(userID)
	if acct == nil {
		return Balance{}, false, nil
	}
	acct.mu.Lock()
	defer acct.mu.Unlock()
	return acct.balance, true, nil
}

// Provision implements Store. An existing account is returned untouched.
func (s *MemoryStore) Provision(_ context.Context, userID string, credits int) (Balance, error) {
	s.mu.Lock()
	acct, ok := s.accounts[userID]
	if !ok {
		acct = &memoryAccount{balance: Balance{
			UserID:         userID,
			CurrentCredits: credits,
			UpdatedAt:      s.now().UTC(),
		}}
		s.accounts[userID] = acct
	}
	s.mu.Unlock()

	acct.mu.Lock()
	defer acct.mu.Unlock()
	return acct.balance, nil
}

// AtomicDebit implements Store.
func (s *MemoryStore) AtomicDebit(_ context.Context, userID string, amount int, _ string) (int, bool, error) {
	if amount <= 0 {
		return 0, false, ErrInvalidAmount
	}
	acct := s.account(userID)
	if acct == nil {
		return 0, false, ErrAccountNotFound
	}
	acct.mu.Lock()
	defer acct.mu.Unlock()
	if acct.balance.CurrentCredits < amount {
		return acct.balance.CurrentCredits, false, nil
	}
	acct.balance.CurrentCredits -= amount
	acct.balance.UpdatedAt = s.now().UTC()
	return acct.balance.CurrentCredits, true, nil
}

// Credit implements Store.
func (s *MemoryStore) Credit(_ context.Context, userID string, amount int, _ string) (Balance, error) {
	if amount <= 0 {
		return Balance{}, ErrInvalidAmount
	}
	acct := s.account(userID)
	if acct == nil {
		return Balance{}, ErrAccountNotFound
	}
	acct.mu.Lock()
	defer acct.mu.Unlock()
	acct.balance.CurrentCredits += amount
	acct.balance.TotalPurchasedCredits += amount
	acct.balance.UpdatedAt = s.now().UTC()
	return acct.balance, nil
}
