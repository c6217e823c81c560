package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"domainflip/internal/metrics"
)

var (
	// ErrLedgerUnavailable wraps any storage failure surfaced by the gate.
	ErrLedgerUnavailable = errors.New("ledger unavailable")
	// ErrInvalidAmount is returned for non-positive debit or credit amounts.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrAccountNotFound is returned by stores asked to mutate a balance that was never provisioned.
	ErrAccountNotFound = errors.New("ledger account not found")
)

// DefaultStartingCredits is granted to a user on first use.
const DefaultStartingCredits = 10

// Role is the flat authorization level of a caller.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole maps a header value onto a role. Anything unrecognized is a plain user.
func ParseRole(raw string) Role {
	if strings.EqualFold(strings.TrimSpace(raw), string(RoleAdmin)) {
		return RoleAdmin
	}
	return RoleUser
}

// Principal identifies the caller of a billable operation.
type Principal struct {
	UserID string
	Role   Role
}

// IsAdmin reports whether the principal bypasses the gate.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Balance is the per-user ledger state.
type Balance struct {
	UserID                string    `json:"user_id"`
	CurrentCredits        int       `json:"current_credits"`
	TotalPurchasedCredits int       `json:"total_purchased_credits"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// Store is the persistence contract behind the gate. AtomicDebit must perform the
// balance check and the decrement as one indivisible step: when the balance is short it
// returns ok=false with the unchanged balance and mutates nothing.
type Store interface {
	ReadBalance(ctx context.Context, userID string) (Balance, bool, error)
	Provision(ctx context.Context, userID string, credits int) (Balance, error)
	AtomicDebit(ctx context.Context, userID string, amount int, reason string) (newBalance int, ok bool, err error)
	Credit(ctx context.Context, userID string, amount int, reason string) (Balance, error)
}

// Status is the result kind of a gate decision.
type Status string

const (
	StatusOK                  Status = "ok"
	StatusInsufficientCredits Status = "insufficient_credits"
	StatusLedgerUnavailable   Status = "ledger_unavailable"
	StatusBypassed            Status = "bypassed"
	StatusInvalidAmount       Status = "invalid_amount"
)

// Outcome is the gate's answer. It is data, never an error: callers branch on Status.
type Outcome struct {
	Status           Status `json:"status"`
	NewBalance       int    `json:"new_balance,omitempty"`
	AvailableCredits int    `json:"available_credits,omitempty"`
	RequiredCredits  int    `json:"required_credits,omitempty"`
	Err              error  `json:"-"`
}

// Allowed reports whether the paid operation may proceed.
func (o Outcome) Allowed() bool {
	return o.Status == StatusOK || o.Status == StatusBypassed
}

// Gate authorizes billable operations against a Store.
type Gate struct {
	store          Store
	defaultCredits int
	metrics        *metrics.Metrics
}

// NewGate wires the gate. A non-positive defaultCredits falls back to DefaultStartingCredits.
func NewGate(store Store, defaultCredits int, m *metrics.Metrics) *Gate {
	if defaultCredits <= 0 {
		defaultCredits = DefaultStartingCredits
	}
	return &Gate{store: store, defaultCredits: defaultCredits, metrics: m}
}

// TryDebit charges amount credits for reason. Admins are let through before the store is
// touched; users are provisioned on first use and then debited atomically.
func (g *Gate) TryDebit(ctx context.Context, p Principal, amount int, reason string) Outcome {
	outcome := g.tryDebit(ctx, p, amount, reason)
	g.metrics.IncGateOutcome(reason, string(outcome.Status))

	fields := logrus.Fields{
		"user_id": p.UserID,
		"amount":  amount,
		"reason":  reason,
		"status":  outcome.Status,
	}
	switch outcome.Status {
	case StatusLedgerUnavailable:
		logrus.WithError(outcome.Err).WithFields(fields).Error("credit gate could not reach ledger")
	case StatusInvalidAmount:
		logrus.WithFields(fields).Error("credit gate called with invalid amount")
	default:
		logrus.WithFields(fields).Debug("credit gate decision")
	}
	return outcome
}

func (g *Gate) tryDebit(ctx context.Context, p Principal, amount int, reason string) Outcome {
	if p.IsAdmin() {
		return Outcome{Status: StatusBypassed}
	}
	if amount <= 0 {
		return Outcome{Status: StatusInvalidAmount, RequiredCredits: amount, Err: ErrInvalidAmount}
	}
	if g.store == nil {
		return unavailable(errors.New("no ledger store configured"))
	}

	if _, err := g.ensure(ctx, p.UserID); err != nil {
		return unavailable(err)
	}

	balance, ok, err := g.store.AtomicDebit(ctx, p.UserID, amount, reason)
	if err != nil {
		return unavailable(fmt.Errorf("debit: %w", err))
	}
	if !ok {
		return Outcome{
			Status:           StatusInsufficientCredits,
			AvailableCredits: balance,
			RequiredCredits:  amount,
		}
	}
	return Outcome{Status: StatusOK, NewBalance: balance}
}

// Balance returns the user's ledger state, provisioning it if absent.
func (g *Gate) Balance(ctx context.Context, userID string) (Balance, error) {
	if g.store == nil {
		return Balance{}, ErrLedgerUnavailable
	}
	balance, err := g.ensure(ctx, userID)
	if err != nil {
		return Balance{}, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	return balance, nil
}

// Grant adds purchased credits to a user's balance.
func (g *Gate) Grant(ctx context.Context, userID string, amount int, reason string) (Balance, error) {
	if amount <= 0 {
		return Balance{}, ErrInvalidAmount
	}
	if g.store == nil {
		return Balance{}, ErrLedgerUnavailable
	}
	if _, err := g.ensure(ctx, userID); err != nil {
		return Balance{}, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	balance, err := g.store.Credit(ctx, userID, amount, reason)
	if err != nil {
		return Balance{}, fmt.Errorf("%w: credit: %v", ErrLedgerUnavailable, err)
	}
	logrus.WithFields(logrus.Fields{
		"user_id": userID,
		"amount":  amount,
		"reason":  reason,
		"balance": balance.CurrentCredits,
	}).Info("credits granted")
	return balance, nil
}

func (g *Gate) ensure(ctx context.Context, userID string) (Balance, error) {
	if strings.TrimSpace(userID) == "" {
		return Balance{}, errors.New("user id is required")
	}
	balance, found, err := g.store.ReadBalance(ctx, userID)
	if err != nil {
		return Balance{}, fmt.Errorf("read balance: %w", err)
	}
	if found {
		return balance, nil
	}
	balance, err = g.store.Provision(ctx, userID, g.defaultCredits)
	if err != nil {
		return Balance{}, fmt.Errorf("provision: %w", err)
	}
	return balance, nil
}

func unavailable(err error) Outcome {
	return Outcome{Status: StatusLedgerUnavailable, Err: fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)}
}
