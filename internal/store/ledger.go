package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"domainflip/internal/ledger"
)

func toBalance(row CreditLedger) ledger.Balance {
	return ledger.Balance{
		UserID:                row.UserID,
		CurrentCredits:        row.CurrentCredits,
		TotalPurchasedCredits: row.TotalPurchasedCredits,
		UpdatedAt:             row.UpdatedAt,
	}
}

// ReadBalance implements ledger.Store.
func (d *Database) ReadBalance(ctx context.Context, userID string) (ledger.Balance, bool, error) {
	if d == nil {
		return ledger.Balance{}, false, errors.New("database is nil")
	}
	var row CreditLedger
	err := d.gorm.WithContext(ctx).Where("user_id = ?", userID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ledger.Balance{}, false, nil
	}
	if err != nil {
		return ledger.Balance{}, false, err
	}
	return toBalance(row), true, nil
}

// Provision implements ledger.Store. An existing row is left untouched.
func (d *Database) Provision(ctx context.Context, userID string, credits int) (ledger.Balance, error) {
	if d == nil {
		return ledger.Balance{}, errors.New("database is nil")
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	var row CreditLedger
	err := d.gorm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).Create(&CreditLedger{UserID: userID, CurrentCredits: credits, CreatedAt: now, UpdatedAt: now})
		if res.Error != nil {
			return res.Error
		}
		if err := tx.Where("user_id = ?", userID).Take(&row).Error; err != nil {
			return err
		}
		if res.RowsAffected == 0 {
			return nil
		}
		return tx.Create(newTransaction(userID, TransactionProvision, credits, "starting balance", row.CurrentCredits)).Error
	})
	if err != nil {
		return ledger.Balance{}, fmt.Errorf("provision ledger: %w", err)
	}
	return toBalance(row), nil
}

// AtomicDebit implements ledger.Store. The floor check is part of the UPDATE predicate, so a
// short balance matches no row and nothing changes.
func (d *Database) AtomicDebit(ctx context.Context, userID string, amount int, reason string) (int, bool, error) {
	if amount <= 0 {
		return 0, false, ledger.ErrInvalidAmount
	}
	if d == nil {
		return 0, false, errors.New("database is nil")
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	var (
		balance int
		debited bool
	)
	err := d.gorm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&CreditLedger{}).
			Where("user_id = ? AND current_credits >= ?", userID, amount).
			Updates(map[string]any{
				"current_credits": gorm.Expr("current_credits - ?", amount),
				"updated_at":      time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}

		var row CreditLedger
		if err := tx.Where("user_id = ?", userID).Take(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ledger.ErrAccountNotFound
			}
			return err
		}
		balance = row.CurrentCredits
		if res.RowsAffected == 0 {
			return nil
		}
		debited = true
		return tx.Create(newTransaction(userID, TransactionDebit, -amount, reason, balance)).Error
	})
	if err != nil {
		return 0, false, err
	}
	return balance, debited, nil
}

// Credit implements ledger.Store.
func (d *Database) Credit(ctx context.Context, userID string, amount int, reason string) (ledger.Balance, error) {
	if amount <= 0 {
		return ledger.Balance{}, ledger.ErrInvalidAmount
	}
	if d == nil {
		return ledger.Balance{}, errors.New("database is nil")
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	var row CreditLedger
	err := d.gorm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&CreditLedger{}).
			Where("user_id = ?", userID).
			Updates(map[string]any{
				"current_credits":         gorm.Expr("current_credits + ?", amount),
				"total_purchased_credits": gorm.Expr("total_purchased_credits + ?", amount),
				"updated_at":              time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ledger.ErrAccountNotFound
		}
		if err := tx.Where("user_id = ?", userID).Take(&row).Error; err != nil {
			return err
		}
		return tx.Create(newTransaction(userID, TransactionCredit, amount, reason, row.CurrentCredits)).Error
	})
	if err != nil {
		return ledger.Balance{}, err
	}
	return toBalance(row), nil
}

// ListLedgerTransactions returns a user's most recent balance mutations.
func (d *Database) ListLedgerTransactions(ctx context.Context, userID string, limit int) ([]LedgerTransaction, error) {
	if d == nil {
		return nil, errors.New("database is nil")
	}
	query := d.gorm.WithContext(ctx).Model(&LedgerTransaction{}).
		Where("user_id = ?", userID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []LedgerTransaction
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func newTransaction(userID, kind string, amount int, reason string, balanceAfter int) *LedgerTransaction {
	return &LedgerTransaction{
		ID:           uuid.NewString(),
		UserID:       userID,
		Kind:         kind,
		Amount:       amount,
		Reason:       reason,
		BalanceAfter: balanceAfter,
	}
}
