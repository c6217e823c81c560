package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"domainflip/internal/availability"
)

// Database wraps the GORM DB handle and exposes repository helpers. Writes are serialized
// through mu; SQLite allows a single writer anyway.
type Database struct {
	gorm *gorm.DB
	mu   sync.Mutex
}

// Open initializes the SQLite-backed database at the provided path.
func Open(path string, silent bool) (*Database, error) {
	cfg := &gorm.Config{}
	if silent {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	db, err := gorm.Open(sqlite.Open(path), cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&CreditLedger{}, &LedgerTransaction{}, &ValidationLog{}, &SearchHistory{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		logrus.WithError(err).Warn("enable WAL mode")
	}
	if err := db.Exec("PRAGMA synchronous=NORMAL").Error; err != nil {
		logrus.WithError(err).Warn("set synchronous pragma")
	}
	if err := applyIndexes(db); err != nil {
		return nil, fmt.Errorf("apply indexes: %w", err)
	}
	return &Database{gorm: db}, nil
}

// Close closes the underlying database connection.
func (d *Database) Close() error {
	if d == nil {
		return nil
	}
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Append implements availability.AuditLog.
func (d *Database) Append(ctx context.Context, entry availability.ValidationLogEntry) error {
	if d == nil {
		return errors.New("database is nil")
	}
	row := &ValidationLog{
		Domain:    strings.ToLower(strings.TrimSpace(entry.Domain)),
		Source:    string(entry.Source),
		Status:    entry.Status,
		Message:   entry.Message,
		CreatedAt: entry.CreatedAt,
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.WithContext(ctx).Create(row).Error
}

// ValidationLogQuery filters and pages validation log rows.
type ValidationLogQuery struct {
	Domain string
	Source string
	Status string
	Offset int
	Limit  int
}

// ListValidationLogs returns validation log rows, newest first.
func (d *Database) ListValidationLogs(ctx context.Context, opts ValidationLogQuery) ([]ValidationLog, int64, error) {
	if d == nil {
		return nil, 0, errors.New("database is nil")
	}
	base := d.gorm.WithContext(ctx).Model(&ValidationLog{})
	if domain := strings.ToLower(strings.TrimSpace(opts.Domain)); domain != "" {
		base = base.Where("domain = ?", domain)
	}
	if source := strings.TrimSpace(opts.Source); source != "" {
		base = base.Where("source = ?", source)
	}
	if status := strings.TrimSpace(opts.Status); status != "" {
		base = base.Where("status = ?", status)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query := base.Order("created_at DESC, id DESC").Offset(opts.Offset)
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}
	var rows []ValidationLog
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// SaveSearch stores a completed search for the user's history.
func (d *Database) SaveSearch(ctx context.Context, entry *SearchHistory) error {
	if entry == nil {
		return errors.New("search history entry is nil")
	}
	if d == nil {
		return errors.New("database is nil")
	}
	if entry.ResultsJSON == "" {
		entry.ResultsJSON = "[]"
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.WithContext(ctx).Create(entry).Error
}

// ListSearchHistory returns a user's searches, newest first.
func (d *Database) ListSearchHistory(ctx context.Context, userID string, offset, limit int) ([]SearchHistory, int64, error) {
	if d == nil {
		return nil, 0, errors.New("database is nil")
	}
	base := d.gorm.WithContext(ctx).Model(&SearchHistory{}).Where("user_id = ?", userID)
	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query := base.Order("created_at DESC, id DESC").Offset(offset)
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []SearchHistory
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func applyIndexes(db *gorm.DB) error {
	stmts := []string{
		"CREATE INDEX IF NOT EXISTS idx_validation_logs_domain_created ON validation_logs(domain, created_at)",
		"CREATE INDEX IF NOT EXISTS idx_ledger_transactions_user_created ON ledger_transactions(user_id, created_at)",
		"CREATE INDEX IF NOT EXISTS idx_search_histories_user_created ON search_histories(user_id, created_at)",
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
