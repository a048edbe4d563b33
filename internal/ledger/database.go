package ledger

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/hyusa97/stock-analysis-system/internal/types"
)

// ErrNotPending is returned by Update when the target row is missing
// or no longer PENDING. Callers must treat it as a real failure, a
// silent zero-rows no-op would mask a lost update.
var ErrNotPending = errors.New("transaction missing or not pending")

const (
	maxRetries   = 3
	retryBackoff = 50 * time.Millisecond
)

// Database is the append-only writer and reader of the trade ledger.
// It is the single source of truth; everything else is derived.
type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// withRetry runs fn, retrying with linear backoff when sqlite reports
// lock contention. Contention is resolved here rather than surfaced
// to the end user.
func (d *Database) withRetry(fn func() error) error {
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err = fn()
		if err == nil || !isLockConflict(err) {
			return err
		}
		time.Sleep(retryBackoff * time.Duration(attempt+1))
	}
	return fmt.Errorf("%w: %v", types.ErrPersistenceConflict, err)
}

func isLockConflict(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

// Append writes one transaction record as a single all-or-nothing
// transaction and returns the assigned row id. A concurrent reader
// sees either the whole row or nothing.
func (d *Database) Append(rec *types.TransactionRecord) (uint, error) {
	err := d.withRetry(func() error {
		return d.db.Transaction(func(tx *gorm.DB) error {
			return tx.Create(rec).Error
		})
	})
	if err != nil {
		return 0, err
	}
	return rec.ID, nil
}

// Update atomically rewrites a subset of columns on exactly one
// PENDING row. Returns ErrNotPending when no row matched, either the
// id does not exist or the row already reached a terminal status.
func (d *Database) Update(id uint, fields map[string]interface{}) error {
	return d.withRetry(func() error {
		result := d.db.Model(&types.TransactionRecord{}).
			Where("id = ? AND status = ?", id, types.StatusPending).
			Updates(fields)

		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: id %d", ErrNotPending, id)
		}
		return nil
	})
}

// QueryByUser returns all of a user's transactions, newest first.
func (d *Database) QueryByUser(username string) ([]types.TransactionRecord, error) {
	var records []types.TransactionRecord
	if err := d.db.Where("username = ?", username).
		Order("timestamp DESC, id DESC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// QueryPending returns every PENDING transaction, in no particular
// order; the sweep treats rows as mutually independent.
func (d *Database) QueryPending() ([]types.TransactionRecord, error) {
	var records []types.TransactionRecord
	if err := d.db.Where("status = ?", types.StatusPending).
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
