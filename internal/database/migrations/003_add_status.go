package migrations

import (
	"gorm.io/gorm"

	"github.com/hyusa97/stock-analysis-system/internal/types"
)

// AddStatus adds the status column and its indexes. Rows written
// before the column existed were always filled immediately, so the
// backfill default is EXECUTED.
func AddStatus(db *gorm.DB) error {
	if !db.Migrator().HasColumn(&types.TransactionRecord{}, "status") {
		if err := db.Exec(
			`ALTER TABLE transactions ADD COLUMN status TEXT NOT NULL DEFAULT 'EXECUTED'`,
		).Error; err != nil {
			return err
		}
	}

	indexes := []string{
		// Index for the sweep's pending scan
		`CREATE INDEX IF NOT EXISTS idx_transactions_status
		 ON transactions(status)`,

		// Composite index for per-user holdings queries
		`CREATE INDEX IF NOT EXISTS idx_transactions_username_status
		 ON transactions(username, status)`,
	}

	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return err
		}
	}

	return nil
}
