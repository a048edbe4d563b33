package migrations

import (
	"gorm.io/gorm"
)

// CreateTransactions creates the ledger table. The action CHECK
// constraint has to be part of the CREATE TABLE statement, so the
// table is written by hand rather than auto-migrated.
func CreateTransactions(db *gorm.DB) error {
	createTable := `CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at DATETIME,
		updated_at DATETIME,
		deleted_at DATETIME,
		transaction_id TEXT,
		username TEXT NOT NULL,
		symbol TEXT NOT NULL,
		action TEXT NOT NULL CHECK(action IN ('BUY','SELL')),
		quantity INTEGER NOT NULL,
		price DECIMAL(20,8) NOT NULL DEFAULT 0,
		total DECIMAL(20,8) NOT NULL DEFAULT 0,
		timestamp DATETIME
	)`

	if err := db.Exec(createTable).Error; err != nil {
		return err
	}

	// Indexes via raw SQL for control over names and uniqueness
	indexes := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_transaction_id
		 ON transactions(transaction_id)`,

		`CREATE INDEX IF NOT EXISTS idx_transactions_username
		 ON transactions(username)`,

		`CREATE INDEX IF NOT EXISTS idx_transactions_deleted_at
		 ON transactions(deleted_at)`,
	}

	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return err
		}
	}

	return nil
}
