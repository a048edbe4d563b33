package migrations

import (
	"gorm.io/gorm"

	"github.com/hyusa97/stock-analysis-system/internal/types"
)

// AddBidPrice adds the bid_price column to ledgers created before
// limit-style orders existed. Existing rows default to 0, an
// already-executed historical trade has no meaningful bid.
func AddBidPrice(db *gorm.DB) error {
	if db.Migrator().HasColumn(&types.TransactionRecord{}, "bid_price") {
		return nil
	}

	return db.Exec(
		`ALTER TABLE transactions ADD COLUMN bid_price DECIMAL(20,8) NOT NULL DEFAULT 0`,
	).Error
}
