package types

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Transaction actions. The ledger table carries a CHECK constraint
// restricting the action column to these two values.
const (
	ActionBuy  = "BUY"
	ActionSell = "SELL"
)

// Transaction statuses. PENDING is the only non-terminal state: a row
// moves PENDING -> EXECUTED or PENDING -> CANCELLED, never back.
const (
	StatusExecuted  = "EXECUTED"
	StatusPending   = "PENDING"
	StatusCancelled = "CANCELLED"
)

// TransactionRecord is one row of the trade ledger. Rows are appended
// by trade intake and mutated only by the settlement sweeper while
// still PENDING; they are never deleted.
type TransactionRecord struct {
	gorm.Model    `json:"-"`
	TransactionID string          `gorm:"uniqueIndex" json:"transaction_id"`
	Username      string          `gorm:"index" json:"username"`
	Symbol        string          `json:"symbol"`
	Action        string          `json:"action"` // BUY or SELL
	Quantity      int64           `json:"quantity"`
	Price         decimal.Decimal `gorm:"type:decimal(20,8)" json:"price"`
	BidPrice      decimal.Decimal `gorm:"type:decimal(20,8)" json:"bid_price"`
	Total         decimal.Decimal `gorm:"type:decimal(20,8)" json:"total"`
	Status        string          `gorm:"index" json:"status"` // EXECUTED, PENDING, CANCELLED
	Timestamp     time.Time       `json:"timestamp"`
}

// TableName keeps the table name aligned with the hand-written schema
// migration in internal/database/migrations.
func (TransactionRecord) TableName() string {
	return "transactions"
}

// Holding is the derived position for one (username, symbol) pair. It
// is never stored; it is recomputed from EXECUTED ledger rows on every
// read. Quantity may go negative when a symbol carries only SELL rows
// and is reported as-is, not clamped. AvgPrice is the BUY-weighted
// average price, zero when the symbol has no BUY rows.
type Holding struct {
	Symbol   string          `json:"symbol"`
	Quantity int64           `json:"quantity"`
	AvgPrice decimal.Decimal `json:"avg_price"`
}
