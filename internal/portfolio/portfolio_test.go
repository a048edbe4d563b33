package portfolio

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/hyusa97/stock-analysis-system/internal/database/migrations"
	"github.com/hyusa97/stock-analysis-system/internal/ledger"
	"github.com/hyusa97/stock-analysis-system/internal/types"
)

func setupTestService(t *testing.T) (*Service, *ledger.Database) {
	t.Helper()

	// Unique name per call so two stores in one test stay separate
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, migrations.CreateTransactions(db))
	require.NoError(t, migrations.AddBidPrice(db))
	require.NoError(t, migrations.AddStatus(db))

	ledgerDB := ledger.NewDatabase(db)
	return NewService(ledgerDB), ledgerDB
}

func appendRow(t *testing.T, db *ledger.Database, symbol, action string, quantity int64, price, status string) {
	t.Helper()
	p := decimal.RequireFromString(price)
	_, err := db.Append(&types.TransactionRecord{
		TransactionID: uuid.New().String(),
		Username:      "admin",
		Symbol:        symbol,
		Action:        action,
		Quantity:      quantity,
		Price:         p,
		BidPrice:      p,
		Total:         p.Mul(decimal.NewFromInt(quantity)),
		Status:        status,
		Timestamp:     time.Now(),
	})
	require.NoError(t, err)
}

func TestHoldingsSignedSumAndWeightedAverage(t *testing.T) {
	svc, db := setupTestService(t)

	appendRow(t, db, "AAPL", types.ActionBuy, 10, "100.00", types.StatusExecuted)
	appendRow(t, db, "AAPL", types.ActionBuy, 30, "120.00", types.StatusExecuted)
	appendRow(t, db, "AAPL", types.ActionSell, 15, "130.00", types.StatusExecuted)

	holdings, err := svc.HoldingsOf("admin")
	require.NoError(t, err)
	require.Contains(t, holdings, "AAPL")

	aapl := holdings["AAPL"]
	assert.Equal(t, int64(25), aapl.Quantity)
	// (10*100 + 30*120) / 40 = 115
	assert.True(t, aapl.AvgPrice.Equal(decimal.RequireFromString("115")),
		"got avg price %s", aapl.AvgPrice)
}

func TestHoldingsIgnoreNonExecutedRows(t *testing.T) {
	svc, db := setupTestService(t)

	appendRow(t, db, "AAPL", types.ActionBuy, 10, "100.00", types.StatusExecuted)
	appendRow(t, db, "AAPL", types.ActionBuy, 99, "50.00", types.StatusPending)
	appendRow(t, db, "AAPL", types.ActionSell, 99, "200.00", types.StatusCancelled)

	holdings, err := svc.HoldingsOf("admin")
	require.NoError(t, err)

	aapl := holdings["AAPL"]
	assert.Equal(t, int64(10), aapl.Quantity)
	assert.True(t, aapl.AvgPrice.Equal(decimal.RequireFromString("100")))
}

func TestHoldingsOrderIndependence(t *testing.T) {
	rows := []struct {
		action   string
		quantity int64
		price    string
	}{
		{types.ActionBuy, 5, "10.00"},
		{types.ActionSell, 3, "12.00"},
		{types.ActionBuy, 7, "20.00"},
		{types.ActionSell, 2, "25.00"},
	}

	// Same rows, reversed insertion order
	forward, forwardDB := setupTestService(t)
	for _, row := range rows {
		appendRow(t, forwardDB, "MSFT", row.action, row.quantity, row.price, types.StatusExecuted)
	}

	backward, backwardDB := setupTestService(t)
	for i := len(rows) - 1; i >= 0; i-- {
		appendRow(t, backwardDB, "MSFT", rows[i].action, rows[i].quantity, rows[i].price, types.StatusExecuted)
	}

	a, err := forward.HoldingsOf("admin")
	require.NoError(t, err)
	b, err := backward.HoldingsOf("admin")
	require.NoError(t, err)

	assert.Equal(t, a["MSFT"].Quantity, b["MSFT"].Quantity)
	assert.True(t, a["MSFT"].AvgPrice.Equal(b["MSFT"].AvgPrice))
	assert.Equal(t, int64(7), a["MSFT"].Quantity)
}

func TestHoldingsOnlySellRowsReportedNegative(t *testing.T) {
	svc, db := setupTestService(t)

	appendRow(t, db, "GOOGL", types.ActionSell, 4, "90.00", types.StatusExecuted)

	holdings, err := svc.HoldingsOf("admin")
	require.NoError(t, err)
	require.Contains(t, holdings, "GOOGL")

	googl := holdings["GOOGL"]
	assert.Equal(t, int64(-4), googl.Quantity)
	// No BUY rows: average price reported as zero, not a division fault
	assert.True(t, googl.AvgPrice.IsZero())
}

func TestHoldingsEmptyLedger(t *testing.T) {
	svc, _ := setupTestService(t)

	holdings, err := svc.HoldingsOf("admin")
	require.NoError(t, err)
	assert.Empty(t, holdings)
}
