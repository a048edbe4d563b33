package settlement

import (
	"context"
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
	"github.com/hyusa97/stock-analysis-system/internal/portfolio"
	"github.com/hyusa97/stock-analysis-system/internal/types"
)

// stubLookup serves fixed prices; symbols without an entry are
// unavailable.
type stubLookup struct {
	prices map[string]string
}

func (s stubLookup) LastPrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	price, ok := s.prices[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", types.ErrPriceUnavailable, symbol)
	}
	return decimal.RequireFromString(price), nil
}

func setupTestSweeper(t *testing.T) (*Sweeper, *ledger.Database) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, migrations.CreateTransactions(db))
	require.NoError(t, migrations.AddBidPrice(db))
	require.NoError(t, migrations.AddStatus(db))

	ledgerDB := ledger.NewDatabase(db)
	sweeper := NewSweeper(ledgerDB, portfolio.NewService(ledgerDB), Cutoff{Hour: 16, Minute: 0}, time.Second)
	return sweeper, ledgerDB
}

func appendPending(t *testing.T, db *ledger.Database, symbol, action string, quantity int64, price, bid string) uint {
	t.Helper()
	p := decimal.RequireFromString(price)
	rec := &types.TransactionRecord{
		TransactionID: uuid.New().String(),
		Username:      "admin",
		Symbol:        symbol,
		Action:        action,
		Quantity:      quantity,
		Price:         p,
		BidPrice:      decimal.RequireFromString(bid),
		Total:         p.Mul(decimal.NewFromInt(quantity)),
		Status:        types.StatusPending,
		Timestamp:     time.Now(),
	}
	id, err := db.Append(rec)
	require.NoError(t, err)
	return id
}

func findByID(t *testing.T, db *ledger.Database, id uint) types.TransactionRecord {
	t.Helper()
	records, err := db.QueryByUser("admin")
	require.NoError(t, err)
	for _, rec := range records {
		if rec.ID == id {
			return rec
		}
	}
	t.Fatalf("record %d not found", id)
	return types.TransactionRecord{}
}

// beforeCutoff is mid-session on an arbitrary trading day.
var beforeCutoff = time.Date(2024, 3, 12, 11, 0, 0, 0, time.Local)

// afterCutoff is past the 16:00 market close on the same day.
var afterCutoff = time.Date(2024, 3, 12, 16, 30, 0, 0, time.Local)

func TestSweepExecutesBuyWhenPriceMeetsBid(t *testing.T) {
	sweeper, db := setupTestSweeper(t)
	id := appendPending(t, db, "AAPL", types.ActionBuy, 5, "100.00", "95.00")

	changes := sweeper.Sweep(beforeCutoff, stubLookup{prices: map[string]string{"AAPL": "94.00"}})

	require.Len(t, changes, 1)
	assert.Equal(t, id, changes[0].ID)
	assert.Equal(t, types.StatusExecuted, changes[0].NewStatus)

	rec := findByID(t, db, id)
	assert.Equal(t, types.StatusExecuted, rec.Status)
	assert.True(t, rec.Price.Equal(decimal.RequireFromString("94.00")))
	assert.True(t, rec.Total.Equal(decimal.RequireFromString("470.00")))
}

func TestSweepExecutesSellWhenPriceMeetsBid(t *testing.T) {
	sweeper, db := setupTestSweeper(t)
	id := appendPending(t, db, "MSFT", types.ActionSell, 2, "200.00", "210.00")

	changes := sweeper.Sweep(beforeCutoff, stubLookup{prices: map[string]string{"MSFT": "211.50"}})

	require.Len(t, changes, 1)
	rec := findByID(t, db, id)
	assert.Equal(t, types.StatusExecuted, rec.Status)
	assert.True(t, rec.Price.Equal(decimal.RequireFromString("211.50")))
	assert.True(t, rec.Total.Equal(decimal.RequireFromString("423.00")))
}

func TestSweepLeavesUnmetOrderPendingBeforeCutoff(t *testing.T) {
	sweeper, db := setupTestSweeper(t)
	id := appendPending(t, db, "AAPL", types.ActionBuy, 5, "100.00", "95.00")

	changes := sweeper.Sweep(beforeCutoff, stubLookup{prices: map[string]string{"AAPL": "99.00"}})

	assert.Empty(t, changes)
	rec := findByID(t, db, id)
	assert.Equal(t, types.StatusPending, rec.Status)
}

func TestSweepCancelsUnmetOrderAtCutoff(t *testing.T) {
	sweeper, db := setupTestSweeper(t)
	id := appendPending(t, db, "AAPL", types.ActionBuy, 5, "100.00", "95.00")

	changes := sweeper.Sweep(afterCutoff, stubLookup{prices: map[string]string{"AAPL": "99.00"}})

	require.Len(t, changes, 1)
	assert.Equal(t, types.StatusCancelled, changes[0].NewStatus)

	// Cancellation keeps the last observed price and total
	rec := findByID(t, db, id)
	assert.Equal(t, types.StatusCancelled, rec.Status)
	assert.True(t, rec.Price.Equal(decimal.RequireFromString("100.00")))
	assert.True(t, rec.Total.Equal(decimal.RequireFromString("500.00")))
}

func TestSweepMetBidWinsOverCutoff(t *testing.T) {
	sweeper, db := setupTestSweeper(t)
	id := appendPending(t, db, "AAPL", types.ActionBuy, 5, "100.00", "95.00")

	changes := sweeper.Sweep(afterCutoff, stubLookup{prices: map[string]string{"AAPL": "94.00"}})

	require.Len(t, changes, 1)
	assert.Equal(t, types.StatusExecuted, changes[0].NewStatus)
	rec := findByID(t, db, id)
	assert.Equal(t, types.StatusExecuted, rec.Status)
}

func TestSweepSkipsUnavailableSymbolInIsolation(t *testing.T) {
	sweeper, db := setupTestSweeper(t)
	unavailableID := appendPending(t, db, "GOOGL", types.ActionBuy, 1, "100.00", "95.00")
	executableID := appendPending(t, db, "AAPL", types.ActionBuy, 5, "100.00", "95.00")

	// GOOGL has no quote; AAPL must still settle
	changes := sweeper.Sweep(afterCutoff, stubLookup{prices: map[string]string{"AAPL": "94.00"}})

	require.Len(t, changes, 1)
	assert.Equal(t, executableID, changes[0].ID)

	assert.Equal(t, types.StatusPending, findByID(t, db, unavailableID).Status)
	assert.Equal(t, types.StatusExecuted, findByID(t, db, executableID).Status)
}

// interleavingLookup flips one row to a terminal status on its first
// call, simulating a concurrent writer racing the sweep between its
// pending query and its update.
type interleavingLookup struct {
	prices  stubLookup
	db      *ledger.Database
	flipID  uint
	flipped bool
}

func (l *interleavingLookup) LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if !l.flipped {
		l.flipped = true
		err := l.db.Update(l.flipID, map[string]interface{}{
			"status":     types.StatusCancelled,
			"updated_at": time.Now(),
		})
		if err != nil {
			return decimal.Zero, err
		}
	}
	return l.prices.LastPrice(ctx, symbol)
}

func TestSweepFailedUpdateDoesNotBlockOtherRows(t *testing.T) {
	sweeper, db := setupTestSweeper(t)

	racedID := appendPending(t, db, "MSFT", types.ActionBuy, 5, "100.00", "95.00")
	otherID := appendPending(t, db, "AAPL", types.ActionBuy, 10, "150.00", "140.00")

	// Both bids are met, but the raced row turns terminal under the
	// sweep's feet, so its update must fail without touching the rest.
	lookup := &interleavingLookup{
		prices: stubLookup{prices: map[string]string{"MSFT": "94.00", "AAPL": "139.00"}},
		db:     db,
		flipID: racedID,
	}

	changes := sweeper.Sweep(beforeCutoff, lookup)

	require.Len(t, changes, 1)
	assert.Equal(t, otherID, changes[0].ID)
	assert.Equal(t, types.StatusExecuted, changes[0].NewStatus)

	raced := findByID(t, db, racedID)
	assert.Equal(t, types.StatusCancelled, raced.Status)
	assert.True(t, decimal.RequireFromString("100.00").Equal(raced.Price))

	other := findByID(t, db, otherID)
	assert.Equal(t, types.StatusExecuted, other.Status)
	assert.True(t, decimal.RequireFromString("139.00").Equal(other.Price))
}

func TestSweepIgnoresTerminalRows(t *testing.T) {
	sweeper, db := setupTestSweeper(t)
	id := appendPending(t, db, "AAPL", types.ActionBuy, 5, "100.00", "95.00")

	first := sweeper.Sweep(beforeCutoff, stubLookup{prices: map[string]string{"AAPL": "94.00"}})
	require.Len(t, first, 1)

	// A second sweep with an even lower price must not touch the row
	// again: executed is terminal.
	second := sweeper.Sweep(beforeCutoff, stubLookup{prices: map[string]string{"AAPL": "90.00"}})
	assert.Empty(t, second)

	rec := findByID(t, db, id)
	assert.True(t, rec.Price.Equal(decimal.RequireFromString("94.00")))
}

func TestParseCutoff(t *testing.T) {
	cutoff, err := ParseCutoff("16:00")
	require.NoError(t, err)
	assert.Equal(t, 16, cutoff.Hour)
	assert.Equal(t, 0, cutoff.Minute)

	day := time.Date(2024, 3, 12, 9, 0, 0, 0, time.Local)
	resolved := cutoff.On(day)
	assert.Equal(t, 16, resolved.Hour())
	assert.Equal(t, day.Day(), resolved.Day())

	for _, bad := range []string{"", "16", "24:00", "16:60", "aa:bb"} {
		_, err := ParseCutoff(bad)
		assert.Error(t, err, "expected %q to be rejected", bad)
	}
}
