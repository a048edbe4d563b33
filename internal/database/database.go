package database

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/hyusa97/stock-analysis-system/internal/config"
	"github.com/hyusa97/stock-analysis-system/internal/database/migrations"
)

// NewDatabase opens the sqlite ledger store and brings its schema up
// to date. Safe to call on every process start: each migration is a
// no-op when its change is already present.
func NewDatabase(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(cfg.Database.DSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := migrations.CreateTransactions(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// The optional columns arrived after the first deployments. A
	// failure to add one leaves the ledger readable but degraded, so
	// it is reported and the process keeps running; the add is retried
	// on the next start.
	if err := migrations.AddBidPrice(db); err != nil {
		log.Warn().Err(err).Msg("bid_price migration failed, continuing without it")
	}
	if err := migrations.AddStatus(db); err != nil {
		log.Warn().Err(err).Msg("status migration failed, continuing without it")
	}

	return db, nil
}
