package settlement

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/hyusa97/stock-analysis-system/internal/ledger"
	"github.com/hyusa97/stock-analysis-system/internal/portfolio"
	"github.com/hyusa97/stock-analysis-system/internal/types"
)

// PriceLookup resolves the current market price for a symbol. An
// error, including a per-symbol timeout, means the quote is
// unavailable and the affected row stays PENDING.
type PriceLookup interface {
	LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// StatusChange is one applied transition from a sweep.
type StatusChange struct {
	ID        uint   `json:"id"`
	NewStatus string `json:"new_status"`
}

// Cutoff is the daily market close boundary in local time. Pending
// orders whose bid is still unmet at or after the cutoff are
// cancelled.
type Cutoff struct {
	Hour   int
	Minute int
}

// ParseCutoff parses an HH:MM string.
func ParseCutoff(value string) (Cutoff, error) {
	parts := strings.Split(value, ":")
	if len(parts) != 2 {
		return Cutoff{}, fmt.Errorf("invalid cutoff %q, expected HH:MM", value)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return Cutoff{}, fmt.Errorf("invalid cutoff hour in %q", value)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return Cutoff{}, fmt.Errorf("invalid cutoff minute in %q", value)
	}
	return Cutoff{Hour: hour, Minute: minute}, nil
}

// On resolves the cutoff against a reference day.
func (c Cutoff) On(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), c.Hour, c.Minute, 0, 0, day.Location())
}

// Sweeper resolves PENDING orders into EXECUTED or CANCELLED against
// fresh quotes. Each row is decided and applied independently; one
// bad quote or failed update never blocks the rest of the sweep.
type Sweeper struct {
	db            *ledger.Database
	holdings      *portfolio.Service
	cutoff        Cutoff
	lookupTimeout time.Duration
}

func NewSweeper(db *ledger.Database, holdings *portfolio.Service, cutoff Cutoff, lookupTimeout time.Duration) *Sweeper {
	return &Sweeper{
		db:            db,
		holdings:      holdings,
		cutoff:        cutoff,
		lookupTimeout: lookupTimeout,
	}
}

// Sweep walks the PENDING set once and returns the transitions it
// applied. A BUY executes when the price drops to the bid or below, a
// SELL when it rises to the bid or above; execution overwrites price
// and total with the looked-up price. Unmet orders are cancelled at
// or after the market close cutoff, keeping their last price and
// total.
func (s *Sweeper) Sweep(now time.Time, lookup PriceLookup) []StatusChange {
	logger := log.With().Str("service", "settlement").Logger()

	pending, err := s.db.QueryPending()
	if err != nil {
		logger.Error().Err(err).Msg("failed to load pending transactions")
		return nil
	}

	pastCutoff := !now.Before(s.cutoff.On(now))

	var changes []StatusChange
	for _, rec := range pending {
		ctx, cancel := context.WithTimeout(context.Background(), s.lookupTimeout)
		price, err := lookup.LastPrice(ctx, rec.Symbol)
		cancel()
		if err != nil {
			logger.Warn().
				Err(err).
				Uint("id", rec.ID).
				Str("symbol", rec.Symbol).
				Msg("price unavailable, order stays pending")
			continue
		}

		switch {
		case bidMet(rec, price):
			fields := map[string]interface{}{
				"status":     types.StatusExecuted,
				"price":      price,
				"total":      price.Mul(decimal.NewFromInt(rec.Quantity)),
				"updated_at": time.Now(),
			}
			if err := s.db.Update(rec.ID, fields); err != nil {
				logger.Error().Err(err).Uint("id", rec.ID).Msg("failed to execute pending order")
				continue
			}
			changes = append(changes, StatusChange{ID: rec.ID, NewStatus: types.StatusExecuted})
			logger.Info().
				Uint("id", rec.ID).
				Str("symbol", rec.Symbol).
				Str("action", rec.Action).
				Str("price", price.String()).
				Msg("pending order executed")
			s.checkOversold(rec, logger)

		case pastCutoff:
			fields := map[string]interface{}{
				"status":     types.StatusCancelled,
				"updated_at": time.Now(),
			}
			if err := s.db.Update(rec.ID, fields); err != nil {
				logger.Error().Err(err).Uint("id", rec.ID).Msg("failed to cancel pending order")
				continue
			}
			changes = append(changes, StatusChange{ID: rec.ID, NewStatus: types.StatusCancelled})
			logger.Info().
				Uint("id", rec.ID).
				Str("symbol", rec.Symbol).
				Msg("pending order cancelled at market close")
		}
	}

	return changes
}

func bidMet(rec types.TransactionRecord, price decimal.Decimal) bool {
	if rec.Action == types.ActionBuy {
		return price.LessThanOrEqual(rec.BidPrice)
	}
	return price.GreaterThanOrEqual(rec.BidPrice)
}

// checkOversold reports a SELL execution that drove a position
// negative. Sells are only guarded at intake time, so two pending
// sells for the same symbol can both fill; the overshoot is logged
// rather than rolled back.
func (s *Sweeper) checkOversold(rec types.TransactionRecord, logger zerolog.Logger) {
	if rec.Action != types.ActionSell {
		return
	}
	holdings, err := s.holdings.HoldingsOf(rec.Username)
	if err != nil {
		return
	}
	if held, ok := holdings[rec.Symbol]; ok && held.Quantity < 0 {
		logger.Warn().
			Str("username", rec.Username).
			Str("symbol", rec.Symbol).
			Int64("quantity", held.Quantity).
			Msg("settled sell drove position negative")
	}
}
