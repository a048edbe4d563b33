package portfolio

import (
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/hyusa97/stock-analysis-system/internal/ledger"
	"github.com/hyusa97/stock-analysis-system/internal/types"
	"github.com/hyusa97/stock-analysis-system/pkg/response"
)

// avgPricePrecision is the scale holdings averages are rounded to.
const avgPricePrecision = 8

// Service derives per-symbol holdings from the ledger. It is a pure
// read-side projection: nothing here writes.
type Service struct {
	db *ledger.Database
}

func NewService(db *ledger.Database) *Service {
	return &Service{db: db}
}

// HoldingsOf computes the current position per symbol for a user from
// EXECUTED rows only. BUY adds quantity, SELL subtracts it; the
// average price is weighted over BUY rows alone. The result is
// independent of row order.
func (s *Service) HoldingsOf(username string) (map[string]types.Holding, error) {
	records, err := s.db.QueryByUser(username)
	if err != nil {
		return nil, err
	}

	type position struct {
		quantity int64
		buyQty   int64
		buyCost  decimal.Decimal
	}
	positions := make(map[string]*position)

	for _, rec := range records {
		if rec.Status != types.StatusExecuted {
			continue
		}

		pos := positions[rec.Symbol]
		if pos == nil {
			pos = &position{buyCost: decimal.Zero}
			positions[rec.Symbol] = pos
		}

		switch rec.Action {
		case types.ActionBuy:
			pos.quantity += rec.Quantity
			pos.buyQty += rec.Quantity
			pos.buyCost = pos.buyCost.Add(rec.Price.Mul(decimal.NewFromInt(rec.Quantity)))
		case types.ActionSell:
			pos.quantity -= rec.Quantity
		}
	}

	holdings := make(map[string]types.Holding, len(positions))
	for symbol, pos := range positions {
		avgPrice := decimal.Zero
		if pos.buyQty > 0 {
			avgPrice = pos.buyCost.DivRound(decimal.NewFromInt(pos.buyQty), avgPricePrecision)
		}
		holdings[symbol] = types.Holding{
			Symbol:   symbol,
			Quantity: pos.quantity,
			AvgPrice: avgPrice,
		}
	}

	return holdings, nil
}

// SweepTrigger resolves outstanding pending orders so that a rendered
// view reflects the latest settlement state.
type SweepTrigger interface {
	SweepNow() int
}

// GinHandlers contains HTTP handlers for the portfolio and
// transaction-history views.
type GinHandlers struct {
	service *Service
	db      *ledger.Database
	sweeper SweepTrigger
}

func NewGinHandlers(service *Service, db *ledger.Database, sweeper SweepTrigger) *GinHandlers {
	return &GinHandlers{
		service: service,
		db:      db,
		sweeper: sweeper,
	}
}

// PortfolioHandler handles GET requests for the holdings view. A
// sweep runs first so freshly settled orders show up in the position.
func (h *GinHandlers) PortfolioHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		username := c.GetString("username")
		if username == "" {
			response.Unauthorized(c, "Missing username in token")
			return
		}

		h.sweeper.SweepNow()

		holdings, err := h.service.HoldingsOf(username)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}

		resp := types.PortfolioResponse{
			Username:  username,
			Holdings:  make([]types.Holding, 0, len(holdings)),
			Timestamp: time.Now(),
		}
		for _, holding := range holdings {
			resp.Holdings = append(resp.Holdings, holding)
		}
		sort.Slice(resp.Holdings, func(i, j int) bool {
			return resp.Holdings[i].Symbol < resp.Holdings[j].Symbol
		})

		response.Success(c, resp)
	}
}

// HistoryHandler handles GET requests for the transaction history,
// newest first. A sweep runs first for the same reason as above.
func (h *GinHandlers) HistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		username := c.GetString("username")
		if username == "" {
			response.Unauthorized(c, "Missing username in token")
			return
		}

		h.sweeper.SweepNow()

		records, err := h.db.QueryByUser(username)
		response.Handle(c, records, err)
	}
}
