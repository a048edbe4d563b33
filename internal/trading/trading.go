package trading

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/hyusa97/stock-analysis-system/internal/ledger"
	"github.com/hyusa97/stock-analysis-system/internal/portfolio"
	"github.com/hyusa97/stock-analysis-system/internal/types"
	"github.com/hyusa97/stock-analysis-system/pkg/response"
)

// immediateExecutionWindow is the bid-to-market distance under which
// an order fills at once instead of resting as PENDING. Compared with
// decimal arithmetic so the tolerance is exact.
var immediateExecutionWindow = decimal.RequireFromString("0.01")

// Service validates and accepts order requests and writes them
// through the ledger. It never fetches market data itself: the
// reference price comes from the caller, which keeps intake
// deterministic.
type Service struct {
	db       *ledger.Database
	holdings *portfolio.Service
}

func NewService(db *ledger.Database, holdings *portfolio.Service) *Service {
	return &Service{
		db:       db,
		holdings: holdings,
	}
}

// Submit validates an order and appends it to the ledger. Validation
// runs in a fixed order and the first failure wins; on any failure
// zero rows are written. The stored status is EXECUTED when the bid
// is effectively met by the reference price, PENDING otherwise.
func (s *Service) Submit(username string, req types.OrderRequest, referencePrice string) (*types.TransactionRecord, error) {
	quantity, err := strconv.ParseInt(req.Quantity, 10, 64)
	if err != nil || quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be a positive integer", types.ErrInvalidInput)
	}

	refPrice, err := decimal.NewFromString(referencePrice)
	if err != nil || refPrice.IsNegative() {
		return nil, fmt.Errorf("%w: reference price must be a non-negative number", types.ErrInvalidInput)
	}

	bidPrice, err := decimal.NewFromString(req.BidPrice)
	if err != nil || bidPrice.IsNegative() {
		return nil, fmt.Errorf("%w: bid price must be a non-negative number", types.ErrInvalidInput)
	}

	if req.Action != types.ActionBuy && req.Action != types.ActionSell {
		return nil, fmt.Errorf("%w: action must be BUY or SELL", types.ErrInvalidInput)
	}

	if req.Action == types.ActionSell {
		// Checked against executed holdings only; outstanding PENDING
		// sells for the same symbol do not reserve quantity.
		holdings, err := s.holdings.HoldingsOf(username)
		if err != nil {
			return nil, err
		}
		held, ok := holdings[req.Symbol]
		if !ok || quantity > held.Quantity {
			return nil, fmt.Errorf("%w: cannot sell %d shares of %s", types.ErrInsufficientHoldings, quantity, req.Symbol)
		}
	}

	status := types.StatusPending
	if refPrice.Sub(bidPrice).Abs().LessThan(immediateExecutionWindow) {
		status = types.StatusExecuted
	}

	record := &types.TransactionRecord{
		TransactionID: uuid.New().String(),
		Username:      username,
		Symbol:        req.Symbol,
		Action:        req.Action,
		Quantity:      quantity,
		Price:         refPrice,
		BidPrice:      bidPrice,
		Total:         refPrice.Mul(decimal.NewFromInt(quantity)),
		Status:        status,
		Timestamp:     time.Now(),
	}

	if _, err := s.db.Append(record); err != nil {
		return nil, err
	}

	log.Info().
		Str("service", "trading").
		Str("transaction_id", record.TransactionID).
		Str("username", username).
		Str("symbol", record.Symbol).
		Str("action", record.Action).
		Int64("quantity", record.Quantity).
		Str("bid_price", record.BidPrice.String()).
		Str("status", record.Status).
		Msg("order accepted")

	return record, nil
}

// ReferencePriceSource supplies the last traded price used as the
// reference for a new order.
type ReferencePriceSource interface {
	LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// GinHandlers contains HTTP handlers for order placement.
type GinHandlers struct {
	service *Service
	prices  ReferencePriceSource
}

func NewGinHandlers(service *Service, prices ReferencePriceSource) *GinHandlers {
	return &GinHandlers{
		service: service,
		prices:  prices,
	}
}

// SubmitOrderHandler handles POST requests to place orders. It
// fetches the live reference price for the symbol and hands the
// request to the intake service.
func (h *GinHandlers) SubmitOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		username := c.GetString("username")
		if username == "" {
			response.Unauthorized(c, "Missing username in token")
			return
		}

		var req types.OrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		price, err := h.prices.LastPrice(c.Request.Context(), req.Symbol)
		if err != nil {
			response.BadRequest(c, fmt.Sprintf("no current price for symbol %s", req.Symbol))
			return
		}

		record, err := h.service.Submit(username, req, price.String())
		response.Handle(c, record, err)
	}
}
