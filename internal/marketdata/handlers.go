package marketdata

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/hyusa97/stock-analysis-system/internal/types"
	"github.com/hyusa97/stock-analysis-system/pkg/response"
)

// GinHandlers contains HTTP handlers for price history, used by the
// charting view.
type GinHandlers struct {
	client *Client
}

func NewGinHandlers(client *Client) *GinHandlers {
	return &GinHandlers{client: client}
}

// HistoryHandler handles GET requests for a symbol's close-price
// series. URL parameter: symbol; query parameter: period.
func (h *GinHandlers) HistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		symbol := c.Param("symbol")
		if symbol == "" {
			response.BadRequest(c, "Symbol is required")
			return
		}
		period := c.DefaultQuery("period", "1mo")

		candles, err := h.client.History(c.Request.Context(), symbol, period)
		if errors.Is(err, types.ErrPriceUnavailable) {
			response.NotFound(c, "No history for symbol")
			return
		}
		response.Handle(c, candles, err)
	}
}
