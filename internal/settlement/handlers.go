package settlement

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hyusa97/stock-analysis-system/internal/types"
	"github.com/hyusa97/stock-analysis-system/pkg/response"
)

// GinHandlers contains HTTP handlers for settlement endpoints.
type GinHandlers struct {
	processor *Processor
}

func NewGinHandlers(processor *Processor) *GinHandlers {
	return &GinHandlers{processor: processor}
}

// SweepHandler handles POST requests that trigger a sweep outside the
// normal render cycle, e.g. from an operator or the simulation tool.
func (h *GinHandlers) SweepHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		changes := h.processor.SweepNow()
		response.Success(c, types.SweepResponse{
			Changes:   changes,
			Timestamp: time.Now(),
		})
	}
}
