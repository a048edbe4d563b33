package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/hyusa97/stock-analysis-system/internal/config"
	"github.com/hyusa97/stock-analysis-system/internal/types"
)

const maxRetries = 3

// Candle is one point of a historical price series.
type Candle struct {
	Timestamp time.Time       `json:"timestamp"`
	Close     decimal.Decimal `json:"close"`
}

// Client fetches quotes and history from the market data provider.
// All failures surface as ErrPriceUnavailable so callers can treat a
// bad quote, a timeout and a provider outage identically.
type Client struct {
	client  *resty.Client
	limiter *rate.Limiter
	timeout time.Duration
}

// NewClient creates a market data client for the configured provider.
func NewClient(cfg *config.MarketData) *Client {
	return &Client{
		client:  resty.New().SetBaseURL(cfg.BaseURL),
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst),
		timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
	}
}

// priceQuote is the provider's wire format for a single quote. The
// price travels as a string and is parsed into a decimal here.
type priceQuote struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// LastPrice fetches the last traded price for a symbol.
func (c *Client) LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var quote priceQuote
	req := c.client.R().
		SetQueryParam("symbol", symbol).
		SetResult(&quote)

	if _, err := c.doRequest(ctx, req, "/price"); err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s: %v", types.ErrPriceUnavailable, symbol, err)
	}

	price, err := decimal.NewFromString(quote.Price)
	if err != nil || price.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %s: bad price %q", types.ErrPriceUnavailable, symbol, quote.Price)
	}

	return price, nil
}

// historyPoint is the provider's wire format for one history sample.
type historyPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Close     string    `json:"close"`
}

// History fetches the ordered close-price series for a symbol over a
// period such as "1d" or "1mo".
func (c *Client) History(ctx context.Context, symbol, period string) ([]Candle, error) {
	var points []historyPoint
	req := c.client.R().
		SetQueryParam("symbol", symbol).
		SetQueryParam("period", period).
		SetResult(&points)

	if _, err := c.doRequest(ctx, req, "/history"); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrPriceUnavailable, symbol, err)
	}

	candles := make([]Candle, 0, len(points))
	for _, point := range points {
		closePrice, err := decimal.NewFromString(point.Close)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: bad close %q", types.ErrPriceUnavailable, symbol, point.Close)
		}
		candles = append(candles, Candle{Timestamp: point.Timestamp, Close: closePrice})
	}

	return candles, nil
}

// doRequest executes a GET with rate limiting, a per-request timeout
// and bounded retries on transient failures.
func (c *Client) doRequest(ctx context.Context, req *resty.Request, url string) (*resty.Response, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var resp *resty.Response
	var err error

	for attempt := 0; attempt < maxRetries; attempt++ {
		if err := c.limiter.Wait(reqCtx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		resp, err = req.SetContext(reqCtx).Get(url)
		if err == nil && resp.IsSuccess() {
			return resp, nil
		}

		if err == nil && resp.StatusCode() < http.StatusInternalServerError {
			// Client errors are not retryable
			return nil, fmt.Errorf("request failed with status %d", resp.StatusCode())
		}

		log.Debug().
			Str("component", "marketdata").
			Str("url", url).
			Int("attempt", attempt+1).
			Err(err).
			Msg("provider request failed, retrying")
	}

	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return nil, fmt.Errorf("request failed with status %d", resp.StatusCode())
}
