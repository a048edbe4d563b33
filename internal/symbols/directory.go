package symbols

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"github.com/hyusa97/stock-analysis-system/pkg/response"
)

// refreshTTL bounds provider traffic: the universe changes rarely, so
// a fetched list is reused for a day.
const refreshTTL = 24 * time.Hour

// Provider returns the tradable symbol universe from one source.
type Provider interface {
	Name() string
	Symbols(ctx context.Context) ([]string, error)
}

// HTTPProvider fetches the symbol list from a REST endpoint.
type HTTPProvider struct {
	name   string
	client *resty.Client
}

func NewHTTPProvider(name, baseURL string) *HTTPProvider {
	return &HTTPProvider{
		name:   name,
		client: resty.New().SetBaseURL(baseURL),
	}
}

func (p *HTTPProvider) Name() string {
	return p.name
}

func (p *HTTPProvider) Symbols(ctx context.Context) ([]string, error) {
	var result struct {
		Symbols []string `json:"symbols"`
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetResult(&result).
		Get("/symbols")
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", p.name, err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("provider %s: status %d", p.name, resp.StatusCode())
	}
	if len(result.Symbols) == 0 {
		return nil, fmt.Errorf("provider %s: empty symbol list", p.name)
	}

	return result.Symbols, nil
}

// Directory resolves the tradable symbol universe through an ordered
// provider chain, ending in a static fallback list. Successful
// results are cached and refreshed at most once per day; the fallback
// is never cached so providers are retried on the next call.
type Directory struct {
	providers []Provider
	fallback  []string

	mu        sync.RWMutex
	cached    []string
	fetchedAt time.Time
}

func NewDirectory(providers []Provider, fallback []string) *Directory {
	return &Directory{
		providers: providers,
		fallback:  fallback,
	}
}

// AllSymbols returns the current symbol universe, sorted. The result
// is always a copy; callers mutating it cannot corrupt the cache.
func (d *Directory) AllSymbols(ctx context.Context) []string {
	d.mu.RLock()
	if d.fresh() {
		cached := copySorted(d.cached)
		d.mu.RUnlock()
		return cached
	}
	d.mu.RUnlock()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fresh() {
		return copySorted(d.cached)
	}

	for _, provider := range d.providers {
		symbols, err := provider.Symbols(ctx)
		if err != nil {
			log.Warn().
				Err(err).
				Str("component", "symbols").
				Str("provider", provider.Name()).
				Msg("symbol provider failed, trying next")
			continue
		}

		sort.Strings(symbols)
		d.cached = symbols
		d.fetchedAt = time.Now()
		return copySorted(symbols)
	}

	log.Warn().
		Str("component", "symbols").
		Msg("all symbol providers failed, using static fallback")
	return copySorted(d.fallback)
}

func copySorted(symbols []string) []string {
	out := make([]string, len(symbols))
	copy(out, symbols)
	sort.Strings(out)
	return out
}

// fresh reports whether the cache can still be served. Callers must
// hold at least a read lock.
func (d *Directory) fresh() bool {
	return d.cached != nil && time.Since(d.fetchedAt) < refreshTTL
}

// GinHandlers contains HTTP handlers for the symbol directory.
type GinHandlers struct {
	directory *Directory
}

func NewGinHandlers(directory *Directory) *GinHandlers {
	return &GinHandlers{directory: directory}
}

// ListHandler handles GET requests for the tradable symbol universe.
func (h *GinHandlers) ListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		symbols := h.directory.AllSymbols(c.Request.Context())
		response.Success(c, gin.H{"symbols": symbols})
	}
}
