package settlement

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Processor drives the sweeper on a timer and on demand. The render
// path calls SweepNow before reading the ledger; the ticker covers
// idle periods so cutoff cancellations happen without traffic.
type Processor struct {
	sweeper  *Sweeper
	lookup   PriceLookup
	interval time.Duration
}

func NewProcessor(sweeper *Sweeper, lookup PriceLookup, interval time.Duration) *Processor {
	return &Processor{
		sweeper:  sweeper,
		lookup:   lookup,
		interval: interval,
	}
}

// Start begins the periodic sweep loop.
func (p *Processor) Start(ctx context.Context) {
	logger := log.With().Str("component", "settlement_processor").Logger()
	logger.Info().Dur("interval", p.interval).Msg("starting settlement processor")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down settlement processor")
			return
		case <-ticker.C:
			changes := p.sweeper.Sweep(time.Now(), p.lookup)
			if len(changes) > 0 {
				logger.Info().Int("changes", len(changes)).Msg("sweep applied transitions")
			}
		}
	}
}

// SweepNow runs one sweep immediately and returns the number of
// transitions applied.
func (p *Processor) SweepNow() int {
	return len(p.sweeper.Sweep(time.Now(), p.lookup))
}
