// Package aggregator fans out market listing across venue adapters and
// merges the results into one snapshot.
package aggregator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// DefaultTimeout bounds each adapter call.
const DefaultTimeout = 15 * time.Second

// Result is the merged output of one aggregation.
type Result struct {
	Markets []domain.Market
	// Errors holds the failure of every venue that degraded to empty.
	Errors map[domain.Venue]error
}

// Aggregator lists markets from every configured venue concurrently.
type Aggregator struct {
	sources []domain.MarketSource
	timeout time.Duration
	logger  *slog.Logger
}

// New creates an Aggregator over sources. A non-positive timeout uses
// DefaultTimeout.
func New(sources []domain.MarketSource, timeout time.Duration, logger *slog.Logger) *Aggregator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		sources: sources,
		timeout: timeout,
		logger:  logger.With(slog.String("component", "aggregator")),
	}
}

// Sources returns the configured adapters.
func (a *Aggregator) Sources() []domain.MarketSource { return a.sources }

// Source returns the adapter for venue, if configured.
func (a *Aggregator) Source(venue domain.Venue) (domain.MarketSource, bool) {
	for _, s := range a.sources {
		if s.Venue() == venue {
			return s, true
		}
	}
	return nil, false
}

// Aggregate fetches up to limit markets from each venue. Each adapter runs
// under its own timeout; a slow or failing venue contributes no markets and
// its error is recorded in Result.Errors. Aggregate itself never fails.
// Markets are merged in source order.
func (a *Aggregator) Aggregate(ctx context.Context, limit int) Result {
	perVenue := make([][]domain.Market, len(a.sources))
	errs := make(map[domain.Venue]error)
	var mu sync.Mutex

	var g errgroup.Group
	for i, src := range a.sources {
		g.Go(func() error {
			start := time.Now()
			vctx, cancel := context.WithTimeout(ctx, a.timeout)
			defer cancel()

			markets, err := src.ListMarkets(vctx, limit)
			if err != nil {
				a.logger.Warn("aggregator: venue degraded to empty result",
					slog.String("venue", string(src.Venue())),
					slog.Duration("elapsed", time.Since(start)),
					slog.String("error", err.Error()),
				)
				mu.Lock()
				errs[src.Venue()] = err
				mu.Unlock()
				return nil
			}
			perVenue[i] = markets
			a.logger.Debug("aggregator: venue listed",
				slog.String("venue", string(src.Venue())),
				slog.Int("markets", len(markets)),
				slog.Duration("elapsed", time.Since(start)),
			)
			return nil
		})
	}
	_ = g.Wait()

	var total int
	for _, ms := range perVenue {
		total += len(ms)
	}
	merged := make([]domain.Market, 0, total)
	for _, ms := range perVenue {
		merged = append(merged, ms...)
	}
	return Result{Markets: merged, Errors: errs}
}
