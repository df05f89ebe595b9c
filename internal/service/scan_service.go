// Package service orchestrates the scan cycle (aggregate, rank, publish)
// and the trade flows built on the submission pipeline.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/crossarb/internal/aggregator"
	"github.com/alanyoungcy/crossarb/internal/arbitrage"
	"github.com/alanyoungcy/crossarb/internal/domain"
	"github.com/alanyoungcy/crossarb/internal/matcher"
	"github.com/alanyoungcy/crossarb/internal/notify"
)

const (
	scanLockKey    = "scan"
	defaultLimit   = 100
	defaultLockTTL = 2 * time.Minute
)

// ScanConfig tunes the scan loop.
type ScanConfig struct {
	// Limit is the number of markets requested from each venue.
	Limit    int
	Interval time.Duration
	// LockTTL bounds how long one replica holds the scan lock.
	LockTTL time.Duration
}

// ScanDeps are the collaborators of a ScanService. Everything except
// Aggregator and Ranker is optional.
type ScanDeps struct {
	Aggregator *aggregator.Aggregator
	Ranker     *arbitrage.Ranker
	Cache      domain.SnapshotCache
	Store      domain.OpportunityStore
	Archiver   domain.SnapshotArchiver
	Audit      domain.AuditStore
	Notifier   *notify.Notifier
	Lock       domain.LockManager
}

// ScanService produces ranked snapshots and keeps the latest one available
// to readers.
type ScanService struct {
	deps   ScanDeps
	cfg    ScanConfig
	logger *slog.Logger
	now    func() time.Time

	mu     sync.RWMutex
	latest *domain.Snapshot
}

// NewScanService creates a ScanService.
func NewScanService(deps ScanDeps, cfg ScanConfig, logger *slog.Logger) *ScanService {
	if cfg.Limit <= 0 {
		cfg.Limit = defaultLimit
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = defaultLockTTL
	}
	return &ScanService{
		deps:   deps,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "scan_service")),
		now:    time.Now,
	}
}

// Scan runs one aggregation and ranking cycle and publishes the snapshot.
// When another replica holds the scan lock, Scan returns domain.ErrLockHeld
// and does nothing. Failures of the cache, store, archive, or notifier are
// logged and never fail the scan.
func (s *ScanService) Scan(ctx context.Context) (domain.Snapshot, error) {
	if s.deps.Lock != nil {
		unlock, err := s.deps.Lock.Acquire(ctx, scanLockKey, s.cfg.LockTTL)
		if err != nil {
			return domain.Snapshot{}, err
		}
		defer unlock()
	}

	start := s.now()
	res := s.deps.Aggregator.Aggregate(ctx, s.cfg.Limit)
	opps := s.deps.Ranker.Run(res.Markets)

	snap := domain.Snapshot{
		ID:            uuid.NewString(),
		TakenAt:       start.UTC(),
		Markets:       res.Markets,
		Opportunities: opps,
	}
	if len(res.Errors) > 0 {
		snap.VenueErrors = make(map[domain.Venue]string, len(res.Errors))
		for v, err := range res.Errors {
			snap.VenueErrors[v] = err.Error()
		}
	}

	s.mu.Lock()
	s.latest = &snap
	s.mu.Unlock()

	s.publish(ctx, snap)

	s.logger.InfoContext(ctx, "scan_service: scan complete",
		slog.String("snapshot_id", snap.ID),
		slog.Int("markets", len(snap.Markets)),
		slog.Int("opportunities", len(snap.Opportunities)),
		slog.Int("real", snap.RealCount()),
		slog.Int("venue_errors", len(snap.VenueErrors)),
		slog.Duration("elapsed", s.now().Sub(start)),
	)
	return snap, nil
}

func (s *ScanService) publish(ctx context.Context, snap domain.Snapshot) {
	warn := func(what string, err error) {
		s.logger.WarnContext(ctx, "scan_service: "+what+" failed",
			slog.String("snapshot_id", snap.ID),
			slog.String("error", err.Error()),
		)
	}

	if s.deps.Cache != nil {
		if err := s.deps.Cache.SetLatest(ctx, snap); err != nil {
			warn("cache snapshot", err)
		}
	}
	if s.deps.Store != nil {
		if err := s.deps.Store.InsertBatch(ctx, snap.ID, snap.Opportunities); err != nil {
			warn("store opportunities", err)
		}
	}

	var archivePath string
	if s.deps.Archiver != nil {
		p, err := s.deps.Archiver.ArchiveSnapshot(ctx, snap)
		if err != nil {
			warn("archive snapshot", err)
		}
		archivePath = p
	}

	if s.deps.Audit != nil {
		detail := map[string]any{
			"snapshot_id":   snap.ID,
			"markets":       len(snap.Markets),
			"opportunities": len(snap.Opportunities),
			"real":          snap.RealCount(),
		}
		if archivePath != "" {
			detail["archive_path"] = archivePath
		}
		if len(snap.VenueErrors) > 0 {
			detail["venue_errors"] = snap.VenueErrors
		}
		if err := s.deps.Audit.Log(ctx, "scan.completed", detail); err != nil {
			warn("audit scan", err)
		}
	}

	if s.deps.Notifier.Enabled() {
		if err := s.deps.Notifier.OpportunityAlert(ctx, snap); err != nil {
			warn("notify opportunities", err)
		}
	}
}

// Run scans immediately and then every Interval until ctx is done.
func (s *ScanService) Run(ctx context.Context) error {
	if s.cfg.Interval <= 0 {
		return fmt.Errorf("scan_service: interval must be positive")
	}
	s.logger.InfoContext(ctx, "scan_service: starting",
		slog.Duration("interval", s.cfg.Interval),
		slog.Int("limit", s.cfg.Limit),
	)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		if _, err := s.Scan(ctx); err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				s.logger.DebugContext(ctx, "scan_service: another replica is scanning", slog.String("lock", err.Error()))
			} else {
				s.logger.ErrorContext(ctx, "scan_service: scan failed", slog.String("error", err.Error()))
			}
		}
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "scan_service: stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Latest returns the newest snapshot: this process's own, then the shared
// cache. With neither available it runs a scan.
func (s *ScanService) Latest(ctx context.Context) (domain.Snapshot, error) {
	s.mu.RLock()
	latest := s.latest
	s.mu.RUnlock()
	if latest != nil {
		return *latest, nil
	}

	if s.deps.Cache != nil {
		snap, err := s.deps.Cache.Latest(ctx)
		if err == nil {
			return snap, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "scan_service: read cached snapshot failed", slog.String("error", err.Error()))
		}
	}

	snap, err := s.Scan(ctx)
	if errors.Is(err, domain.ErrLockHeld) {
		return domain.Snapshot{}, domain.ErrNotFound
	}
	return snap, err
}

// MarketFilter narrows a market listing.
type MarketFilter struct {
	// Query is a case-insensitive title substring.
	Query    string
	Category domain.Category
	Venue    domain.Venue
}

// Markets returns the markets that pass f. A query scoped to a venue with
// its own search goes to that venue live; everything else is answered from
// the latest snapshot, which is also the fallback when the search fails.
func (s *ScanService) Markets(ctx context.Context, f MarketFilter) ([]domain.Market, error) {
	if ms, ok := s.search(ctx, f); ok {
		return FilterMarkets(ms, f), nil
	}
	snap, err := s.Latest(ctx)
	if err != nil {
		return nil, err
	}
	return FilterMarkets(snap.Markets, f), nil
}

func (s *ScanService) search(ctx context.Context, f MarketFilter) ([]domain.Market, bool) {
	if strings.TrimSpace(f.Query) == "" || f.Venue == "" {
		return nil, false
	}
	src, ok := s.deps.Aggregator.Source(f.Venue)
	if !ok {
		return nil, false
	}
	searcher, ok := src.(domain.MarketSearcher)
	if !ok {
		return nil, false
	}
	ms, err := searcher.SearchMarkets(ctx, strings.TrimSpace(f.Query), s.cfg.Limit)
	if err != nil {
		s.logger.WarnContext(ctx, "scan_service: venue search failed, using snapshot",
			slog.String("venue", string(f.Venue)),
			slog.String("error", err.Error()),
		)
		return nil, false
	}
	return ms, true
}

// Snapshot returns the snapshot with the given id: this process's latest,
// then the shared cache. Older snapshots live only in the archive.
func (s *ScanService) Snapshot(ctx context.Context, id string) (domain.Snapshot, error) {
	s.mu.RLock()
	latest := s.latest
	s.mu.RUnlock()
	if latest != nil && latest.ID == id {
		return *latest, nil
	}
	if s.deps.Cache == nil {
		return domain.Snapshot{}, fmt.Errorf("scan_service: snapshot %s: %w", id, domain.ErrNotFound)
	}
	snap, err := s.deps.Cache.Get(ctx, id)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("scan_service: snapshot %s: %w", id, err)
	}
	return snap, nil
}

// FilterMarkets applies f to markets, preserving order.
func FilterMarkets(markets []domain.Market, f MarketFilter) []domain.Market {
	q := strings.ToLower(strings.TrimSpace(f.Query))
	out := make([]domain.Market, 0, len(markets))
	for _, m := range markets {
		if f.Venue != "" && m.Venue != f.Venue {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(m.Title), q) {
			continue
		}
		if f.Category != "" && matcher.Categorize(m.Title) != f.Category {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Recent returns stored opportunities, newest first.
func (s *ScanService) Recent(ctx context.Context, opts domain.ListOpts) ([]domain.Opportunity, error) {
	if s.deps.Store == nil {
		return nil, fmt.Errorf("scan_service: opportunity history: %w", domain.ErrNotConfigured)
	}
	opps, err := s.deps.Store.ListRecent(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("scan_service: list recent: %w", err)
	}
	return opps, nil
}
