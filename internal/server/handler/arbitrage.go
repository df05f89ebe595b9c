package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// OpportunityService defines the methods that the opportunity handler
// requires from the scan service.
type OpportunityService interface {
	Latest(ctx context.Context) (domain.Snapshot, error)
	Recent(ctx context.Context, opts domain.ListOpts) ([]domain.Opportunity, error)
	Snapshot(ctx context.Context, id string) (domain.Snapshot, error)
}

// SnapshotLoader reads archived snapshots back.
type SnapshotLoader interface {
	LoadSnapshot(ctx context.Context, path string) (domain.Snapshot, error)
}

// ArbHandler serves arbitrage opportunity endpoints.
type ArbHandler struct {
	opps    OpportunityService
	archive SnapshotLoader // optional; nil answers 503
	logger  *slog.Logger
}

// NewArbHandler creates an ArbHandler with the given service and logger.
func NewArbHandler(opps OpportunityService, logger *slog.Logger) *ArbHandler {
	return &ArbHandler{opps: opps, logger: logger}
}

// WithArchive enables the archived snapshot endpoint.
func (h *ArbHandler) WithArchive(archive SnapshotLoader) *ArbHandler {
	h.archive = archive
	return h
}

// snapshotResponse is the ranked view of one snapshot.
type snapshotResponse struct {
	SnapshotID    string                  `json:"snapshot_id"`
	TakenAt       time.Time               `json:"taken_at"`
	MarketCount   int                     `json:"market_count"`
	RealCount     int                     `json:"real_count"`
	Opportunities []domain.Opportunity    `json:"opportunities"`
	VenueErrors   map[domain.Venue]string `json:"venue_errors,omitempty"`
}

func newSnapshotResponse(snap domain.Snapshot, includeSynthetic bool, limit int) snapshotResponse {
	opps := make([]domain.Opportunity, 0, len(snap.Opportunities))
	for _, o := range snap.Opportunities {
		if o.Synthetic && !includeSynthetic {
			continue
		}
		opps = append(opps, o)
		if limit > 0 && len(opps) == limit {
			break
		}
	}
	return snapshotResponse{
		SnapshotID:    snap.ID,
		TakenAt:       snap.TakenAt,
		MarketCount:   len(snap.Markets),
		RealCount:     snap.RealCount(),
		Opportunities: opps,
		VenueErrors:   snap.VenueErrors,
	}
}

// Latest returns the ranked opportunities of the newest snapshot. Synthetic
// display pairs are included only when asked for.
// GET /api/opportunities?limit=20&include_synthetic=true
func (h *ArbHandler) Latest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	includeSynthetic, _ := strconv.ParseBool(q.Get("include_synthetic"))

	snap, err := h.opps.Latest(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to load opportunities")
		return
	}
	writeJSON(w, http.StatusOK, newSnapshotResponse(snap, includeSynthetic, limit))
}

// listArbResponse wraps the stored opportunities response.
type listArbResponse struct {
	Opportunities []domain.Opportunity `json:"opportunities"`
	Limit         int                  `json:"limit"`
	Offset        int                  `json:"offset"`
}

// ListRecent returns stored opportunities, newest first.
// GET /api/opportunities/recent?limit=50&offset=0&since=2026-01-01T00:00:00Z
func (h *ArbHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	opps, err := h.opps.Recent(r.Context(), opts)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to list opportunities")
		return
	}
	if opps == nil {
		opps = []domain.Opportunity{}
	}

	writeJSON(w, http.StatusOK, listArbResponse{
		Opportunities: opps,
		Limit:         opts.Limit,
		Offset:        opts.Offset,
	})
}

// Snapshot returns a recent snapshot by id, e.g. the one a stored
// opportunity was ranked in.
// GET /api/snapshots/{id}
func (h *ArbHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing snapshot id")
		return
	}
	snap, err := h.opps.Snapshot(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to load snapshot")
		return
	}
	writeJSON(w, http.StatusOK, newSnapshotResponse(snap, true, 0))
}

// Archived returns a snapshot from the archive.
// GET /api/snapshots/archive?path=snapshots/2026/03/10/<id>.json.gz
func (h *ArbHandler) Archived(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		writeError(w, http.StatusServiceUnavailable, "snapshot archive not configured")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "path query parameter required")
		return
	}
	snap, err := h.archive.LoadSnapshot(r.Context(), path)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to load archived snapshot")
		return
	}
	writeJSON(w, http.StatusOK, newSnapshotResponse(snap, true, 0))
}
