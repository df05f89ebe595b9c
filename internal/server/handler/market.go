package handler

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/alanyoungcy/crossarb/internal/domain"
	"github.com/alanyoungcy/crossarb/internal/matcher"
	"github.com/alanyoungcy/crossarb/internal/service"
)

// MarketLister is the part of the scan service the market handler reads.
type MarketLister interface {
	Markets(ctx context.Context, f service.MarketFilter) ([]domain.Market, error)
}

// MarketReader serves single-market and CLOB reads. It is declared locally
// so the handler package does not depend on the concrete service.
type MarketReader interface {
	VenueMarket(ctx context.Context, venue domain.Venue, id string) (domain.Market, error)
	OrderBook(ctx context.Context, tokenID string) (domain.OrderbookSnapshot, error)
	Price(ctx context.Context, tokenID string, side domain.OrderSide) (domain.Quote, error)
	ClobMarket(ctx context.Context, conditionID string) (domain.Market, error)
}

// MarketHandler serves market-related HTTP endpoints.
type MarketHandler struct {
	lister MarketLister
	reader MarketReader
	logger *slog.Logger
}

// NewMarketHandler creates a MarketHandler with the given services and logger.
func NewMarketHandler(lister MarketLister, reader MarketReader, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		lister: lister,
		reader: reader,
		logger: logger,
	}
}

// listMarketsResponse wraps the list endpoint output with metadata.
type listMarketsResponse struct {
	Markets []domain.Market `json:"markets"`
	Total   int             `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// ListMarkets returns aggregated markets from the latest snapshot.
// GET /api/markets?q=election&category=politics&venue=kalshi&limit=50&offset=0
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := service.MarketFilter{Query: q.Get("q")}

	if v := q.Get("venue"); v != "" {
		venue, ok := domain.ParseVenue(v)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown venue "+v)
			return
		}
		filter.Venue = venue
	}
	if v := q.Get("category"); v != "" {
		cat := domain.Category(strings.ToLower(v))
		if !slices.Contains(matcher.Categories(), cat) {
			writeError(w, http.StatusBadRequest, "unknown category "+v)
			return
		}
		filter.Category = cat
	}

	markets, err := h.lister.Markets(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to list markets")
		return
	}

	opts := parseListOpts(r)
	writeJSON(w, http.StatusOK, listMarketsResponse{
		Markets: page(markets, opts),
		Total:   len(markets),
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	})
}

// GetMarket returns a single market straight from its venue.
// GET /api/markets/{venue}/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	venue, ok := domain.ParseVenue(pathParam(r, "venue"))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown venue")
		return
	}
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	market, err := h.reader.VenueMarket(r.Context(), venue, id)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to get market")
		return
	}
	writeJSON(w, http.StatusOK, market)
}

// OrderBook returns the public CLOB book for one outcome token.
// GET /api/book?token_id=...
func (h *MarketHandler) OrderBook(w http.ResponseWriter, r *http.Request) {
	tokenID := r.URL.Query().Get("token_id")
	if tokenID == "" {
		writeError(w, http.StatusBadRequest, "token_id query parameter required")
		return
	}
	book, err := h.reader.OrderBook(r.Context(), tokenID)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to get order book")
		return
	}
	writeJSON(w, http.StatusOK, book)
}

// Price returns the best price for one token and side.
// GET /api/price?token_id=...&side=buy
func (h *MarketHandler) Price(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tokenID := q.Get("token_id")
	if tokenID == "" {
		writeError(w, http.StatusBadRequest, "token_id query parameter required")
		return
	}
	side, ok := domain.ParseOrderSide(q.Get("side"))
	if !ok {
		writeError(w, http.StatusBadRequest, "side must be buy or sell")
		return
	}
	quote, err := h.reader.Price(r.Context(), tokenID, side)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to get price")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token_id": quote.TokenID,
		"side":     quote.Side.String(),
		"price":    quote.Price,
	})
}

// ClobMarket returns CLOB metadata for a condition id.
// GET /api/clob/markets/{id}
func (h *MarketHandler) ClobMarket(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}
	market, err := h.reader.ClobMarket(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to get clob market")
		return
	}
	writeJSON(w, http.StatusOK, market)
}
