package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// DefaultGammaURL is the public Gamma API root.
const DefaultGammaURL = "https://gamma-api.polymarket.com"

// gammaOverfetch compensates for Gamma returning inactive markets despite
// the active/closed filters.
const gammaOverfetch = 3

// GammaClient is the REST client for the Polymarket Gamma API, which
// provides market discovery and metadata. It is the Polymarket venue
// adapter.
type GammaClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

var (
	_ domain.MarketSource   = (*GammaClient)(nil)
	_ domain.MarketSearcher = (*GammaClient)(nil)
)

// NewGammaClient creates a new Gamma API client.
//
// baseURL is the Gamma API root, e.g. "https://gamma-api.polymarket.com".
func NewGammaClient(baseURL string, timeout time.Duration, logger *slog.Logger) *GammaClient {
	if baseURL == "" {
		baseURL = DefaultGammaURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GammaClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With(slog.String("venue", string(domain.VenuePolymarket))),
	}
}

// Venue identifies this adapter.
func (g *GammaClient) Venue() domain.Venue { return domain.VenuePolymarket }

// ListMarkets returns up to limit open markets. It over-fetches and then
// keeps only markets that are active and not closed.
func (g *GammaClient) ListMarkets(ctx context.Context, limit int) ([]domain.Market, error) {
	if limit <= 0 {
		limit = 50
	}
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit*gammaOverfetch))
	params.Set("active", "true")
	params.Set("closed", "false")

	apiMarkets, err := g.getMarkets(ctx, "/markets?"+params.Encode())
	if err != nil {
		return nil, g.venueErr("list markets", err)
	}
	return g.convert(apiMarkets, limit), nil
}

// GetMarket returns a single market by condition id.
func (g *GammaClient) GetMarket(ctx context.Context, id string) (domain.Market, error) {
	params := url.Values{}
	params.Set("condition_ids", id)

	apiMarkets, err := g.getMarkets(ctx, "/markets?"+params.Encode())
	if err != nil {
		return domain.Market{}, g.venueErr("get market", err)
	}
	if len(apiMarkets) == 0 {
		return domain.Market{}, fmt.Errorf("polymarket/gamma: market %s: %w", id, domain.ErrNotFound)
	}
	m, err := apiMarkets[0].ToDomainMarket()
	if err != nil {
		return domain.Market{}, g.venueErr("get market", err)
	}
	return m, nil
}

// SearchMarkets searches open markets by free-text query.
func (g *GammaClient) SearchMarkets(ctx context.Context, query string, limit int) ([]domain.Market, error) {
	if limit <= 0 {
		limit = 50
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("active", "true")
	params.Set("closed", "false")

	apiMarkets, err := g.getMarkets(ctx, "/markets?"+params.Encode())
	if err != nil {
		return nil, g.venueErr("search markets", err)
	}
	return g.convert(apiMarkets, limit), nil
}

func (g *GammaClient) convert(apiMarkets []APIMarket, limit int) []domain.Market {
	markets := make([]domain.Market, 0, min(len(apiMarkets), limit))
	for i := range apiMarkets {
		if len(markets) == limit {
			break
		}
		if !apiMarkets[i].Open() {
			continue
		}
		m, err := apiMarkets[i].ToDomainMarket()
		if err != nil {
			g.logger.Debug("gamma: skipping malformed market", slog.String("error", err.Error()))
			continue
		}
		markets = append(markets, m)
	}
	return markets
}

func (g *GammaClient) venueErr(op string, err error) error {
	return &domain.VenueError{Venue: domain.VenuePolymarket, Op: op, Err: err}
}

func (g *GammaClient) getMarkets(ctx context.Context, path string) ([]APIMarket, error) {
	body, err := g.doGet(ctx, path)
	if err != nil {
		return nil, err
	}
	var apiMarkets []APIMarket
	if err := json.Unmarshal(body, &apiMarkets); err != nil {
		return nil, fmt.Errorf("decode markets: %w", err)
	}
	return apiMarkets, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// doGet sends an unauthenticated GET request to the Gamma API.
func (g *GammaClient) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}

	return body, nil
}
