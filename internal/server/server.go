// Package server exposes the HTTP API: aggregated markets, ranked
// opportunities, public CLOB reads, and the trade flows.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/alanyoungcy/crossarb/internal/domain"
	"github.com/alanyoungcy/crossarb/internal/server/handler"
	"github.com/alanyoungcy/crossarb/internal/server/middleware"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
	// RateLimit trade requests per RateWindow per client. Zero disables
	// limiting.
	RateLimit  int
	RateWindow time.Duration
	// TrustedProxies may set X-Forwarded-For for the limiter key.
	TrustedProxies []netip.Prefix
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health  *handler.HealthHandler
	Markets *handler.MarketHandler
	Arb     *handler.ArbHandler
	Orders  *handler.OrderHandler // nil when trading is not wired
}

// Server is the headless HTTP API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// limiter may be nil, in which case trade routes are not rate limited.
func NewServer(cfg Config, handlers Handlers, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "server"))

	var tradeLimit func(http.Handler) http.Handler
	if limiter != nil && cfg.RateLimit > 0 {
		tradeLimit = middleware.RateLimit(limiter, middleware.RateLimitPolicy{
			Scope:          "trade",
			Limit:          cfg.RateLimit,
			Window:         cfg.RateWindow,
			TrustedProxies: cfg.TrustedProxies,
		}, logger)
	}

	var h http.Handler = Routes(handlers, tradeLimit)
	h = middleware.Auth(cfg.APIKey, "/api/health")(h)
	h = middleware.Logging(logger)(h)
	h = middleware.RequestID()(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Trade submission waits on the venue, which enforces its own timeout.
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
	}
}

// Routes registers every endpoint on a new ServeMux. tradeLimit, when not
// nil, wraps the trade endpoints.
func Routes(handlers Handlers, tradeLimit func(http.Handler) http.Handler) *http.ServeMux {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Market endpoints.
	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("GET /api/markets/{venue}/{id}", handlers.Markets.GetMarket)
	mux.HandleFunc("GET /api/book", handlers.Markets.OrderBook)
	mux.HandleFunc("GET /api/price", handlers.Markets.Price)
	mux.HandleFunc("GET /api/clob/markets/{id}", handlers.Markets.ClobMarket)

	// Opportunity endpoints.
	mux.HandleFunc("GET /api/opportunities", handlers.Arb.Latest)
	mux.HandleFunc("GET /api/opportunities/recent", handlers.Arb.ListRecent)
	mux.HandleFunc("GET /api/snapshots/archive", handlers.Arb.Archived)
	mux.HandleFunc("GET /api/snapshots/{id}", handlers.Arb.Snapshot)

	// Trade endpoints.
	if handlers.Orders != nil {
		trade := func(pattern string, fn http.HandlerFunc) {
			var h http.Handler = fn
			if tradeLimit != nil {
				h = tradeLimit(h)
			}
			mux.Handle(pattern, h)
		}
		mux.HandleFunc("GET /api/trade/wallet", handlers.Orders.Wallet)
		trade("POST /api/trade", handlers.Orders.Trade)
		trade("POST /api/trade/prepare", handlers.Orders.Prepare)
		trade("POST /api/trade/submit", handlers.Orders.Submit)
		trade("DELETE /api/trade/orders/{id}", handlers.Orders.CancelOrder)
	}

	return mux
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

// Handler returns the fully wrapped handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
