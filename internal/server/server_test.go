package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alanyoungcy/crossarb/internal/domain"
	"github.com/alanyoungcy/crossarb/internal/server/handler"
	"github.com/alanyoungcy/crossarb/internal/server/middleware"
	"github.com/alanyoungcy/crossarb/internal/service"
)

type stubScan struct{}

func (stubScan) Markets(context.Context, service.MarketFilter) ([]domain.Market, error) {
	return []domain.Market{{ID: "1", Venue: domain.VenuePolymarket, Title: "x"}}, nil
}

func (stubScan) Latest(context.Context) (domain.Snapshot, error) {
	return domain.Snapshot{ID: "s"}, nil
}

func (stubScan) Recent(context.Context, domain.ListOpts) ([]domain.Opportunity, error) {
	return nil, nil
}

func (stubScan) Snapshot(_ context.Context, id string) (domain.Snapshot, error) {
	if id != "s" {
		return domain.Snapshot{}, domain.ErrNotFound
	}
	return domain.Snapshot{ID: "s"}, nil
}

func testServer(apiKey string) *Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handlers := Handlers{
		Health:  handler.NewHealthHandler("server", nil, logger),
		Markets: handler.NewMarketHandler(stubScan{}, nil, logger),
		Arb:     handler.NewArbHandler(stubScan{}, logger),
	}
	return NewServer(Config{Port: 0, APIKey: apiKey}, handlers, nil, logger)
}

func TestRoutesAndMiddleware(t *testing.T) {
	srv := httptest.NewServer(testServer("k").Handler())
	defer srv.Close()

	tests := []struct {
		name string
		path string
		key  string
		want int
	}{
		{"health is public", "/api/health", "", http.StatusOK},
		{"markets needs key", "/api/markets", "", http.StatusUnauthorized},
		{"markets with key", "/api/markets", "k", http.StatusOK},
		{"opportunities", "/api/opportunities", "k", http.StatusOK},
		{"trade routes absent without handler", "/api/trade/wallet", "k", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, srv.URL+tt.path, nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
			if resp.Header.Get(middleware.RequestIDHeader) == "" {
				t.Error("missing request id header")
			}
		})
	}
}

type stubTrades struct{}

func (stubTrades) WalletAddress() string { return "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266" }

func (stubTrades) Trade(context.Context, domain.OrderIntent) (domain.SubmissionResult, error) {
	return domain.SubmissionResult{State: domain.StateAccepted, OrderID: "0xabc"}, nil
}

func (stubTrades) Prepare(context.Context, domain.OrderIntent) (service.PreparedOrder, error) {
	return service.PreparedOrder{}, nil
}

func (stubTrades) SubmitPrepared(context.Context, string, string) (domain.SubmissionResult, error) {
	return domain.SubmissionResult{State: domain.StateAccepted}, nil
}

func (stubTrades) Cancel(context.Context, string) error { return nil }

// oneShotLimiter allows the first request per key.
type oneShotLimiter struct {
	mu   sync.Mutex
	seen map[string]int
}

func (l *oneShotLimiter) Allow(_ context.Context, key string, _ int, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen[key]++
	return l.seen[key] == 1, nil
}

func TestRateLimitCoversTradeRoutesOnly(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handlers := Handlers{
		Health:  handler.NewHealthHandler("server", nil, logger),
		Markets: handler.NewMarketHandler(stubScan{}, nil, logger),
		Arb:     handler.NewArbHandler(stubScan{}, logger),
		Orders:  handler.NewOrderHandler(stubTrades{}, logger),
	}
	lim := &oneShotLimiter{seen: map[string]int{}}
	srv := httptest.NewServer(NewServer(Config{RateLimit: 1, RateWindow: time.Minute}, handlers, lim, logger).Handler())
	defer srv.Close()

	do := func(method, path, body string) int {
		req, _ := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	for i := 0; i < 3; i++ {
		if code := do(http.MethodGet, "/api/markets", ""); code != http.StatusOK {
			t.Fatalf("markets request %d status = %d", i, code)
		}
	}
	const body = `{"outcome_token_id":"123","side":"buy","size":"10","price":0.65}`
	if code := do(http.MethodPost, "/api/trade", body); code != http.StatusOK {
		t.Fatalf("first trade status = %d", code)
	}
	if code := do(http.MethodPost, "/api/trade", body); code != http.StatusTooManyRequests {
		t.Errorf("second trade status = %d, want 429", code)
	}
	for key := range lim.seen {
		if !strings.HasPrefix(key, "trade:") {
			t.Errorf("limiter key %q outside trade scope", key)
		}
	}
}
