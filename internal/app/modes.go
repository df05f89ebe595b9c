package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/crossarb/internal/aggregator"
	"github.com/alanyoungcy/crossarb/internal/arbitrage"
	"github.com/alanyoungcy/crossarb/internal/crypto"
	"github.com/alanyoungcy/crossarb/internal/domain"
	"github.com/alanyoungcy/crossarb/internal/order"
	"github.com/alanyoungcy/crossarb/internal/server"
	"github.com/alanyoungcy/crossarb/internal/server/handler"
	"github.com/alanyoungcy/crossarb/internal/server/middleware"
	"github.com/alanyoungcy/crossarb/internal/service"
	"github.com/alanyoungcy/crossarb/internal/submit"
)

const shutdownTimeout = 10 * time.Second

// services are the orchestration objects every mode draws from.
type services struct {
	scan   *service.ScanService
	market *service.MarketService
	trade  *service.TradeService
}

// buildServices assembles the ranking cascade, the submission pipeline, and
// the services on top of them.
func (a *App) buildServices(deps *Dependencies) (*services, error) {
	cfg := a.cfg

	agg := aggregator.New(deps.Sources, cfg.Scan.AdapterTimeout.Duration, a.logger)

	cascade, err := arbitrage.DefaultRegistry(cfg.Scan.MinSpread, cfg.Scan.SyntheticTopN).Cascade(cfg.Scan.Tiers...)
	if err != nil {
		return nil, err
	}
	primary, _ := domain.ParseVenue(cfg.Scan.PrimaryVenue)
	ranker := arbitrage.NewRanker(arbitrage.RankerConfig{
		PrimaryVenue: primary,
		Cascade:      cascade,
		Limit:        cfg.Scan.ResultLimit,
		Notional:     cfg.Scan.Notional,
		Logger:       a.logger,
	})

	scan := service.NewScanService(service.ScanDeps{
		Aggregator: agg,
		Ranker:     ranker,
		Cache:      deps.SnapshotCache,
		Store:      deps.OpportunityStore,
		Archiver:   deps.Archiver,
		Audit:      deps.AuditStore,
		Notifier:   deps.Notifier,
		Lock:       deps.LockManager,
	}, service.ScanConfig{
		Limit:    cfg.Scan.Limit,
		Interval: cfg.Scan.Interval.Duration,
		LockTTL:  cfg.Scan.LockTTL.Duration,
	}, a.logger)

	market := service.NewMarketService(deps.Clob, agg, deps.BookCache, cfg.Redis.BookTTL.Duration, a.logger)

	builder, err := order.NewBuilder(cfg.Wallet.FunderAddress, cfg.Order.DefaultExpiration.Duration)
	if err != nil {
		return nil, err
	}
	exchange := crypto.DefaultExchangeDomain()
	if cfg.Polymarket.ChainID != 0 {
		exchange.ChainID = int64(cfg.Polymarket.ChainID)
	}
	if cfg.Polymarket.VerifyingContract != "" {
		exchange.VerifyingContract = cfg.Polymarket.VerifyingContract
	}
	pipeline := submit.New(submit.Config{
		Builder:  builder,
		Exchange: exchange,
		Poster:   deps.Clob,
		Logger:   a.logger,
	})

	trade := service.NewTradeService(service.TradeDeps{
		Pipeline:    pipeline,
		Interactive: builder.WithExpiration(cfg.Order.InteractiveExpiration.Duration),
		Exchange:    deps.Clob,
		Wallet:      deps.Wallet,
		Audit:       deps.AuditStore,
		Notifier:    deps.Notifier,
	}, a.logger)

	return &services{scan: scan, market: market, trade: trade}, nil
}

// ScanMode runs the periodic aggregation and ranking loop.
func (a *App) ScanMode(ctx context.Context, svc *services) error {
	a.logger.InfoContext(ctx, "app: starting scan mode",
		slog.Duration("interval", a.cfg.Scan.Interval.Duration),
	)
	return svc.scan.Run(ctx)
}

// ServerMode serves the HTTP API. Without a scan loop in this process,
// snapshots come from the shared cache or from an on-demand scan.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies, svc *services) error {
	a.logger.InfoContext(ctx, "app: starting server mode")
	g, ctx := errgroup.WithContext(ctx)
	if err := a.startHTTPServer(ctx, g, deps, svc); err != nil {
		return err
	}
	return g.Wait()
}

// FullMode runs the scan loop and the HTTP API together.
func (a *App) FullMode(ctx context.Context, deps *Dependencies, svc *services) error {
	a.logger.InfoContext(ctx, "app: starting full mode")
	g, ctx := errgroup.WithContext(ctx)
	if err := a.startHTTPServer(ctx, g, deps, svc); err != nil {
		return err
	}
	g.Go(func() error {
		return svc.scan.Run(ctx)
	})
	return g.Wait()
}

// startHTTPServer registers the server and its shutdown watcher on g.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, svc *services) error {
	proxies, err := middleware.ParseTrustedProxies(a.cfg.Server.TrustedProxies)
	if err != nil {
		return fmt.Errorf("app: server: %w", err)
	}

	arb := handler.NewArbHandler(svc.scan, a.logger)
	if deps.SnapshotLoader != nil {
		arb.WithArchive(deps.SnapshotLoader)
	}
	handlers := server.Handlers{
		Health:  handler.NewHealthHandler(a.cfg.Mode, deps.HealthChecks, a.logger),
		Markets: handler.NewMarketHandler(svc.scan, svc.market, a.logger),
		Arb:     arb,
		Orders:  handler.NewOrderHandler(svc.trade, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:           a.cfg.Server.Port,
		CORSOrigins:    a.cfg.Server.CORSOrigins,
		APIKey:         a.cfg.Server.APIKey,
		RateLimit:      a.cfg.Server.RateLimit,
		RateWindow:     a.cfg.Server.RateWindow.Duration,
		TrustedProxies: proxies,
	}, handlers, deps.RateLimiter, a.logger)

	g.Go(func() error {
		if err := srv.Start(); err != nil {
			return fmt.Errorf("app: http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
	return nil
}
