package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/crossarb/internal/aggregator"
	"github.com/alanyoungcy/crossarb/internal/domain"
)

// DefaultBookTTL is how long a fetched order book is served from cache.
const DefaultBookTTL = 2 * time.Second

// BookReader is the public CLOB read surface.
type BookReader interface {
	GetOrderBook(ctx context.Context, tokenID string) (domain.OrderbookSnapshot, error)
	GetPrice(ctx context.Context, tokenID string, side domain.OrderSide) (domain.Quote, error)
	GetMarket(ctx context.Context, conditionID string) (domain.Market, error)
}

// MarketService serves single-market lookups: order books, prices, CLOB
// market metadata, and venue listings by id.
type MarketService struct {
	clob    BookReader
	agg     *aggregator.Aggregator
	cache   domain.BookCache
	bookTTL time.Duration
	logger  *slog.Logger
}

// NewMarketService creates a MarketService. cache may be nil.
func NewMarketService(
	clob BookReader,
	agg *aggregator.Aggregator,
	cache domain.BookCache,
	bookTTL time.Duration,
	logger *slog.Logger,
) *MarketService {
	if bookTTL <= 0 {
		bookTTL = DefaultBookTTL
	}
	return &MarketService{
		clob:    clob,
		agg:     agg,
		cache:   cache,
		bookTTL: bookTTL,
		logger:  logger.With(slog.String("component", "market_service")),
	}
}

// OrderBook returns the book for tokenID, checking the cache first.
func (s *MarketService) OrderBook(ctx context.Context, tokenID string) (domain.OrderbookSnapshot, error) {
	if s.cache != nil {
		snap, err := s.cache.GetBook(ctx, tokenID)
		if err == nil {
			return snap, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "market_service: book cache read failed",
				slog.String("token_id", tokenID),
				slog.String("error", err.Error()),
			)
		}
	}

	snap, err := s.clob.GetOrderBook(ctx, tokenID)
	if err != nil {
		return domain.OrderbookSnapshot{}, fmt.Errorf("market_service: order book %s: %w", tokenID, err)
	}

	if s.cache != nil {
		if err := s.cache.SetBook(ctx, snap, s.bookTTL); err != nil {
			s.logger.WarnContext(ctx, "market_service: book cache write failed",
				slog.String("token_id", tokenID),
				slog.String("error", err.Error()),
			)
		}
	}
	return snap, nil
}

// Price returns the best price for tokenID on side.
func (s *MarketService) Price(ctx context.Context, tokenID string, side domain.OrderSide) (domain.Quote, error) {
	q, err := s.clob.GetPrice(ctx, tokenID, side)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("market_service: price %s: %w", tokenID, err)
	}
	return q, nil
}

// ClobMarket returns CLOB metadata for a condition id.
func (s *MarketService) ClobMarket(ctx context.Context, conditionID string) (domain.Market, error) {
	m, err := s.clob.GetMarket(ctx, conditionID)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: clob market %s: %w", conditionID, err)
	}
	return m, nil
}

// VenueMarket fetches one market straight from its venue.
func (s *MarketService) VenueMarket(ctx context.Context, venue domain.Venue, id string) (domain.Market, error) {
	src, ok := s.agg.Source(venue)
	if !ok {
		return domain.Market{}, fmt.Errorf("market_service: venue %q: %w", venue, domain.ErrNotConfigured)
	}
	m, err := src.GetMarket(ctx, id)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: %s market %s: %w", venue, id, err)
	}
	return m, nil
}
