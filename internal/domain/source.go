package domain

import "context"

// MarketSource is a venue adapter. Implementations turn the venue's raw
// listing payload into canonical Markets and hold no state between calls.
type MarketSource interface {
	Venue() Venue
	// ListMarkets returns up to limit open markets.
	ListMarkets(ctx context.Context, limit int) ([]Market, error)
	// GetMarket returns one market by its venue-scoped id.
	GetMarket(ctx context.Context, id string) (Market, error)
}

// MarketSearcher is implemented by adapters whose venue offers a free-text
// market search.
type MarketSearcher interface {
	SearchMarkets(ctx context.Context, query string, limit int) ([]Market, error)
}
