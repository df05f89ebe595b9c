package aggregator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

type fakeSource struct {
	venue   domain.Venue
	markets []domain.Market
	err     error
	delay   time.Duration
}

func (f *fakeSource) Venue() domain.Venue { return f.venue }

func (f *fakeSource) ListMarkets(ctx context.Context, limit int) ([]domain.Market, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, &domain.VenueError{Venue: f.venue, Op: "list markets", Err: ctx.Err()}
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	if len(f.markets) > limit {
		return f.markets[:limit], nil
	}
	return f.markets, nil
}

func (f *fakeSource) GetMarket(ctx context.Context, id string) (domain.Market, error) {
	for _, m := range f.markets {
		if m.ID == id {
			return m, nil
		}
	}
	return domain.Market{}, domain.ErrNotFound
}

func markets(venue domain.Venue, ids ...string) []domain.Market {
	out := make([]domain.Market, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.Market{ID: id, Venue: venue, Title: id})
	}
	return out
}

func TestAggregateMergesInSourceOrder(t *testing.T) {
	a := New([]domain.MarketSource{
		&fakeSource{venue: domain.VenuePolymarket, markets: markets(domain.VenuePolymarket, "p1", "p2"), delay: 20 * time.Millisecond},
		&fakeSource{venue: domain.VenueKalshi, markets: markets(domain.VenueKalshi, "k1")},
	}, time.Second, nil)

	res := a.Aggregate(context.Background(), 10)
	if len(res.Errors) != 0 {
		t.Fatalf("Errors = %v", res.Errors)
	}
	want := []string{"p1", "p2", "k1"}
	if len(res.Markets) != len(want) {
		t.Fatalf("got %d markets, want %d", len(res.Markets), len(want))
	}
	for i, id := range want {
		if res.Markets[i].ID != id {
			t.Errorf("Markets[%d] = %s, want %s", i, res.Markets[i].ID, id)
		}
	}
}

func TestAggregateDegradesFailingVenue(t *testing.T) {
	boom := &domain.VenueError{Venue: domain.VenueKalshi, Op: "list markets", Err: errors.New("boom")}
	a := New([]domain.MarketSource{
		&fakeSource{venue: domain.VenuePolymarket, markets: markets(domain.VenuePolymarket, "p1")},
		&fakeSource{venue: domain.VenueKalshi, err: boom},
	}, time.Second, nil)

	res := a.Aggregate(context.Background(), 10)
	if len(res.Markets) != 1 || res.Markets[0].ID != "p1" {
		t.Errorf("Markets = %+v", res.Markets)
	}
	if !errors.Is(res.Errors[domain.VenueKalshi], domain.ErrVenueUnavailable) {
		t.Errorf("kalshi error = %v", res.Errors[domain.VenueKalshi])
	}
}

func TestAggregateSlowVenueDoesNotBlock(t *testing.T) {
	a := New([]domain.MarketSource{
		&fakeSource{venue: domain.VenuePolymarket, markets: markets(domain.VenuePolymarket, "p1"), delay: 5 * time.Second},
		&fakeSource{venue: domain.VenueKalshi, markets: markets(domain.VenueKalshi, "k1")},
	}, 50*time.Millisecond, nil)

	start := time.Now()
	res := a.Aggregate(context.Background(), 10)
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Aggregate took %v", elapsed)
	}
	if len(res.Markets) != 1 || res.Markets[0].ID != "k1" {
		t.Errorf("Markets = %+v", res.Markets)
	}
	if !errors.Is(res.Errors[domain.VenuePolymarket], context.DeadlineExceeded) {
		t.Errorf("polymarket error = %v", res.Errors[domain.VenuePolymarket])
	}
}

func TestSourceLookup(t *testing.T) {
	a := New([]domain.MarketSource{&fakeSource{venue: domain.VenueKalshi}}, 0, nil)
	if _, ok := a.Source(domain.VenueKalshi); !ok {
		t.Error("kalshi source not found")
	}
	if _, ok := a.Source(domain.VenuePolymarket); ok {
		t.Error("unexpected polymarket source")
	}
}
