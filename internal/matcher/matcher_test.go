package matcher

import (
	"math"
	"testing"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

func market(venue domain.Venue, id, title string, yes float64) domain.Market {
	return domain.Market{
		ID:       id,
		Venue:    venue,
		Title:    title,
		Status:   domain.MarketStatusOpen,
		YesPrice: domain.Float(yes),
	}
}

func TestMatchPicksHighestScoringSecondary(t *testing.T) {
	candidates := []domain.Market{
		market(domain.VenuePolymarket, "p1", "Will Trump win the 2024 election?", 0.40),
	}
	pool := []domain.Market{
		market(domain.VenueKalshi, "k1", "Trump wins Pennsylvania in 2024", 0.50),
		market(domain.VenueKalshi, "k2", "Election 2024: Trump victory?", 0.55),
	}

	pairs := Match(candidates, pool, 0.3, nil)
	if len(pairs) != 1 {
		t.Fatalf("Match() returned %d pairs, want 1", len(pairs))
	}
	if pairs[0].Secondary.ID != "k2" {
		t.Errorf("secondary = %s, want k2", pairs[0].Secondary.ID)
	}
	if math.Abs(pairs[0].Spread-0.15) > 1e-9 {
		t.Errorf("spread = %v, want 0.15", pairs[0].Spread)
	}
	if pairs[0].Synthetic {
		t.Error("title match must not be synthetic")
	}
}

func TestMatchClaimsSecondaryOnce(t *testing.T) {
	candidates := []domain.Market{
		market(domain.VenuePolymarket, "p1", "Will Bitcoin reach 100k in 2025?", 0.30),
		market(domain.VenuePolymarket, "p2", "Bitcoin reach 100k during 2025", 0.35),
	}
	pool := []domain.Market{
		market(domain.VenueKalshi, "k1", "Bitcoin reach 100k in 2025", 0.45),
	}

	pairs := Match(candidates, pool, 0.3, nil)
	if len(pairs) != 1 {
		t.Fatalf("Match() returned %d pairs, want 1", len(pairs))
	}
	// Candidates are served in input order, not by score.
	if pairs[0].Primary.ID != "p1" {
		t.Errorf("primary = %s, want p1", pairs[0].Primary.ID)
	}
}

func TestMatchHonoursCallerClaims(t *testing.T) {
	candidates := []domain.Market{
		market(domain.VenuePolymarket, "p1", "Bitcoin reach 100k in 2025", 0.30),
	}
	pool := []domain.Market{
		market(domain.VenueKalshi, "k1", "Bitcoin reach 100k in 2025", 0.45),
	}

	claimed := NewSet[string]()
	claimed.Add(pool[0].Key())
	if pairs := Match(candidates, pool, 0.3, claimed); len(pairs) != 0 {
		t.Fatalf("Match() returned %d pairs for a claimed secondary", len(pairs))
	}

	fresh := NewSet[string]()
	if pairs := Match(candidates, pool, 0.3, fresh); len(pairs) != 1 {
		t.Fatalf("Match() returned %d pairs, want 1", len(pairs))
	}
	if !fresh.Has("kalshi:k1") {
		t.Error("claimed set was not updated")
	}
}

func TestMatchSkips(t *testing.T) {
	title := "Will the Fed cut rates in March?"
	tests := []struct {
		name      string
		candidate domain.Market
		pool      []domain.Market
		min       float64
	}{
		{
			name:      "same venue",
			candidate: market(domain.VenuePolymarket, "p1", title, 0.4),
			pool:      []domain.Market{market(domain.VenuePolymarket, "p2", title, 0.5)},
			min:       0.3,
		},
		{
			name:      "below threshold",
			candidate: market(domain.VenuePolymarket, "p1", title, 0.4),
			pool:      []domain.Market{market(domain.VenueKalshi, "k1", "Will the ECB hike rates in March?", 0.5)},
			min:       0.9,
		},
		{
			name:      "secondary without price",
			candidate: market(domain.VenuePolymarket, "p1", title, 0.4),
			pool:      []domain.Market{{ID: "k1", Venue: domain.VenueKalshi, Title: title}},
			min:       0.3,
		},
		{
			name:      "candidate without price",
			candidate: domain.Market{ID: "p1", Venue: domain.VenuePolymarket, Title: title},
			pool:      []domain.Market{market(domain.VenueKalshi, "k1", title, 0.5)},
			min:       0.3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if pairs := Match([]domain.Market{tt.candidate}, tt.pool, tt.min, nil); len(pairs) != 0 {
				t.Errorf("Match() = %d pairs, want 0", len(pairs))
			}
		})
	}
}

func TestSpread(t *testing.T) {
	a := market(domain.VenuePolymarket, "a", "x", 0.55)
	b := market(domain.VenueKalshi, "b", "x", 0.40)
	if got := Spread(a, b); math.Abs(got-0.15) > 1e-9 {
		t.Errorf("Spread() = %v, want 0.15", got)
	}
	if got := Spread(a, domain.Market{}); got != 0 {
		t.Errorf("Spread() with missing price = %v, want 0", got)
	}
}
