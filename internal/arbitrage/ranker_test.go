package arbitrage

import (
	"fmt"
	"math"
	"testing"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

func mkt(venue domain.Venue, id, title string, yes float64) domain.Market {
	return domain.Market{
		ID:       id,
		Venue:    venue,
		Title:    title,
		Status:   domain.MarketStatusOpen,
		YesPrice: domain.Float(yes),
	}
}

func pair(id string, a, b float64) domain.MatchedPair {
	return domain.MatchedPair{
		Primary:    mkt(domain.VenuePolymarket, "p"+id, "title "+id, a),
		Secondary:  mkt(domain.VenueKalshi, "k"+id, "title "+id, b),
		Similarity: 1,
	}
}

func TestRankEndToEnd(t *testing.T) {
	markets := []domain.Market{
		mkt(domain.VenuePolymarket, "p1", "Will Trump win the 2024 election?", 0.40),
		mkt(domain.VenueKalshi, "k1", "Election 2024: Trump victory?", 0.55),
	}

	r := NewRanker(RankerConfig{Notional: 100})
	opps := r.Run(markets)
	if len(opps) != 1 {
		t.Fatalf("Run() returned %d opportunities, want 1", len(opps))
	}
	o := opps[0]
	if math.Abs(o.Spread-0.15) > 1e-9 {
		t.Errorf("spread = %v, want 0.15", o.Spread)
	}
	if math.Abs(o.ProfitEstimate-15) > 1e-9 {
		t.Errorf("profit = %v, want 15", o.ProfitEstimate)
	}
	if o.Tier != TierExact {
		t.Errorf("tier = %s, want %s", o.Tier, TierExact)
	}
	if o.Category != domain.CategoryPolitics {
		t.Errorf("category = %s, want politics", o.Category)
	}
	if o.ID == "" || o.DetectedAt.IsZero() {
		t.Error("id and detection time must be set")
	}
}

func TestRankOrderingAndLimit(t *testing.T) {
	matches := []domain.MatchedPair{
		pair("a", 0.50, 0.52),
		pair("b", 0.10, 0.60),
		pair("c", 0.30, 0.40),
		pair("d", 0.45, 0.54),
		pair("e", 0.50, 0.501),
	}

	opps := Rank(matches, 0.005, 0, DefaultNotional)
	wantIDs := []string{"pb", "pc", "pd", "pa"}
	if len(opps) != len(wantIDs) {
		t.Fatalf("Rank() returned %d, want %d", len(opps), len(wantIDs))
	}
	for i, id := range wantIDs {
		if opps[i].Primary.ID != id {
			t.Errorf("opps[%d] = %s, want %s", i, opps[i].Primary.ID, id)
		}
	}
	for i := 1; i < len(opps); i++ {
		if opps[i].Spread > opps[i-1].Spread {
			t.Errorf("output not sorted at %d", i)
		}
	}

	if got := Rank(matches, 0.005, 2, DefaultNotional); len(got) != 2 {
		t.Errorf("Rank() with limit 2 returned %d", len(got))
	}
}

func TestRankProperties(t *testing.T) {
	markets := []domain.Market{
		mkt(domain.VenuePolymarket, "p1", "Will Bitcoin reach 100k in 2025?", 0.20),
		mkt(domain.VenuePolymarket, "p2", "Bitcoin reach 100k during 2025", 0.90),
		mkt(domain.VenuePolymarket, "p3", "Will the Fed cut rates in March?", 0.35),
		mkt(domain.VenueKalshi, "k1", "Bitcoin reach 100k in 2025", 0.45),
		mkt(domain.VenueKalshi, "k2", "Fed cut rates in March", 0.60),
		mkt(domain.VenueKalshi, "k3", "Bitcoin price reach 100k 2025", 0.05),
	}

	opps := NewRanker(RankerConfig{}).Run(markets)
	if len(opps) == 0 {
		t.Fatal("Run() returned no opportunities")
	}
	seen := make(map[string]bool)
	for i, o := range opps {
		if o.Spread < 0 || o.Spread > 1 {
			t.Errorf("spread %v outside [0,1]", o.Spread)
		}
		if seen[o.Secondary.Key()] {
			t.Errorf("secondary %s used twice", o.Secondary.Key())
		}
		seen[o.Secondary.Key()] = true
		if i > 0 && o.Spread > opps[i-1].Spread {
			t.Errorf("output not sorted at %d", i)
		}
	}
}

func TestRankSkipsUnpriced(t *testing.T) {
	p := pair("a", 0.2, 0.8)
	p.Secondary.YesPrice = nil
	if got := Rank([]domain.MatchedPair{p}, 0, 0, DefaultNotional); len(got) != 0 {
		t.Errorf("Rank() kept a pair without a secondary price")
	}
}

func TestCascadeFallsBackToRelaxed(t *testing.T) {
	// Identical titles but a spread below the strict tier minimum.
	markets := []domain.Market{
		mkt(domain.VenuePolymarket, "p1", "Will the Fed cut rates in March?", 0.500),
		mkt(domain.VenueKalshi, "k1", "Will the Fed cut rates in March?", 0.502),
	}
	opps := NewRanker(RankerConfig{}).Run(markets)
	if len(opps) != 1 {
		t.Fatalf("Run() returned %d, want 1", len(opps))
	}
	if opps[0].Tier != TierRelaxed {
		t.Errorf("tier = %s, want %s", opps[0].Tier, TierRelaxed)
	}
}

func TestRelaxedTierScansFirstTwentyCandidates(t *testing.T) {
	// The only match sits after n-1 unmatched candidates. Its spread is
	// below the strict minimum, so only the relaxed tier can rank it.
	build := func(n int) []domain.Market {
		markets := make([]domain.Market, 0, n+1)
		for i := 1; i < n; i++ {
			markets = append(markets, mkt(domain.VenuePolymarket, fmt.Sprintf("filler%d", i), "Filler market number", 0.50))
		}
		markets = append(markets,
			mkt(domain.VenuePolymarket, "p-last", "Will the Fed cut rates in March?", 0.500),
			mkt(domain.VenueKalshi, "k1", "Will the Fed cut rates in March?", 0.502),
		)
		return markets
	}

	tests := []struct {
		name       string
		candidates int
		want       int
	}{
		{"match at candidate 20", 20, 1},
		{"match at candidate 21 is dropped", 21, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opps := NewRanker(RankerConfig{}).Run(build(tt.candidates))
			if len(opps) != tt.want {
				t.Fatalf("Run() returned %d, want %d", len(opps), tt.want)
			}
			if tt.want == 1 && (opps[0].Tier != TierRelaxed || opps[0].Primary.ID != "p-last") {
				t.Errorf("got %s via %s, want p-last via relaxed", opps[0].Primary.ID, opps[0].Tier)
			}
		})
	}
}

func TestQuarterSimilarityLandsInRelaxedTier(t *testing.T) {
	// One of four equally weighted keywords matches: similarity 0.25 is
	// under the strict 0.3 floor and over the relaxed 0.2 floor.
	markets := []domain.Market{
		mkt(domain.VenuePolymarket, "p1", "Manchester snowstorm forecasts headlines", 0.40),
		mkt(domain.VenueKalshi, "k1", "Manchester derby tonight", 0.55),
	}
	opps := NewRanker(RankerConfig{}).Run(markets)
	if len(opps) != 1 {
		t.Fatalf("Run() returned %d, want 1", len(opps))
	}
	o := opps[0]
	if o.Tier != TierRelaxed {
		t.Errorf("tier = %s, want %s", o.Tier, TierRelaxed)
	}
	if math.Abs(o.Similarity-0.25) > 1e-9 {
		t.Errorf("similarity = %v, want 0.25", o.Similarity)
	}
	if math.Abs(o.Spread-0.15) > 1e-9 {
		t.Errorf("spread = %v, want 0.15", o.Spread)
	}
}

func TestCascadeSynthetic(t *testing.T) {
	markets := []domain.Market{
		mkt(domain.VenuePolymarket, "p1", "Will it snow in Paris on Christmas?", 0.30),
		mkt(domain.VenuePolymarket, "p2", "Bitcoin dominance above sixty percent", 0.60),
		mkt(domain.VenueKalshi, "k1", "Lakers vs Celtics tonight", 0.45),
		mkt(domain.VenueKalshi, "k2", "Unemployment rate over four points", 0.20),
	}

	if opps := NewRanker(RankerConfig{}).Run(markets); len(opps) != 0 {
		t.Fatalf("default cascade returned %d opportunities, want 0", len(opps))
	}

	cascade, err := DefaultRegistry(0.005, 10).Cascade(TierExact, TierRelaxed, TierSynthetic)
	if err != nil {
		t.Fatalf("Cascade() error = %v", err)
	}
	opps := NewRanker(RankerConfig{Cascade: cascade}).Run(markets)
	if len(opps) != 2 {
		t.Fatalf("Run() returned %d, want 2", len(opps))
	}
	snap := domain.Snapshot{Opportunities: opps}
	if snap.RealCount() != 0 {
		t.Errorf("RealCount() = %d, want 0", snap.RealCount())
	}
	for _, o := range opps {
		if !o.Synthetic || o.Tier != TierSynthetic {
			t.Errorf("opportunity %s not marked synthetic", o.Primary.ID)
		}
	}
	// p1/k1 spread 0.15, p2/k2 spread 0.40.
	if opps[0].Primary.ID != "p2" || opps[0].Secondary.ID != "k2" {
		t.Errorf("first pair = %s/%s, want p2/k2", opps[0].Primary.ID, opps[0].Secondary.ID)
	}
}

func TestRegistryUnknown(t *testing.T) {
	if _, err := DefaultRegistry(0.005, 10).Cascade("nope"); err == nil {
		t.Error("expected error for unknown strategy")
	}
	names := DefaultRegistry(0.005, 10).List()
	if len(names) != 3 {
		t.Errorf("List() = %v", names)
	}
}

func TestProfitEstimate(t *testing.T) {
	if got := ProfitEstimate(0.15, 100); math.Abs(got-15) > 1e-9 {
		t.Errorf("ProfitEstimate() = %v, want 15", got)
	}
}
