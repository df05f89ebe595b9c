// Package arbitrage ranks cross-venue matched pairs by price spread. Matching
// runs as an ordered cascade of strategies; the first strategy that yields a
// ranked opportunity wins.
package arbitrage

import (
	"github.com/alanyoungcy/crossarb/internal/domain"
	"github.com/alanyoungcy/crossarb/internal/matcher"
)

// Tier names, in cascade order.
const (
	TierExact     = "exact"
	TierRelaxed   = "relaxed"
	TierSynthetic = "synthetic"
)

// MatchStrategy pairs primary-venue markets with secondary-venue markets and
// says how strict the ranking of those pairs is.
type MatchStrategy interface {
	Name() string
	// Pairs produces candidate pairs. Implementations start a fresh claimed
	// set on every call.
	Pairs(primary, secondary []domain.Market) []domain.MatchedPair
	// MinSpread is the smallest spread kept by the ranker for this tier.
	MinSpread() float64
}

// TitleMatch pairs markets by title similarity.
type TitleMatch struct {
	name          string
	minSimilarity float64
	minSpread     float64
	// maxCandidates caps how many primary markets are scanned; 0 means all.
	maxCandidates int
}

// NewExactMatch is the strict tier: similarity at least 0.3, spread at least
// minSpread.
func NewExactMatch(minSpread float64) *TitleMatch {
	return &TitleMatch{name: TierExact, minSimilarity: 0.3, minSpread: minSpread}
}

// NewRelaxedMatch is the fallback tier: similarity at least 0.2, any spread,
// first 20 candidates only.
func NewRelaxedMatch() *TitleMatch {
	return &TitleMatch{name: TierRelaxed, minSimilarity: 0.2, maxCandidates: 20}
}

func (s *TitleMatch) Name() string       { return s.name }
func (s *TitleMatch) MinSpread() float64 { return s.minSpread }

func (s *TitleMatch) Pairs(primary, secondary []domain.Market) []domain.MatchedPair {
	candidates := primary
	if s.maxCandidates > 0 && len(candidates) > s.maxCandidates {
		candidates = candidates[:s.maxCandidates]
	}
	return matcher.Match(candidates, secondary, s.minSimilarity, matcher.NewSet[string]())
}

// SyntheticPairing pairs the i-th priced market of each venue for display
// when nothing matches by title. Every pair it returns is marked Synthetic.
type SyntheticPairing struct {
	topN int
}

// NewSyntheticPairing pairs at most topN markets from each side.
func NewSyntheticPairing(topN int) *SyntheticPairing {
	return &SyntheticPairing{topN: topN}
}

func (s *SyntheticPairing) Name() string       { return TierSynthetic }
func (s *SyntheticPairing) MinSpread() float64 { return 0 }

func (s *SyntheticPairing) Pairs(primary, secondary []domain.Market) []domain.MatchedPair {
	a, b := priced(primary), priced(secondary)
	n := min(len(a), len(b))
	if s.topN > 0 {
		n = min(n, s.topN)
	}
	pairs := make([]domain.MatchedPair, 0, n)
	for i := 0; i < n; i++ {
		pairs = append(pairs, domain.MatchedPair{
			Primary:    a[i],
			Secondary:  b[i],
			Similarity: matcher.Similarity(a[i].Title, b[i].Title),
			Spread:     matcher.Spread(a[i], b[i]),
			Synthetic:  true,
		})
	}
	return pairs
}

func priced(ms []domain.Market) []domain.Market {
	out := make([]domain.Market, 0, len(ms))
	for _, m := range ms {
		if m.YesPrice != nil {
			out = append(out, m)
		}
	}
	return out
}
