package matcher

import (
	"math"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// Match pairs each candidate, in input order, with the highest-scoring
// market in pool that is on another venue and not yet claimed. A market
// wins only with a score of at least minSimilarity. Ties keep the earliest
// pool entry.
//
// claimed carries the keys (Market.Key) of secondaries already used in this
// ranking pass and is updated in place, so a secondary is matched at most
// once even across repeated calls sharing the set. A nil claimed starts
// empty. Markets without a yes price cannot be ranked and are skipped.
func Match(candidates, pool []domain.Market, minSimilarity float64, claimed Set[string]) []domain.MatchedPair {
	if claimed == nil {
		claimed = NewSet[string]()
	}

	var pairs []domain.MatchedPair
	for _, c := range candidates {
		if c.YesPrice == nil {
			continue
		}

		best := -1
		bestScore := 0.0
		for i, p := range pool {
			if p.Venue == c.Venue || p.YesPrice == nil || claimed.Has(p.Key()) {
				continue
			}
			score := Similarity(c.Title, p.Title)
			if score <= 0 || score < minSimilarity {
				continue
			}
			if score > bestScore {
				best, bestScore = i, score
			}
		}
		if best < 0 {
			continue
		}

		secondary := pool[best]
		claimed.Add(secondary.Key())
		pairs = append(pairs, domain.MatchedPair{
			Primary:    c,
			Secondary:  secondary,
			Similarity: bestScore,
			Spread:     Spread(c, secondary),
		})
	}
	return pairs
}

// Spread is |a.YesPrice - b.YesPrice|, or 0 when either price is missing.
func Spread(a, b domain.Market) float64 {
	if a.YesPrice == nil || b.YesPrice == nil {
		return 0
	}
	return math.Abs(*a.YesPrice - *b.YesPrice)
}
