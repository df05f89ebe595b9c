package domain

import "time"

// Category is the closed set of topic buckets a market title is sorted into.
type Category string

const (
	CategoryPolitics      Category = "politics"
	CategorySports        Category = "sports"
	CategoryCrypto        Category = "crypto"
	CategoryEconomics     Category = "economics"
	CategoryEntertainment Category = "entertainment"
	CategoryTechnology    Category = "technology"
	CategoryOther         Category = "other"
)

// MatchedPair links two markets from different venues believed to describe
// the same real-world event. Within one ranking pass a secondary market is
// matched to at most one primary.
type MatchedPair struct {
	Primary    Market  `json:"primary"`
	Secondary  Market  `json:"secondary"`
	Similarity float64 `json:"similarity_score"`
	// Spread is |Primary.YesPrice - Secondary.YesPrice|.
	Spread float64 `json:"spread"`
	// Synthetic marks positional display pairs that were not produced by
	// title matching. They must not be counted as real opportunities.
	Synthetic bool `json:"synthetic"`
}

// Opportunity is a ranked MatchedPair with its estimated profit.
//
// ProfitEstimate is spread * notional with no fee, slippage, or two-venue
// capital adjustment.
type Opportunity struct {
	ID string `json:"id"`
	MatchedPair
	ProfitEstimate float64   `json:"profit_estimate"`
	Category       Category  `json:"category"`
	Tier           string    `json:"tier"`
	DetectedAt     time.Time `json:"detected_at"`
}

// Snapshot is the immutable result of one aggregation and ranking cycle.
type Snapshot struct {
	ID            string        `json:"id"`
	TakenAt       time.Time     `json:"taken_at"`
	Markets       []Market      `json:"markets"`
	Opportunities []Opportunity `json:"opportunities"`
	// VenueErrors lists venues that degraded to an empty result.
	VenueErrors map[Venue]string `json:"venue_errors,omitempty"`
}

// RealCount returns the number of opportunities that are not synthetic.
func (s Snapshot) RealCount() int {
	n := 0
	for _, o := range s.Opportunities {
		if !o.Synthetic {
			n++
		}
	}
	return n
}
