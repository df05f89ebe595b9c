package arbitrage

import (
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/crossarb/internal/domain"
	"github.com/alanyoungcy/crossarb/internal/matcher"
)

// DefaultNotional is the position size profit estimates are quoted for.
const DefaultNotional = 100.0

// ProfitEstimate is spread * notional. Fees, slippage and the capital tied
// up on the second venue are not modelled.
func ProfitEstimate(spread, notional float64) float64 {
	return spread * notional
}

// Rank keeps pairs with both yes prices and a spread of at least minSpread,
// sorts them by spread descending (ties keep input order) and truncates the
// result to limit entries. A limit of 0 or less keeps everything.
func Rank(matches []domain.MatchedPair, minSpread float64, limit int, notional float64) []domain.Opportunity {
	opps := make([]domain.Opportunity, 0, len(matches))
	for _, m := range matches {
		if m.Primary.YesPrice == nil || m.Secondary.YesPrice == nil {
			continue
		}
		m.Spread = matcher.Spread(m.Primary, m.Secondary)
		if m.Spread < minSpread {
			continue
		}
		opps = append(opps, domain.Opportunity{
			MatchedPair:    m,
			ProfitEstimate: ProfitEstimate(m.Spread, notional),
			Category:       matcher.Categorize(m.Primary.Title),
		})
	}

	sort.SliceStable(opps, func(i, j int) bool {
		return opps[i].Spread > opps[j].Spread
	})
	if limit > 0 && len(opps) > limit {
		opps = opps[:limit]
	}
	return opps
}

// RankerConfig configures a Ranker.
type RankerConfig struct {
	// PrimaryVenue supplies the candidates; every other venue forms the pool.
	PrimaryVenue domain.Venue
	Cascade      []MatchStrategy
	Limit        int
	Notional     float64
	Logger       *slog.Logger
	Now          func() time.Time
}

// Ranker runs the strategy cascade over one market snapshot.
type Ranker struct {
	primary  domain.Venue
	cascade  []MatchStrategy
	limit    int
	notional float64
	logger   *slog.Logger
	now      func() time.Time
}

// NewRanker creates a Ranker. An empty cascade falls back to the exact and
// relaxed tiers with a 0.005 minimum spread.
func NewRanker(cfg RankerConfig) *Ranker {
	if cfg.PrimaryVenue == "" {
		cfg.PrimaryVenue = domain.VenuePolymarket
	}
	if len(cfg.Cascade) == 0 {
		cfg.Cascade = []MatchStrategy{NewExactMatch(0.005), NewRelaxedMatch()}
	}
	if cfg.Notional <= 0 {
		cfg.Notional = DefaultNotional
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Ranker{
		primary:  cfg.PrimaryVenue,
		cascade:  cfg.Cascade,
		limit:    cfg.Limit,
		notional: cfg.Notional,
		logger:   cfg.Logger.With(slog.String("component", "arb_ranker")),
		now:      cfg.Now,
	}
}

// Run splits markets by venue and tries each tier in order, stopping at the
// first that yields at least one opportunity. Each opportunity gets a fresh
// id and the tier name. Run is pure apart from id generation and may be
// called concurrently.
func (r *Ranker) Run(markets []domain.Market) []domain.Opportunity {
	var primary, pool []domain.Market
	for _, m := range markets {
		if m.Venue == r.primary {
			primary = append(primary, m)
		} else {
			pool = append(pool, m)
		}
	}

	detected := r.now().UTC()
	for _, tier := range r.cascade {
		opps := Rank(tier.Pairs(primary, pool), tier.MinSpread(), r.limit, r.notional)
		if len(opps) == 0 {
			r.logger.Debug("ranker: tier produced no opportunities", slog.String("tier", tier.Name()))
			continue
		}
		for i := range opps {
			opps[i].ID = uuid.NewString()
			opps[i].Tier = tier.Name()
			opps[i].DetectedAt = detected
		}
		r.logger.Info("ranker: ranked opportunities",
			slog.String("tier", tier.Name()),
			slog.Int("count", len(opps)),
			slog.Float64("top_spread", opps[0].Spread),
		)
		return opps
	}
	return nil
}
