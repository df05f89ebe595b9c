package kalshi

import (
	"strings"
	"time"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// --------------------------------------------------------------------------
// Kalshi API DTOs
// --------------------------------------------------------------------------

// KalshiMarket represents a market as returned by the Kalshi REST API.
// Prices are in cents.
type KalshiMarket struct {
	Ticker       string  `json:"ticker"`
	EventTicker  string  `json:"event_ticker"`
	Title        string  `json:"title"`
	Subtitle     string  `json:"subtitle"`
	Category     string  `json:"category"`
	Status       string  `json:"status"` // "open", "active", "closed", "settled", "finalized"
	YesBid       float64 `json:"yes_bid"`
	YesAsk       float64 `json:"yes_ask"`
	NoBid        float64 `json:"no_bid"`
	NoAsk        float64 `json:"no_ask"`
	LastPrice    float64 `json:"last_price"`
	Volume       float64 `json:"volume"`
	Volume24H    float64 `json:"volume_24h"`
	OpenInterest float64 `json:"open_interest"`
	Result       string  `json:"result"` // "yes", "no", "" (unsettled)
	CloseTime    string  `json:"close_time"`
	ExpiryTime   string  `json:"expiration_time"`
}

// Priced reports whether the market quotes a yes bid or ask.
func (m *KalshiMarket) Priced() bool {
	return m.YesBid > 0 || m.YesAsk > 0
}

// ToDomainMarket converts a KalshiMarket into the canonical Market.
//
// The yes price is the bid/ask midpoint when both sides quote, otherwise
// whichever side does. A quote outside 1-100 cents counts as no quote. The
// no price follows the same rule and falls back to 1 - yes.
func (m *KalshiMarket) ToDomainMarket() domain.Market {
	dm := domain.Market{
		ID:        m.Ticker,
		Venue:     domain.VenueKalshi,
		Title:     m.Title,
		Status:    mapStatus(m.Status),
		Volume24h: domain.Float(m.Volume),
		Liquidity: domain.Float(m.OpenInterest),
	}

	if yes, ok := midCents(m.YesBid, m.YesAsk); ok {
		dm.YesPrice = domain.Float(yes)
	}
	if no, ok := midCents(m.NoBid, m.NoAsk); ok {
		dm.NoPrice = domain.Float(no)
	} else if dm.YesPrice != nil {
		dm.NoPrice = domain.Float(1 - *dm.YesPrice)
	}

	if t, err := time.Parse(time.RFC3339, m.CloseTime); err == nil {
		t = t.UTC()
		dm.ExpiresAt = &t
	}
	return dm
}

func midCents(bid, ask float64) (float64, bool) {
	if bid > 100 {
		bid = 0
	}
	if ask > 100 {
		ask = 0
	}
	switch {
	case bid > 0 && ask > 0:
		return (bid + ask) / 2 / 100, true
	case bid > 0:
		return bid / 100, true
	case ask > 0:
		return ask / 100, true
	default:
		return 0, false
	}
}

func mapStatus(s string) domain.MarketStatus {
	switch strings.ToLower(s) {
	case "open", "active":
		return domain.MarketStatusOpen
	case "settled", "finalized":
		return domain.MarketStatusResolved
	default:
		return domain.MarketStatusClosed
	}
}

// KalshiMarketsResponse is the GET /markets envelope.
type KalshiMarketsResponse struct {
	Markets []KalshiMarket `json:"markets"`
	Cursor  string         `json:"cursor"`
}

// KalshiMarketResponse is the GET /markets/{ticker} envelope.
type KalshiMarketResponse struct {
	Market KalshiMarket `json:"market"`
}

// KalshiErrorResponse represents a Kalshi API error response.
type KalshiErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
