package domain

import (
	"strings"
	"time"
)

// Venue identifies the trading platform a market was listed on.
type Venue string

const (
	VenuePolymarket Venue = "polymarket"
	VenueKalshi     Venue = "kalshi"
)

// MarketStatus represents the lifecycle state of a market.
type MarketStatus string

const (
	MarketStatusOpen     MarketStatus = "open"
	MarketStatusClosed   MarketStatus = "closed"
	MarketStatusResolved MarketStatus = "resolved"
)

// OutcomeTokens holds the venue token identifiers for the Yes and No
// outcomes. Only markets carrying both can be traded.
type OutcomeTokens struct {
	Yes string `json:"yes"`
	No  string `json:"no"`
}

// Market is the canonical, venue-independent listing record. A Market is
// built fresh by a venue adapter on every fetch and never mutated afterwards.
//
// YesPrice and NoPrice are independent quotes in [0,1]; their sum is not
// required to equal 1 and either may be absent.
type Market struct {
	ID            string         `json:"id"`
	Venue         Venue          `json:"venue"`
	Title         string         `json:"title"`
	Status        MarketStatus   `json:"status"`
	YesPrice      *float64       `json:"yes_price,omitempty"`
	NoPrice       *float64       `json:"no_price,omitempty"`
	Volume24h     *float64       `json:"volume_24h,omitempty"`
	Liquidity     *float64       `json:"liquidity,omitempty"`
	ExpiresAt     *time.Time     `json:"expires_at,omitempty"`
	OutcomeTokens *OutcomeTokens `json:"outcome_token_ids,omitempty"`
}

// Tradable reports whether the market carries both outcome token ids.
func (m Market) Tradable() bool {
	return m.OutcomeTokens != nil && m.OutcomeTokens.Yes != "" && m.OutcomeTokens.No != ""
}

// Key returns a globally unique identifier of the form "venue:id".
func (m Market) Key() string {
	return string(m.Venue) + ":" + m.ID
}

// ParseVenue maps a case-insensitive venue name onto a Venue. The boolean
// result is false for unknown names.
func ParseVenue(s string) (Venue, bool) {
	switch Venue(strings.ToLower(strings.TrimSpace(s))) {
	case VenuePolymarket:
		return VenuePolymarket, true
	case VenueKalshi:
		return VenueKalshi, true
	default:
		return "", false
	}
}

// Float returns a pointer to v. Adapters use it to populate optional fields.
func Float(v float64) *float64 {
	return &v
}
