package domain

import "time"

// PriceLevel is a single price+size entry in an orderbook.
type PriceLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// OrderbookSnapshot is a public order book read for one outcome token.
// Bids are sorted best (highest) first, asks best (lowest) first.
type OrderbookSnapshot struct {
	AssetID   string       `json:"asset_id"`
	Market    string       `json:"market"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	BestBid   float64      `json:"best_bid"`
	BestAsk   float64      `json:"best_ask"`
	MidPrice  float64      `json:"mid_price"`
	Timestamp time.Time    `json:"timestamp"`
}

// Quote is the best price for one token and side.
type Quote struct {
	TokenID string    `json:"token_id"`
	Side    OrderSide `json:"side"`
	Price   float64   `json:"price"`
}
