package polymarket

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "active" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// flexFloat unmarshals from a JSON number or a numeric string. Missing or
// empty values leave the field nil.
type flexFloat struct {
	v *float64
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		f.v = &n
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("flexFloat: %w", err)
	}
	f.v = &n
	return nil
}

// Ptr returns the decoded value, or nil when absent.
func (f flexFloat) Ptr() *float64 { return f.v }

// --------------------------------------------------------------------------
// Gamma API DTOs
// --------------------------------------------------------------------------

// APIMarket represents a market as returned by the Polymarket Gamma API.
type APIMarket struct {
	ID            string    `json:"id"`
	ConditionID   string    `json:"conditionId"`
	Question      string    `json:"question"`
	Slug          string    `json:"slug"`
	Active        flexBool  `json:"active"`
	Closed        flexBool  `json:"closed"`
	Outcomes      string    `json:"outcomes"`      // JSON-encoded: e.g. "[\"Yes\",\"No\"]"
	OutcomePrices string    `json:"outcomePrices"` // JSON-encoded: e.g. "[\"0.5\",\"0.5\"]"
	ClobTokenIDs  string    `json:"clobTokenIds"`  // JSON-encoded: e.g. "[\"123\",\"456\"]"
	VolumeNum     flexFloat `json:"volumeNum"`
	LiquidityNum  flexFloat `json:"liquidityNum"`
	EndDateISO    string    `json:"endDateIso"`
	NegRisk       bool      `json:"negRisk"`
}

// Open reports whether Gamma lists the market as tradeable.
func (m *APIMarket) Open() bool {
	return bool(m.Active) && !bool(m.Closed)
}

// ToDomainMarket converts a Gamma APIMarket into the canonical Market. The
// three JSON-in-a-string fields are decoded here and nowhere else.
func (m *APIMarket) ToDomainMarket() (domain.Market, error) {
	dm := domain.Market{
		ID:        m.ConditionID,
		Venue:     domain.VenuePolymarket,
		Title:     m.Question,
		Status:    domain.MarketStatusClosed,
		Volume24h: m.VolumeNum.Ptr(),
		Liquidity: m.LiquidityNum.Ptr(),
	}
	if dm.ID == "" {
		dm.ID = m.ID
	}
	if m.Open() {
		dm.Status = domain.MarketStatusOpen
	}

	outcomes, err := decodeStringList(m.Outcomes)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market %s: outcomes: %w", dm.ID, err)
	}
	prices, err := decodeStringList(m.OutcomePrices)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market %s: outcome prices: %w", dm.ID, err)
	}
	tokens, err := decodeStringList(m.ClobTokenIDs)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market %s: token ids: %w", dm.ID, err)
	}

	yes, no := outcomeIndex(outcomes, "yes"), outcomeIndex(outcomes, "no")
	dm.YesPrice = priceAt(prices, yes)
	dm.NoPrice = priceAt(prices, no)
	if yes >= 0 && no >= 0 && yes < len(tokens) && no < len(tokens) {
		dm.OutcomeTokens = &domain.OutcomeTokens{Yes: tokens[yes], No: tokens[no]}
	}

	if t, ok := parseEndDate(m.EndDateISO); ok {
		dm.ExpiresAt = &t
	}
	return dm, nil
}

// decodeStringList decodes a JSON array of strings that arrives wrapped in
// a string. An empty input yields an empty list.
func decodeStringList(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func outcomeIndex(outcomes []string, name string) int {
	for i, o := range outcomes {
		if strings.EqualFold(strings.TrimSpace(o), name) {
			return i
		}
	}
	return -1
}

func priceAt(prices []string, i int) *float64 {
	if i < 0 || i >= len(prices) {
		return nil
	}
	p, err := strconv.ParseFloat(prices[i], 64)
	if err != nil || p < 0 || p > 1 {
		return nil
	}
	return &p
}

func parseEndDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// --------------------------------------------------------------------------
// CLOB API DTOs
// --------------------------------------------------------------------------

// APIOrderPayload is the order object inside a POST /order body. Every
// numeric field is a decimal string.
type APIOrderPayload struct {
	Salt          string `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Expiration    string `json:"expiration"`
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	Side          string `json:"side"`
	SignatureType int    `json:"signatureType"`
	Signature     string `json:"signature"`
}

// APIPostOrderRequest is the full POST /order body.
type APIPostOrderRequest struct {
	Order     APIOrderPayload `json:"order"`
	Signature string          `json:"signature"`
	Owner     string          `json:"owner"`
	OrderType string          `json:"orderType"`
}

// NewPostOrderRequest encodes a signed order for submission.
func NewPostOrderRequest(so domain.SignedOrder) APIPostOrderRequest {
	o := so.Order
	return APIPostOrderRequest{
		Order: APIOrderPayload{
			Salt:          o.Salt.String(),
			Maker:         o.Maker,
			Signer:        o.Signer,
			Taker:         o.Taker,
			TokenID:       o.TokenID.String(),
			MakerAmount:   o.MakerAmount.String(),
			TakerAmount:   o.TakerAmount.String(),
			Expiration:    strconv.FormatInt(o.Expiration, 10),
			Nonce:         o.Nonce.String(),
			FeeRateBps:    o.FeeRateBps.String(),
			Side:          o.Side.String(),
			SignatureType: int(o.SignatureType),
			Signature:     so.Signature,
		},
		Signature: so.Signature,
		Owner:     o.Maker,
		OrderType: "GTC",
	}
}

// APIOrderResult is the response from placing an order via the CLOB API.
type APIOrderResult struct {
	Success  bool   `json:"success"`
	ErrorMsg string `json:"errorMsg,omitempty"`
	OrderID  string `json:"orderID,omitempty"`
	Status   string `json:"status,omitempty"`
}

// ToDomainAck converts an accepted order result.
func (r APIOrderResult) ToDomainAck() domain.OrderAck {
	return domain.OrderAck{OrderID: r.OrderID, Status: r.Status}
}

// APIError is the structured error body the CLOB returns with 4xx and 5xx
// responses. Either field may carry the message.
type APIError struct {
	Error    string `json:"error"`
	ErrorMsg string `json:"errorMsg"`
}

// Message returns whichever field is populated.
func (e APIError) Message() string {
	if e.Error != "" {
		return e.Error
	}
	return e.ErrorMsg
}

// APICreds is the body returned by the api-key derivation endpoint.
type APICreds struct {
	APIKey     string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

// APIBookLevel is a single bid/ask level as sent by GET /book.
type APIBookLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// APIBook is the GET /book response.
type APIBook struct {
	Market    string         `json:"market"`
	AssetID   string         `json:"asset_id"`
	Bids      []APIBookLevel `json:"bids"`
	Asks      []APIBookLevel `json:"asks"`
	Timestamp string         `json:"timestamp"`
	Hash      string         `json:"hash"`
}

// ToDomainSnapshot converts a book into an OrderbookSnapshot with bids
// sorted best first and asks sorted best first.
func (b *APIBook) ToDomainSnapshot() domain.OrderbookSnapshot {
	snap := domain.OrderbookSnapshot{
		AssetID: b.AssetID,
		Market:  b.Market,
		Bids:    levels(b.Bids),
		Asks:    levels(b.Asks),
	}
	for _, l := range snap.Bids {
		if l.Price > snap.BestBid {
			snap.BestBid = l.Price
		}
	}
	for _, l := range snap.Asks {
		if snap.BestAsk == 0 || l.Price < snap.BestAsk {
			snap.BestAsk = l.Price
		}
	}
	sortLevels(snap.Bids, true)
	sortLevels(snap.Asks, false)

	if snap.BestBid > 0 && snap.BestAsk > 0 {
		snap.MidPrice = (snap.BestBid + snap.BestAsk) / 2
	}

	if ms, err := strconv.ParseInt(b.Timestamp, 10, 64); err == nil {
		snap.Timestamp = time.UnixMilli(ms).UTC()
	} else if t, err := time.Parse(time.RFC3339, b.Timestamp); err == nil {
		snap.Timestamp = t
	} else {
		snap.Timestamp = time.Now().UTC()
	}
	return snap
}

func levels(in []APIBookLevel) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, len(in))
	for _, l := range in {
		p, err := strconv.ParseFloat(l.Price, 64)
		if err != nil {
			continue
		}
		s, _ := strconv.ParseFloat(l.Size, 64)
		out = append(out, domain.PriceLevel{Price: p, Size: s})
	}
	return out
}

func sortLevels(ls []domain.PriceLevel, descending bool) {
	sort.SliceStable(ls, func(i, j int) bool {
		if descending {
			return ls[i].Price > ls[j].Price
		}
		return ls[i].Price < ls[j].Price
	})
}

// APIPrice is the GET /price response.
type APIPrice struct {
	Price string `json:"price"`
}

// APIClobToken is one outcome token inside a CLOB market.
type APIClobToken struct {
	TokenID string  `json:"token_id"`
	Outcome string  `json:"outcome"`
	Price   float64 `json:"price"`
	Winner  bool    `json:"winner"`
}

// APIClobMarket is the GET /markets/{condition_id} response from the CLOB.
type APIClobMarket struct {
	ConditionID     string         `json:"condition_id"`
	Question        string         `json:"question"`
	Active          bool           `json:"active"`
	Closed          bool           `json:"closed"`
	NegRisk         bool           `json:"neg_risk"`
	EndDateISO      string         `json:"end_date_iso"`
	MinimumTickSize float64        `json:"minimum_tick_size"`
	Tokens          []APIClobToken `json:"tokens"`
}

// ToDomainMarket converts CLOB market metadata into the canonical Market.
// A closed market with a winning token is reported as resolved.
func (m *APIClobMarket) ToDomainMarket() domain.Market {
	dm := domain.Market{
		ID:     m.ConditionID,
		Venue:  domain.VenuePolymarket,
		Title:  m.Question,
		Status: domain.MarketStatusClosed,
	}
	if m.Active && !m.Closed {
		dm.Status = domain.MarketStatusOpen
	}

	var tokens domain.OutcomeTokens
	for _, t := range m.Tokens {
		switch strings.ToLower(t.Outcome) {
		case "yes":
			tokens.Yes = t.TokenID
			dm.YesPrice = domain.Float(t.Price)
		case "no":
			tokens.No = t.TokenID
			dm.NoPrice = domain.Float(t.Price)
		}
		if m.Closed && t.Winner {
			dm.Status = domain.MarketStatusResolved
		}
	}
	if tokens.Yes != "" || tokens.No != "" {
		dm.OutcomeTokens = &tokens
	}
	if t, ok := parseEndDate(m.EndDateISO); ok {
		dm.ExpiresAt = &t
	}
	return dm
}
