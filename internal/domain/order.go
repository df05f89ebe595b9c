package domain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// OrderSide indicates whether this is a buy or sell. The numeric value is
// the one signed into the order payload.
type OrderSide uint8

const (
	OrderSideBuy  OrderSide = 0
	OrderSideSell OrderSide = 1
)

// String returns the wire name used by the CLOB API.
func (s OrderSide) String() string {
	if s == OrderSideSell {
		return "SELL"
	}
	return "BUY"
}

// ParseOrderSide accepts "buy"/"sell" in any case.
func ParseOrderSide(s string) (OrderSide, bool) {
	switch s {
	case "BUY", "buy", "Buy":
		return OrderSideBuy, true
	case "SELL", "sell", "Sell":
		return OrderSideSell, true
	default:
		return 0, false
	}
}

// SignatureType discriminates the identity that signs an order.
type SignatureType uint8

const (
	// SignatureTypeEOA means the wallet itself is maker and signer.
	SignatureTypeEOA SignatureType = 0
	// SignatureTypeProxy means a custodial proxy (funder) account is maker
	// and signer on the wallet's behalf.
	SignatureTypeProxy SignatureType = 2
)

// ZeroAddress is the taker of every order: any counterparty may fill it.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// OrderIntent is the caller-supplied description of a trade.
type OrderIntent struct {
	Venue         Venue           `json:"venue"`
	TokenID       string          `json:"outcome_token_id"`
	Side          OrderSide       `json:"side"`
	Size          decimal.Decimal `json:"size"`
	Price         decimal.Decimal `json:"price"`
	WalletAddress string          `json:"wallet_address"`
}

// UnsignedOrder is a fully populated order awaiting a typed-data signature.
// Amounts are integers scaled by 1e6.
type UnsignedOrder struct {
	Salt          *big.Int
	Maker         string
	Signer        string
	Taker         string
	TokenID       *big.Int
	MakerAmount   *big.Int
	TakerAmount   *big.Int
	Expiration    int64
	Nonce         *big.Int
	FeeRateBps    *big.Int
	Side          OrderSide
	SignatureType SignatureType
}

// SignedOrder pairs an UnsignedOrder with its signature. It is never
// modified after creation; a retry requires a freshly built order.
type SignedOrder struct {
	Order     UnsignedOrder
	Signature string
}

// SubmissionState is a step of the submission state machine.
type SubmissionState string

const (
	StateBuilt          SubmissionState = "built"
	StateSigned         SubmissionState = "signed"
	StateSubmitted      SubmissionState = "submitted"
	StateAccepted       SubmissionState = "accepted"
	StateRejected       SubmissionState = "rejected"
	StateTransportError SubmissionState = "transport_error"
)

// Terminal reports whether no further transition is possible.
func (s SubmissionState) Terminal() bool {
	return s == StateAccepted || s == StateRejected || s == StateTransportError
}

// SubmissionResult is the outcome of one pass through the pipeline.
type SubmissionResult struct {
	State   SubmissionState `json:"state"`
	OrderID string          `json:"order_id,omitempty"`
	Status  string          `json:"status,omitempty"`
	Salt    string          `json:"salt,omitempty"`
	// Message holds the venue's verbatim error text for rejections.
	Message string `json:"message,omitempty"`
}

// OrderAck is the venue's acknowledgement of an accepted order.
type OrderAck struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}
