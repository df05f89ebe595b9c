// Package order turns a trade intent into a fully populated unsigned order.
package order

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

const (
	// DefaultExpiration is the lifetime of orders from the general flow.
	DefaultExpiration = 24 * time.Hour
	// InteractiveExpiration is the lifetime of orders from the single-click flow.
	InteractiveExpiration = time.Hour

	amountDecimals = 6
	saltBits       = 128
)

var (
	amountScale = decimal.New(1, amountDecimals)
	saltLimit   = new(big.Int).Lsh(big.NewInt(1), saltBits)
)

// Builder produces UnsignedOrders. It holds no mutable state, so one
// Builder may serve concurrent callers.
type Builder struct {
	funder     string
	expiration time.Duration
	now        func() time.Time
	entropy    io.Reader
}

// NewBuilder creates a Builder. funder is the optional proxy account; when
// set, every order is made and signed by it with signature type 2. An
// invalid funder is a configuration error and is reported here, not per
// order.
func NewBuilder(funder string, expiration time.Duration) (*Builder, error) {
	funder = strings.TrimSpace(funder)
	if funder != "" {
		if !common.IsHexAddress(funder) {
			return nil, fmt.Errorf("order: funder %q is not a valid address", funder)
		}
		funder = common.HexToAddress(funder).Hex()
	}
	if expiration <= 0 {
		expiration = DefaultExpiration
	}
	return &Builder{
		funder:     funder,
		expiration: expiration,
		now:        time.Now,
		entropy:    rand.Reader,
	}, nil
}

// WithExpiration returns a copy of b using a different expiration policy.
func (b *Builder) WithExpiration(d time.Duration) *Builder {
	cp := *b
	cp.expiration = d
	return &cp
}

// WithClock returns a copy of b reading time from now.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	cp := *b
	cp.now = now
	return &cp
}

// Funder returns the configured proxy address, or "".
func (b *Builder) Funder() string { return b.funder }

// Expiration returns the order lifetime.
func (b *Builder) Expiration() time.Duration { return b.expiration }

// Build validates intent and returns a new UnsignedOrder with a fresh salt.
// Two calls with the same intent never share a salt.
func (b *Builder) Build(intent domain.OrderIntent) (domain.UnsignedOrder, error) {
	tokenID, err := validate(intent)
	if err != nil {
		return domain.UnsignedOrder{}, err
	}

	identity, sigType, err := b.identity(intent.WalletAddress)
	if err != nil {
		return domain.UnsignedOrder{}, err
	}

	makerAmount, takerAmount := Amounts(intent.Side, intent.Size, intent.Price)
	if makerAmount.Sign() <= 0 || takerAmount.Sign() <= 0 {
		return domain.UnsignedOrder{}, domain.InvalidIntentf(
			"size %s at price %s rounds to a zero amount", intent.Size, intent.Price)
	}

	salt, err := rand.Int(b.entropy, saltLimit)
	if err != nil {
		return domain.UnsignedOrder{}, fmt.Errorf("order: generate salt: %w", err)
	}

	return domain.UnsignedOrder{
		Salt:          salt,
		Maker:         identity,
		Signer:        identity,
		Taker:         domain.ZeroAddress,
		TokenID:       tokenID,
		MakerAmount:   makerAmount,
		TakerAmount:   takerAmount,
		Expiration:    b.now().Add(b.expiration).Unix(),
		Nonce:         big.NewInt(0),
		FeeRateBps:    big.NewInt(0),
		Side:          intent.Side,
		SignatureType: sigType,
	}, nil
}

// Amounts converts size and price into the 6-decimal maker and taker
// amounts. A buy pays floor(size*price*1e6) to receive floor(size*1e6); a
// sell is the mirror image. Values are truncated, never rounded.
func Amounts(side domain.OrderSide, size, price decimal.Decimal) (maker, taker *big.Int) {
	shares := size.Mul(amountScale).Floor().BigInt()
	notional := size.Mul(price).Mul(amountScale).Floor().BigInt()
	if side == domain.OrderSideSell {
		return shares, notional
	}
	return notional, shares
}

func (b *Builder) identity(wallet string) (string, domain.SignatureType, error) {
	if b.funder != "" {
		return b.funder, domain.SignatureTypeProxy, nil
	}
	if !common.IsHexAddress(wallet) {
		return "", 0, domain.InvalidIntentf("wallet address %q is not valid", wallet)
	}
	return common.HexToAddress(wallet).Hex(), domain.SignatureTypeEOA, nil
}

func validate(intent domain.OrderIntent) (*big.Int, error) {
	if strings.TrimSpace(intent.TokenID) == "" {
		return nil, domain.InvalidIntentf("outcome token id is required")
	}
	tokenID, ok := new(big.Int).SetString(strings.TrimSpace(intent.TokenID), 10)
	if !ok || tokenID.Sign() < 0 {
		return nil, domain.InvalidIntentf("outcome token id %q is not a decimal integer", intent.TokenID)
	}
	if !intent.Size.IsPositive() {
		return nil, domain.InvalidIntentf("size must be positive, got %s", intent.Size)
	}
	if !intent.Price.IsPositive() || intent.Price.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, domain.InvalidIntentf("price must be in (0,1), got %s", intent.Price)
	}
	if intent.Side != domain.OrderSideBuy && intent.Side != domain.OrderSideSell {
		return nil, domain.InvalidIntentf("unknown side %d", intent.Side)
	}
	return tokenID, nil
}

// CheckIdentity enforces that maker and signer are the same account and
// that the account matches the signature type: the wallet for type 0, the
// configured funder for type 2. It runs before signing.
func CheckIdentity(o domain.UnsignedOrder, wallet, funder string) error {
	if !strings.EqualFold(o.Maker, o.Signer) {
		return domain.InvalidIntentf("maker %s and signer %s differ", o.Maker, o.Signer)
	}
	switch o.SignatureType {
	case domain.SignatureTypeEOA:
		if funder != "" {
			return domain.InvalidIntentf("direct-account order built while a funder is configured")
		}
		if !strings.EqualFold(o.Maker, wallet) {
			return domain.InvalidIntentf("maker %s is not the signing wallet %s", o.Maker, wallet)
		}
	case domain.SignatureTypeProxy:
		if funder == "" || !strings.EqualFold(o.Maker, funder) {
			return domain.InvalidIntentf("maker %s is not the configured funder", o.Maker)
		}
	default:
		return domain.InvalidIntentf("unsupported signature type %d", o.SignatureType)
	}
	return nil
}
