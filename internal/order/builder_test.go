package order

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

const (
	wallet = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	funder = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
	token  = "71321045679252212594626385532706912750332728571942532289631379312455583992563"
)

func intent(side domain.OrderSide, size, price string) domain.OrderIntent {
	return domain.OrderIntent{
		Venue:         domain.VenuePolymarket,
		TokenID:       token,
		Side:          side,
		Size:          decimal.RequireFromString(size),
		Price:         decimal.RequireFromString(price),
		WalletAddress: wallet,
	}
}

func TestAmounts(t *testing.T) {
	tests := []struct {
		name      string
		side      domain.OrderSide
		size      string
		price     string
		wantMaker int64
		wantTaker int64
	}{
		{"buy 10 at 0.65", domain.OrderSideBuy, "10", "0.65", 6_500_000, 10_000_000},
		{"sell 10 at 0.65", domain.OrderSideSell, "10", "0.65", 10_000_000, 6_500_000},
		{"floor boundary", domain.OrderSideBuy, "1", "0.333333", 333_333, 1_000_000},
		{"floor truncates", domain.OrderSideBuy, "3", "0.3333337", 1_000_001, 3_000_000},
		{"fractional size", domain.OrderSideBuy, "2.5000009", "0.5", 1_250_000, 2_500_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			maker, taker := Amounts(tt.side, decimal.RequireFromString(tt.size), decimal.RequireFromString(tt.price))
			if maker.Int64() != tt.wantMaker {
				t.Errorf("maker = %s, want %d", maker, tt.wantMaker)
			}
			if taker.Int64() != tt.wantTaker {
				t.Errorf("taker = %s, want %d", taker, tt.wantTaker)
			}
		})
	}
}

func TestBuildDirectAccount(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	b, err := NewBuilder("", DefaultExpiration)
	if err != nil {
		t.Fatalf("NewBuilder() error = %v", err)
	}
	b = b.WithClock(func() time.Time { return now })

	o, err := b.Build(intent(domain.OrderSideBuy, "10", "0.65"))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if o.Maker != wallet || o.Signer != wallet {
		t.Errorf("maker/signer = %s/%s, want %s", o.Maker, o.Signer, wallet)
	}
	if o.SignatureType != domain.SignatureTypeEOA {
		t.Errorf("SignatureType = %d, want 0", o.SignatureType)
	}
	if o.Taker != domain.ZeroAddress {
		t.Errorf("Taker = %s, want zero address", o.Taker)
	}
	if o.MakerAmount.Int64() != 6_500_000 || o.TakerAmount.Int64() != 10_000_000 {
		t.Errorf("amounts = %s/%s", o.MakerAmount, o.TakerAmount)
	}
	if o.Expiration != now.Add(24*time.Hour).Unix() {
		t.Errorf("Expiration = %d, want %d", o.Expiration, now.Add(24*time.Hour).Unix())
	}
	if o.Nonce.Sign() != 0 || o.FeeRateBps.Sign() != 0 {
		t.Errorf("nonce/fee = %s/%s, want 0/0", o.Nonce, o.FeeRateBps)
	}
	if o.TokenID.String() != token {
		t.Errorf("TokenID = %s", o.TokenID)
	}
	if err := CheckIdentity(o, wallet, ""); err != nil {
		t.Errorf("CheckIdentity() error = %v", err)
	}
}

func TestBuildWithFunder(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	b, err := NewBuilder(funder, InteractiveExpiration)
	if err != nil {
		t.Fatalf("NewBuilder() error = %v", err)
	}
	b = b.WithClock(func() time.Time { return now })

	o, err := b.Build(intent(domain.OrderSideSell, "5", "0.4"))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if o.Maker != funder || o.Signer != funder {
		t.Errorf("maker/signer = %s/%s, want %s", o.Maker, o.Signer, funder)
	}
	if o.SignatureType != domain.SignatureTypeProxy {
		t.Errorf("SignatureType = %d, want 2", o.SignatureType)
	}
	if o.Expiration != now.Add(time.Hour).Unix() {
		t.Errorf("Expiration = %d, want one hour ahead", o.Expiration)
	}
	if err := CheckIdentity(o, wallet, funder); err != nil {
		t.Errorf("CheckIdentity() error = %v", err)
	}
}

func TestBuildProducesFreshSalt(t *testing.T) {
	b, _ := NewBuilder("", DefaultExpiration)
	in := intent(domain.OrderSideBuy, "10", "0.65")

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		o, err := b.Build(in)
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		s := o.Salt.String()
		if seen[s] {
			t.Fatalf("salt %s repeated after %d builds", s, i)
		}
		if o.Salt.BitLen() > 128 {
			t.Fatalf("salt %s exceeds 128 bits", s)
		}
		seen[s] = true
	}
}

func TestBuildInvalidIntent(t *testing.T) {
	b, _ := NewBuilder("", DefaultExpiration)

	tests := []struct {
		name   string
		mutate func(in *domain.OrderIntent)
	}{
		{"zero size", func(in *domain.OrderIntent) { in.Size = decimal.Zero }},
		{"negative size", func(in *domain.OrderIntent) { in.Size = decimal.NewFromInt(-1) }},
		{"zero price", func(in *domain.OrderIntent) { in.Price = decimal.Zero }},
		{"price one", func(in *domain.OrderIntent) { in.Price = decimal.NewFromInt(1) }},
		{"price above one", func(in *domain.OrderIntent) { in.Price = decimal.RequireFromString("1.2") }},
		{"missing token", func(in *domain.OrderIntent) { in.TokenID = "" }},
		{"non numeric token", func(in *domain.OrderIntent) { in.TokenID = "0xabc" }},
		{"bad wallet", func(in *domain.OrderIntent) { in.WalletAddress = "nope" }},
		{"amount rounds to zero", func(in *domain.OrderIntent) { in.Size = decimal.RequireFromString("0.0000001") }},
		{"unknown side", func(in *domain.OrderIntent) { in.Side = 7 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := intent(domain.OrderSideBuy, "10", "0.65")
			tt.mutate(&in)
			_, err := b.Build(in)
			if !errors.Is(err, domain.ErrInvalidIntent) {
				t.Errorf("Build() error = %v, want ErrInvalidIntent", err)
			}
		})
	}
}

func TestNewBuilderRejectsBadFunder(t *testing.T) {
	if _, err := NewBuilder("0x123", DefaultExpiration); err == nil {
		t.Error("expected error for malformed funder")
	}
}

func TestCheckIdentityMismatch(t *testing.T) {
	b, _ := NewBuilder("", DefaultExpiration)
	o, err := b.Build(intent(domain.OrderSideBuy, "1", "0.5"))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		order  func() domain.UnsignedOrder
		wallet string
		funder string
	}{
		{"maker differs from signer", func() domain.UnsignedOrder { c := o; c.Signer = funder; return c }, wallet, ""},
		{"eoa order with funder configured", func() domain.UnsignedOrder { return o }, wallet, funder},
		{"eoa order for another wallet", func() domain.UnsignedOrder { return o }, funder, ""},
		{"proxy order without funder", func() domain.UnsignedOrder {
			c := o
			c.SignatureType = domain.SignatureTypeProxy
			return c
		}, wallet, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckIdentity(tt.order(), tt.wallet, tt.funder)
			if !errors.Is(err, domain.ErrInvalidIntent) {
				t.Errorf("CheckIdentity() error = %v, want ErrInvalidIntent", err)
			}
		})
	}
}
