package crypto

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// Well-known development key (first account of the default Hardhat mnemonic).
const (
	devKey     = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	devAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func testOrder(maker string) domain.UnsignedOrder {
	return domain.UnsignedOrder{
		Salt:          big.NewInt(123456789),
		Maker:         maker,
		Signer:        maker,
		Taker:         domain.ZeroAddress,
		TokenID:       new(big.Int).SetUint64(71321045679252212),
		MakerAmount:   big.NewInt(6_500_000),
		TakerAmount:   big.NewInt(10_000_000),
		Expiration:    1700086400,
		Nonce:         big.NewInt(0),
		FeeRateBps:    big.NewInt(0),
		Side:          domain.OrderSideBuy,
		SignatureType: domain.SignatureTypeEOA,
	}
}

func TestNewKeyWalletAddress(t *testing.T) {
	w, err := NewKeyWallet(devKey)
	if err != nil {
		t.Fatalf("NewKeyWallet() error = %v", err)
	}
	if w.Address() != devAddress {
		t.Errorf("Address() = %s, want %s", w.Address(), devAddress)
	}

	if _, err := NewKeyWallet("0xnothex"); err == nil {
		t.Error("expected error for invalid key")
	}
}

func TestSignOrderRecoversSigner(t *testing.T) {
	w, err := NewKeyWallet(devKey)
	if err != nil {
		t.Fatalf("NewKeyWallet() error = %v", err)
	}
	td, err := OrderTypedData(DefaultExchangeDomain(), testOrder(w.Address()))
	if err != nil {
		t.Fatalf("OrderTypedData() error = %v", err)
	}

	sig, err := w.SignTypedData(context.Background(), td)
	if err != nil {
		t.Fatalf("SignTypedData() error = %v", err)
	}
	if !strings.HasPrefix(sig, "0x") || len(sig) != 2+130 {
		t.Fatalf("signature %q is not 65 hex bytes", sig)
	}
	if v := sig[len(sig)-2:]; v != "1b" && v != "1c" {
		t.Errorf("recovery byte = %s, want 1b or 1c", v)
	}

	got, err := RecoverSigner(td, sig)
	if err != nil {
		t.Fatalf("RecoverSigner() error = %v", err)
	}
	if got != devAddress {
		t.Errorf("RecoverSigner() = %s, want %s", got, devAddress)
	}
}

func TestSignTypedDataCancelled(t *testing.T) {
	w, _ := NewKeyWallet(devKey)
	td, _ := OrderTypedData(DefaultExchangeDomain(), testOrder(w.Address()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.SignTypedData(ctx, td)
	if !errors.Is(err, domain.ErrSigningDeclined) {
		t.Errorf("SignTypedData() error = %v, want ErrSigningDeclined", err)
	}
}

func TestRecoverSignerRejectsMalformed(t *testing.T) {
	td, _ := OrderTypedData(DefaultExchangeDomain(), testOrder(devAddress))
	for _, sig := range []string{"0x", "0xzz", "0x" + strings.Repeat("ab", 64)} {
		if _, err := RecoverSigner(td, sig); err == nil {
			t.Errorf("RecoverSigner(%q) expected error", sig)
		}
	}
}
