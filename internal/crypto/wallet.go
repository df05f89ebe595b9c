package crypto

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// Wallet is the external key-custody capability. Implementations may block
// for a long time, e.g. waiting on human approval, and must return when ctx
// is cancelled.
type Wallet interface {
	Address() string
	SignTypedData(ctx context.Context, data apitypes.TypedData) (string, error)
}

// KeyWallet signs typed data with an in-process secp256k1 key. It is the
// fallback used when no custodial wallet is wired.
type KeyWallet struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

var _ Wallet = (*KeyWallet)(nil)

// NewKeyWallet creates a KeyWallet from a hex-encoded private key.
func NewKeyWallet(privateKeyHex string) (*KeyWallet, error) {
	keyHex := strings.TrimPrefix(privateKeyHex, "0x")
	pk, err := ethcrypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("crypto/wallet: invalid private key: %w", err)
	}
	return &KeyWallet{
		privateKey: pk,
		address:    ethcrypto.PubkeyToAddress(pk.PublicKey),
	}, nil
}

// Address returns the checksummed address derived from the key.
func (w *KeyWallet) Address() string {
	return w.address.Hex()
}

// SignTypedData hashes data per EIP-712 and signs the digest. A context
// that is already done yields domain.ErrSigningDeclined.
func (w *KeyWallet) SignTypedData(ctx context.Context, data apitypes.TypedData) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrSigningDeclined, err)
	}
	digest, _, err := apitypes.TypedDataAndHash(data)
	if err != nil {
		return "", fmt.Errorf("crypto/wallet: hash typed data: %w", err)
	}
	return w.signDigest(digest)
}

// signDigest signs a 32-byte digest using secp256k1 and returns the
// hex-encoded signature (r || s || v, 65 bytes).
func (w *KeyWallet) signDigest(digest []byte) (string, error) {
	sig, err := ethcrypto.Sign(digest, w.privateKey)
	if err != nil {
		return "", fmt.Errorf("crypto/wallet: signing: %w", err)
	}

	// go-ethereum returns v in {0,1}; EIP-712 expects v in {27,28}.
	if sig[64] < 27 {
		sig[64] += 27
	}

	return "0x" + hex.EncodeToString(sig), nil
}

// RecoverSigner returns the address that produced signature over data.
// Used to check signatures supplied by an external wallet before they are
// submitted.
func RecoverSigner(data apitypes.TypedData, signature string) (string, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	if err != nil {
		return "", fmt.Errorf("crypto/wallet: decode signature: %w", err)
	}
	if len(sig) != 65 {
		return "", fmt.Errorf("crypto/wallet: signature length %d, want 65", len(sig))
	}
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	if sig[64] > 1 {
		return "", errors.New("crypto/wallet: invalid recovery id")
	}

	digest, _, err := apitypes.TypedDataAndHash(data)
	if err != nil {
		return "", fmt.Errorf("crypto/wallet: hash typed data: %w", err)
	}
	pub, err := ethcrypto.SigToPub(digest, sig)
	if err != nil {
		return "", fmt.Errorf("crypto/wallet: recover public key: %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pub).Hex(), nil
}
