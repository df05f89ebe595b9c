package crypto

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// Exchange domain constants for Polygon mainnet.
const (
	ExchangeName            = "Polymarket CTF Exchange"
	ExchangeVersion         = "1"
	PolygonChainID          = 137
	ExchangeContract        = "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E"
	NegRiskExchangeContract = "0xC5d563A36AE78145C45a50134d48A1215220f80a"

	clobAuthDomainName = "ClobAuthDomain"
	clobAuthMessage    = "This message attests that I control the given wallet"
)

// ExchangeDomain is the typed-data domain an order is signed against.
type ExchangeDomain struct {
	Name              string
	Version           string
	ChainID           int64
	VerifyingContract string
}

// DefaultExchangeDomain returns the mainnet CTF exchange domain.
func DefaultExchangeDomain() ExchangeDomain {
	return ExchangeDomain{
		Name:              ExchangeName,
		Version:           ExchangeVersion,
		ChainID:           PolygonChainID,
		VerifyingContract: ExchangeContract,
	}
}

func (d ExchangeDomain) typed() apitypes.TypedDataDomain {
	return apitypes.TypedDataDomain{
		Name:              d.Name,
		Version:           d.Version,
		ChainId:           math.NewHexOrDecimal256(d.ChainID),
		VerifyingContract: common.HexToAddress(d.VerifyingContract).Hex(),
	}
}

var domainFields = []apitypes.Type{
	{Name: "name", Type: "string"},
	{Name: "version", Type: "string"},
	{Name: "chainId", Type: "uint256"},
	{Name: "verifyingContract", Type: "address"},
}

// orderFields is the signed order schema. Field order is significant.
var orderFields = []apitypes.Type{
	{Name: "salt", Type: "uint256"},
	{Name: "maker", Type: "address"},
	{Name: "signer", Type: "address"},
	{Name: "taker", Type: "address"},
	{Name: "tokenId", Type: "uint256"},
	{Name: "makerAmount", Type: "uint256"},
	{Name: "takerAmount", Type: "uint256"},
	{Name: "expiration", Type: "uint256"},
	{Name: "nonce", Type: "uint256"},
	{Name: "feeRateBps", Type: "uint256"},
	{Name: "side", Type: "uint8"},
	{Name: "signatureType", Type: "uint8"},
}

// OrderTypedData produces the canonical typed-data message for order. This
// is exactly what a wallet is asked to sign. uint256 values are decimal
// strings so the message survives JSON parsers limited to 53-bit numbers.
func OrderTypedData(d ExchangeDomain, order domain.UnsignedOrder) (apitypes.TypedData, error) {
	if err := checkOrderNumbers(order); err != nil {
		return apitypes.TypedData{}, err
	}
	message := apitypes.TypedDataMessage{
		"salt":          order.Salt.String(),
		"maker":         common.HexToAddress(order.Maker).Hex(),
		"signer":        common.HexToAddress(order.Signer).Hex(),
		"taker":         common.HexToAddress(order.Taker).Hex(),
		"tokenId":       order.TokenID.String(),
		"makerAmount":   order.MakerAmount.String(),
		"takerAmount":   order.TakerAmount.String(),
		"expiration":    strconv.FormatInt(order.Expiration, 10),
		"nonce":         order.Nonce.String(),
		"feeRateBps":    order.FeeRateBps.String(),
		"side":          big.NewInt(int64(order.Side)),
		"signatureType": big.NewInt(int64(order.SignatureType)),
	}
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": domainFields,
			"Order":        orderFields,
		},
		PrimaryType: "Order",
		Domain:      d.typed(),
		Message:     message,
	}, nil
}

// OrderHash returns the EIP-712 digest of order under d.
func OrderHash(d ExchangeDomain, order domain.UnsignedOrder) ([]byte, error) {
	td, err := OrderTypedData(d, order)
	if err != nil {
		return nil, err
	}
	hash, _, err := apitypes.TypedDataAndHash(td)
	if err != nil {
		return nil, fmt.Errorf("crypto: hash order typed data: %w", err)
	}
	return hash, nil
}

// ClobAuthTypedData builds the L1 message used to derive API credentials.
func ClobAuthTypedData(address string, chainID, timestamp, nonce int64) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
			},
			"ClobAuth": {
				{Name: "address", Type: "address"},
				{Name: "timestamp", Type: "string"},
				{Name: "nonce", Type: "uint256"},
				{Name: "message", Type: "string"},
			},
		},
		PrimaryType: "ClobAuth",
		Domain: apitypes.TypedDataDomain{
			Name:    clobAuthDomainName,
			Version: "1",
			ChainId: math.NewHexOrDecimal256(chainID),
		},
		Message: apitypes.TypedDataMessage{
			"address":   common.HexToAddress(address).Hex(),
			"timestamp": fmt.Sprintf("%d", timestamp),
			"nonce":     big.NewInt(nonce),
			"message":   clobAuthMessage,
		},
	}
}

func checkOrderNumbers(o domain.UnsignedOrder) error {
	fields := []struct {
		name string
		v    *big.Int
	}{
		{"salt", o.Salt},
		{"tokenId", o.TokenID},
		{"makerAmount", o.MakerAmount},
		{"takerAmount", o.TakerAmount},
		{"nonce", o.Nonce},
		{"feeRateBps", o.FeeRateBps},
	}
	for _, f := range fields {
		if f.v == nil {
			return fmt.Errorf("crypto: order field %s is unset", f.name)
		}
		if f.v.Sign() < 0 || f.v.BitLen() > 256 {
			return fmt.Errorf("crypto: order field %s out of uint256 range", f.name)
		}
	}
	for _, addr := range []string{o.Maker, o.Signer, o.Taker} {
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("crypto: invalid address %q", addr)
		}
	}
	return nil
}
