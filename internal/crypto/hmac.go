package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Header names sent on every authenticated CLOB request.
const (
	HeaderAddress    = "POLY_ADDRESS"
	HeaderAPIKey     = "POLY_API_KEY"
	HeaderPassphrase = "POLY_PASSPHRASE"
	HeaderTimestamp  = "POLY_TIMESTAMP"
	HeaderSignature  = "POLY_SIGNATURE"
	HeaderNonce      = "POLY_NONCE"
)

// HMACAuth holds the L2 credentials required for HMAC-authenticated
// requests against the CLOB's private endpoints.
type HMACAuth struct {
	Key        string // API key
	Secret     string // base64 secret, standard or URL-safe alphabet
	Passphrase string // API passphrase
}

// AuthenticatedRequest is the signed form of one private request. It is
// derived per call and never stored.
type AuthenticatedRequest struct {
	Timestamp int64
	Method    string
	Path      string
	Body      string
	Signature string
}

// Complete reports whether all three credential fields are present.
func (h *HMACAuth) Complete() bool {
	return h != nil && h.Key != "" && h.Secret != "" && h.Passphrase != ""
}

// Authenticate signs method, path and body at the current second.
func (h *HMACAuth) Authenticate(method, path, body string) (AuthenticatedRequest, error) {
	return h.AuthenticateAt(method, path, body, time.Now().Unix())
}

// AuthenticateAt is like Authenticate but lets the caller supply the Unix
// timestamp.
func (h *HMACAuth) AuthenticateAt(method, path, body string, unixTS int64) (AuthenticatedRequest, error) {
	sig, err := Sign(h.Secret, unixTS, method, path, body)
	if err != nil {
		return AuthenticatedRequest{}, err
	}
	return AuthenticatedRequest{
		Timestamp: unixTS,
		Method:    method,
		Path:      path,
		Body:      body,
		Signature: sig,
	}, nil
}

// L2Headers returns the HTTP headers for a private request made on behalf
// of address, signed at the current second.
func (h *HMACAuth) L2Headers(address, method, path, body string) (map[string]string, error) {
	return h.L2HeadersAt(address, method, path, body, time.Now().Unix())
}

// L2HeadersAt is like L2Headers but lets the caller supply the Unix
// timestamp.
func (h *HMACAuth) L2HeadersAt(address, method, path, body string, unixTS int64) (map[string]string, error) {
	req, err := h.AuthenticateAt(method, path, body, unixTS)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		HeaderAddress:    address,
		HeaderAPIKey:     h.Key,
		HeaderPassphrase: h.Passphrase,
		HeaderTimestamp:  strconv.FormatInt(req.Timestamp, 10),
		HeaderSignature:  req.Signature,
	}, nil
}

// Sign computes the URL-safe base64 HMAC-SHA256 of
// timestamp || method || path || body keyed by the decoded secret.
func Sign(secret string, unixTS int64, method, path, body string) (string, error) {
	key, err := DecodeSecret(secret)
	if err != nil {
		return "", err
	}
	message := strconv.FormatInt(unixTS, 10) + method + path + body
	return urlSafe(hmacSHA256Base64(key, message)), nil
}

// DecodeSecret decodes an API secret given in either the standard or the
// URL-safe base64 alphabet, with or without padding.
func DecodeSecret(secret string) ([]byte, error) {
	s := strings.TrimSpace(secret)
	if s == "" {
		return nil, errors.New("crypto: empty api secret")
	}
	s = strings.NewReplacer("-", "+", "_", "/").Replace(s)
	s = strings.TrimRight(s, "=")

	key, err := base64.RawStdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("crypto: decode api secret: %w", err)
	}
	return key, nil
}

// hmacSHA256Base64 computes HMAC-SHA256 of message using key and returns the
// result as a base64 standard-encoded string.
func hmacSHA256Base64(key []byte, message string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// urlSafe swaps the two alphabet characters that differ between standard
// and URL-safe base64. Padding is kept.
func urlSafe(s string) string {
	return strings.NewReplacer("+", "-", "/", "_").Replace(s)
}

// String returns a redacted representation suitable for logging.
func (h *HMACAuth) String() string {
	redact := func(s string) string {
		if len(s) <= 4 {
			return "****"
		}
		return s[:4] + "****"
	}
	return fmt.Sprintf("HMACAuth{key=%s, secret=%s}", redact(h.Key), redact(h.Secret))
}
