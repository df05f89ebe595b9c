package crypto

import (
	"encoding/base64"
	"strconv"
	"testing"
)

const (
	testSecret = "c2VjcmV0LWtleS1mb3ItdGVzdHM=" // base64("secret-key-for-tests")
	testTS     = int64(1700000000)
)

func TestHMACSHA256Base64KnownVector(t *testing.T) {
	got := hmacSHA256Base64([]byte("key"), "The quick brown fox jumps over the lazy dog")
	want := "97yD9DBThCSxMpjmqm+xQ+9NWaFJRhdZl0edvC0aPNg="
	if got != want {
		t.Errorf("hmacSHA256Base64() = %q, want %q", got, want)
	}
	if gotSafe, wantSafe := urlSafe(got), "97yD9DBThCSxMpjmqm-xQ-9NWaFJRhdZl0edvC0aPNg="; gotSafe != wantSafe {
		t.Errorf("urlSafe() = %q, want %q", gotSafe, wantSafe)
	}
}

func TestSignUsesDecodedSecretAndConcatenatedMessage(t *testing.T) {
	secret := base64.StdEncoding.EncodeToString([]byte("key"))
	got, err := Sign(secret, testTS, "POST", "/order", `{"a":1}`)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	want := urlSafe(hmacSHA256Base64([]byte("key"), strconv.FormatInt(testTS, 10)+"POST/order"+`{"a":1}`))
	if got != want {
		t.Errorf("Sign() = %q, want %q", got, want)
	}
}

func TestSignIsDeterministic(t *testing.T) {
	first, err := Sign(testSecret, testTS, "GET", "/orders", "")
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := Sign(testSecret, testTS, "GET", "/orders", "")
		if err != nil {
			t.Fatalf("Sign() error = %v", err)
		}
		if again != first {
			t.Fatalf("call %d: signature = %q, want %q", i, again, first)
		}
	}
}

func TestSignChangesWithEveryInput(t *testing.T) {
	base, err := Sign(testSecret, testTS, "POST", "/order", `{"x":1}`)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	tests := []struct {
		name   string
		secret string
		ts     int64
		method string
		path   string
		body   string
	}{
		{"secret", "b3RoZXItc2VjcmV0", testTS, "POST", "/order", `{"x":1}`},
		{"timestamp", testSecret, testTS + 1, "POST", "/order", `{"x":1}`},
		{"method", testSecret, testTS, "PUT", "/order", `{"x":1}`},
		{"path", testSecret, testTS, "POST", "/orders", `{"x":1}`},
		{"body", testSecret, testTS, "POST", "/order", `{"x":2}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Sign(tt.secret, tt.ts, tt.method, tt.path, tt.body)
			if err != nil {
				t.Fatalf("Sign() error = %v", err)
			}
			if got == base {
				t.Errorf("changing %s did not change the signature", tt.name)
			}
		})
	}
}

func TestSignOutputIsURLSafe(t *testing.T) {
	for i := int64(0); i < 64; i++ {
		sig, err := Sign(testSecret, testTS+i, "GET", "/orders", "")
		if err != nil {
			t.Fatalf("Sign() error = %v", err)
		}
		for _, c := range sig {
			if c == '+' || c == '/' {
				t.Fatalf("signature %q contains standard alphabet character %q", sig, c)
			}
		}
	}
}

func TestDecodeSecretAcceptsBothAlphabets(t *testing.T) {
	raw := []byte{0xfb, 0xff, 0xbf, 0x01, 0x02}
	std := base64.StdEncoding.EncodeToString(raw)
	safe := base64.URLEncoding.EncodeToString(raw)
	rawSafe := base64.RawURLEncoding.EncodeToString(raw)

	if std == safe {
		t.Fatalf("fixture must differ between alphabets, got %q", std)
	}

	for _, secret := range []string{std, safe, rawSafe} {
		t.Run(secret, func(t *testing.T) {
			got, err := DecodeSecret(secret)
			if err != nil {
				t.Fatalf("DecodeSecret(%q) error = %v", secret, err)
			}
			if string(got) != string(raw) {
				t.Errorf("DecodeSecret(%q) = %x, want %x", secret, got, raw)
			}
		})
	}

	sigStd, _ := Sign(std, testTS, "GET", "/", "")
	sigSafe, _ := Sign(safe, testTS, "GET", "/", "")
	if sigStd != sigSafe {
		t.Errorf("signature differs by secret alphabet: %q vs %q", sigStd, sigSafe)
	}
}

func TestDecodeSecretRejectsGarbage(t *testing.T) {
	for _, secret := range []string{"", "   ", "not*base64!"} {
		if _, err := DecodeSecret(secret); err == nil {
			t.Errorf("DecodeSecret(%q) expected error", secret)
		}
	}
}

func TestL2HeadersAt(t *testing.T) {
	auth := &HMACAuth{Key: "api-key", Secret: testSecret, Passphrase: "pass"}
	headers, err := auth.L2HeadersAt("0xabc", "GET", "/orders", "", testTS)
	if err != nil {
		t.Fatalf("L2HeadersAt() error = %v", err)
	}

	wantSig, _ := Sign(testSecret, testTS, "GET", "/orders", "")
	want := map[string]string{
		HeaderAddress:    "0xabc",
		HeaderAPIKey:     "api-key",
		HeaderPassphrase: "pass",
		HeaderTimestamp:  "1700000000",
		HeaderSignature:  wantSig,
	}
	if len(headers) != len(want) {
		t.Fatalf("got %d headers, want %d", len(headers), len(want))
	}
	for k, v := range want {
		if headers[k] != v {
			t.Errorf("header %s = %q, want %q", k, headers[k], v)
		}
	}
}

func TestHMACAuthStringRedacts(t *testing.T) {
	auth := &HMACAuth{Key: "abcdefgh", Secret: testSecret}
	s := auth.String()
	if s != "HMACAuth{key=abcd****, secret=c2Vj****}" {
		t.Errorf("String() = %q", s)
	}
}
