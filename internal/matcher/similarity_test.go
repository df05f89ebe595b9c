package matcher

import (
	"math"
	"testing"
)

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "Will the Fed cut rates in March?", "Will the Fed cut rates in March?", 1},
		{"trump election", "Will Trump win the 2024 election?", "Election 2024: Trump victory?", 17.0 / 27.0},
		{"unrelated", "Bitcoin price", "Lakers vs Celtics", 0},
		{"length mismatch", "Trump", "Will Trump win the 2024 presidential election?", 0},
		{"both empty", "", "", 0},
		{"only short tokens", "a to b", "a to b", 0},
		{"shared stem", "Presidential elections", "presidency electoral", 1},
		{"substring token", "Ethereum ETF approved", "ETH ETF approval", 1},
		{"partial overlap", "Ethereum ETF approved", "Solana ETF rejected", 3.0 / 19.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Similarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Similarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestSimilarityIsAsymmetric(t *testing.T) {
	short := "Trump election"
	long := "Will Trump win the 2024 election"

	if got := Similarity(short, long); got != 1 {
		t.Errorf("Similarity(short, long) = %v, want 1", got)
	}
	want := 13.0 / 27.0
	if got := Similarity(long, short); math.Abs(got-want) > 1e-9 {
		t.Errorf("Similarity(long, short) = %v, want %v", got, want)
	}
}

func TestSimilarityRange(t *testing.T) {
	titles := []string{
		"Will Bitcoin reach $100k by December?",
		"BTC above 100000 on Dec 31",
		"Will the Lakers win the NBA championship?",
		"Lakers NBA champions 2025",
		"Fed rate cut in September",
		"",
	}
	for _, a := range titles {
		for _, b := range titles {
			s := Similarity(a, b)
			if s < 0 || s > 1 {
				t.Errorf("Similarity(%q, %q) = %v, outside [0,1]", a, b, s)
			}
		}
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  Will Trump win?  ", "will trump win"},
		{"S&P 500 > 5,000", "sp 500  5000"},
		{"Élection 2024", "lection 2024"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
