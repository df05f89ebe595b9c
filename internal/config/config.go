// Package config defines the top-level configuration for crossarb and
// provides validation helpers.
package config

import (
	"fmt"
	"net/netip"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/crossarb/internal/arbitrage"
	"github.com/alanyoungcy/crossarb/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by CROSSARB_* environment variables.
type Config struct {
	Wallet     WalletConfig     `toml:"wallet"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	API        APIConfig        `toml:"api"`
	Kalshi     KalshiConfig     `toml:"kalshi"`
	Order      OrderConfig      `toml:"order"`
	Scan       ScanConfig       `toml:"scan"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Log        LogConfig        `toml:"log"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// WalletConfig holds the server-side signing key and the optional proxy
// (funder) account. Without a key only externally signed orders are
// possible.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
	// FunderAddress, when set, makes every order a proxy order (signature
	// type 2) made and signed by this account.
	FunderAddress string `toml:"funder_address"`
}

// PolymarketConfig holds Polymarket API endpoints and chain parameters.
type PolymarketConfig struct {
	ClobHost          string   `toml:"clob_host"`
	GammaHost         string   `toml:"gamma_host"`
	ChainID           int      `toml:"chain_id"`
	VerifyingContract string   `toml:"verifying_contract"`
	RequestTimeout    duration `toml:"request_timeout"`
}

// APIConfig holds CLOB L2 credentials. When empty and a wallet is
// configured, credentials are derived at startup if DeriveOnStartup is set.
type APIConfig struct {
	Key             string `toml:"key"`
	Secret          string `toml:"secret"`
	Passphrase      string `toml:"passphrase"`
	DeriveOnStartup bool   `toml:"derive_on_startup"`
}

// KalshiConfig holds Kalshi exchange API settings. Market reads are public;
// the key pair only adds request signing.
type KalshiConfig struct {
	Enabled           bool   `toml:"enabled"`
	ApiKey            string `toml:"api_key"`
	RsaPrivateKeyPath string `toml:"rsa_private_key_path"`
	BaseURL           string `toml:"base_url"`
}

// OrderConfig holds order expiration policies.
type OrderConfig struct {
	DefaultExpiration     duration `toml:"default_expiration"`
	InteractiveExpiration duration `toml:"interactive_expiration"`
}

// ScanConfig tunes aggregation and ranking.
type ScanConfig struct {
	Interval       duration `toml:"interval"`
	Limit          int      `toml:"limit"`
	AdapterTimeout duration `toml:"adapter_timeout"`
	PrimaryVenue   string   `toml:"primary_venue"`
	// Tiers is the ordered ranking cascade.
	Tiers         []string `toml:"tiers"`
	MinSpread     float64  `toml:"min_spread"`
	SyntheticTopN int      `toml:"synthetic_top_n"`
	ResultLimit   int      `toml:"result_limit"`
	Notional      float64  `toml:"notional"`
	LockTTL       duration `toml:"lock_ttl"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled     bool     `toml:"enabled"`
	Addr        string   `toml:"addr"`
	Password    string   `toml:"password"`
	DB          int      `toml:"db"`
	PoolSize    int      `toml:"pool_size"`
	MaxRetries  int      `toml:"max_retries"`
	TLSEnabled  bool     `toml:"tls_enabled"`
	SnapshotTTL duration `toml:"snapshot_ttl"`
	BookTTL     duration `toml:"book_ttl"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	MaxAttempts    int    `toml:"max_attempts"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// APIKey protects the trade routes. Empty disables the check.
	APIKey     string   `toml:"api_key"`
	// RateLimit and RateWindow bound trade requests per client.
	RateLimit  int      `toml:"rate_limit"`
	RateWindow duration `toml:"rate_window"`
	// TrustedProxies lists CIDRs or addresses allowed to set
	// X-Forwarded-For. Empty means the header is ignored.
	TrustedProxies []string `toml:"trusted_proxies"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
	// MinSpread is the alert threshold for opportunities.
	MinSpread float64 `toml:"min_spread"`
}

// LogConfig configures the optional rotated log file.
type LogConfig struct {
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Polymarket: PolymarketConfig{
			ClobHost:          "https://clob.polymarket.com",
			GammaHost:         "https://gamma-api.polymarket.com",
			ChainID:           137,
			VerifyingContract: "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E",
			RequestTimeout:    duration{20 * time.Second},
		},
		API: APIConfig{
			DeriveOnStartup: true,
		},
		Kalshi: KalshiConfig{
			Enabled: true,
			BaseURL: "https://api.elections.kalshi.com/trade-api/v2",
		},
		Order: OrderConfig{
			DefaultExpiration:     duration{24 * time.Hour},
			InteractiveExpiration: duration{time.Hour},
		},
		Scan: ScanConfig{
			Interval:       duration{time.Minute},
			Limit:          100,
			AdapterTimeout: duration{15 * time.Second},
			PrimaryVenue:   "polymarket",
			Tiers:          []string{"exact", "relaxed"},
			MinSpread:      0.005,
			SyntheticTopN:  10,
			ResultLimit:    50,
			Notional:       100,
			LockTTL:        duration{2 * time.Minute},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "crossarb",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:        "localhost:6379",
			PoolSize:    20,
			MaxRetries:  3,
			SnapshotTTL: duration{10 * time.Minute},
			BookTTL:     duration{2 * time.Second},
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "crossarb-snapshots",
			ForcePathStyle: true,
			MaxAttempts:    3,
		},
		Server: ServerConfig{
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   30,
			RateWindow:  duration{time.Minute},
		},
		Notify: NotifyConfig{
			Events:    []string{"opportunity", "rejection"},
			MinSpread: 0.05,
		},
		Log: LogConfig{
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 28,
			Compress:   true,
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// ValidModes lists the accepted values for Config.Mode.
var ValidModes = []string{"scan", "server", "full"}

// validTiers are the registered strategy names.
var validTiers = arbitrage.DefaultRegistry(0, 0).List()

var validLogLevels = []string{"debug", "info", "warn", "error"}

func validProxy(v string) bool {
	v = strings.TrimSpace(v)
	if strings.Contains(v, "/") {
		_, err := netip.ParsePrefix(v)
		return err == nil
	}
	_, err := netip.ParseAddr(v)
	return err == nil
}

// HasWalletKey reports whether a server-side signing key is configured.
func (c *Config) HasWalletKey() bool {
	return c.Wallet.PrivateKey != "" || c.Wallet.EncryptedKeyPath != ""
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	if !slices.Contains(ValidModes, strings.ToLower(c.Mode)) {
		add("unknown mode %q (valid: %s)", c.Mode, strings.Join(ValidModes, ", "))
	}
	if !slices.Contains(validLogLevels, strings.ToLower(c.LogLevel)) {
		add("unknown log_level %q (valid: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	// Wallet
	if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
		add("wallet: key_password is required when encrypted_key_path is set")
	}
	if f := strings.TrimSpace(c.Wallet.FunderAddress); f != "" && !common.IsHexAddress(f) {
		add("wallet: funder_address %q is not a 20-byte hex address", f)
	}

	// Polymarket
	if c.Polymarket.ClobHost == "" {
		add("polymarket: clob_host must not be empty")
	}
	if c.Polymarket.GammaHost == "" {
		add("polymarket: gamma_host must not be empty")
	}
	if c.Polymarket.ChainID <= 0 {
		add("polymarket: chain_id must be positive")
	}
	if !common.IsHexAddress(c.Polymarket.VerifyingContract) {
		add("polymarket: verifying_contract %q is not an address", c.Polymarket.VerifyingContract)
	}
	if c.Polymarket.RequestTimeout.Duration <= 0 {
		add("polymarket: request_timeout must be positive")
	}

	// API credentials are all-or-nothing.
	ak, as, ap := c.API.Key != "", c.API.Secret != "", c.API.Passphrase != ""
	if (ak || as || ap) && !(ak && as && ap) {
		add("api: key, secret, and passphrase must all be set together")
	}

	// Kalshi
	if c.Kalshi.Enabled && c.Kalshi.BaseURL == "" {
		add("kalshi: base_url must not be empty")
	}
	if c.Kalshi.RsaPrivateKeyPath != "" && c.Kalshi.ApiKey == "" {
		add("kalshi: api_key is required with rsa_private_key_path")
	}

	// Order
	if c.Order.DefaultExpiration.Duration <= 0 || c.Order.InteractiveExpiration.Duration <= 0 {
		add("order: expirations must be positive")
	}

	// Scan
	if c.Scan.Interval.Duration <= 0 {
		add("scan: interval must be positive")
	}
	if c.Scan.Limit < 1 {
		add("scan: limit must be >= 1")
	}
	if _, ok := domain.ParseVenue(c.Scan.PrimaryVenue); !ok {
		add("scan: unknown primary_venue %q", c.Scan.PrimaryVenue)
	}
	if len(c.Scan.Tiers) == 0 {
		add("scan: tiers must list at least one of %s", strings.Join(validTiers, ", "))
	}
	for _, t := range c.Scan.Tiers {
		if !slices.Contains(validTiers, t) {
			add("scan: unknown tier %q (valid: %s)", t, strings.Join(validTiers, ", "))
		}
	}
	if c.Scan.MinSpread < 0 || c.Scan.MinSpread > 1 {
		add("scan: min_spread must be in [0,1], got %v", c.Scan.MinSpread)
	}
	if c.Scan.Notional <= 0 {
		add("scan: notional must be > 0")
	}
	if c.Scan.ResultLimit < 0 {
		add("scan: result_limit must be >= 0")
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				add("postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				add("postgres: port must be 1-65535, got %d", c.Postgres.Port)
			}
			if c.Postgres.Database == "" {
				add("postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			add("postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			add("postgres: pool_min_conns must be in [0, pool_max_conns]")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			add("redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			add("redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			add("s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			add("s3: region must not be empty")
		}
		if c.S3.MaxAttempts < 0 {
			add("s3: max_attempts must be >= 0")
		}
	}

	// Server
	if c.Mode == "server" || c.Mode == "full" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			add("server: port must be 1-65535, got %d", c.Server.Port)
		}
		if c.Server.RateLimit < 0 {
			add("server: rate_limit must be >= 0")
		}
		for _, p := range c.Server.TrustedProxies {
			if !validProxy(p) {
				add("server: trusted_proxies entry %q is not an address or CIDR", p)
			}
		}
	}

	// Notify
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		add("notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
