// Package config defines the top-level configuration for the trade bot and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by TRADEBOT_* environment variables.
type Config struct {
	Wallet     WalletConfig     `toml:"wallet"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Trading    TradingConfig    `toml:"trading"`
	Spread     SpreadConfig     `toml:"spread"`
	Risk       RiskConfig       `toml:"risk"`
	Executor   ExecutorConfig   `toml:"executor"`
	Scanner    ScannerConfig    `toml:"scanner"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// WalletConfig holds Ethereum wallet credentials.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	FunderAddress    string `toml:"funder_address"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// PolymarketConfig holds Polymarket API endpoints and chain parameters.
type PolymarketConfig struct {
	ClobHost      string `toml:"clob_host"`
	GammaHost     string `toml:"gamma_host"`
	WsHost        string `toml:"ws_host"`
	RelayerHost   string `toml:"relayer_host"`
	ChainID       int    `toml:"chain_id"`
	SignatureType int    `toml:"signature_type"`
	ApiKey        string `toml:"api_key"`
	ApiSecret     string `toml:"api_secret"`
	ApiPassphrase string `toml:"api_passphrase"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
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
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for daily archives.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	ForcePathStyle bool   `toml:"force_path_style"`
	RetentionDays  int    `toml:"retention_days"` // rows older than this get archived
	ArchiveCron    string `toml:"archive_cron"`   // 5-field cron, UTC
}

// TradingConfig holds the dip-arbitrage round engine tunables.
type TradingConfig struct {
	SlidingWindow     duration `toml:"sliding_window"`     // max-ask lookback for dip detection
	DipThreshold      float64  `toml:"dip_threshold"`      // fractional drop vs window max, e.g. 0.05
	SumTarget         float64  `toml:"sum_target"`         // leg1 + leg2 ask budget, e.g. 0.99
	Leg2Timeout       duration `toml:"leg2_timeout"`       // stop-loss countdown after leg1 fills
	ExecutionCooldown duration `toml:"execution_cooldown"` // min spacing between dip entries
	PositionSize      float64  `toml:"position_size"`      // USDC notional per leg1
	MaxHistory        int      `toml:"max_history"`        // quote history ring size
	AutoMerge         bool     `toml:"auto_merge"`         // merge completed pairs automatically
	DustThreshold     float64  `toml:"dust_threshold"`     // min shares worth merging
	SignalTTL         duration `toml:"signal_ttl"`
}

// SpreadConfig holds the yes/no spread strategy tunables.
type SpreadConfig struct {
	Enabled         bool     `toml:"enabled"`
	Fee             float64  `toml:"fee"`
	MinProfit       float64  `toml:"min_profit"`
	SizePerTrade    float64  `toml:"size_per_trade"`
	ProfitTarget    float64  `toml:"profit_target"`
	StopLoss        float64  `toml:"stop_loss"`
	MaxHold         duration `toml:"max_hold"`
	TrailingStopPct float64  `toml:"trailing_stop_pct"`
	Cooldown        duration `toml:"cooldown"`
	SignalTTL       duration `toml:"signal_ttl"`
}

// RiskConfig holds the account-wide risk manager limits.
type RiskConfig struct {
	MinProfit        float64  `toml:"min_profit"`
	MaxTradeAmount   float64  `toml:"max_trade_amount"`
	MaxDailyTrades   int      `toml:"max_daily_trades"`
	MaxOpenPositions int      `toml:"max_open_positions"`
	MinTradeInterval duration `toml:"min_trade_interval"`
	DailyPnLLimit    float64  `toml:"daily_pnl_limit"` // negative loss floor
	MarketCooldown   duration `toml:"market_cooldown"`
	BreakerCooldown  duration `toml:"breaker_cooldown"`
}

// ExecutorConfig holds the signal execution pipeline tunables.
type ExecutorConfig struct {
	DedupTTL        duration `toml:"dedup_ttl"`
	CleanupInterval duration `toml:"cleanup_interval"`
	RetryDelay      duration `toml:"retry_delay"`
	SplitChunks     int      `toml:"split_chunks"`
	SplitDelay      duration `toml:"split_delay"`
	SplitMinShares  float64  `toml:"split_min_shares"`
}

// ScannerConfig holds market discovery and rotation parameters.
type ScannerConfig struct {
	RefreshInterval duration `toml:"refresh_interval"`
	RotateInterval  duration `toml:"rotate_interval"`
	MarketLimit     int      `toml:"market_limit"`
	ScanInterval    duration `toml:"scan_interval"` // arbitrage sweep over cached books
}

// ServerConfig holds HTTP status server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`    // empty disables auth
	RateLimit   int      `toml:"rate_limit"` // requests/second per client; 0 disables
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration wraps time.Duration so the TOML decoder can parse strings like
// "5m" or "30s".
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Polymarket: PolymarketConfig{
			ClobHost:      "https://clob.polymarket.com",
			GammaHost:     "https://gamma-api.polymarket.com",
			WsHost:        "wss://ws-subscriptions-clob.polymarket.com",
			RelayerHost:   "https://relayer-v2.polymarket.com",
			ChainID:       137,
			SignatureType: 2,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "tradebot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "tradebot-data",
			ForcePathStyle: true,
			RetentionDays:  30,
			ArchiveCron:    "0 3 * * *",
		},
		Trading: TradingConfig{
			SlidingWindow:     duration{10 * time.Second},
			DipThreshold:      0.05,
			SumTarget:         0.99,
			Leg2Timeout:       duration{60 * time.Second},
			ExecutionCooldown: duration{5 * time.Second},
			PositionSize:      50.0,
			MaxHistory:        600,
			AutoMerge:         true,
			DustThreshold:     1.0,
			SignalTTL:         duration{30 * time.Second},
		},
		Spread: SpreadConfig{
			Enabled:         false,
			Fee:             0.0,
			MinProfit:       0.02,
			SizePerTrade:    20.0,
			ProfitTarget:    0.10,
			StopLoss:        0.07,
			MaxHold:         duration{4 * time.Hour},
			TrailingStopPct: 0.05,
			Cooldown:        duration{10 * time.Second},
			SignalTTL:       duration{30 * time.Second},
		},
		Risk: RiskConfig{
			MinProfit:        0.01,
			MaxTradeAmount:   100.0,
			MaxDailyTrades:   50,
			MaxOpenPositions: 4,
			MinTradeInterval: duration{3 * time.Second},
			DailyPnLLimit:    -50.0,
			MarketCooldown:   duration{5 * time.Minute},
			BreakerCooldown:  duration{1 * time.Hour},
		},
		Executor: ExecutorConfig{
			DedupTTL:        duration{2 * time.Minute},
			CleanupInterval: duration{30 * time.Second},
			RetryDelay:      duration{500 * time.Millisecond},
			SplitChunks:     1,
			SplitDelay:      duration{300 * time.Millisecond},
			SplitMinShares:  5.0,
		},
		Scanner: ScannerConfig{
			RefreshInterval: duration{1 * time.Minute},
			RotateInterval:  duration{1 * time.Hour},
			MarketLimit:     50,
			ScanInterval:    duration{2 * time.Second},
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000"},
			RateLimit:   20,
		},
		Notify: NotifyConfig{
			Events: []string{"fill", "round", "stop_loss", "kill_switch", "error"},
		},
		Mode:     "trade",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"trade":   true,
	"monitor": true,
	"server":  true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trade, monitor, server)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Wallet credentials are only required when orders will be signed.
	if strings.ToLower(c.Mode) == "trade" {
		if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			errs = append(errs, "wallet: either private_key or encrypted_key_path must be set for mode trade")
		}
		if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
			errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
		}
	}

	if c.Polymarket.ClobHost == "" {
		errs = append(errs, "polymarket: clob_host must not be empty")
	}
	if c.Polymarket.ChainID <= 0 {
		errs = append(errs, "polymarket: chain_id must be positive")
	}
	if c.Polymarket.SignatureType != 1 && c.Polymarket.SignatureType != 2 {
		errs = append(errs, fmt.Sprintf("polymarket: signature_type must be 1 (EOA) or 2 (proxy), got %d", c.Polymarket.SignatureType))
	}

	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must be 0..pool_max_conns")
	}

	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
		if c.S3.RetentionDays < 1 {
			errs = append(errs, "s3: retention_days must be >= 1 when enabled")
		}
	}

	if c.Trading.DipThreshold <= 0 || c.Trading.DipThreshold >= 1 {
		errs = append(errs, fmt.Sprintf("trading: dip_threshold must be in (0,1), got %g", c.Trading.DipThreshold))
	}
	if c.Trading.SumTarget <= 0 || c.Trading.SumTarget >= 1 {
		errs = append(errs, fmt.Sprintf("trading: sum_target must be in (0,1), got %g", c.Trading.SumTarget))
	}
	if c.Trading.SlidingWindow.Duration <= 0 {
		errs = append(errs, "trading: sliding_window must be positive")
	}
	if c.Trading.Leg2Timeout.Duration <= 0 {
		errs = append(errs, "trading: leg2_timeout must be positive")
	}
	if c.Trading.PositionSize <= 0 {
		errs = append(errs, "trading: position_size must be > 0")
	}

	if c.Spread.Enabled {
		if c.Spread.SizePerTrade <= 0 {
			errs = append(errs, "spread: size_per_trade must be > 0 when enabled")
		}
		if c.Spread.MinProfit <= 0 {
			errs = append(errs, "spread: min_profit must be > 0 when enabled")
		}
	}

	if c.Risk.MaxTradeAmount <= 0 {
		errs = append(errs, "risk: max_trade_amount must be > 0")
	}
	if c.Risk.DailyPnLLimit >= 0 {
		errs = append(errs, fmt.Sprintf("risk: daily_pnl_limit must be negative, got %g", c.Risk.DailyPnLLimit))
	}
	if c.Risk.MaxOpenPositions < 1 {
		errs = append(errs, "risk: max_open_positions must be >= 1")
	}

	if c.Executor.SplitChunks < 1 {
		errs = append(errs, "executor: split_chunks must be >= 1")
	}

	if c.Scanner.MarketLimit < 1 {
		errs = append(errs, "scanner: market_limit must be >= 1")
	}

	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
