package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies TRADEBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known TRADEBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "TRADEBOT_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.FunderAddress, "TRADEBOT_WALLET_FUNDER_ADDRESS")
	setStr(&cfg.Wallet.EncryptedKeyPath, "TRADEBOT_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "TRADEBOT_WALLET_KEY_PASSWORD")

	// ── Polymarket ──
	setStr(&cfg.Polymarket.ClobHost, "TRADEBOT_POLYMARKET_CLOB_HOST")
	setStr(&cfg.Polymarket.GammaHost, "TRADEBOT_POLYMARKET_GAMMA_HOST")
	setStr(&cfg.Polymarket.WsHost, "TRADEBOT_POLYMARKET_WS_HOST")
	setStr(&cfg.Polymarket.RelayerHost, "TRADEBOT_POLYMARKET_RELAYER_HOST")
	setInt(&cfg.Polymarket.ChainID, "TRADEBOT_POLYMARKET_CHAIN_ID")
	setInt(&cfg.Polymarket.SignatureType, "TRADEBOT_POLYMARKET_SIGNATURE_TYPE")
	setStr(&cfg.Polymarket.ApiKey, "TRADEBOT_POLYMARKET_API_KEY")
	setStr(&cfg.Polymarket.ApiSecret, "TRADEBOT_POLYMARKET_API_SECRET")
	setStr(&cfg.Polymarket.ApiPassphrase, "TRADEBOT_POLYMARKET_API_PASSPHRASE")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "TRADEBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "TRADEBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "TRADEBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "TRADEBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "TRADEBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "TRADEBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "TRADEBOT_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "TRADEBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "TRADEBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "TRADEBOT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "TRADEBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "TRADEBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "TRADEBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "TRADEBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "TRADEBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "TRADEBOT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "TRADEBOT_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "TRADEBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "TRADEBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "TRADEBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "TRADEBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "TRADEBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.ForcePathStyle, "TRADEBOT_S3_FORCE_PATH_STYLE")

	// ── Trading ──
	setDuration(&cfg.Trading.SlidingWindow, "TRADEBOT_TRADING_SLIDING_WINDOW")
	setFloat64(&cfg.Trading.DipThreshold, "TRADEBOT_TRADING_DIP_THRESHOLD")
	setFloat64(&cfg.Trading.SumTarget, "TRADEBOT_TRADING_SUM_TARGET")
	setDuration(&cfg.Trading.Leg2Timeout, "TRADEBOT_TRADING_LEG2_TIMEOUT")
	setDuration(&cfg.Trading.ExecutionCooldown, "TRADEBOT_TRADING_EXECUTION_COOLDOWN")
	setFloat64(&cfg.Trading.PositionSize, "TRADEBOT_TRADING_POSITION_SIZE")
	setInt(&cfg.Trading.MaxHistory, "TRADEBOT_TRADING_MAX_HISTORY")
	setBool(&cfg.Trading.AutoMerge, "TRADEBOT_TRADING_AUTO_MERGE")
	setFloat64(&cfg.Trading.DustThreshold, "TRADEBOT_TRADING_DUST_THRESHOLD")
	setDuration(&cfg.Trading.SignalTTL, "TRADEBOT_TRADING_SIGNAL_TTL")

	// ── Spread ──
	setBool(&cfg.Spread.Enabled, "TRADEBOT_SPREAD_ENABLED")
	setFloat64(&cfg.Spread.Fee, "TRADEBOT_SPREAD_FEE")
	setFloat64(&cfg.Spread.MinProfit, "TRADEBOT_SPREAD_MIN_PROFIT")
	setFloat64(&cfg.Spread.SizePerTrade, "TRADEBOT_SPREAD_SIZE_PER_TRADE")
	setFloat64(&cfg.Spread.ProfitTarget, "TRADEBOT_SPREAD_PROFIT_TARGET")
	setFloat64(&cfg.Spread.StopLoss, "TRADEBOT_SPREAD_STOP_LOSS")
	setDuration(&cfg.Spread.MaxHold, "TRADEBOT_SPREAD_MAX_HOLD")
	setFloat64(&cfg.Spread.TrailingStopPct, "TRADEBOT_SPREAD_TRAILING_STOP_PCT")
	setDuration(&cfg.Spread.Cooldown, "TRADEBOT_SPREAD_COOLDOWN")

	// ── Risk ──
	setFloat64(&cfg.Risk.MinProfit, "TRADEBOT_RISK_MIN_PROFIT")
	setFloat64(&cfg.Risk.MaxTradeAmount, "TRADEBOT_RISK_MAX_TRADE_AMOUNT")
	setInt(&cfg.Risk.MaxDailyTrades, "TRADEBOT_RISK_MAX_DAILY_TRADES")
	setInt(&cfg.Risk.MaxOpenPositions, "TRADEBOT_RISK_MAX_OPEN_POSITIONS")
	setDuration(&cfg.Risk.MinTradeInterval, "TRADEBOT_RISK_MIN_TRADE_INTERVAL")
	setFloat64(&cfg.Risk.DailyPnLLimit, "TRADEBOT_RISK_DAILY_PNL_LIMIT")
	setDuration(&cfg.Risk.MarketCooldown, "TRADEBOT_RISK_MARKET_COOLDOWN")
	setDuration(&cfg.Risk.BreakerCooldown, "TRADEBOT_RISK_BREAKER_COOLDOWN")

	// ── Executor ──
	setDuration(&cfg.Executor.DedupTTL, "TRADEBOT_EXECUTOR_DEDUP_TTL")
	setDuration(&cfg.Executor.CleanupInterval, "TRADEBOT_EXECUTOR_CLEANUP_INTERVAL")
	setDuration(&cfg.Executor.RetryDelay, "TRADEBOT_EXECUTOR_RETRY_DELAY")
	setInt(&cfg.Executor.SplitChunks, "TRADEBOT_EXECUTOR_SPLIT_CHUNKS")
	setDuration(&cfg.Executor.SplitDelay, "TRADEBOT_EXECUTOR_SPLIT_DELAY")
	setFloat64(&cfg.Executor.SplitMinShares, "TRADEBOT_EXECUTOR_SPLIT_MIN_SHARES")

	// ── Scanner ──
	setDuration(&cfg.Scanner.RefreshInterval, "TRADEBOT_SCANNER_REFRESH_INTERVAL")
	setDuration(&cfg.Scanner.RotateInterval, "TRADEBOT_SCANNER_ROTATE_INTERVAL")
	setInt(&cfg.Scanner.MarketLimit, "TRADEBOT_SCANNER_MARKET_LIMIT")
	setDuration(&cfg.Scanner.ScanInterval, "TRADEBOT_SCANNER_SCAN_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "TRADEBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "TRADEBOT_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "TRADEBOT_SERVER_CORS_ORIGINS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "TRADEBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "TRADEBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "TRADEBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "TRADEBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "TRADEBOT_MODE")
	setStr(&cfg.LogLevel, "TRADEBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
