package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "monitor" // no wallet required
	require.NoError(t, cfg.Validate())
}

func TestValidate_TradeModeRequiresWallet(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wallet")
}

func TestValidate_RejectsBadTunables(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "monitor"
	cfg.Trading.DipThreshold = 1.5
	cfg.Risk.DailyPnLLimit = 10

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dip_threshold")
	assert.Contains(t, err.Error(), "daily_pnl_limit")
}

func TestLoad_TOMLAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	data := `
mode = "monitor"

[trading]
sliding_window = "15s"
dip_threshold = 0.08
position_size = 25.0

[risk]
daily_pnl_limit = -30.0
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	t.Setenv("TRADEBOT_TRADING_POSITION_SIZE", "42.5")
	t.Setenv("TRADEBOT_RISK_MAX_DAILY_TRADES", "7")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "monitor", cfg.Mode)
	assert.Equal(t, 15*time.Second, cfg.Trading.SlidingWindow.Duration)
	assert.InDelta(t, 0.08, cfg.Trading.DipThreshold, 1e-9)
	// Env beats file.
	assert.InDelta(t, 42.5, cfg.Trading.PositionSize, 1e-9)
	assert.Equal(t, 7, cfg.Risk.MaxDailyTrades)
	// Untouched values keep defaults.
	assert.InDelta(t, -30.0, cfg.Risk.DailyPnLLimit, 1e-9)
	assert.Equal(t, 137, cfg.Polymarket.ChainID)
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Wallet.PrivateKey = "0xdeadbeef"
	cfg.Postgres.Password = "hunter2"
	cfg.S3.SecretKey = "secret"

	red := RedactedConfig(&cfg)
	assert.Equal(t, "***", red.Wallet.PrivateKey)
	assert.Equal(t, "***", red.Postgres.Password)
	assert.Equal(t, "***", red.S3.SecretKey)
	// Original untouched.
	assert.Equal(t, "0xdeadbeef", cfg.Wallet.PrivateKey)
}
