package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWhale = "0xabcd000000000000000000000000000000001234"

// setRequiredEnv 填齐必填项，单项测试再按需覆盖
func setRequiredEnv(t *testing.T) {
	t.Setenv("TARGET_WHALE_ADDRESS", testWhale)
	t.Setenv("WSS_URL", "wss://polygon.example/ws")
	t.Setenv("PRIVATE_KEY", "deadbeef")
	t.Setenv("CONFIG_FILE", "")
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.False(t, cfg.Trading.EnableTrading)
	assert.True(t, cfg.Trading.MockTrading)
	assert.Equal(t, 0.02, cfg.Trading.ScalingRatio)
	assert.Equal(t, 10.0, cfg.Trading.MinWhaleShares)
	assert.Equal(t, 0.01, cfg.Trading.ResubmitPriceIncrement)
	assert.Equal(t, 2000.0, cfg.Risk.LargeTradeShares)
	assert.Equal(t, 5, cfg.Risk.ConsecutiveTrigger)
	assert.Equal(t, 40, cfg.Risk.SequenceWindowSecs)
	assert.Equal(t, 200.0, cfg.Risk.MinDepthUSD)
	assert.Equal(t, 18000, cfg.Risk.TripDurationSecs)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "trades_audit.csv", cfg.AuditFile)
}

func TestLoadEnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ENABLE_TRADING", "true")
	t.Setenv("MOCK_TRADING", "false")
	t.Setenv("SCALING_RATIO", "0.05")
	t.Setenv("MIN_WHALE_SHARES_TO_COPY", "25")
	t.Setenv("LARGE_TRADE_SHARES", "3000")
	t.Setenv("SEQUENCE_WINDOW_SECS", "60")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Trading.EnableTrading)
	assert.False(t, cfg.Trading.MockTrading)
	assert.Equal(t, 0.05, cfg.Trading.ScalingRatio)
	assert.Equal(t, 25.0, cfg.Trading.MinWhaleShares)
	assert.Equal(t, 3000.0, cfg.Risk.LargeTradeShares)
	assert.Equal(t, 60, cfg.Risk.SequenceWindowSecs)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, testWhale, cfg.Whale.Address)
	assert.Equal(t, "deadbeef", cfg.Wallet.PrivateKey)
}

func TestLoadYAMLThenEnvPrecedence(t *testing.T) {
	setRequiredEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
trading:
  scaling_ratio: 0.10
  min_whale_shares: 100
risk:
  min_depth_usd: 500
`), 0o644))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("SCALING_RATIO", "0.03")

	cfg, err := Load()
	require.NoError(t, err)

	// 环境变量压过 YAML，YAML 压过默认值
	assert.Equal(t, 0.03, cfg.Trading.ScalingRatio)
	assert.Equal(t, 100.0, cfg.Trading.MinWhaleShares)
	assert.Equal(t, 500.0, cfg.Risk.MinDepthUSD)
}

func TestValidateMissingWhale(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TARGET_WHALE_ADDRESS", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidateBadWhaleAddress(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TARGET_WHALE_ADDRESS", "abcd1234")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidateMissingWSSURL(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("WSS_URL", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidateKeyOrStoreRequired(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PRIVATE_KEY", "")

	_, err := Load()
	assert.Error(t, err)

	// 配置了密钥库路径即可通过
	t.Setenv("SECRET_STORE_PATH", "/tmp/store")
	_, err = Load()
	assert.NoError(t, err)
}

func TestValidateScalingRatioRange(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SCALING_RATIO", "1.5")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidateBadConfigFile(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	assert.Error(t, err)
}
