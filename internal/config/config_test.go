package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assist-by/phoenix-backtest/internal/cost"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "BTCUSDT", cfg.Backtest.Symbol)
	assert.Equal(t, "emacross", cfg.Backtest.Strategy)
	assert.Equal(t, 10000.0, cfg.Backtest.InitialCapital)
	assert.True(t, cfg.Backtest.UseStopLoss)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 10*time.Second, cfg.Discord.Timeout)
	assert.Zero(t, cfg.Schedule.Interval)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("BACKTEST_SYMBOL", "ETHUSDT")
	t.Setenv("BACKTEST_INITIAL_CAPITAL", "5000")
	t.Setenv("BACKTEST_ALLOW_SHORT", "true")
	t.Setenv("BACKTEST_STRATEGY_PARAMS", "fastPeriod:5,slowPeriod:20,allowShort:true,label:x")
	t.Setenv("SCHEDULE_INTERVAL", "1h")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "ETHUSDT", cfg.Backtest.Symbol)
	assert.Equal(t, 5000.0, cfg.Backtest.InitialCapital)
	assert.True(t, cfg.Backtest.AllowShort)
	assert.Equal(t, time.Hour, cfg.Schedule.Interval)

	params := cfg.StrategyConfig()
	assert.Equal(t, 5.0, params["fastPeriod"])
	assert.Equal(t, 20.0, params["slowPeriod"])
	assert.Equal(t, true, params["allowShort"])
	assert.Equal(t, "x", params["label"])
}

func TestLoadConfig_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("BACKTEST_STRATEGY=hold\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("BACKTEST_STRATEGY") })

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "hold", cfg.Backtest.Strategy)
}

func TestValidateConfig(t *testing.T) {
	cfg := &Config{}
	cfg.Backtest.Strategy = "hold"
	assert.Error(t, ValidateConfig(cfg), "심볼 없음")

	cfg.Backtest.Symbol = "AAA"
	assert.NoError(t, ValidateConfig(cfg))

	cfg.Batch.Workers = -1
	assert.Error(t, ValidateConfig(cfg))

	cfg.Batch.Workers = 0
	cfg.Schedule.Interval = -time.Second
	assert.Error(t, ValidateConfig(cfg))
}

func TestParseRealisticConfig(t *testing.T) {
	data := []byte(`
market: B
commissionEnabled: true
tierBasis: cumulative
commissionTiers:
  - volumeThreshold: 0
    rate: 0.002
  - volumeThreshold: 100000
    rate: 0.001
latencyEnabled: true
latencyMs: 250
`)
	rc, err := ParseRealisticConfig(data)
	require.NoError(t, err)

	assert.Equal(t, cost.MarketB, rc.Market)
	assert.True(t, rc.CommissionEnabled)
	assert.Equal(t, cost.TierCumulative, rc.TierBasis)
	require.Len(t, rc.CommissionTiers, 2)
	assert.Equal(t, 0.001, rc.CommissionTiers[1].Rate)
	assert.Equal(t, 250, rc.LatencyMs)
	// 파일에 없는 값은 기본값 유지
	assert.Equal(t, 20, rc.VolatilityWindow)

	_, err = ParseRealisticConfig([]byte("market: [unterminated"))
	assert.Error(t, err)
}

func TestToBacktestConfig(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := t.TempDir()
	path := filepath.Join(dir, "realistic.yaml")
	require.NoError(t, os.WriteFile(path, []byte("slippageEnabled: true\n"), 0o600))
	t.Setenv("BACKTEST_REALISTIC_CONFIG", path)
	t.Setenv("BACKTEST_MAX_HOLDING_BARS", "12")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	bt, err := cfg.ToBacktestConfig()
	require.NoError(t, err)
	assert.Equal(t, 12, bt.MaxHoldingBars)
	require.NotNil(t, bt.Realistic)
	assert.True(t, bt.Realistic.SlippageEnabled)
	assert.NoError(t, bt.Validate())

	t.Setenv("BACKTEST_REALISTIC_CONFIG", filepath.Join(dir, "missing.yaml"))
	cfg, err = LoadConfig()
	require.NoError(t, err)
	_, err = cfg.ToBacktestConfig()
	assert.Error(t, err)
}
