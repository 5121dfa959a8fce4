package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	// Run from an empty directory so the search path finds nothing and
	// every value comes from the defaults.
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 0.3, cfg.Trading.EntranceThreshold)
	assert.Equal(t, 0.1, cfg.Trading.ExitThreshold)
	assert.Equal(t, 5, cfg.Trading.MaxPositions)
	assert.Equal(t, 1000.0, cfg.Trading.CapitalPerTrade)
	assert.Equal(t, 10000.0, cfg.Trading.MinLiquidityUSD)
	assert.Equal(t, 50, cfg.Trading.ActiveSetSize)
	assert.Equal(t, "USDT", cfg.Trading.QuoteCurrency)
	assert.True(t, cfg.OKX.Simulated)
	assert.Equal(t, "https://www.okx.com", cfg.OKX.BaseURL)
	assert.Equal(t, 5, cfg.WebSocket.ReconnectDelay)

	assert.Equal(t, 30*time.Second, cfg.Trading.HealthCheckEvery())
	assert.Equal(t, 10*time.Second, cfg.Trading.OrderDeadline())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
trading:
  entrance_threshold: 0.5
  exit_threshold: 0.2
  max_positions: 3
okx:
  simulated: false
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.5, cfg.Trading.EntranceThreshold)
	assert.Equal(t, 0.2, cfg.Trading.ExitThreshold)
	assert.Equal(t, 3, cfg.Trading.MaxPositions)
	assert.False(t, cfg.OKX.Simulated)
	// Unset keys keep their defaults.
	assert.Equal(t, 1000.0, cfg.Trading.CapitalPerTrade)
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
trading:
  entrance_threshold: -1
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := TradingConfig{
		EntranceThreshold: 0.3,
		ExitThreshold:     0.1,
		MaxPositions:      5,
		CapitalPerTrade:   1000,
		ActiveSetSize:     50,
	}

	tests := []struct {
		name    string
		mutate  func(*TradingConfig)
		wantErr bool
	}{
		{"valid", func(t *TradingConfig) {}, false},
		{"zero entrance", func(t *TradingConfig) { t.EntranceThreshold = 0 }, true},
		{"negative exit", func(t *TradingConfig) { t.ExitThreshold = -0.1 }, true},
		{"zero max positions", func(t *TradingConfig) { t.MaxPositions = 0 }, true},
		{"zero capital", func(t *TradingConfig) { t.CapitalPerTrade = 0 }, true},
		{"zero active set", func(t *TradingConfig) { t.ActiveSetSize = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Trading: valid}
			tt.mutate(&cfg.Trading)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestThresholdsOverlap(t *testing.T) {
	cfg := &Config{Trading: TradingConfig{EntranceThreshold: 0.3, ExitThreshold: 0.1}}
	assert.False(t, cfg.ThresholdsOverlap())

	cfg.Trading.ExitThreshold = 0.3
	assert.True(t, cfg.ThresholdsOverlap())

	cfg.Trading.ExitThreshold = 0.4
	assert.True(t, cfg.ThresholdsOverlap())
}

func TestEnvOverrides(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	t.Setenv("OKX_API_KEY", "env-key")
	t.Setenv("OKX_API_SECRET", "env-secret")
	t.Setenv("OKX_API_PASSPHRASE", "env-pass")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.OKX.APIKey)
	assert.Equal(t, "env-secret", cfg.OKX.APISecret)
	assert.Equal(t, "env-pass", cfg.OKX.Passphrase)
}
