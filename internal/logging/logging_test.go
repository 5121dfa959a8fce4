package logging

import (
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okxcarry/carrytrader/internal/config"
)

func testConfig(dir string) config.LoggingConfig {
	return config.LoggingConfig{
		Level:      "debug",
		Format:     "json",
		File:       filepath.Join(dir, "test.log"),
		MaxSizeMB:  1,
		MaxBackups: 1,
		MaxAgeDays: 1,
	}
}

func TestNew(t *testing.T) {
	logger, err := New(testConfig(t.TempDir()))
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
}

func TestNewTextFormat(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Format = "text"
	logger, err := New(cfg)
	require.NoError(t, err)
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)
}

func TestNewBadLevelFallsBack(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Level = "nonsense"
	logger, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
}

func TestNewWritesToFile(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	logger, err := New(cfg)
	require.NoError(t, err)

	logger.Info("hello")
	assert.FileExists(t, cfg.File)
}
