package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/okxcarry/carrytrader/pkg/secrets"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	OKX       OKXConfig       `mapstructure:"okx"`
	Trading   TradingConfig   `mapstructure:"trading"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	GCP       GCPConfig       `mapstructure:"gcp"`
}

type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

type OKXConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	APIKey     string `mapstructure:"api_key"`
	APISecret  string `mapstructure:"api_secret"`
	Passphrase string `mapstructure:"passphrase"`
	Simulated  bool   `mapstructure:"simulated"`
}

type WebSocketConfig struct {
	URL            string `mapstructure:"url"`
	ReconnectDelay int    `mapstructure:"reconnect_delay"`
}

// TradingConfig is immutable for the lifetime of a run.
type TradingConfig struct {
	EntranceThreshold   float64 `mapstructure:"entrance_threshold"`
	ExitThreshold       float64 `mapstructure:"exit_threshold"`
	MaxPositions        int     `mapstructure:"max_positions"`
	CapitalPerTrade     float64 `mapstructure:"capital_per_trade"`
	Leverage            int     `mapstructure:"leverage"`
	MinLiquidityUSD     float64 `mapstructure:"min_liquidity_usd"`
	MaxSlippage         float64 `mapstructure:"max_slippage"`
	FundingBufferHours  int     `mapstructure:"funding_buffer_hours"`
	HealthCheckInterval int     `mapstructure:"health_check_interval"`
	OrderTimeout        int     `mapstructure:"order_timeout"`
	ActiveSetSize       int     `mapstructure:"active_set_size"`
	QuoteCurrency       string  `mapstructure:"quote_currency"`
}

func (t TradingConfig) HealthCheckEvery() time.Duration {
	return time.Duration(t.HealthCheckInterval) * time.Second
}

func (t TradingConfig) OrderDeadline() time.Duration {
	return time.Duration(t.OrderTimeout) * time.Second
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type GCPConfig struct {
	ProjectID   string              `mapstructure:"project_id"`
	UseSecrets  bool                `mapstructure:"use_secrets"`
	SecretNames secrets.SecretNames `mapstructure:"secret_names"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/carry-trader")
	}

	v.SetEnvPrefix("CARRY")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; use defaults and environment
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&config)

	if config.GCP.UseSecrets && config.GCP.ProjectID != "" {
		ctx := context.Background()
		logger := logrus.New()
		if err := loadSecretsFromGCP(ctx, &config, logger); err != nil {
			return nil, fmt.Errorf("error loading secrets from GCP: %w", err)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) Validate() error {
	t := c.Trading
	if t.EntranceThreshold <= 0 || t.ExitThreshold <= 0 {
		return fmt.Errorf("trading thresholds must be positive (entrance=%v exit=%v)",
			t.EntranceThreshold, t.ExitThreshold)
	}
	if t.MaxPositions <= 0 {
		return fmt.Errorf("max_positions must be positive, got %d", t.MaxPositions)
	}
	if t.CapitalPerTrade <= 0 {
		return fmt.Errorf("capital_per_trade must be positive, got %v", t.CapitalPerTrade)
	}
	if t.ActiveSetSize <= 0 {
		return fmt.Errorf("active_set_size must be positive, got %d", t.ActiveSetSize)
	}
	return nil
}

// ThresholdsOverlap reports whether the entry and exit bands overlap. The
// engine still runs in that state, but a position could then qualify for
// entry and exit at the same time, so callers should warn.
func (c *Config) ThresholdsOverlap() bool {
	return c.Trading.EntranceThreshold <= c.Trading.ExitThreshold
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.port", 8080)

	// OKX defaults
	v.SetDefault("okx.base_url", "https://www.okx.com")
	v.SetDefault("okx.simulated", true)

	// WebSocket defaults
	v.SetDefault("websocket.url", "wss://ws.okx.com:8443/ws/v5/public")
	v.SetDefault("websocket.reconnect_delay", 5)

	// Trading defaults mirror the reference configuration
	v.SetDefault("trading.entrance_threshold", 0.3)
	v.SetDefault("trading.exit_threshold", 0.1)
	v.SetDefault("trading.max_positions", 5)
	v.SetDefault("trading.capital_per_trade", 1000.0)
	v.SetDefault("trading.leverage", 10)
	v.SetDefault("trading.min_liquidity_usd", 10000.0)
	v.SetDefault("trading.max_slippage", 0.05)
	v.SetDefault("trading.funding_buffer_hours", 1)
	v.SetDefault("trading.health_check_interval", 30)
	v.SetDefault("trading.order_timeout", 10)
	v.SetDefault("trading.active_set_size", 50)
	v.SetDefault("trading.quote_currency", "USDT")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "live_trading.log")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 7)

	// GCP defaults
	v.SetDefault("gcp.use_secrets", false)
	v.SetDefault("gcp.project_id", "")

	secretNames := secrets.DefaultSecretNames()
	v.SetDefault("gcp.secret_names.api_key", secretNames.APIKey)
	v.SetDefault("gcp.secret_names.api_secret", secretNames.APISecret)
	v.SetDefault("gcp.secret_names.passphrase", secretNames.Passphrase)
}

func overrideFromEnv(config *Config) {
	if apiKey := os.Getenv("OKX_API_KEY"); apiKey != "" {
		config.OKX.APIKey = apiKey
	}
	if apiSecret := os.Getenv("OKX_API_SECRET"); apiSecret != "" {
		config.OKX.APISecret = apiSecret
	}
	if passphrase := os.Getenv("OKX_API_PASSPHRASE"); passphrase != "" {
		config.OKX.Passphrase = passphrase
	}

	if projectID := os.Getenv("GCP_PROJECT_ID"); projectID != "" {
		config.GCP.ProjectID = projectID
	}
	if useSecrets := os.Getenv("GCP_USE_SECRETS"); useSecrets == "true" {
		config.GCP.UseSecrets = true
	}
}

func loadSecretsFromGCP(ctx context.Context, config *Config, logger *logrus.Logger) error {
	secretManager, err := secrets.NewGCPSecretManager(ctx, config.GCP.ProjectID, logger)
	if err != nil {
		return fmt.Errorf("failed to create secret manager: %w", err)
	}
	defer secretManager.Close()

	// Only load secrets that are not already set
	if config.OKX.APIKey == "" {
		config.OKX.APIKey = secretManager.GetSecretWithDefault(ctx,
			config.GCP.SecretNames.APIKey, "")
	}
	if config.OKX.APISecret == "" {
		config.OKX.APISecret = secretManager.GetSecretWithDefault(ctx,
			config.GCP.SecretNames.APISecret, "")
	}
	if config.OKX.Passphrase == "" {
		config.OKX.Passphrase = secretManager.GetSecretWithDefault(ctx,
			config.GCP.SecretNames.Passphrase, "")
	}

	logger.Info("Successfully loaded secrets from GCP Secret Manager")
	return nil
}
