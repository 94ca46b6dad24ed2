// Package config loads process settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

// Config holds every setting of the tokenwatch process.
type Config struct {
	TelegramToken string `mapstructure:"TELEGRAM_TOKEN"`
	TokenAddress  string `mapstructure:"ERC20_TOKEN_ADDRESS"`
	RPCURL        string `mapstructure:"ETH_RPC_URL"`

	StateBackend string `mapstructure:"STATE_BACKEND"`
	StateFile    string `mapstructure:"STATE_FILE"`
	RedisURL     string `mapstructure:"REDIS_URL"`
	RedisKey     string `mapstructure:"REDIS_KEY"`

	AMQPURL      string `mapstructure:"AMQP_URL"`
	AMQPExchange string `mapstructure:"AMQP_EXCHANGE"`

	PollInterval     time.Duration `mapstructure:"POLL_INTERVAL"`
	FirstPollDelay   time.Duration `mapstructure:"FIRST_POLL_DELAY"`
	RPCTimeout       time.Duration `mapstructure:"RPC_TIMEOUT"`
	RPCRetryAttempts int           `mapstructure:"RPC_RETRY_ATTEMPTS"`
	MaxBlockRange    uint64        `mapstructure:"MAX_BLOCK_RANGE"`

	DispatchTimeout   time.Duration `mapstructure:"DISPATCH_TIMEOUT"`
	DispatchWorkers   int           `mapstructure:"DISPATCH_WORKERS"`
	TokenDecimals     uint8         `mapstructure:"TOKEN_DECIMALS"`
	TelegramPerSecond float64       `mapstructure:"TELEGRAM_MESSAGES_PER_SECOND"`

	// DryRun logs alerts instead of delivering them.
	DryRun bool `mapstructure:"DRY_RUN"`

	AdminAddr string `mapstructure:"ADMIN_ADDR"`
	LogLevel  string `mapstructure:"LOG_LEVEL"`
}

var defaults = map[string]any{
	"STATE_BACKEND":                "file",
	"STATE_FILE":                   "/data/config.json",
	"REDIS_KEY":                    "tokenwatch:state",
	"AMQP_EXCHANGE":                "tokenwatch.alerts",
	"POLL_INTERVAL":                "30s",
	"FIRST_POLL_DELAY":             "3s",
	"RPC_TIMEOUT":                  "10s",
	"RPC_RETRY_ATTEMPTS":           3,
	"MAX_BLOCK_RANGE":              0,
	"DISPATCH_TIMEOUT":             "10s",
	"DISPATCH_WORKERS":             8,
	"TOKEN_DECIMALS":               18,
	"TELEGRAM_MESSAGES_PER_SECOND": 25,
	"LOG_LEVEL":                    "info",
	"DRY_RUN":                      false,
}

var keys = []string{
	"TELEGRAM_TOKEN",
	"ERC20_TOKEN_ADDRESS",
	"ETH_RPC_URL",
	"REDIS_URL",
	"AMQP_URL",
	"ADMIN_ADDR",
}

// Load reads the configuration from environment variables, falling back to
// a .env file in dir and then to defaults.
func Load(dir string) (Config, error) {
	v := viper.New()
	v.AddConfigPath(dir)
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("config: read .env: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	c.TokenAddress = strings.TrimSpace(c.TokenAddress)
	if !common.IsHexAddress(c.TokenAddress) {
		return fmt.Errorf("config: ERC20_TOKEN_ADDRESS %q is not an address", c.TokenAddress)
	}
	if c.RPCURL == "" {
		return errors.New("config: ETH_RPC_URL is required")
	}
	if c.TelegramToken == "" && c.AMQPURL == "" && !c.DryRun {
		return errors.New("config: TELEGRAM_TOKEN or AMQP_URL is required unless DRY_RUN is set")
	}

	switch c.StateBackend {
	case "file":
		if c.StateFile == "" {
			return errors.New("config: STATE_FILE is required for the file backend")
		}
	case "redis":
		if c.RedisURL == "" {
			return errors.New("config: REDIS_URL is required for the redis backend")
		}
	default:
		return fmt.Errorf("config: unknown STATE_BACKEND %q", c.StateBackend)
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("config: POLL_INTERVAL must be positive, got %s", c.PollInterval)
	}
	if c.DispatchWorkers < 1 {
		return fmt.Errorf("config: DISPATCH_WORKERS must be at least 1, got %d", c.DispatchWorkers)
	}
	if c.RPCRetryAttempts < 0 {
		return fmt.Errorf("config: RPC_RETRY_ATTEMPTS must not be negative, got %d", c.RPCRetryAttempts)
	}
	return nil
}

// Token returns the parsed token contract address.
func (c Config) Token() common.Address {
	return common.HexToAddress(c.TokenAddress)
}

// Level maps LOG_LEVEL to a slog level, defaulting to info.
func (c Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
