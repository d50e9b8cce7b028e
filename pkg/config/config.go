// Package config implements the startup configuration surface from
// SPEC_FULL §6 (A3): fixed arena/index capacities plus per-(ticker,
// client) risk limits and per-ticker strategy configuration, loaded with
// viper and validated with struct tags before anything downstream trusts
// it.
package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/matchcore/lob/internal/common"
)

// Config sizes every fixed-capacity arena and index in the system and
// carries the control-plane data (risk limits, strategy parameters) that
// ships alongside it. There is no dynamic resizing: every *Capacity field
// is a hard ceiling enforced by the pools and indices it configures.
type Config struct {
	MaxTickers     int `mapstructure:"max_tickers" validate:"required,gt=0"`
	MaxClients     int `mapstructure:"max_clients" validate:"required,gt=0"`
	MaxOrderIDs    int `mapstructure:"max_order_ids" validate:"required,gt=0"`
	MaxPriceLevels int `mapstructure:"max_price_levels" validate:"required,gt=0"`

	OrderPoolCapacity int `mapstructure:"order_pool_capacity" validate:"required,gt=0"`
	LevelPoolCapacity int `mapstructure:"level_pool_capacity" validate:"required,gt=0"`

	// RiskConfigs is keyed by ticker then client. A (ticker, client) pair
	// absent from this map is accepted unconditionally by risk.Gate, per
	// the documented "unconfigured pair" behaviour.
	RiskConfigs map[common.TickerId]map[common.ClientId]common.RiskConfig `mapstructure:"risk"`

	// StrategyConfigs is keyed by ticker; opaque to the core, forwarded to
	// whichever strategy runs against that instrument.
	StrategyConfigs map[common.TickerId]common.StrategyConfig `mapstructure:"strategy"`

	Throttle struct {
		PerClientRPS     float64 `mapstructure:"per_client_rps" validate:"gte=0"`
		PerClientBurst   int     `mapstructure:"per_client_burst" validate:"gte=0"`
		PerInstrumentRPS int64   `mapstructure:"per_instrument_rps" validate:"gte=0"`
	} `mapstructure:"throttle"`

	Logging struct {
		Development bool   `mapstructure:"development"`
		Level       string `mapstructure:"level"`
	} `mapstructure:"logging"`

	Metrics struct {
		ListenAddr string `mapstructure:"listen_addr"`
	} `mapstructure:"metrics"`
}

var validate = validator.New()

func setDefaults(v *viper.Viper) {
	v.SetDefault("max_tickers", 64)
	v.SetDefault("max_clients", 1024)
	v.SetDefault("max_order_ids", 1<<20)
	v.SetDefault("max_price_levels", 8192)
	v.SetDefault("order_pool_capacity", 1<<16)
	v.SetDefault("level_pool_capacity", 8192)
	v.SetDefault("throttle.per_client_rps", 500.0)
	v.SetDefault("throttle.per_client_burst", 50)
	v.SetDefault("throttle.per_instrument_rps", 20000)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("metrics.listen_addr", ":9090")
}

// Load reads configuration from configPath (a directory to search for a
// "config.yaml"), overlaying MATCHCORE_-prefixed environment variables,
// and validates the result. An absent config file is not an error —
// defaults plus environment variables are a complete configuration.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/matchcore")

	v.SetEnvPrefix("MATCHCORE")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: invalid: %w", err)
	}

	return cfg, nil
}

// NewLogger builds the process-wide logger from the Logging section. Only
// Logging.Development is read; Logging.Level is not applied.
func NewLogger(cfg *Config) (*zap.Logger, error) {
	return common.NewLogger("matchcore", cfg.Logging.Development)
}

// RiskConfigFor returns the configured limits for (ticker, client),
// mirroring the "unconfigured pair accepted" semantics risk.Gate applies
// at runtime.
func (c *Config) RiskConfigFor(ticker common.TickerId, client common.ClientId) (common.RiskConfig, bool) {
	byClient, ok := c.RiskConfigs[ticker]
	if !ok {
		return common.RiskConfig{}, false
	}
	rc, ok := byClient[client]
	return rc, ok
}
