package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Search  SearchConfig  `yaml:"search" mapstructure:"search"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Display DisplayConfig `yaml:"display" mapstructure:"display"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// SearchConfig configures the upstream medicine search API.
type SearchConfig struct {
	BaseURL         string  `yaml:"base_url" mapstructure:"base_url"`
	PharmacyIDs     []int   `yaml:"pharmacy_ids" mapstructure:"pharmacy_ids"`
	TimeoutSecs     int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec" mapstructure:"rate_limit_per_sec"`
	MaxAttempts     int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	MaxConcurrent   int     `yaml:"max_concurrent" mapstructure:"max_concurrent"`

	// BreakerThreshold is the number of consecutive failed searches before
	// the upstream is skipped for BreakerCooldownSecs. Zero disables it.
	BreakerThreshold    int `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldownSecs int `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
}

// Timeout returns the per-request timeout as a duration.
func (c SearchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// StoreConfig configures the snapshot backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	// MaxConns and MinConns size the postgres connection pool.
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port             int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins   []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	SessionIdleMins  int      `yaml:"session_idle_mins" mapstructure:"session_idle_mins"`
	SweepIntervalSec int      `yaml:"sweep_interval_secs" mapstructure:"sweep_interval_secs"`
}

// DisplayConfig controls how prices are rendered.
type DisplayConfig struct {
	CurrencySymbol string `yaml:"currency_symbol" mapstructure:"currency_symbol"`
	Locale         string `yaml:"locale" mapstructure:"locale"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("MEDSEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("search.base_url", "https://backend.cappsule.co.in")
	v.SetDefault("search.pharmacy_ids", []int{1, 2, 3})
	v.SetDefault("search.timeout_secs", 15)
	v.SetDefault("search.rate_limit_per_sec", 0)
	v.SetDefault("search.max_attempts", 1)
	v.SetDefault("search.max_concurrent", 4)
	v.SetDefault("search.breaker_threshold", 0)
	v.SetDefault("search.breaker_cooldown_secs", 30)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "medsearch.db")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.session_idle_mins", 30)
	v.SetDefault("server.sweep_interval_secs", 60)
	v.SetDefault("display.currency_symbol", "₹")
	v.SetDefault("display.locale", "en-IN")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the settings required by a command mode are usable.
// Supported modes are "search", "serve" and "snapshots".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "search":
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "snapshots":
		if c.Store.Driver == "none" {
			errs = append(errs, "store.driver must not be none")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Search.BaseURL == "" {
		errs = append(errs, "search.base_url is required")
	}
	if len(c.Search.PharmacyIDs) == 0 {
		errs = append(errs, "search.pharmacy_ids must not be empty")
	}
	if c.Search.MaxAttempts < 1 || c.Search.MaxAttempts > 10 {
		errs = append(errs, "search.max_attempts must be between 1 and 10")
	}
	if c.Search.MaxConcurrent < 1 || c.Search.MaxConcurrent > 32 {
		errs = append(errs, "search.max_concurrent must be between 1 and 32")
	}
	if c.Search.BreakerThreshold < 0 {
		errs = append(errs, "search.breaker_threshold must be >= 0")
	}
	if c.Search.RateLimitPerSec < 0 {
		errs = append(errs, "search.rate_limit_per_sec must be >= 0")
	}

	switch c.Store.Driver {
	case "none":
	case "sqlite", "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	default:
		errs = append(errs, "store.driver must be one of sqlite, postgres, none")
	}
	if c.Store.MaxConns < 0 || c.Store.MinConns < 0 {
		errs = append(errs, "store.max_conns and store.min_conns must be >= 0")
	} else if c.Store.MaxConns > 0 && c.Store.MinConns > c.Store.MaxConns {
		errs = append(errs, "store.min_conns must not exceed store.max_conns")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: invalid: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
