package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Views     ViewsConfig     `mapstructure:"views"`
	Store     StoreConfig     `mapstructure:"store"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	BasePath     string `mapstructure:"base_path"`  // deployment base URL of the shell
	RateLimit    int    `mapstructure:"rate_limit"` // requests per minute per IP
}

// ViewsConfig selects where view modules are fetched from and how.
type ViewsConfig struct {
	Source        string        `mapstructure:"source"` // "fs" or "http"
	Dir           string        `mapstructure:"dir"`
	BaseURL       string        `mapstructure:"base_url"`
	LoadTimeout   time.Duration `mapstructure:"load_timeout"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
	CacheTTL      int           `mapstructure:"cache_ttl"`
	Preload       bool          `mapstructure:"preload"`
}

// StoreConfig controls the coordinate store's start-up value.
// Both fields start at zero unless InitialAbsent is set.
type StoreConfig struct {
	InitialAbsent bool `mapstructure:"initial_absent"`
}

type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
}

type ValkeyConfig struct {
	Addr    string `mapstructure:"addr"`
	Enabled bool   `mapstructure:"enabled"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.base_path", "/")
	v.SetDefault("server.rate_limit", 120)
	v.SetDefault("views.source", "fs")
	v.SetDefault("views.dir", "./web/views")
	v.SetDefault("views.base_url", "")
	v.SetDefault("views.load_timeout", "15s")
	v.SetDefault("views.retry_attempts", 3)
	v.SetDefault("views.retry_interval", "200ms")
	v.SetDefault("views.cache_ttl", 3600)
	v.SetDefault("views.preload", false)
	v.SetDefault("store.initial_absent", false)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.enabled", true)
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.enabled", true)
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: GEOPANEL_SERVER_BASE_PATH → server.base_path
	v.SetEnvPrefix("GEOPANEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Server.BasePath = NormalizeBasePath(cfg.Server.BasePath)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// NormalizeBasePath returns base with a leading slash and no trailing slash,
// or "" for the root.
func NormalizeBasePath(base string) string {
	base = strings.TrimSpace(base)
	base = strings.TrimRight(base, "/")
	if base == "" {
		return ""
	}
	if !strings.HasPrefix(base, "/") {
		base = "/" + base
	}
	return base
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Server.RateLimit <= 0 {
		errs = append(errs, "server.rate_limit must be positive")
	}
	switch c.Views.Source {
	case "fs":
		if c.Views.Dir == "" {
			errs = append(errs, "views.dir is required when views.source is fs")
		}
	case "http":
		if c.Views.BaseURL == "" {
			errs = append(errs, "views.base_url is required when views.source is http")
		}
	default:
		errs = append(errs, fmt.Sprintf("views.source must be fs or http, got %q", c.Views.Source))
	}
	if c.Views.LoadTimeout <= 0 {
		errs = append(errs, "views.load_timeout must be positive")
	}
	if c.Views.RetryAttempts <= 0 {
		errs = append(errs, "views.retry_attempts must be positive")
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Enabled && c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
