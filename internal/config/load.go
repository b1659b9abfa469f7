package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. CONCEPTS_SERVER_PORT.
const EnvPrefix = "CONCEPTS"

// ErrMissingSetting is returned when a driver-specific setting is absent.
var ErrMissingSetting = errors.New("missing required setting")

// Load configuration from environment variables and an optional config.yaml
// in the working directory. Environment variables take precedence over
// values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return decode(v)
}

// LoadFile loads configuration from the given file, still overlaid by environment variables.
func LoadFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// setDefaults registers every key so AutomaticEnv can resolve it even when no
// config file mentions it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.url", "")
	v.SetDefault("database.supabase_url", "")
	v.SetDefault("database.supabase_key", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)

	v.SetDefault("layout.debounce", 500*time.Millisecond)
	v.SetDefault("layout.origin_x", 400.0)
	v.SetDefault("layout.origin_y", 300.0)
	v.SetDefault("layout.root_radius", 150.0)
	v.SetDefault("layout.initial_radius", 100.0)
	v.SetDefault("layout.ring_step", 150.0)
	v.SetDefault("layout.sector_narrowing", 0.8)

	v.SetDefault("store.write_concurrency", 8)
	v.SetDefault("store.breaker.enabled", true)
	v.SetDefault("store.breaker.max_requests", 1)
	v.SetDefault("store.breaker.interval", time.Minute)
	v.SetDefault("store.breaker.timeout", 30*time.Second)
	v.SetDefault("store.breaker.failure_threshold", 5)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	if err := cfg.validateDriver(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validateDriver checks the settings each store driver depends on.
func (c *Config) validateDriver() error {
	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("%w: database.url is required for the postgres driver", ErrMissingSetting)
		}
	case DriverSupabase:
		if c.Database.SupabaseURL == "" || c.Database.SupabaseKey == "" {
			return fmt.Errorf(
				"%w: database.supabase_url and database.supabase_key are required for the supabase driver",
				ErrMissingSetting,
			)
		}
	}
	return nil
}
