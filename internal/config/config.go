package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Layout   LayoutConfig   `mapstructure:"layout" validate:"required"`
	Store    StoreConfig    `mapstructure:"store" validate:"required"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// Supported concept store drivers.
const (
	DriverPostgres = "postgres"
	DriverSupabase = "supabase"
	DriverMemory   = "memory"
)

// DatabaseConfig selects and configures the concept store backend.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver" validate:"required,oneof=postgres supabase memory"`
	URL             string        `mapstructure:"url" validate:"omitempty,url"`
	SupabaseURL     string        `mapstructure:"supabase_url" validate:"omitempty,url"`
	SupabaseKey     string        `mapstructure:"supabase_key"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"gte=0"`
}

// LayoutConfig tunes the radial layout and the position save debounce.
type LayoutConfig struct {
	Debounce        time.Duration `mapstructure:"debounce" validate:"gt=0"`
	OriginX         float64       `mapstructure:"origin_x"`
	OriginY         float64       `mapstructure:"origin_y"`
	RootRadius      float64       `mapstructure:"root_radius" validate:"gt=0"`
	InitialRadius   float64       `mapstructure:"initial_radius" validate:"gt=0"`
	RingStep        float64       `mapstructure:"ring_step" validate:"gt=0"`
	SectorNarrowing float64       `mapstructure:"sector_narrowing" validate:"gt=0,lte=1"`
}

// StoreConfig covers write fan-out and the circuit breaker around the store.
type StoreConfig struct {
	WriteConcurrency int           `mapstructure:"write_concurrency" validate:"gt=0"`
	Breaker          BreakerConfig `mapstructure:"breaker"`
}

// BreakerConfig mirrors gobreaker.Settings.
type BreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	MaxRequests      uint32        `mapstructure:"max_requests" validate:"gte=1"`
	Interval         time.Duration `mapstructure:"interval" validate:"gte=0"`
	Timeout          time.Duration `mapstructure:"timeout" validate:"gt=0"`
	FailureThreshold uint32        `mapstructure:"failure_threshold" validate:"gte=1"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path" validate:"omitempty,startswith=/"`
}
