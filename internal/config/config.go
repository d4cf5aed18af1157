// Package config loads marginalia's configuration through a layered koanf
// pipeline: built-in defaults, an optional YAML file, then environment
// variables (highest priority).
package config

import "time"

// StoreConfig configures the DuckDB-backed columnar store.
type StoreConfig struct {
	Path                   string `koanf:"path" validate:"required"`
	MaxMemory              string `koanf:"max_memory"`
	Threads                int    `koanf:"threads"`
	PreserveInsertionOrder bool   `koanf:"preserve_insertion_order"`
}

// ServerConfig configures the HTTP listener and CORS policy.
type ServerConfig struct {
	BindAddr             string        `koanf:"bind_addr"`
	Port                 int           `koanf:"port" validate:"min=1,max=65535"`
	Environment          string        `koanf:"environment" validate:"oneof=development production"`
	AllowedOrigins       []string      `koanf:"allowed_origins"`
	ReadTimeout          time.Duration `koanf:"read_timeout"`
	WriteTimeout         time.Duration `koanf:"write_timeout"`
	AllowNonLoopbackBind bool          `koanf:"allow_non_loopback_bind"`
}

// CompactorConfig configures the background optimize/prune task.
type CompactorConfig struct {
	Period     time.Duration `koanf:"period"`
	SkipTables []string      `koanf:"skip_tables"`
}

// EmbeddingConfig configures the pluggable embedding collaborator.
type EmbeddingConfig struct {
	Provider           string        `koanf:"provider" validate:"oneof=stub http"`
	Endpoint           string        `koanf:"endpoint"`
	APIKey             string        `koanf:"api_key"`
	Timeout            time.Duration `koanf:"timeout"`
	RateLimitPerSecond float64       `koanf:"rate_limit_per_second" validate:"gt=0"`
	BreakerMaxFailures uint32        `koanf:"breaker_max_failures"`
	BreakerOpenTimeout time.Duration `koanf:"breaker_open_timeout"`
}

// RuntimeDefaults seeds the atomically-swapped runtime config at startup.
// The ltefield rule carries the cross-field invariant: a patch may move
// either bound, but never leave the default above the max.
type RuntimeDefaults struct {
	DedupeWindowSeconds int `koanf:"dedupe_window_seconds" validate:"min=1,max=3600"`
	TrendDefaultDays    int `koanf:"trend_default_days" validate:"min=1,max=365,ltefield=TrendMaxDays"`
	TrendMaxDays        int `koanf:"trend_max_days" validate:"min=1,max=365"`
}

// LoggingConfig configures the global zerolog logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// CacheConfig configures the rendered-HTML / snippet cache.
type CacheConfig struct {
	TTL      time.Duration `koanf:"ttl"`
	Capacity int           `koanf:"capacity"`
}

// Config is the root configuration object.
type Config struct {
	Store     StoreConfig     `koanf:"store"`
	Server    ServerConfig    `koanf:"server"`
	Compactor CompactorConfig `koanf:"compactor"`
	Embedding EmbeddingConfig `koanf:"embedding"`
	Runtime   RuntimeDefaults `koanf:"runtime"`
	Logging   LoggingConfig   `koanf:"logging"`
	Cache     CacheConfig     `koanf:"cache"`
}

// defaultConfig returns hard-coded defaults; these are the first layer
// loaded by LoadWithKoanf, later overridden by file and env layers.
func defaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Path:                   "./data/marginalia.duckdb",
			MaxMemory:              "2GB",
			Threads:                0, // 0 = runtime.NumCPU()
			PreserveInsertionOrder: true,
		},
		Server: ServerConfig{
			BindAddr:       "127.0.0.1",
			Port:           8080,
			Environment:    "development",
			AllowedOrigins: []string{"http://localhost:5173"},
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   30 * time.Second,
		},
		Compactor: CompactorConfig{
			Period:     24 * time.Hour,
			SkipTables: []string{},
		},
		Embedding: EmbeddingConfig{
			Provider:           "stub",
			Timeout:            10 * time.Second,
			RateLimitPerSecond: 5,
			BreakerMaxFailures: 5,
			BreakerOpenTimeout: 30 * time.Second,
		},
		Runtime: RuntimeDefaults{
			DedupeWindowSeconds: 60,
			TrendDefaultDays:    30,
			TrendMaxDays:        180,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Cache: CacheConfig{
			TTL:      10 * time.Minute,
			Capacity: 2000,
		},
	}
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}
