package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists paths searched for an optional YAML config file,
// in priority order. The first one found is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/marginalia/config.yaml",
}

// ConfigPathEnvVar overrides the search list with one explicit path.
const ConfigPathEnvVar = "CONFIG_PATH"

// sliceConfigPaths lists koanf paths that must be parsed as comma-separated
// slices when they arrive from an environment variable.
var sliceConfigPaths = []string{
	"server.allowed_origins",
	"compactor.skip_tables",
}

// Load builds the configuration via the three-layer koanf pipeline:
// defaults -> optional YAML file -> environment variables (highest
// priority), then validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps flat legacy environment variable names (the ones an
// operator would set in a systemd unit or docker-compose file) onto nested
// koanf dot-paths.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	mappings := map[string]string{
		"bind_addr":               "server.bind_addr",
		"port":                    "server.port",
		"rust_env":                "server.environment",
		"app_env":                 "server.environment",
		"allowed_origins":         "server.allowed_origins",
		"allow_non_loopback_bind": "server.allow_non_loopback_bind",
		"store_path":              "store.path",
		"marginalia_db_path":      "store.path",
		"duckdb_path":             "store.path",
		"lancedb_uri":             "store.path", // legacy name for the store root, kept for deployment compatibility
		"store_max_memory":        "store.max_memory",
		"store_threads":           "store.threads",
		"compactor_period":        "compactor.period",
		"compactor_skip_tables":   "compactor.skip_tables",
		"embedding_provider":      "embedding.provider",
		"embedding_endpoint":      "embedding.endpoint",
		"embedding_api_key":       "embedding.api_key",
		"embedding_timeout":       "embedding.timeout",
		"embedding_rate_limit":    "embedding.rate_limit_per_second",
		"dedupe_window_seconds":   "runtime.dedupe_window_seconds",
		"trend_default_days":      "runtime.trend_default_days",
		"trend_max_days":          "runtime.trend_max_days",
		"log_level":               "logging.level",
		"log_format":              "logging.format",
		"log_caller":              "logging.caller",
		"cache_ttl":               "cache.ttl",
		"cache_capacity":          "cache.capacity",
	}

	if mapped, ok := mappings[key]; ok {
		return mapped
	}

	// Fall back to a structural guess: FOO_BAR_BAZ -> foo.bar_baz is too
	// ambiguous to guess safely, so unmapped keys are left untouched and
	// simply won't shadow a known field.
	return key
}
