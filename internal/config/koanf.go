// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in order.
// The first file found is used.
var DefaultConfigPaths = []string{
	"sonar.yaml",
	"sonar.yml",
	"/etc/sonar/sonar.yaml",
	"/etc/sonar/sonar.yml",
}

// ConfigPathEnvVar overrides the config file search with an explicit path.
const ConfigPathEnvVar = "SONAR_CONFIG_PATH"

// defaultConfig returns sensible defaults, applied before the file and
// environment layers.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:      "/data/sonar.duckdb",
			MaxMemory: "2GB",
			Threads:   0,
		},
		Storage: StorageConfig{
			Backend:        "filesystem",
			FilesystemPath: "/data/blobs",
		},
		Search: SearchConfig{
			Backend:   "builtin",
			IndexPath: "/data/search",
		},
		Import: ImportConfig{
			MaxConcurrent: 8,
			MaxSizeBytes:  1 << 30, // 1GiB
			Extractors:    []string{"tag"},
		},
		External: ExternalConfig{
			Services:                  nil,
			MetadataProviders:         []string{"spotify"},
			Scrobblers:                []string{"lastfm"},
			RateLimitPerSecond:        5,
			TokenCachePath:            "/data/external-cache",
			CircuitBreakerMaxFailures: 5,
			// Credentials are left empty by default; the respective
			// provider/scrobbler is skipped at startup until an operator
			// supplies them via the config file or SONAR_ env vars.
			SpotifyClientID:     "",
			SpotifyClientSecret: "",
			LastFMAPIKey:        "",
			LastFMAPISecret:     "",
			LastFMSessionKey:    "",
		},
		Server: ServerConfig{
			Host:          "0.0.0.0",
			SubsonicPort:  4533,
			RPCPort:       4534,
			ReadTimeout:   30 * time.Second,
			WriteTimeout:  30 * time.Second,
			ShutdownGrace: 10 * time.Second,
		},
		Security: SecurityConfig{
			BcryptCost:    12,
			LoginTokenTTL: 30 * 24 * time.Hour,
			CasbinModel:   "/etc/sonar/rbac_model.conf",
			CasbinPolicy:  "/etc/sonar/rbac_policy.csv",
			CORSOrigins:   []string{"*"},
			RateLimitReqs: 200,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Events: EventsConfig{
			NATSEnabled: false,
			NATSURL:     "nats://127.0.0.1:4222",
		},
		Audit: AuditConfig{
			RetentionDays: 90,
		},
	}
}

// Load reads configuration using koanf with layered sources:
//  1. Defaults: built-in sensible defaults
//  2. Config file: optional YAML file, if found
//  3. Environment variables: override anything above
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

	envProvider := env.Provider("SONAR_", ".", envTransformFunc)
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
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

var sliceConfigPaths = []string{
	"import.extractors",
	"external.metadata_providers",
	"external.scrobblers",
	"security.cors_origins",
}

// processSliceFields converts comma-separated env values into slices for
// fields koanf's struct unmarshaling otherwise expects as a single string.
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
			if p = strings.TrimSpace(p); p != "" {
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

// envMappings maps SONAR_-prefixed environment variable names to koanf
// config paths. An explicit table (rather than a blind underscore-to-dot
// replace) is required because leaf field names are themselves
// underscore-separated, e.g. SONAR_DATABASE_MAX_MEMORY must become
// "database.max_memory", not "database.max.memory".
var envMappings = map[string]string{
	"database_path":        "database.path",
	"database_max_memory":  "database.max_memory",
	"database_threads":     "database.threads",
	"storage_backend":      "storage.backend",
	"storage_filesystem_path": "storage.filesystem_path",
	"search_backend":       "search.backend",
	"search_index_path":    "search.index_path",
	"import_max_concurrent": "import.max_concurrent",
	"import_max_size_bytes": "import.max_size_bytes",
	"import_extractors":    "import.extractors",
	"external_metadata_providers":          "external.metadata_providers",
	"external_scrobblers":                  "external.scrobblers",
	"external_rate_limit_per_second":       "external.rate_limit_per_second",
	"external_token_cache_path":            "external.token_cache_path",
	"external_circuit_breaker_max_failures": "external.circuit_breaker_max_failures",
	"external_spotify_client_id":            "external.spotify_client_id",
	"external_spotify_client_secret":        "external.spotify_client_secret",
	"external_lastfm_api_key":               "external.lastfm_api_key",
	"external_lastfm_api_secret":            "external.lastfm_api_secret",
	"external_lastfm_session_key":           "external.lastfm_session_key",
	"server_host":           "server.host",
	"server_subsonic_port":  "server.subsonic_port",
	"server_rpc_port":       "server.rpc_port",
	"server_read_timeout":   "server.read_timeout",
	"server_write_timeout":  "server.write_timeout",
	"server_shutdown_grace": "server.shutdown_grace",
	"security_bcrypt_cost":      "security.bcrypt_cost",
	"security_login_token_ttl":  "security.login_token_ttl",
	"security_casbin_model":     "security.casbin_model",
	"security_casbin_policy":    "security.casbin_policy",
	"security_cors_origins":     "security.cors_origins",
	"security_rate_limit_reqs":  "security.rate_limit_reqs",
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
	"events_nats_enabled": "events.nats_enabled",
	"events_nats_url":     "events.nats_url",
	"audit_retention_days": "audit.retention_days",
}

// envTransformFunc maps SONAR_-prefixed environment variable names to
// koanf config paths via envMappings, e.g. SONAR_DATABASE_PATH ->
// database.path. Unmapped keys are skipped rather than guessed.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, "SONAR_"))
	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
