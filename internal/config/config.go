// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

// Package config loads Sonar's configuration via koanf, layering defaults,
// an optional YAML file, and environment variables in that order.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration struct, grouped by subsystem.
type Config struct {
	Database  DatabaseConfig  `koanf:"database"`
	Storage   StorageConfig   `koanf:"storage"`
	Search    SearchConfig    `koanf:"search"`
	Import    ImportConfig    `koanf:"import"`
	External  ExternalConfig  `koanf:"external"`
	Server    ServerConfig    `koanf:"server"`
	Security  SecurityConfig  `koanf:"security"`
	Logging   LoggingConfig   `koanf:"logging"`
	Events    EventsConfig    `koanf:"events"`
	Audit     AuditConfig     `koanf:"audit"`
}

// DatabaseConfig configures the DuckDB-backed persistence layer.
type DatabaseConfig struct {
	// Path is the DuckDB database file. ":memory:" runs in-process only.
	Path string `koanf:"path"`
	// MaxMemory bounds DuckDB's memory budget, e.g. "2GB".
	MaxMemory string `koanf:"max_memory"`
	// Threads is DuckDB's worker thread count; 0 uses runtime.NumCPU().
	Threads int `koanf:"threads"`
}

// StorageConfig selects and configures the blob backend (spec §4.3, §6).
type StorageConfig struct {
	// Backend is one of "memory" or "filesystem".
	Backend string `koanf:"backend"`
	// FilesystemPath is the root directory when Backend == "filesystem".
	FilesystemPath string `koanf:"filesystem_path"`
}

// SearchConfig selects the search index backend (spec §9 open question:
// built-in only).
type SearchConfig struct {
	// Backend is always "builtin" today; the field exists so a future
	// backend can be selected without an interface change.
	Backend string `koanf:"backend"`
	// IndexPath is where the bleve index is persisted on disk.
	IndexPath string `koanf:"index_path"`
}

// ImportConfig bounds the import pipeline (spec §4.5 step 1-2).
type ImportConfig struct {
	// MaxConcurrent is the bounded-semaphore size. Default 8.
	MaxConcurrent int `koanf:"max_concurrent"`
	// MaxSizeBytes rejects any import whose stream exceeds this size.
	MaxSizeBytes int64 `koanf:"max_size_bytes"`
	// Extractors lists extractor names. The server does not read it:
	// cmd/sonar-server always runs the tag extractor alone.
	Extractors []string `koanf:"extractors"`
}

// ExternalServiceEntry registers one external-service adapter by name with
// its dispatch priority (spec §4.6: adapters are consulted ascending by
// priority).
type ExternalServiceEntry struct {
	Name     string `koanf:"name"`
	Priority int    `koanf:"priority"`
}

// ExternalConfig registers external services, metadata providers, and
// scrobblers (spec §6 "Registrations for extractors, scrobblers, metadata
// providers, external services").
type ExternalConfig struct {
	Services          []ExternalServiceEntry `koanf:"services"`
	MetadataProviders []string               `koanf:"metadata_providers"`
	Scrobblers        []string               `koanf:"scrobblers"`
	// RateLimitPerSecond, TokenCachePath and CircuitBreakerMaxFailures are
	// loaded and defaulted but not read: cmd/sonar-server builds the
	// external registry without per-adapter settings, so adapters run with
	// the registry's default breaker and no rate limit or token cache.
	//
	// RateLimitPerSecond bounds outbound calls per adapter.
	RateLimitPerSecond float64 `koanf:"rate_limit_per_second"`
	// TokenCachePath is the badger directory for adapter token caching.
	TokenCachePath string `koanf:"token_cache_path"`
	// CircuitBreakerMaxFailures trips an adapter's breaker open.
	CircuitBreakerMaxFailures uint32 `koanf:"circuit_breaker_max_failures"`

	// SpotifyClientID/SpotifyClientSecret authenticate the "spotify"
	// metadata provider via app-only client-credentials. Left empty,
	// "spotify" is skipped even if listed in MetadataProviders.
	SpotifyClientID     string `koanf:"spotify_client_id"`
	SpotifyClientSecret string `koanf:"spotify_client_secret"`

	// LastFMAPIKey/LastFMAPISecret/LastFMSessionKey authenticate the
	// "lastfm" scrobbler against a single linked account. Left empty,
	// "lastfm" is skipped even if listed in Scrobblers.
	LastFMAPIKey     string `koanf:"lastfm_api_key"`
	LastFMAPISecret  string `koanf:"lastfm_api_secret"`
	LastFMSessionKey string `koanf:"lastfm_session_key"`
}

// ServerConfig configures the two HTTP surfaces.
type ServerConfig struct {
	Host           string        `koanf:"host"`
	SubsonicPort   int           `koanf:"subsonic_port"`
	RPCPort        int           `koanf:"rpc_port"`
	ReadTimeout    time.Duration `koanf:"read_timeout"`
	WriteTimeout   time.Duration `koanf:"write_timeout"`
	ShutdownGrace  time.Duration `koanf:"shutdown_grace"`
}

// SecurityConfig configures authentication, RBAC, and rate limiting.
type SecurityConfig struct {
	// BcryptCost is range-checked by Validate (4 to 31) but not passed to
	// password hashing, which uses bcrypt.DefaultCost.
	BcryptCost int `koanf:"bcrypt_cost"`
	// LoginTokenTTL is not read: login tokens live only in process memory
	// and stay valid until Logout or a process restart.
	LoginTokenTTL time.Duration `koanf:"login_token_ttl"`
	CasbinModel   string        `koanf:"casbin_model"`
	CasbinPolicy  string        `koanf:"casbin_policy"`
	CORSOrigins   []string      `koanf:"cors_origins"`
	RateLimitReqs int           `koanf:"rate_limit_reqs"`
}

// LoggingConfig configures the zerolog-backed logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// EventsConfig configures the watermill-based CRUD fan-out bus.
type EventsConfig struct {
	// NATSEnabled and NATSURL are not read: the bus backend is chosen at
	// build time, the "nats" build tag selecting NATS JetStream instead of
	// the in-process go-channel pub/sub.
	NATSEnabled bool   `koanf:"nats_enabled"`
	NATSURL     string `koanf:"nats_url"`
}

// AuditConfig configures the audit logger's retention.
type AuditConfig struct {
	RetentionDays int `koanf:"retention_days"`
}

// Validate checks invariants that koanf's unmarshal cannot express.
func (c *Config) Validate() error {
	if c.Storage.Backend != "memory" && c.Storage.Backend != "filesystem" {
		return fmt.Errorf("storage.backend must be \"memory\" or \"filesystem\", got %q", c.Storage.Backend)
	}
	if c.Storage.Backend == "filesystem" && c.Storage.FilesystemPath == "" {
		return fmt.Errorf("storage.filesystem_path is required when storage.backend is \"filesystem\"")
	}
	if c.Import.MaxConcurrent <= 0 {
		return fmt.Errorf("import.max_concurrent must be positive, got %d", c.Import.MaxConcurrent)
	}
	if c.Import.MaxSizeBytes <= 0 {
		return fmt.Errorf("import.max_size_bytes must be positive, got %d", c.Import.MaxSizeBytes)
	}
	if c.Security.BcryptCost < 4 || c.Security.BcryptCost > 31 {
		return fmt.Errorf("security.bcrypt_cost must be in [4,31], got %d", c.Security.BcryptCost)
	}
	return nil
}
