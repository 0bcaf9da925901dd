package config

import (
	"strings"
	"time"

	"github.com/marmos91/putd/internal/transfer"
	"github.com/marmos91/putd/pkg/adapter/put"
	"github.com/marmos91/putd/pkg/diag"
)

const (
	DefaultPutPort      = 13000
	DefaultStorageType  = "filesystem"
	DefaultStoragePath  = "server_files"
	DefaultIdleTimeout  = 5 * time.Minute
	DefaultChunkTimeout = 30 * time.Second
	DefaultWriteTimeout = 30 * time.Second
	DefaultMetricsPort  = 9090
	DefaultHealthPort   = 9091
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
//   - Adapter timeouts are left alone: zero disables them, and Load fills
//     the documented defaults before this runs
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyStorageDefaults(&cfg.Storage)
	applyJournalDefaults(&cfg.Journal)
	applyAdaptersDefaults(&cfg.Adapters)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyServerDefaults sets server defaults.
func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = DefaultMetricsPort
	}
	if cfg.Health.Port == 0 {
		cfg.Health.Port = DefaultHealthPort
	}
	if cfg.Health.CheckInterval == 0 {
		cfg.Health.CheckInterval = 10 * time.Second
	}
}

// applyStorageDefaults sets storage defaults.
func applyStorageDefaults(cfg *StorageConfig) {
	if cfg.Type == "" {
		cfg.Type = DefaultStorageType
	}

	if cfg.Filesystem == nil {
		cfg.Filesystem = make(map[string]any)
	}
	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}

	// Apply defaults for all store types (for config file generation)
	if _, ok := cfg.Filesystem["path"]; !ok {
		cfg.Filesystem["path"] = DefaultStoragePath
	}
	if _, ok := cfg.Memory["max_size_bytes"]; !ok {
		cfg.Memory["max_size_bytes"] = uint64(1073741824) // 1GB
	}
}

// applyJournalDefaults sets journal defaults.
func applyJournalDefaults(cfg *JournalConfig) {
	if cfg.Type == "" {
		cfg.Type = "none"
	}

	if cfg.CSV == nil {
		cfg.CSV = make(map[string]any)
	}
	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}

	if _, ok := cfg.CSV["path"]; !ok {
		cfg.CSV["path"] = "server_log.csv"
	}
	if _, ok := cfg.Badger["db_path"]; !ok {
		cfg.Badger["db_path"] = "putd-journal"
	}
	if cfg.Samples.Dir == "" {
		cfg.Samples.Dir = "tcp_info"
	}
}

// applyAdaptersDefaults sets adapter defaults.
func applyAdaptersDefaults(cfg *AdaptersConfig) {
	// An unconfigured adapter section (port 0) means "use the PUT adapter".
	if !cfg.Put.Enabled && cfg.Put.Port == 0 {
		cfg.Put.Enabled = true
	}

	applyPutDefaults(&cfg.Put)
}

// applyPutDefaults sets PUT adapter defaults.
func applyPutDefaults(cfg *put.PutConfig) {
	if cfg.Port == 0 {
		cfg.Port = DefaultPutPort
	}

	// MaxConnections defaults to 0 (unlimited)
	// MaxUploadSize defaults to 0 (unlimited)

	if cfg.BufferSize == 0 {
		cfg.BufferSize = transfer.DefaultBufferSize
	}

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}

	if cfg.MetricsLogInterval == 0 {
		cfg.MetricsLogInterval = 5 * time.Minute
	}

	if cfg.MaxSamples == 0 {
		cfg.MaxSamples = diag.DefaultMaxSamples
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Storage: StorageConfig{
			Filesystem: make(map[string]any),
			Memory:     make(map[string]any),
		},
		Adapters: AdaptersConfig{
			Put: put.PutConfig{
				Enabled: true,
				Timeouts: put.TimeoutsConfig{
					Idle:  DefaultIdleTimeout,
					Chunk: DefaultChunkTimeout,
					Write: DefaultWriteTimeout,
				},
			},
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
