package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/putd/pkg/adapter/put"
	"github.com/spf13/viper"
)

// Config represents the complete putd configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (PUTD_*)
//  2. Configuration file (YAML or TOML)
//  3. Default values (lowest priority)
//
// Store Configuration Pattern:
// Each storage and journal backend defines its own configuration type. The
// Config struct carries type-specific sections (e.g. storage.filesystem,
// storage.s3) and only the section matching the selected type is used.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Server contains server-wide settings
	Server ServerConfig `mapstructure:"server"`

	// Storage selects and configures the storage root
	Storage StorageConfig `mapstructure:"storage"`

	// Journal selects where transfer records go
	Journal JournalConfig `mapstructure:"journal"`

	// Adapters contains protocol adapter configurations
	Adapters AdaptersConfig `mapstructure:"adapters"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required"`
}

// ServerConfig contains server-wide settings.
type ServerConfig struct {
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`

	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Health configures the gRPC health service
	Health HealthConfig `mapstructure:"health"`
}

// MetricsConfig configures the Prometheus HTTP endpoint.
type MetricsConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	BindAddress string `mapstructure:"bind_address"`
	Port        int    `mapstructure:"port" validate:"min=0,max=65535"`
}

// HealthConfig configures the gRPC health service.
type HealthConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	BindAddress string `mapstructure:"bind_address"`
	Port        int    `mapstructure:"port" validate:"min=0,max=65535"`

	// CheckInterval is the time between storage healthchecks
	CheckInterval time.Duration `mapstructure:"check_interval" validate:"min=0"`
}

// StorageConfig specifies the storage root.
//
// The Type field determines which store implementation is used.
type StorageConfig struct {
	// Type specifies which store implementation to use
	// Valid values: filesystem, memory, s3
	Type string `mapstructure:"type" validate:"required,oneof=filesystem memory s3"`

	// Filesystem contains filesystem-specific configuration
	// Only used when Type = "filesystem"
	Filesystem map[string]any `mapstructure:"filesystem"`

	// Memory contains memory-specific configuration
	// Only used when Type = "memory"
	Memory map[string]any `mapstructure:"memory"`

	// S3 contains S3-specific configuration
	// Only used when Type = "s3"
	S3 map[string]any `mapstructure:"s3"`
}

// JournalConfig specifies the transfer journal.
type JournalConfig struct {
	// Type specifies which journal to keep
	// Valid values: none, csv, badger
	Type string `mapstructure:"type" validate:"required,oneof=none csv badger"`

	// CSV contains CSV-specific configuration
	// Only used when Type = "csv"
	CSV map[string]any `mapstructure:"csv"`

	// Badger contains BadgerDB-specific configuration
	// Only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger"`

	// Samples dumps per-transfer TCP_INFO readings next to the journal
	Samples SamplesConfig `mapstructure:"samples"`
}

// SamplesConfig configures the TCP_INFO sample dump.
type SamplesConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

// AdaptersConfig contains all protocol adapter configurations.
type AdaptersConfig struct {
	// Put contains PUT protocol configuration.
	// Uses the put.PutConfig type directly to avoid duplication.
	Put put.PutConfig `mapstructure:"put"`
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables, defaults and
// config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use PUTD_ prefix and underscores
	// Example: PUTD_ADAPTERS_PUT_PORT=14000
	v.SetEnvPrefix("PUTD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setViperDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/putd/config.{yaml,toml}
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// setViperDefaults registers the defaults that must survive an explicit zero
// in the file (timeouts, where 0 disables) and makes the common keys visible
// to environment overrides.
func setViperDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "INFO")
	v.SetDefault("storage.type", DefaultStorageType)
	v.SetDefault("journal.type", "none")
	v.SetDefault("adapters.put.enabled", true)
	v.SetDefault("adapters.put.port", DefaultPutPort)
	v.SetDefault("adapters.put.timeouts.idle", DefaultIdleTimeout)
	v.SetDefault("adapters.put.timeouts.chunk", DefaultChunkTimeout)
	v.SetDefault("adapters.put.timeouts.write", DefaultWriteTimeout)
	v.SetDefault("server.metrics.enabled", false)
	v.SetDefault("server.health.enabled", false)
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			// Config file not found is acceptable - use defaults
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "putd")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "putd")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
