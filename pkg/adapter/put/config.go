package put

import (
	"fmt"
	"time"

	"github.com/marmos91/putd/internal/transfer"
	"github.com/marmos91/putd/pkg/diag"
)

// PutConfig holds configuration parameters for the PUT protocol server.
//
// These values control server behavior including connection limits, timeouts,
// and resource management.
//
// Default values (applied by New if zero):
//   - BufferSize: 4096 bytes
//   - ShutdownTimeout: 30 seconds
//   - MaxSamples: 4096
//
// Timeouts are NOT defaulted here: a zero timeout disables the corresponding
// deadline. The configuration layer fills in the documented defaults before
// the adapter is built and keeps explicit zeros.
type PutConfig struct {
	// Enabled controls whether the PUT adapter is active.
	Enabled bool `mapstructure:"enabled"`

	// BindAddress is the interface to listen on. Empty means all interfaces.
	BindAddress string `mapstructure:"bind_address"`

	// Port is the TCP port to listen on. 0 lets the OS pick one.
	Port int `mapstructure:"port" validate:"min=0,max=65535"`

	// MaxConnections limits the number of concurrent client connections.
	// When reached, new connections wait in the accept queue.
	// 0 means unlimited.
	MaxConnections int `mapstructure:"max_connections" validate:"min=0"`

	// BufferSize is the payload chunk size requested per socket read.
	BufferSize int `mapstructure:"buffer_size" validate:"min=0"`

	// MaxUploadSize rejects PUTs declaring more bytes with FILE_TOO_LARGE.
	// 0 means unlimited.
	MaxUploadSize uint64 `mapstructure:"max_upload_size"`

	// Timeouts groups the per-operation deadlines.
	Timeouts TimeoutsConfig `mapstructure:"timeouts"`

	// ShutdownTimeout is the maximum time to wait for active connections
	// during graceful shutdown before they are force-closed.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`

	// MetricsLogInterval is the interval at which to log server metrics.
	// 0 disables periodic logging.
	MetricsLogInterval time.Duration `mapstructure:"metrics_log_interval" validate:"min=0"`

	// RateLimit throttles commands across all connections.
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`

	// TCPInfo samples kernel TCP statistics for every payload chunk and
	// attaches them to the journal record. Linux only.
	TCPInfo bool `mapstructure:"tcp_info"`

	// MaxSamples bounds the TCP_INFO readings held per upload. Past the
	// limit, readings are thinned to evenly spaced chunks.
	MaxSamples int `mapstructure:"max_samples" validate:"min=0"`
}

// TimeoutsConfig holds the connection deadlines. Zero disables a deadline.
type TimeoutsConfig struct {
	// Idle bounds the wait for the next command.
	Idle time.Duration `mapstructure:"idle" validate:"min=0"`

	// Chunk bounds every payload read during an upload. Expiry aborts the
	// upload and removes the partial entry.
	Chunk time.Duration `mapstructure:"chunk" validate:"min=0"`

	// Write bounds every reply write.
	Write time.Duration `mapstructure:"write" validate:"min=0"`
}

// RateLimitConfig configures the global command throttle.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained command rate. 0 disables throttling.
	RequestsPerSecond uint `mapstructure:"requests_per_second"`

	// Burst is the number of commands allowed above the sustained rate.
	Burst uint `mapstructure:"burst"`
}

// applyDefaults fills in zero values with sensible defaults.
func (c *PutConfig) applyDefaults() {
	if c.BufferSize <= 0 {
		c.BufferSize = transfer.DefaultBufferSize
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
	if c.MaxSamples <= 0 {
		c.MaxSamples = diag.DefaultMaxSamples
	}
}

// validate checks that configuration values are valid.
func (c *PutConfig) validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be 0-65535", c.Port)
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("invalid MaxConnections %d: must be >= 0", c.MaxConnections)
	}
	if c.Timeouts.Idle < 0 {
		return fmt.Errorf("invalid idle timeout %v: must be >= 0", c.Timeouts.Idle)
	}
	if c.Timeouts.Chunk < 0 {
		return fmt.Errorf("invalid chunk timeout %v: must be >= 0", c.Timeouts.Chunk)
	}
	if c.Timeouts.Write < 0 {
		return fmt.Errorf("invalid write timeout %v: must be >= 0", c.Timeouts.Write)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid ShutdownTimeout %v: must be > 0", c.ShutdownTimeout)
	}
	return nil
}
