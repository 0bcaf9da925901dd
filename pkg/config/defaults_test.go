package config

import (
	"testing"
	"time"

	"github.com/marmos91/putd/internal/transfer"
	"github.com/marmos91/putd/pkg/diag"
)

func TestApplyDefaults_EmptyConfig(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Storage.Type != DefaultStorageType {
		t.Errorf("Expected storage type %q, got %q", DefaultStorageType, cfg.Storage.Type)
	}
	if cfg.Journal.Type != "none" {
		t.Errorf("Expected journal type 'none', got %q", cfg.Journal.Type)
	}
	if cfg.Journal.Samples.Dir != "tcp_info" {
		t.Errorf("Expected samples dir 'tcp_info', got %q", cfg.Journal.Samples.Dir)
	}
	if !cfg.Adapters.Put.Enabled {
		t.Error("Expected PUT adapter enabled for an empty adapters section")
	}
	if cfg.Adapters.Put.Port != DefaultPutPort {
		t.Errorf("Expected port %d, got %d", DefaultPutPort, cfg.Adapters.Put.Port)
	}
	if cfg.Adapters.Put.BufferSize != transfer.DefaultBufferSize {
		t.Errorf("Expected buffer size %d, got %d", transfer.DefaultBufferSize, cfg.Adapters.Put.BufferSize)
	}
	if cfg.Adapters.Put.MaxSamples != diag.DefaultMaxSamples {
		t.Errorf("Expected max samples %d, got %d", diag.DefaultMaxSamples, cfg.Adapters.Put.MaxSamples)
	}
	if cfg.Server.Health.CheckInterval != 10*time.Second {
		t.Errorf("Expected health check interval 10s, got %v", cfg.Server.Health.CheckInterval)
	}
}

func TestApplyDefaults_LeavesTimeoutsAlone(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Adapters.Put.Timeouts.Idle != 0 || cfg.Adapters.Put.Timeouts.Chunk != 0 {
		t.Errorf("Expected zero timeouts to stay zero, got %+v", cfg.Adapters.Put.Timeouts)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Logging: LoggingConfig{Level: "warn", Format: "json", Output: "stderr"},
		Storage: StorageConfig{
			Type:       "filesystem",
			Filesystem: map[string]any{"path": "/srv/uploads"},
		},
	}
	cfg.Adapters.Put.Enabled = true
	cfg.Adapters.Put.Port = 14000
	cfg.Adapters.Put.BufferSize = 1024

	ApplyDefaults(cfg)

	if cfg.Logging.Level != "WARN" {
		t.Errorf("Expected level normalized to 'WARN', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected format 'json' preserved, got %q", cfg.Logging.Format)
	}
	if cfg.Storage.Filesystem["path"] != "/srv/uploads" {
		t.Errorf("Expected storage path preserved, got %v", cfg.Storage.Filesystem["path"])
	}
	if cfg.Adapters.Put.Port != 14000 {
		t.Errorf("Expected port 14000 preserved, got %d", cfg.Adapters.Put.Port)
	}
	if cfg.Adapters.Put.BufferSize != 1024 {
		t.Errorf("Expected buffer size 1024 preserved, got %d", cfg.Adapters.Put.BufferSize)
	}
}

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if cfg.Adapters.Put.Timeouts.Idle != DefaultIdleTimeout {
		t.Errorf("Expected idle timeout %v, got %v", DefaultIdleTimeout, cfg.Adapters.Put.Timeouts.Idle)
	}
	if cfg.Adapters.Put.Timeouts.Chunk != DefaultChunkTimeout {
		t.Errorf("Expected chunk timeout %v, got %v", DefaultChunkTimeout, cfg.Adapters.Put.Timeouts.Chunk)
	}
	if cfg.Adapters.Put.Timeouts.Write != DefaultWriteTimeout {
		t.Errorf("Expected write timeout %v, got %v", DefaultWriteTimeout, cfg.Adapters.Put.Timeouts.Write)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("Default config should validate, got: %v", err)
	}
}
