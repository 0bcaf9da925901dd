package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoad_DefaultConfig(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
logging:
  level: "INFO"

storage:
  type: "filesystem"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default output 'stdout', got %q", cfg.Logging.Output)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown_timeout 30s, got %v", cfg.Server.ShutdownTimeout)
	}
	if !cfg.Adapters.Put.Enabled {
		t.Error("Expected PUT adapter to be enabled by default")
	}
	if cfg.Adapters.Put.Port != DefaultPutPort {
		t.Errorf("Expected default PUT port %d, got %d", DefaultPutPort, cfg.Adapters.Put.Port)
	}
	if cfg.Storage.Filesystem["path"] != DefaultStoragePath {
		t.Errorf("Expected default storage path %q, got %v", DefaultStoragePath, cfg.Storage.Filesystem["path"])
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	// A path that does not exist keeps the user's own config out of the test.
	nonExistentPath := filepath.Join(t.TempDir(), "nonexistent.yaml")

	cfg, err := Load(nonExistentPath)
	if err != nil {
		t.Fatalf("Expected no error with missing config file, got: %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Storage.Type != "filesystem" {
		t.Errorf("Expected default storage type 'filesystem', got %q", cfg.Storage.Type)
	}
	if cfg.Journal.Type != "none" {
		t.Errorf("Expected default journal type 'none', got %q", cfg.Journal.Type)
	}
	if cfg.Adapters.Put.Timeouts.Idle != DefaultIdleTimeout {
		t.Errorf("Expected default idle timeout %v, got %v", DefaultIdleTimeout, cfg.Adapters.Put.Timeouts.Idle)
	}
	if cfg.Adapters.Put.Timeouts.Chunk != DefaultChunkTimeout {
		t.Errorf("Expected default chunk timeout %v, got %v", DefaultChunkTimeout, cfg.Adapters.Put.Timeouts.Chunk)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "invalid.yaml", `
logging:
  level: INFO
  invalid yaml here [[[
`)

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected error with invalid YAML, got nil")
	}
}

func TestLoad_TOML(t *testing.T) {
	configPath := writeConfig(t, "config.toml", `
[logging]
level = "WARN"
format = "json"

[storage]
type = "memory"

[adapters.put]
enabled = true
port = 14000
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load TOML config: %v", err)
	}

	if cfg.Logging.Level != "WARN" {
		t.Errorf("Expected level 'WARN', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected format 'json', got %q", cfg.Logging.Format)
	}
	if cfg.Storage.Type != "memory" {
		t.Errorf("Expected storage type 'memory', got %q", cfg.Storage.Type)
	}
	if cfg.Adapters.Put.Port != 14000 {
		t.Errorf("Expected port 14000, got %d", cfg.Adapters.Put.Port)
	}
}

func TestLoad_ExplicitZeroTimeoutsPreserved(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
adapters:
  put:
    timeouts:
      idle: 0s
      chunk: 0
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Adapters.Put.Timeouts.Idle != 0 {
		t.Errorf("Expected idle timeout to stay disabled, got %v", cfg.Adapters.Put.Timeouts.Idle)
	}
	if cfg.Adapters.Put.Timeouts.Chunk != 0 {
		t.Errorf("Expected chunk timeout to stay disabled, got %v", cfg.Adapters.Put.Timeouts.Chunk)
	}
	if cfg.Adapters.Put.Timeouts.Write != DefaultWriteTimeout {
		t.Errorf("Expected unset write timeout to default to %v, got %v", DefaultWriteTimeout, cfg.Adapters.Put.Timeouts.Write)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("PUTD_LOGGING_LEVEL", "debug")
	t.Setenv("PUTD_ADAPTERS_PUT_PORT", "15000")
	t.Setenv("PUTD_ADAPTERS_PUT_TIMEOUTS_CHUNK", "2s")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected env level normalized to 'DEBUG', got %q", cfg.Logging.Level)
	}
	if cfg.Adapters.Put.Port != 15000 {
		t.Errorf("Expected env port 15000, got %d", cfg.Adapters.Put.Port)
	}
	if cfg.Adapters.Put.Timeouts.Chunk != 2*time.Second {
		t.Errorf("Expected env chunk timeout 2s, got %v", cfg.Adapters.Put.Timeouts.Chunk)
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
storage:
  type: "tape"
`)

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected validation error for unknown storage type")
	}
}

func TestGetDefaultConfigPath_XDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	want := filepath.Join(dir, "putd", "config.yaml")
	if got := GetDefaultConfigPath(); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
	if ConfigExists() {
		t.Error("Expected no config in a fresh XDG directory")
	}
}
