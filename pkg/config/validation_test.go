package config

import (
	"strings"
	"testing"
	"time"
)

func TestValidate_ValidConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if err := Validate(cfg); err != nil {
		t.Errorf("Expected valid config to pass validation, got error: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "INVALID"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for invalid log level")
	}
	if !strings.Contains(err.Error(), "oneof") {
		t.Errorf("Expected 'oneof' validation error, got: %v", err)
	}
}

func TestValidate_InvalidLogFormat(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Format = "xml"

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for invalid log format")
	}
}

func TestValidate_InvalidStorageType(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Storage.Type = "tape"

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for invalid storage type")
	}
}

func TestValidate_InvalidJournalType(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Journal.Type = "syslog"

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for invalid journal type")
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Adapters.Put.Port = 70000

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for out-of-range port")
	}
	if !strings.Contains(err.Error(), "max") {
		t.Errorf("Expected 'max' validation error, got: %v", err)
	}
}

func TestValidate_NegativeTimeout(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Adapters.Put.Timeouts.Chunk = -time.Second

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for negative chunk timeout")
	}
}

func TestValidate_ZeroTimeoutsAllowed(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Adapters.Put.Timeouts.Idle = 0
	cfg.Adapters.Put.Timeouts.Chunk = 0
	cfg.Adapters.Put.Timeouts.Write = 0

	if err := Validate(cfg); err != nil {
		t.Errorf("Zero timeouts disable deadlines and should validate, got: %v", err)
	}
}

func TestValidate_AdapterDisabled(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Adapters.Put.Enabled = false

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected error when no adapter is enabled")
	}
	if !strings.Contains(err.Error(), "at least one adapter") {
		t.Errorf("Expected 'at least one adapter' error, got: %v", err)
	}
}

func TestValidate_PortCollision(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Server.Metrics.Enabled = true
	cfg.Server.Metrics.Port = cfg.Adapters.Put.Port

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected error for metrics port colliding with the PUT port")
	}
	if !strings.Contains(err.Error(), "already used") {
		t.Errorf("Expected 'already used' error, got: %v", err)
	}
}

func TestValidate_PortCollisionIgnoredWhenDisabled(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Server.Health.Enabled = false
	cfg.Server.Health.Port = cfg.Adapters.Put.Port

	if err := Validate(cfg); err != nil {
		t.Errorf("Disabled health service should not reserve its port, got: %v", err)
	}
}

func TestValidate_SamplesRequireTCPInfo(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Journal.Samples.Enabled = true

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected error for samples without tcp_info")
	}

	cfg.Adapters.Put.TCPInfo = true
	if err := Validate(cfg); err != nil {
		t.Errorf("Expected samples with tcp_info to validate, got: %v", err)
	}
}
