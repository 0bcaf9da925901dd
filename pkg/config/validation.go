package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	if !cfg.Adapters.Put.Enabled {
		return fmt.Errorf("adapters: at least one adapter must be enabled")
	}

	// Listening ports must not collide; 0 picks a free port and never does.
	ports := map[int]string{cfg.Adapters.Put.Port: "adapters.put"}
	check := func(name string, enabled bool, port int) error {
		if !enabled || port == 0 {
			return nil
		}
		if owner, ok := ports[port]; ok {
			return fmt.Errorf("%s: port %d already used by %s", name, port, owner)
		}
		ports[port] = name
		return nil
	}
	if err := check("server.metrics", cfg.Server.Metrics.Enabled, cfg.Server.Metrics.Port); err != nil {
		return err
	}
	if err := check("server.health", cfg.Server.Health.Enabled, cfg.Server.Health.Port); err != nil {
		return err
	}

	if cfg.Journal.Samples.Enabled && !cfg.Adapters.Put.TCPInfo {
		return fmt.Errorf("journal.samples: enabled but adapters.put.tcp_info is false, no samples would be collected")
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
