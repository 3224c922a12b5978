package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// RegisterCustomValidators registers bridge-specific validation rules.
// Must be called before validating Config.
func RegisterCustomValidators(v *validator.Validate) error {
	// rpc_path: validates an absolute HTTP path like "/rpc"
	if err := v.RegisterValidation("rpc_path", validateRPCPath); err != nil {
		return fmt.Errorf("failed to register rpc_path validator: %w", err)
	}
	return nil
}

// validateRPCPath validates the RPC endpoint path field.
// Valid values start with "/" and contain no whitespace.
func validateRPCPath(fl validator.FieldLevel) bool {
	path := fl.Field().String()
	if !strings.HasPrefix(path, "/") {
		return false
	}
	return !strings.ContainsAny(path, " \t")
}

// Validate validates the Config using struct tags and custom cross-field rules.
// Returns an error if validation fails, with actionable error messages.
func (c *Config) Validate() error {
	// Create validator with required struct enabled
	v := validator.New(validator.WithRequiredStructEnabled())

	// Register custom validators
	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	// Run struct validation (tags)
	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	// Cross-field validation: upstream mutual exclusion
	if err := c.validateUpstreamMutualExclusion(); err != nil {
		return err
	}

	// Duration fields arrive as strings from YAML/env; parse them here.
	if err := c.validateDurations(); err != nil {
		return err
	}

	return nil
}

// validateUpstreamMutualExclusion ensures at most one of HTTP or Command is set.
// Both empty is rejected at serve time, not here, so `rpc-bridge version` and
// config inspection work without an upstream.
func (c *Config) validateUpstreamMutualExclusion() error {
	hasHTTP := c.Upstream.HTTP != ""
	hasCommand := c.Upstream.Command != ""

	if hasHTTP && hasCommand {
		return errors.New("upstream: specify http OR command, not both")
	}

	return nil
}

// HasUpstream returns true if the config has an upstream configured.
func (c *Config) HasUpstream() bool {
	return c.Upstream.HTTP != "" || c.Upstream.Command != ""
}

// validateDurations parses the duration-typed string fields.
func (c *Config) validateDurations() error {
	if c.Server.CallTimeout != "" {
		if _, err := time.ParseDuration(c.Server.CallTimeout); err != nil {
			return fmt.Errorf("server.call_timeout: %w", err)
		}
	}
	if c.Upstream.HTTPTimeout != "" {
		if _, err := time.ParseDuration(c.Upstream.HTTPTimeout); err != nil {
			return fmt.Errorf("upstream.http_timeout: %w", err)
		}
	}
	return nil
}

// CallTimeout returns the parsed server call timeout.
// Call Validate first; an unparseable value falls back to the default.
func (c *Config) CallTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.CallTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// UpstreamHTTPTimeout returns the parsed upstream HTTP timeout.
func (c *Config) UpstreamHTTPTimeout() time.Duration {
	d, err := time.ParseDuration(c.Upstream.HTTPTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// formatValidationErrors converts validator.ValidationErrors to user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			msg := formatSingleValidationError(e)
			messages = append(messages, msg)
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

// formatSingleValidationError creates a user-friendly message for a single validation error.
func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	tag := e.Tag()

	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "hostname_port":
		return fmt.Sprintf("%s must be a valid host:port", field)
	case "rpc_path":
		return fmt.Sprintf("%s must be an absolute path like /rpc", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, tag)
	}
}
