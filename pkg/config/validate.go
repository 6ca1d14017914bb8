package config

import (
	"fmt"
	"strings"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "sidecar.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d errors:\n", len(e.Errors))
	for _, fe := range e.Errors {
		fmt.Fprintf(&sb, "  - %s\n", fe.Error())
	}
	return strings.TrimRight(sb.String(), "\n")
}

// Validate checks cfg for internal consistency. ApplyDefaults should be
// called first; Validate does not apply defaults itself.
func Validate(cfg *Config) error {
	var errs []FieldError

	if cfg.Gate.MinKeywordOverlap < 0 || cfg.Gate.MinKeywordOverlap > 1 {
		errs = append(errs, FieldError{"gate.min_keyword_overlap", "must be between 0 and 1"})
	}
	if cfg.Gate.MaxEvidenceAgeDays < 0 {
		errs = append(errs, FieldError{"gate.max_evidence_age_days", "must be non-negative"})
	}

	switch cfg.Sidecar.StoreBackend {
	case "sqlite", "sqlite-cgo":
	case "postgres":
		errs = append(errs, FieldError{"sidecar.store_backend", "postgres is named but not implemented in this repository"})
	default:
		errs = append(errs, FieldError{"sidecar.store_backend", fmt.Sprintf("unknown backend %q", cfg.Sidecar.StoreBackend)})
	}
	if cfg.Sidecar.RetentionDays < 0 {
		errs = append(errs, FieldError{"sidecar.retention_days", "must be non-negative"})
	}
	if cfg.Sidecar.ListenAddress == "" {
		errs = append(errs, FieldError{"sidecar.listen_address", "field is required"})
	}

	switch cfg.Auth.Mode {
	case "hs256":
		if cfg.Auth.HMACSecret == "" {
			errs = append(errs, FieldError{"auth.hmac_secret", "required when auth.mode is hs256 (set TRUST_JWT_SECRET)"})
		}
	case "rs256":
		if cfg.Auth.JWKSURL == "" {
			errs = append(errs, FieldError{"auth.jwks_url", "required when auth.mode is rs256"})
		}
	default:
		errs = append(errs, FieldError{"auth.mode", fmt.Sprintf("unknown mode %q, want hs256 or rs256", cfg.Auth.Mode)})
	}

	switch cfg.Telemetry.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{"telemetry.logging.level", fmt.Sprintf("unknown level %q", cfg.Telemetry.Logging.Level)})
	}
	switch cfg.Telemetry.Logging.Format {
	case "json", "text", "console":
	default:
		errs = append(errs, FieldError{"telemetry.logging.format", fmt.Sprintf("unknown format %q", cfg.Telemetry.Logging.Format)})
	}

	if cfg.Security.TLS.Enabled {
		if cfg.Security.TLS.CertFile == "" {
			errs = append(errs, FieldError{"security.tls.cert_file", "required when security.tls.enabled is true"})
		}
		if cfg.Security.TLS.KeyFile == "" {
			errs = append(errs, FieldError{"security.tls.key_file", "required when security.tls.enabled is true"})
		}
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}
