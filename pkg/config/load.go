package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path,
// applies defaults, and validates. Use LoadConfigWithEnvOverrides to also
// apply the TRUST_*/SIDECAR_* environment overrides from the deployment
// environment.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file, applies
// environment variable overrides, and re-validates. The loading sequence
// is: defaults, YAML file, environment, validation.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies the TRUST_*/SIDECAR_* environment variables
// named in spec.md section 6.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TRUST_POLICY_REGISTRY_PATH"); v != "" {
		cfg.Gate.PolicyRegistryPath = v
	}
	if v := os.Getenv("TRUST_SYSTEM_CLAIMS_PATH"); v != "" {
		cfg.Gate.SystemClaimsPath = v
	}
	if v := os.Getenv("TRUST_MIN_KEYWORD_OVERLAP"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Gate.MinKeywordOverlap = f
		}
	}
	if v := os.Getenv("TRUST_FAIL_CLOSED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Gate.FailClosed = b
		}
	}
	if v := os.Getenv("TRUST_ENFORCE_ON_STREAMING"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Gate.EnforceOnStreaming = b
		}
	}

	if v := os.Getenv("SIDECAR_LISTEN_ADDRESS"); v != "" {
		cfg.Sidecar.ListenAddress = v
	}
	if v := os.Getenv("SIDECAR_STORE_BACKEND"); v != "" {
		cfg.Sidecar.StoreBackend = v
	}
	if v := os.Getenv("SIDECAR_STORE_PATH"); v != "" {
		cfg.Sidecar.StorePath = v
	}
	if v := os.Getenv("SIDECAR_RETENTION_DAYS"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Sidecar.RetentionDays = i
		}
	}
	if v := os.Getenv("SIDECAR_RETENTION_SCHEDULE"); v != "" {
		cfg.Sidecar.RetentionSchedule = v
	}
	if v := os.Getenv("SIDECAR_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Sidecar.ReadTimeout = d
		}
	}
	if v := os.Getenv("SIDECAR_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Sidecar.WriteTimeout = d
		}
	}

	if v := os.Getenv("TRUST_JWT_MODE"); v != "" {
		cfg.Auth.Mode = v
	}
	if v := os.Getenv("TRUST_JWT_SECRET"); v != "" {
		cfg.Auth.HMACSecret = v
	}
	if v := os.Getenv("TRUST_JWT_JWKS_URL"); v != "" {
		cfg.Auth.JWKSURL = v
	}
	if v := os.Getenv("TRUST_JWT_REQUIRED_SCOPE"); v != "" {
		cfg.Auth.RequiredScope = v
	}

	if v := os.Getenv("TRUST_LOG_LEVEL"); v != "" {
		cfg.Telemetry.Logging.Level = v
	}
	if v := os.Getenv("TRUST_LOG_FORMAT"); v != "" {
		cfg.Telemetry.Logging.Format = v
	}

	if v := os.Getenv("SIDECAR_TLS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Security.TLS.Enabled = b
		}
	}
	if v := os.Getenv("SIDECAR_TLS_CERT_FILE"); v != "" {
		cfg.Security.TLS.CertFile = v
	}
	if v := os.Getenv("SIDECAR_TLS_KEY_FILE"); v != "" {
		cfg.Security.TLS.KeyFile = v
	}
}
