package main

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/trust-evidence/gate/pkg/config"
	"github.com/trust-evidence/gate/pkg/gate"
	"github.com/trust-evidence/gate/pkg/security/secrets"
)

// loadAppConfig loads and validates the config file named by the
// persistent --config flag, applies TRUST_*/SIDECAR_* environment
// overrides, and resolves any `${secret:name}` reference left in
// auth.hmac_secret against the environment/file secret providers, so an
// operator can commit config.yaml with a reference rather than a literal.
func loadAppConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %q: %w", cfgFile, err)
	}

	if cfg.Auth.HMACSecret != "" {
		resolved, err := resolveSecretRef(cfg.Auth.HMACSecret)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve auth.hmac_secret: %w", err)
		}
		cfg.Auth.HMACSecret = resolved
	}

	return cfg, nil
}

func resolveSecretRef(raw string) (string, error) {
	providers := []secrets.SecretProvider{secrets.NewEnvProvider("TRUST_SECRET_")}
	if fileProvider, err := secrets.NewFileProvider("/run/secrets", false); err == nil {
		providers = append(providers, fileProvider)
	}
	mgr := secrets.NewManager(providers, secrets.CacheConfig{Enabled: true, TTL: 0, MaxSize: 16})
	return mgr.ResolveReferences(context.Background(), raw)
}

// loadSystemClaims reads the system-behavior-claim registry snapshot named
// by path. A missing file yields an empty registry: the gate still runs,
// it simply has no system claims to verify drafts against.
func loadSystemClaims(path string) ([]gate.SystemBehaviorClaim, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read system claims %q: %w", path, err)
	}
	var claims []gate.SystemBehaviorClaim
	if err := yaml.Unmarshal(data, &claims); err != nil {
		return nil, fmt.Errorf("failed to parse system claims %q: %w", path, err)
	}
	return claims, nil
}
