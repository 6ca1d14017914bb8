// Package config provides configuration management for the trust-evidence
// gate and its evidence sidecar.
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("config.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//
// Environment variables follow the TRUST_*/SIDECAR_* convention documented
// on each Config field's doc comment. They always take precedence over
// file-based configuration.
//
// Configuration values are applied in order (later overrides earlier):
// defaults (defaults.go), YAML file, environment overrides, then
// validation, which fails fast on an inconsistent configuration.
//
// For process-wide access, use the singleton:
//
//	if err := config.Initialize("config.yaml"); err != nil {
//	    log.Fatal(err)
//	}
//	cfg := config.GetConfig()
//
// For testing, prefer dependency injection with explicit Config instances.
package config
