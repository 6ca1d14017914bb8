package config

import "time"

// Default values for configuration fields.
const (
	DefaultPolicyRegistryPath = "./policies.yaml"
	DefaultSystemClaimsPath   = "./system_claims.yaml"
	DefaultFailClosed         = true
	DefaultMinKeywordOverlap  = 0.4
	DefaultMaxEvidenceAgeDays = 365
	DefaultEnforceOnStreaming = true

	DefaultSidecarListenAddress   = "127.0.0.1:8090"
	DefaultSidecarReadTimeout     = 15 * time.Second
	DefaultSidecarWriteTimeout    = 15 * time.Second
	DefaultSidecarShutdownTimeout = 20 * time.Second
	DefaultSidecarStoreBackend    = "sqlite"
	DefaultSidecarStorePath       = "data/sidecar.db"
	DefaultSidecarTraceStorePath  = "data/tracestore.db"
	DefaultSidecarRetentionDays   = 90
	DefaultSidecarRetentionCron   = "0 3 * * *"

	DefaultAuthMode          = "hs256"
	DefaultAuthRequiredScope = "trust-gate:write"

	DefaultLogLevel   = "info"
	DefaultLogFormat  = "json"
	DefaultRedactPII  = true
	DefaultMetricsNS  = "trust"
	DefaultMetricsSub = "gate"
	DefaultTLSReload  = false
)

// DefaultLatencyBuckets returns the default Prometheus histogram buckets
// (seconds) for gate decision and sidecar HTTP latency.
func DefaultLatencyBuckets() []float64 {
	return []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5}
}

// ApplyDefaults fills unset fields of cfg with their documented defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Gate.PolicyRegistryPath == "" {
		cfg.Gate.PolicyRegistryPath = DefaultPolicyRegistryPath
	}
	if cfg.Gate.SystemClaimsPath == "" {
		cfg.Gate.SystemClaimsPath = DefaultSystemClaimsPath
	}
	if cfg.Gate.MinKeywordOverlap == 0 {
		cfg.Gate.MinKeywordOverlap = DefaultMinKeywordOverlap
	}
	if cfg.Gate.MaxEvidenceAgeDays == 0 {
		cfg.Gate.MaxEvidenceAgeDays = DefaultMaxEvidenceAgeDays
	}
	if !cfg.Gate.FailClosed {
		cfg.Gate.FailClosed = DefaultFailClosed
	}
	if !cfg.Gate.EnforceOnStreaming {
		cfg.Gate.EnforceOnStreaming = DefaultEnforceOnStreaming
	}

	if cfg.Sidecar.ListenAddress == "" {
		cfg.Sidecar.ListenAddress = DefaultSidecarListenAddress
	}
	if cfg.Sidecar.ReadTimeout == 0 {
		cfg.Sidecar.ReadTimeout = DefaultSidecarReadTimeout
	}
	if cfg.Sidecar.WriteTimeout == 0 {
		cfg.Sidecar.WriteTimeout = DefaultSidecarWriteTimeout
	}
	if cfg.Sidecar.ShutdownTimeout == 0 {
		cfg.Sidecar.ShutdownTimeout = DefaultSidecarShutdownTimeout
	}
	if cfg.Sidecar.StoreBackend == "" {
		cfg.Sidecar.StoreBackend = DefaultSidecarStoreBackend
	}
	if cfg.Sidecar.StorePath == "" {
		cfg.Sidecar.StorePath = DefaultSidecarStorePath
	}
	if cfg.Sidecar.TraceStorePath == "" {
		cfg.Sidecar.TraceStorePath = DefaultSidecarTraceStorePath
	}
	if cfg.Sidecar.RetentionDays == 0 {
		cfg.Sidecar.RetentionDays = DefaultSidecarRetentionDays
	}
	if cfg.Sidecar.RetentionSchedule == "" {
		cfg.Sidecar.RetentionSchedule = DefaultSidecarRetentionCron
	}

	if cfg.Auth.Mode == "" {
		cfg.Auth.Mode = DefaultAuthMode
	}
	if cfg.Auth.RequiredScope == "" {
		cfg.Auth.RequiredScope = DefaultAuthRequiredScope
	}

	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLogLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}
	if !cfg.Telemetry.Logging.RedactPII {
		cfg.Telemetry.Logging.RedactPII = DefaultRedactPII
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNS
	}
	if cfg.Telemetry.Metrics.Subsystem == "" {
		cfg.Telemetry.Metrics.Subsystem = DefaultMetricsSub
	}
	if len(cfg.Telemetry.Metrics.LatencyBuckets) == 0 {
		cfg.Telemetry.Metrics.LatencyBuckets = DefaultLatencyBuckets()
	}
}
