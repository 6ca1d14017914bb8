package config

import "time"

// Config is the root configuration structure for the trust-evidence gate.
// It covers the embedded gate library, the evidence sidecar process, and
// the ambient telemetry/security stack shared by both.
type Config struct {
	// Gate contains configuration for the in-process trust gate (components
	// A-H): hashing, redaction thresholds, policy registry source, and the
	// kill-switch's default mode.
	Gate GateConfig `yaml:"gate"`

	// Sidecar contains configuration for the standalone evidence sidecar
	// HTTP service (component K): listen address, store backend, retention.
	Sidecar SidecarConfig `yaml:"sidecar"`

	// Auth contains JWT validation/minting configuration shared by the
	// sidecar and the ingest adapter.
	Auth AuthConfig `yaml:"auth"`

	// Telemetry contains configuration for observability: logging and
	// metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Security contains TLS configuration for the sidecar's HTTP listener.
	Security SecurityConfig `yaml:"security"`
}

// GateConfig configures the embedded gate pipeline.
type GateConfig struct {
	// PolicyRegistryPath names an on-disk YAML snapshot of the fixed policy
	// registry (component F). It is loaded and defaulted but not read by
	// any command: the registry is the in-process gate.PolicyRegistry.
	// Default: "./policies.yaml"
	PolicyRegistryPath string `yaml:"policy_registry_path"`

	// SystemClaimsPath is the on-disk YAML snapshot of the system-claim
	// registry. Each command reads it once at startup; changes to the file
	// are not picked up by a running process.
	// Default: "./system_claims.yaml"
	SystemClaimsPath string `yaml:"system_claims_path"`

	// FailClosed is loaded and validated but not read by the gate
	// pipeline. ApplyDefaults sets it to true whenever it is false.
	// Default: true
	FailClosed bool `yaml:"fail_closed"`

	// MinKeywordOverlap is loaded and validated (0..1) but not read by the
	// claim engine, which matches on a fixed minimum of one shared token.
	// Default: 0.4
	MinKeywordOverlap float64 `yaml:"min_keyword_overlap"`

	// MaxEvidenceAgeDays is loaded and validated (>= 0) but not read by the
	// gate pipeline; evidence is not checked for age.
	// Default: 365
	MaxEvidenceAgeDays int `yaml:"max_evidence_age_days"`

	// EnforceOnStreaming is loaded but not read by the gate pipeline.
	// ApplyDefaults sets it to true whenever it is false.
	// AssertNoBypassInputs rejects a streamed request regardless of it.
	// Default: true
	EnforceOnStreaming bool `yaml:"enforce_on_streaming"`
}

// SidecarConfig configures the standalone evidence sidecar process.
type SidecarConfig struct {
	// ListenAddress is the address and port the sidecar HTTP server binds.
	// Default: "127.0.0.1:8090"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout bounds reading the full request, including body.
	// Default: 15s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout bounds writing the response.
	// Default: 15s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 20s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// StoreBackend selects the embedded gate's trace-store backend this
	// sidecar reads from when building audit packs: "sqlite-cgo" opens
	// the mattn/go-sqlite3-backed trace store at TraceStorePath, colocated
	// with a gate process sharing its durable trace history; anything
	// else uses an in-memory trace store, for a sidecar fronted by an
	// external durable cache. The sidecar's own relational store (trace
	// summaries, audit-pack records, legal holds) always uses the
	// pure-Go modernc.org/sqlite driver at StorePath, independent of this
	// setting. "postgres" is named for future use but not implemented.
	// Default: "sqlite"
	StoreBackend string `yaml:"store_backend"`

	// StorePath is the SQLite database file path for the sidecar's own
	// relational store (trace summaries, audit-pack records, legal holds).
	// Default: "data/sidecar.db"
	StorePath string `yaml:"store_path"`

	// TraceStorePath is the SQLite database file path for the embedded
	// gate's trace store, read here only when StoreBackend is
	// "sqlite-cgo" (the sidecar colocated with the gate process, sharing
	// its durable trace history rather than an external cache). Distinct
	// from StorePath: the two stores have different schemas and must not
	// share a file.
	// Default: "data/tracestore.db"
	TraceStorePath string `yaml:"trace_store_path"`

	// RetentionDays is the number of days a trace record is kept before
	// the retention sweep deletes it, unless held.
	// Default: 90
	RetentionDays int `yaml:"retention_days"`

	// RetentionSchedule is the cron(5) expression the sweep runs on.
	// Default: "0 3 * * *"
	RetentionSchedule string `yaml:"retention_schedule"`
}

// AuthConfig configures JWT validation for the sidecar and ingest adapter.
type AuthConfig struct {
	// Mode selects the signing algorithm family: "hs256" or "rs256".
	// Default: "hs256"
	Mode string `yaml:"mode"`

	// HMACSecret is the shared HS256 signing secret. Required when Mode is
	// "hs256". Read from auth.hmac_secret in the config file and overridden
	// by TRUST_JWT_SECRET when that is set; never logged.
	HMACSecret string `yaml:"hmac_secret"`

	// JWKSURL is the JSON Web Key Set endpoint used to resolve RS256
	// verification keys when Mode is "rs256".
	JWKSURL string `yaml:"jwks_url"`

	// RequiredScope is loaded and defaulted but not read by the sidecar,
	// whose routes require fixed scopes ("trust:ingest", "trust:read", ...).
	// Default: "trust-gate:write"
	RequiredScope string `yaml:"required_scope"`
}

// TelemetryConfig configures logging and metrics.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the output format ("json", "text", "console").
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file:line in log records.
	AddSource bool `yaml:"add_source"`

	// RedactPII enables PII scrubbing of log attribute values before they
	// are written, independent of the evidence redaction pipeline.
	// Default: true
	RedactPII bool `yaml:"redact_pii"`

	// RedactPatterns contains additional named regex patterns to scrub from
	// log output, beyond the built-in set.
	RedactPatterns []RedactPattern `yaml:"redact_patterns"`
}

// RedactPattern names a regular expression applied to log field values.
type RedactPattern struct {
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
}

// MetricsConfig configures the Prometheus metrics collector.
type MetricsConfig struct {
	// Enabled toggles metric recording. Default: true
	Enabled bool `yaml:"enabled"`

	// Namespace is the Prometheus metric namespace.
	// Default: "trust"
	Namespace string `yaml:"namespace"`

	// Subsystem is the Prometheus metric subsystem.
	// Default: "gate"
	Subsystem string `yaml:"subsystem"`

	// LatencyBuckets are the histogram buckets (seconds) used for gate and
	// sidecar request latency.
	LatencyBuckets []float64 `yaml:"latency_buckets"`
}

// SecurityConfig configures optional TLS termination for the sidecar.
type SecurityConfig struct {
	TLS TLSConfig `yaml:"tls"`
}

// TLSConfig configures the sidecar's optional TLS listener.
type TLSConfig struct {
	// Enabled toggles TLS termination. Default: false (plaintext, intended
	// for a trusted sidecar network).
	Enabled bool `yaml:"enabled"`

	// CertFile and KeyFile are PEM file paths.
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`

	// MinVersion is the minimum accepted TLS version: "1.2" or "1.3".
	// Default: "1.3"
	MinVersion string `yaml:"min_version"`

	// CipherSuites names the enabled cipher suites. Empty uses Go's
	// secure defaults.
	CipherSuites []string `yaml:"cipher_suites"`

	// ReloadOnChange watches CertFile/KeyFile for changes and reloads the
	// listener's certificate without a restart.
	ReloadOnChange bool `yaml:"reload_on_change"`

	// MTLS configures mutual TLS: verifying the caller's client
	// certificate, used when the sidecar sits behind a service mesh or
	// is reached directly by a trusted host application over mTLS rather
	// than a bearer token.
	MTLS MTLSConfig `yaml:"mtls"`
}

// MTLSConfig configures client-certificate authentication on the sidecar's
// TLS listener.
type MTLSConfig struct {
	// Enabled toggles client certificate verification.
	Enabled bool `yaml:"enabled"`

	// ClientCAFile is the PEM file of the CA that signs accepted client
	// certificates.
	ClientCAFile string `yaml:"client_ca_file"`

	// ClientAuthType is one of "require", "request", "verify_if_given".
	// Default: "require"
	ClientAuthType string `yaml:"client_auth_type"`

	// IdentitySource selects which certificate field the sidecar's ingest
	// handler logs as the caller's identity: "subject.CN", "subject.OU",
	// "subject.O", or "SAN". Default: "subject.CN"
	IdentitySource string `yaml:"identity_source"`
}
