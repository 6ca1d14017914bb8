// Package telemetry groups the observability packages of the trust gate
// and evidence sidecar; it holds no code of its own.
//
// # Components
//
//   - logging: structured log/slog logging with PII redaction
//   - metrics: Prometheus metrics collection and the /metrics handler
//   - health: liveness, readiness and version endpoints
//
// There is no tracing package.
//
// # PII Protection
//
// When RedactPII is enabled, the logging package's default patterns
// rewrite values in log fields:
//
//   - API keys: sk-abc123 → sk-***
//   - Emails: user@example.com → u***@example.com
//   - SSN: 123-45-6789 → ***-**-****
//   - IP addresses: any IPv4 address → 192.*.*.*
//
// Custom redaction patterns can be configured.
package telemetry
