// Package metrics provides Prometheus metrics collection for the trust
// gate and evidence sidecar.
//
// # Overview
//
// The collector tracks gate decision outcomes and latency, policy check
// results, kill-switch activations, PII redaction counts, and sidecar HTTP
// request latency.
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	collector.RecordDecision("ALLOW", elapsed)
//	collector.RecordPolicyCheck("fail_closed_default", "pass")
//	collector.RecordKillSwitchActivation("SYSTEM_HALT", "bypass_attempt")
//
// # Prometheus Endpoint
//
// Metrics are exposed at /metrics in standard Prometheus format:
//
//	# HELP trust_gate_decisions_total Total gate decisions by outcome.
//	# TYPE trust_gate_decisions_total counter
//	trust_gate_decisions_total{decision="ALLOW"} 1234
package metrics
