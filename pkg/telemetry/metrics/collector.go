package metrics

import (
	"time"

	"github.com/trust-evidence/gate/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector is the orchestrator for all Prometheus metrics recorded by the
// gate pipeline and the evidence sidecar.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	decisions      *prometheus.CounterVec
	decisionDur    *prometheus.HistogramVec
	policyChecks   *prometheus.CounterVec
	killSwitchOps  *prometheus.CounterVec
	killSwitchGauge *prometheus.GaugeVec
	redactions     *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// NewCollector creates a metrics collector registered against registry. If
// registry is nil, a fresh prometheus.Registry is used.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNS
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = config.DefaultMetricsSub
	}
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = config.DefaultLatencyBuckets()
	}

	c := &Collector{config: cfg, registry: registry}

	c.decisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
		Name: "decisions_total", Help: "Total gate decisions by outcome.",
	}, []string{"decision"})

	c.decisionDur = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
		Name: "decision_duration_seconds", Help: "Gate pipeline evaluation duration.",
		Buckets: cfg.LatencyBuckets,
	}, []string{"decision"})

	c.policyChecks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
		Name: "policy_checks_total", Help: "Policy evaluations by policy ID and result.",
	}, []string{"policy_id", "result"})

	c.killSwitchOps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
		Name: "killswitch_activations_total", Help: "Kill-switch activations by mode and trigger.",
	}, []string{"mode", "trigger"})

	c.killSwitchGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
		Name: "killswitch_active", Help: "1 if the kill-switch is currently active for the given mode.",
	}, []string{"mode"})

	c.redactions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
		Name: "redactions_total", Help: "PII redactions applied by detector.",
	}, []string{"detector"})

	c.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
		Name: "http_requests_total", Help: "Sidecar HTTP requests by route and status.",
	}, []string{"route", "status"})

	c.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
		Name: "http_request_duration_seconds", Help: "Sidecar HTTP request duration.",
		Buckets: cfg.LatencyBuckets,
	}, []string{"route"})

	registry.MustRegister(
		c.decisions, c.decisionDur, c.policyChecks,
		c.killSwitchOps, c.killSwitchGauge, c.redactions,
		c.httpRequests, c.httpDuration,
	)

	return c
}

// RecordDecision records a completed gate decision and its evaluation time.
func (c *Collector) RecordDecision(decision string, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.decisions.WithLabelValues(decision).Inc()
	c.decisionDur.WithLabelValues(decision).Observe(duration.Seconds())
}

// RecordPolicyCheck records a single policy evaluation outcome.
func (c *Collector) RecordPolicyCheck(policyID, result string) {
	if !c.config.Enabled {
		return
	}
	c.policyChecks.WithLabelValues(policyID, result).Inc()
}

// RecordKillSwitchActivation records a kill-switch activation and updates
// the active gauge for that mode.
func (c *Collector) RecordKillSwitchActivation(mode, trigger string) {
	if !c.config.Enabled {
		return
	}
	c.killSwitchOps.WithLabelValues(mode, trigger).Inc()
	c.killSwitchGauge.WithLabelValues(mode).Set(1)
}

// RecordKillSwitchClear zeroes the active gauge for a mode after it clears.
func (c *Collector) RecordKillSwitchClear(mode string) {
	if !c.config.Enabled {
		return
	}
	c.killSwitchGauge.WithLabelValues(mode).Set(0)
}

// RecordRedaction records one redaction-count emission from a detector.
func (c *Collector) RecordRedaction(detector string, count int) {
	if !c.config.Enabled || count <= 0 {
		return
	}
	c.redactions.WithLabelValues(detector).Add(float64(count))
}

// RecordHTTPRequest records a sidecar HTTP request's route, status, and
// duration.
func (c *Collector) RecordHTTPRequest(route, status string, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.httpRequests.WithLabelValues(route, status).Inc()
	c.httpDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// Registry returns the underlying Prometheus registry, for mounting a
// /metrics handler.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
