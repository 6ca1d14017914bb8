package sidecar

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/trust-evidence/gate/pkg/auditpack"
	"github.com/trust-evidence/gate/pkg/gate"
	"github.com/trust-evidence/gate/pkg/security/auth"
	securitytls "github.com/trust-evidence/gate/pkg/security/tls"
	"github.com/trust-evidence/gate/pkg/telemetry/health"
	"github.com/trust-evidence/gate/pkg/telemetry/metrics"
	"github.com/trust-evidence/gate/pkg/tracestore"
)

// Deps bundles everything the sidecar's HTTP surface needs.
type Deps struct {
	Store         *Store
	TraceStore    tracestore.Store
	Validator     *auth.JWTValidator
	SystemClaims  []gate.SystemBehaviorClaim
	Mode          string
	RetentionDays int

	// MTLSIdentitySource names the client-certificate field logged
	// alongside the JWT subject when the listener terminates mTLS (a
	// service mesh sidecar or direct host-to-sidecar connection); empty
	// when mTLS is not configured.
	MTLSIdentitySource string

	// Metrics records per-route latency and outcome counters. Nil
	// disables recording.
	Metrics *metrics.Collector

	// Health reports liveness/readiness at /health and /ready, backed by
	// checks registered against the stores this sidecar depends on. Nil
	// skips registering those routes.
	Health *health.Checker

	Version, GitCommit, BuildDate string
}

// NewHandler builds the sidecar's routed http.Handler: a plain
// http.NewServeMux composed with JWT-scope middleware, matching the
// teacher's router-free HTTP style exactly.
func NewHandler(deps Deps) http.Handler {
	logger := slog.Default().With("component", "sidecar.server")
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "mode": deps.Mode})
	})

	mux.Handle("POST /v1/events", deps.Validator.RequireScope("trust:ingest",
		http.HandlerFunc(handleIngestEvents(deps, logger))))

	mux.Handle("GET /v1/traces/{trace_id}", deps.Validator.RequireScope("trust:read",
		http.HandlerFunc(handleGetTrace(deps, logger))))

	mux.Handle("GET /v1/evidence-trace", deps.Validator.RequireScope("trust:read",
		http.HandlerFunc(handleEvidenceTrace(deps, logger))))

	mux.Handle("POST /v1/traces/{trace_id}/audit-pack", deps.Validator.RequireScope("trust:export",
		http.HandlerFunc(handleCreateAuditPack(deps, logger))))

	mux.Handle("GET /v1/audit-packs/{pack_id}/download", deps.Validator.RequireAnyScope(
		[]string{"trust:read", "trust:export"}, http.HandlerFunc(handleDownloadAuditPack(deps, logger))))

	mux.Handle("POST /v1/admin/traces/{trace_id}/legal-hold", deps.Validator.RequireScope("trust:admin",
		http.HandlerFunc(handleLegalHold(deps, logger, true))))
	mux.Handle("DELETE /v1/admin/traces/{trace_id}/legal-hold", deps.Validator.RequireScope("trust:admin",
		http.HandlerFunc(handleLegalHold(deps, logger, false))))

	mux.Handle("POST /v1/admin/retention/run", deps.Validator.RequireScope("trust:admin",
		http.HandlerFunc(handleRetentionRun(deps, logger))))

	if deps.Health != nil {
		health.HTTPMiddleware(mux, deps.Health, deps.Version, deps.GitCommit, deps.BuildDate)
	}

	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics.Handler())
		return metricsMiddleware(deps.Metrics, mux)
	}

	return mux
}

// metricsMiddleware records request latency and status per route, matching
// the label shape RecordHTTPRequest expects.
func metricsMiddleware(collector *metrics.Collector, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		collector.RecordHTTPRequest(r.URL.Path, fmt.Sprintf("%d", sw.status), time.Since(started))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func handleIngestEvents(deps Deps, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var batch EventBatch
		if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
			writeDetail(w, http.StatusUnprocessableEntity, "malformed request body")
			return
		}

		if deps.MTLSIdentitySource != "" {
			if identity := securitytls.GetClientIdentity(r, deps.MTLSIdentitySource); identity != "" {
				logger.Info("ingest batch from mTLS client", "client_identity", identity, "event_count", len(batch.Events))
			}
		}

		if err := deps.Store.IngestBatch(r.Context(), batch.Events); err != nil {
			if _, ok := err.(*MalformedEventError); ok {
				writeDetail(w, http.StatusUnprocessableEntity, err.Error())
				return
			}
			logger.Error("ingest batch failed", "error", err)
			writeDetail(w, http.StatusInternalServerError, "ingest failed")
			return
		}

		writeJSON(w, http.StatusOK, map[string]int{"accepted": len(batch.Events)})
	}
}

func handleGetTrace(deps Deps, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		traceID := r.PathValue("trace_id")
		summary, err := deps.Store.GetTraceSummary(r.Context(), traceID)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

// handleEvidenceTrace implements GET /v1/evidence-trace?message_id=...: the
// per-message evidence/citation view recorded at gate time, resolved
// through the caller's own message_id -> trace_id mapping so cross-user
// access is indistinguishable from a message_id that was never recorded.
func handleEvidenceTrace(deps Deps, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		messageID := r.URL.Query().Get("message_id")
		if messageID == "" {
			writeDetail(w, http.StatusBadRequest, "message_id is required")
			return
		}

		claims, ok := auth.ClaimsFromContext(r.Context())
		if !ok {
			writeDetail(w, http.StatusUnauthorized, "missing token claims")
			return
		}

		traceID, err := deps.Store.GetTraceIDByMessageID(r.Context(), claims.Subject, messageID)
		if err != nil {
			writeStoreError(w, err)
			return
		}

		record, _, err := deps.TraceStore.Load(r.Context(), traceID)
		if err != nil {
			writeDetail(w, http.StatusNotFound, "trace not found")
			return
		}

		writeJSON(w, http.StatusOK, record.Response.EvidenceBundleUser)
	}
}

func handleCreateAuditPack(deps Deps, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		traceID := r.PathValue("trace_id")

		packID, err := deps.Store.CreateAuditPackRecord(r.Context(), traceID)
		if err != nil {
			writeStoreError(w, err)
			return
		}

		record, events, err := deps.TraceStore.Load(r.Context(), traceID)
		if err != nil {
			deps.Store.MarkAuditPackFailed(r.Context(), packID, err.Error())
			writeJSON(w, http.StatusAccepted, map[string]string{"pack_id": packID, "status": string(AuditPackFailed)})
			return
		}

		built, err := auditpack.BuildHostPack(auditpack.BuildInput{
			Record:                  record,
			Events:                  events,
			SystemClaims:            deps.SystemClaims,
			TestsExecuted:           []string{"go test ./..."},
			LastEvaluationTimestamp: time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			logger.Error("audit pack build failed", "trace_id", traceID, "error", err)
			deps.Store.MarkAuditPackFailed(r.Context(), packID, err.Error())
			writeJSON(w, http.StatusAccepted, map[string]string{"pack_id": packID, "status": string(AuditPackFailed)})
			return
		}

		if err := deps.Store.MarkAuditPackReady(r.Context(), packID, built.Zip); err != nil {
			writeStoreError(w, err)
			return
		}

		writeJSON(w, http.StatusAccepted, map[string]string{"pack_id": packID, "status": string(AuditPackReady)})
	}
}

func handleDownloadAuditPack(deps Deps, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		packID := r.PathValue("pack_id")

		record, err := deps.Store.GetAuditPackRecord(r.Context(), packID)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		zipBytes, err := deps.Store.GetAuditPackZip(r.Context(), packID)
		if err != nil {
			writeStoreError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("Content-Disposition",
			fmt.Sprintf(`attachment; filename="audit_pack_%s.zip"`, record.TraceID))
		w.WriteHeader(http.StatusOK)
		w.Write(zipBytes)
	}
}

func handleLegalHold(deps Deps, logger *slog.Logger, hold bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		traceID := r.PathValue("trace_id")
		if err := deps.Store.SetLegalHold(r.Context(), traceID, hold); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"trace_id": traceID, "legal_hold": hold})
	}
}

func handleRetentionRun(deps Deps, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := deps.Store.RunRetentionSweep(r.Context(), deps.RetentionDays, time.Now().UTC())
		if err != nil {
			logger.Error("retention run failed", "error", err)
			writeDetail(w, http.StatusInternalServerError, "retention run failed")
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch err.(type) {
	case *NotFoundError:
		writeDetail(w, http.StatusNotFound, err.Error())
	case *PackNotReadyError:
		writeDetail(w, http.StatusConflict, err.Error())
	case *MalformedEventError:
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeDetail(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": strings.TrimSpace(detail)})
}
