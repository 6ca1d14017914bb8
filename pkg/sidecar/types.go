// Package sidecar implements the standalone Evidence Sidecar HTTP
// service (component K): JWT-authenticated ingest/read/export/admin
// endpoints over a relational store of host-emitted turn events, plus
// on-demand audit-pack export backed by the trace store (component I)
// and the audit-pack exporter (component J).
package sidecar

import "time"

// IngestEvent is one host-emitted turn event, as received in a
// POST /v1/events batch.
type IngestEvent struct {
	EventID     string         `json:"event_id"`
	TraceID     string         `json:"trace_id"`
	SpanID      string         `json:"span_id,omitempty"`
	EventType   string         `json:"event_type"`
	Timestamp   time.Time      `json:"ts"`
	Payload     map[string]any `json:"payload"`
	PayloadHash string         `json:"payload_hash"`
}

// EventBatch is the POST /v1/events request body.
type EventBatch struct {
	Events []IngestEvent `json:"events"`
}

// EvidenceStatus summarizes whether a trace's evidence pipeline ran to
// completion, per event-type counts.
type EvidenceStatus string

const (
	EvidenceStatusNone    EvidenceStatus = "none"
	EvidenceStatusPartial EvidenceStatus = "partial"
	EvidenceStatusComplete EvidenceStatus = "complete"
)

// TraceSummary is the GET /v1/traces/{trace_id} response shape.
type TraceSummary struct {
	TraceID        string         `json:"trace_id"`
	EventCounts    map[string]int `json:"event_counts"`
	Total          int            `json:"total"`
	EvidenceStatus EvidenceStatus `json:"evidence_status"`
	RetentionUntil *time.Time     `json:"retention_until,omitempty"`
	LegalHold      bool           `json:"legal_hold"`
}

// AuditPackStatus is the lifecycle state of a sidecar-tracked audit pack.
type AuditPackStatus string

const (
	AuditPackQueued AuditPackStatus = "queued"
	AuditPackReady  AuditPackStatus = "ready"
	AuditPackFailed AuditPackStatus = "failed"
)

// AuditPackRecord is one row of the sidecar's audit_packs table.
type AuditPackRecord struct {
	PackID    string          `json:"pack_id"`
	TraceID   string          `json:"trace_id"`
	Status    AuditPackStatus `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	LegalHold bool            `json:"legal_hold"`
	Error     string          `json:"error,omitempty"`
}

func evidenceStatusFor(counts map[string]int) EvidenceStatus {
	retrievalBatch := counts["retrieval_batch"]
	citationsResolved := counts["citations_resolved"]

	switch {
	case retrievalBatch >= 1 && citationsResolved >= 1:
		return EvidenceStatusComplete
	case retrievalBatch >= 1 || citationsResolved >= 1:
		return EvidenceStatusPartial
	default:
		return EvidenceStatusNone
	}
}
