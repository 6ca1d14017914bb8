package sidecar

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/google/uuid"
	"github.com/trust-evidence/gate/pkg/hashchain"
)

// Config configures the sidecar's relational store.
type Config struct {
	Path          string
	RetentionDays int
}

// Store is the sidecar's event/trace-summary/audit-pack relational
// store, backed by the pure-Go modernc.org/sqlite driver (the cgo driver,
// mattn/go-sqlite3, backs the separate trace store in pkg/tracestore; it
// is imported there directly, not behind a build tag).
type Store struct {
	db     *sql.DB
	config Config
	logger *slog.Logger
}

// NewStore opens (creating if needed) the sidecar database at
// config.Path and verifies its schema.
func NewStore(config Config) (*Store, error) {
	logger := slog.Default().With("component", "sidecar.store")

	db, err := sql.Open("sqlite", config.Path)
	if err != nil {
		return nil, NewStorageError("open", err)
	}

	s := &Store{db: db, config: config, logger: logger}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("sidecar store initialized", "path", config.Path)
	return s, nil
}

func (s *Store) initialize() error {
	if _, err := s.db.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		return NewStorageError("set_busy_timeout", err)
	}
	if _, err := s.db.Exec(Schema); err != nil {
		return NewStorageError("create_schema", err)
	}
	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return NewStorageError("insert_schema_version", err)
	}
	var version int
	if err := s.db.QueryRow(GetSchemaVersion).Scan(&version); err != nil && err != sql.ErrNoRows {
		return NewStorageError("get_schema_version", err)
	}
	if version != SchemaVersion {
		return NewStorageError("schema_version_mismatch",
			fmt.Errorf("expected %d, got %d", SchemaVersion, version))
	}
	return nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return NewStorageError("close", err)
	}
	return nil
}

// IngestBatch validates and atomically inserts a batch of events: each
// event's canonical payload hash is recomputed and compared against its
// submitted payload_hash, and the owning trace row is upserted. Either
// every event in the batch is visible afterward, or none are.
func (s *Store) IngestBatch(ctx context.Context, events []IngestEvent) error {
	for _, e := range events {
		if e.TraceID == "" || e.EventType == "" {
			return NewMalformedEventError(e.EventID, "trace_id and event_type are required")
		}
		if e.EventID == "" {
			return NewMalformedEventError(e.EventID, "event_id is required")
		}
		want, err := hashchain.CanonicalHash(e.Payload)
		if err != nil {
			return NewMalformedEventError(e.EventID, "payload is not canonicalizable")
		}
		if e.PayloadHash != "" && e.PayloadHash != want {
			return NewMalformedEventError(e.EventID, "payload_hash does not match recomputed canonical hash")
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return NewStorageError("begin_tx", err)
	}
	defer tx.Rollback()

	seenTraces := make(map[string]bool)
	for _, e := range events {
		if !seenTraces[e.TraceID] {
			userID, _ := e.Payload["user_id"].(string)
			messageID, _ := e.Payload["message_id"].(string)
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO sidecar_traces (trace_id, created_at, legal_hold, user_id, message_id)
				VALUES (?, ?, 0, NULLIF(?, ''), NULLIF(?, ''))
				ON CONFLICT(trace_id) DO UPDATE SET
					user_id = COALESCE(sidecar_traces.user_id, excluded.user_id),
					message_id = COALESCE(sidecar_traces.message_id, excluded.message_id)
			`, e.TraceID, e.Timestamp, userID, messageID); err != nil {
				return NewStorageError("upsert_trace", err)
			}
			seenTraces[e.TraceID] = true
		}

		payload, err := json.Marshal(e.Payload)
		if err != nil {
			return NewStorageError("marshal_payload", err)
		}

		hash, _ := hashchain.CanonicalHash(e.Payload)
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sidecar_events (event_id, trace_id, span_id, event_type, ts, payload, payload_hash)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, e.EventID, e.TraceID, e.SpanID, e.EventType, e.Timestamp, string(payload), hash); err != nil {
			return NewStorageError("insert_event", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return NewStorageError("commit", err)
	}
	return nil
}

// GetTraceSummary returns event counts by type, total, evidence_status,
// and retention/legal-hold fields for traceID.
func (s *Store) GetTraceSummary(ctx context.Context, traceID string) (*TraceSummary, error) {
	var createdAt time.Time
	var retentionUntil sql.NullTime
	var legalHold bool
	err := s.db.QueryRowContext(ctx, `
		SELECT created_at, retention_until, legal_hold FROM sidecar_traces WHERE trace_id = ?
	`, traceID).Scan(&createdAt, &retentionUntil, &legalHold)
	if err == sql.ErrNoRows {
		return nil, NewNotFoundError("trace", traceID)
	}
	if err != nil {
		return nil, NewStorageError("load_trace", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT event_type, COUNT(*) FROM sidecar_events WHERE trace_id = ? GROUP BY event_type
	`, traceID)
	if err != nil {
		return nil, NewStorageError("count_events", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	total := 0
	for rows.Next() {
		var eventType string
		var count int
		if err := rows.Scan(&eventType, &count); err != nil {
			return nil, NewStorageError("scan_event_count", err)
		}
		counts[eventType] = count
		total += count
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("count_events", err)
	}

	summary := &TraceSummary{
		TraceID:        traceID,
		EventCounts:    counts,
		Total:          total,
		EvidenceStatus: evidenceStatusFor(counts),
		LegalHold:      legalHold,
	}
	if retentionUntil.Valid {
		summary.RetentionUntil = &retentionUntil.Time
	}
	return summary, nil
}

// GetTraceIDByMessageID resolves a host-supplied message_id to its owning
// trace_id, scoped to userID so one user can never resolve another's
// message into a trace_id: a message_id recorded under a different user
// is treated the same as one that does not exist at all.
func (s *Store) GetTraceIDByMessageID(ctx context.Context, userID, messageID string) (string, error) {
	var traceID string
	err := s.db.QueryRowContext(ctx, `
		SELECT trace_id FROM sidecar_traces WHERE message_id = ? AND user_id = ?
	`, messageID, userID).Scan(&traceID)
	if err == sql.ErrNoRows {
		return "", NewNotFoundError("evidence_trace", messageID)
	}
	if err != nil {
		return "", NewStorageError("lookup_message_id", err)
	}
	return traceID, nil
}

// CreateAuditPackRecord inserts a new queued audit-pack row and returns
// its generated id.
func (s *Store) CreateAuditPackRecord(ctx context.Context, traceID string) (string, error) {
	packID := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_packs (pack_id, trace_id, status, created_at, legal_hold)
		VALUES (?, ?, ?, ?, (SELECT legal_hold FROM sidecar_traces WHERE trace_id = ?))
	`, packID, traceID, AuditPackQueued, time.Now().UTC(), traceID)
	if err != nil {
		return "", NewStorageError("create_audit_pack", err)
	}
	return packID, nil
}

// MarkAuditPackReady stores the packaged zip bytes and flips status to
// ready.
func (s *Store) MarkAuditPackReady(ctx context.Context, packID string, zipBytes []byte) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE audit_packs SET status = ?, zip_blob = ?, error = NULL WHERE pack_id = ?
	`, AuditPackReady, zipBytes, packID)
	if err != nil {
		return NewStorageError("mark_audit_pack_ready", err)
	}
	return nil
}

// MarkAuditPackFailed flips status to failed with the given message.
func (s *Store) MarkAuditPackFailed(ctx context.Context, packID string, errMsg string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE audit_packs SET status = ?, error = ? WHERE pack_id = ?
	`, AuditPackFailed, errMsg, packID)
	if err != nil {
		return NewStorageError("mark_audit_pack_failed", err)
	}
	return nil
}

// GetAuditPackRecord loads one audit pack's metadata.
func (s *Store) GetAuditPackRecord(ctx context.Context, packID string) (*AuditPackRecord, error) {
	var rec AuditPackRecord
	var errMsg sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT pack_id, trace_id, status, created_at, legal_hold, error FROM audit_packs WHERE pack_id = ?
	`, packID).Scan(&rec.PackID, &rec.TraceID, &rec.Status, &rec.CreatedAt, &rec.LegalHold, &errMsg)
	if err == sql.ErrNoRows {
		return nil, NewNotFoundError("audit_pack", packID)
	}
	if err != nil {
		return nil, NewStorageError("load_audit_pack", err)
	}
	rec.Error = errMsg.String
	return &rec, nil
}

// GetAuditPackZip returns the packaged zip bytes for a ready pack.
func (s *Store) GetAuditPackZip(ctx context.Context, packID string) ([]byte, error) {
	var status AuditPackStatus
	var zipBlob []byte
	err := s.db.QueryRowContext(ctx, `SELECT status, zip_blob FROM audit_packs WHERE pack_id = ?`, packID).
		Scan(&status, &zipBlob)
	if err == sql.ErrNoRows {
		return nil, NewNotFoundError("audit_pack", packID)
	}
	if err != nil {
		return nil, NewStorageError("load_audit_pack_zip", err)
	}
	if status != AuditPackReady {
		return nil, NewPackNotReadyError(packID, status)
	}
	if zipBlob == nil {
		return nil, NewNotFoundError("audit_pack_file", packID)
	}
	return zipBlob, nil
}

// SetLegalHold sets or clears legal hold on a trace, cascading to every
// audit pack row tracked for it.
func (s *Store) SetLegalHold(ctx context.Context, traceID string, hold bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return NewStorageError("begin_tx", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE sidecar_traces SET legal_hold = ? WHERE trace_id = ?`, hold, traceID); err != nil {
		return NewStorageError("set_legal_hold_trace", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE audit_packs SET legal_hold = ? WHERE trace_id = ?`, hold, traceID); err != nil {
		return NewStorageError("set_legal_hold_packs", err)
	}
	if err := tx.Commit(); err != nil {
		return NewStorageError("commit", err)
	}
	return nil
}

// RetentionSweepResult summarizes one sidecar retention run.
type RetentionSweepResult struct {
	AuditPacksDeleted int
	TracesDeleted     int
}

// RunRetentionSweep deletes expired audit-pack rows first, then expired
// trace rows and their dependent events, in that order, skipping
// anything under legal hold — matching the two-phase cascade the
// sidecar's retention endpoint documents.
func (s *Store) RunRetentionSweep(ctx context.Context, retentionDays int, asOf time.Time) (RetentionSweepResult, error) {
	cutoff := asOf.AddDate(0, 0, -retentionDays)

	packResult, err := s.db.ExecContext(ctx, `
		DELETE FROM audit_packs
		WHERE legal_hold = 0 AND created_at <= ?
	`, cutoff)
	if err != nil {
		return RetentionSweepResult{}, NewStorageError("sweep_audit_packs", err)
	}
	packsDeleted, _ := packResult.RowsAffected()

	traceResult, err := s.db.ExecContext(ctx, `
		DELETE FROM sidecar_traces
		WHERE legal_hold = 0
		AND created_at <= ?
		AND trace_id NOT IN (SELECT trace_id FROM audit_packs WHERE legal_hold = 1)
	`, cutoff)
	if err != nil {
		return RetentionSweepResult{}, NewStorageError("sweep_traces", err)
	}
	tracesDeleted, _ := traceResult.RowsAffected()

	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM sidecar_events WHERE trace_id NOT IN (SELECT trace_id FROM sidecar_traces)
	`); err != nil {
		return RetentionSweepResult{}, NewStorageError("sweep_events", err)
	}

	s.logger.Info("sidecar retention sweep complete",
		"audit_packs_deleted", packsDeleted, "traces_deleted", tracesDeleted)
	return RetentionSweepResult{AuditPacksDeleted: int(packsDeleted), TracesDeleted: int(tracesDeleted)}, nil
}
