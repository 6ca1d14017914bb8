package tracestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/trust-evidence/gate/pkg/gate"
	"github.com/trust-evidence/gate/pkg/hashchain"
)

// SQLiteConfig configures the SQLite trace-store backend.
type SQLiteConfig struct {
	Path         string
	MaxOpenConns int
	MaxIdleConns int
	WALMode      bool
	BusyTimeout  time.Duration
}

// DefaultSQLiteConfig returns sane defaults for the SQLite backend.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/tracestore.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStore opens (creating if needed) the SQLite database at
// config.Path and verifies its schema.
func NewSQLiteStore(config *SQLiteConfig) (*SQLiteStore, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}

	logger := slog.Default().With("component", "tracestore.sqlite")

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, NewStorageError("sqlite", "open", err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)

	s := &SQLiteStore{db: db, config: config, logger: logger}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("trace store initialized", "path", config.Path, "wal_mode", config.WALMode)
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return NewStorageError("sqlite", "enable_wal", err)
		}
	}

	busyMs := s.config.BusyTimeout.Milliseconds()
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", busyMs)); err != nil {
		return NewStorageError("sqlite", "set_busy_timeout", err)
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return NewStorageError("sqlite", "create_schema", err)
	}
	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	if err := s.db.QueryRow(GetSchemaVersion).Scan(&version); err != nil && err != sql.ErrNoRows {
		return NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	return nil
}

// Store persists the trace object and its event chain atomically within
// one transaction.
func (s *SQLiteStore) Store(ctx context.Context, in StoreInput) error {
	responseHash, contextHash, replayHash, err := computeHashes(in.Response, in.Context, in.Replay)
	if err != nil {
		return NewStorageError("sqlite", "hash", err)
	}

	events, err := buildEvents(in.TraceID, in.CreatedAt, in.Incidents)
	if err != nil {
		return NewStorageError("sqlite", "build_events", err)
	}

	responseJSON, err := json.Marshal(in.Response)
	if err != nil {
		return NewStorageError("sqlite", "marshal_response", err)
	}
	contextJSON, err := json.Marshal(in.Context)
	if err != nil {
		return NewStorageError("sqlite", "marshal_context", err)
	}
	replayJSON, err := json.Marshal(in.Replay)
	if err != nil {
		return NewStorageError("sqlite", "marshal_replay", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return NewStorageError("sqlite", "begin_tx", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO traces (
			trace_id, created_at, retention_mode, retention_expiry_at, legal_hold,
			response_json, context_json, replay_inputs_json,
			response_hash, context_hash, replay_inputs_hash,
			events_count, events_hash_chain_version
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		in.TraceID, in.CreatedAt, string(in.Retention.Mode), in.Retention.ExpiryAt, in.Retention.LegalHold,
		string(responseJSON), string(contextJSON), string(replayJSON),
		responseHash, contextHash, replayHash,
		len(events), EventsHashChainVersion,
	)
	if err != nil {
		return NewStorageError("sqlite", "store_trace", err)
	}

	for _, e := range events {
		payload, err := json.Marshal(e.Payload)
		if err != nil {
			return NewStorageError("sqlite", "marshal_event_payload", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO trace_events (trace_id, seq, ts, event_type, payload, prev_hash, hash)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, in.TraceID, e.Seq, e.Timestamp, e.EventType, string(payload), e.PrevHash, e.Hash)
		if err != nil {
			return NewStorageError("sqlite", "store_event", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return NewStorageError("sqlite", "commit", err)
	}
	return nil
}

// Load returns the stored trace object and its decoded event chain,
// ordered by seq ascending.
func (s *SQLiteStore) Load(ctx context.Context, traceID string) (*TraceRecord, []hashchain.Event, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT created_at, retention_mode, retention_expiry_at, legal_hold,
		       response_json, context_json, replay_inputs_json,
		       response_hash, context_hash, replay_inputs_hash,
		       events_count, events_hash_chain_version
		FROM traces WHERE trace_id = ?
	`, traceID)

	var record TraceRecord
	var retentionMode string
	var expiryAt sql.NullTime
	var legalHold bool
	var responseJSON, contextJSON, replayJSON string

	err := row.Scan(&record.CreatedAt, &retentionMode, &expiryAt, &legalHold,
		&responseJSON, &contextJSON, &replayJSON,
		&record.ResponseHash, &record.ContextHash, &record.ReplayInputsHash,
		&record.EventsCount, &record.EventsHashChainVersion)
	if err == sql.ErrNoRows {
		return nil, nil, NewNotFoundError(traceID)
	}
	if err != nil {
		return nil, nil, NewStorageError("sqlite", "load_trace", err)
	}

	record.TraceID = traceID
	record.Retention = gate.Retention{Mode: gate.RetentionMode(retentionMode), LegalHold: legalHold}
	if expiryAt.Valid {
		record.Retention.ExpiryAt = &expiryAt.Time
	}
	if err := json.Unmarshal([]byte(responseJSON), &record.Response); err != nil {
		return nil, nil, NewStorageError("sqlite", "unmarshal_response", err)
	}
	if err := json.Unmarshal([]byte(contextJSON), &record.Context); err != nil {
		return nil, nil, NewStorageError("sqlite", "unmarshal_context", err)
	}
	if err := json.Unmarshal([]byte(replayJSON), &record.ReplayInputs); err != nil {
		return nil, nil, NewStorageError("sqlite", "unmarshal_replay", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, ts, event_type, payload, prev_hash, hash
		FROM trace_events WHERE trace_id = ? ORDER BY seq ASC
	`, traceID)
	if err != nil {
		return nil, nil, NewStorageError("sqlite", "load_events", err)
	}
	defer rows.Close()

	var events []hashchain.Event
	for rows.Next() {
		var e hashchain.Event
		var payload string
		if err := rows.Scan(&e.Seq, &e.Timestamp, &e.EventType, &payload, &e.PrevHash, &e.Hash); err != nil {
			return nil, nil, NewStorageError("sqlite", "scan_event", err)
		}
		if err := json.Unmarshal([]byte(payload), &e.Payload); err != nil {
			return nil, nil, NewStorageError("sqlite", "unmarshal_event_payload", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, NewStorageError("sqlite", "load_events", err)
	}

	return &record, events, nil
}

// Delete removes a trace and its events, refusing when under legal hold.
func (s *SQLiteStore) Delete(ctx context.Context, traceID string) error {
	var legalHold bool
	err := s.db.QueryRowContext(ctx, `SELECT legal_hold FROM traces WHERE trace_id = ?`, traceID).Scan(&legalHold)
	if err == sql.ErrNoRows {
		return NewNotFoundError(traceID)
	}
	if err != nil {
		return NewStorageError("sqlite", "check_legal_hold", err)
	}
	if legalHold {
		return NewLegalHoldError(traceID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return NewStorageError("sqlite", "begin_tx", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM trace_events WHERE trace_id = ?`, traceID); err != nil {
		return NewStorageError("sqlite", "delete_events", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM traces WHERE trace_id = ?`, traceID); err != nil {
		return NewStorageError("sqlite", "delete_trace", err)
	}
	if err := tx.Commit(); err != nil {
		return NewStorageError("sqlite", "commit", err)
	}
	return nil
}

// Close releases the underlying database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return NewStorageError("sqlite", "close", err)
	}
	s.logger.Info("trace store closed")
	return nil
}
