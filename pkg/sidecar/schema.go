package sidecar

// SchemaVersion is the current sidecar database schema version.
const SchemaVersion = 1

// Schema creates the sidecar's relational store: one row per ingested
// event, one summary row per trace, and one row per tracked audit pack.
const Schema = `
CREATE TABLE IF NOT EXISTS sidecar_events (
    event_id TEXT PRIMARY KEY,
    trace_id TEXT NOT NULL,
    span_id TEXT,
    event_type TEXT NOT NULL,
    ts TIMESTAMP NOT NULL,
    payload TEXT NOT NULL,
    payload_hash TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sidecar_traces (
    trace_id TEXT PRIMARY KEY,
    created_at TIMESTAMP NOT NULL,
    retention_until TIMESTAMP,
    legal_hold BOOLEAN NOT NULL DEFAULT 0,
    user_id TEXT,
    message_id TEXT
);

CREATE TABLE IF NOT EXISTS audit_packs (
    pack_id TEXT PRIMARY KEY,
    trace_id TEXT NOT NULL,
    status TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    legal_hold BOOLEAN NOT NULL DEFAULT 0,
    error TEXT,
    zip_blob BLOB
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sidecar_events_trace_id ON sidecar_events(trace_id);
CREATE INDEX IF NOT EXISTS idx_sidecar_events_ts ON sidecar_events(trace_id, ts, event_id);
CREATE INDEX IF NOT EXISTS idx_sidecar_traces_legal_hold ON sidecar_traces(legal_hold);
CREATE INDEX IF NOT EXISTS idx_sidecar_traces_message_id ON sidecar_traces(user_id, message_id);
CREATE INDEX IF NOT EXISTS idx_audit_packs_trace_id ON audit_packs(trace_id);
CREATE INDEX IF NOT EXISTS idx_audit_packs_legal_hold ON audit_packs(legal_hold);
`

// InsertSchemaVersion records the applied schema version.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion retrieves the current schema version.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`
