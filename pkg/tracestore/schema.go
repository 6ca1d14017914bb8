package tracestore

// SchemaVersion is the current trace-store database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the trace-store database
// schema: one row per trace, one row per chained event.
const Schema = `
CREATE TABLE IF NOT EXISTS traces (
    trace_id TEXT PRIMARY KEY,
    created_at TIMESTAMP NOT NULL,
    retention_mode TEXT NOT NULL,
    retention_expiry_at TIMESTAMP,
    legal_hold BOOLEAN NOT NULL DEFAULT 0,
    response_json TEXT NOT NULL,
    context_json TEXT NOT NULL,
    replay_inputs_json TEXT NOT NULL,
    response_hash TEXT NOT NULL,
    context_hash TEXT NOT NULL,
    replay_inputs_hash TEXT NOT NULL,
    events_count INTEGER NOT NULL,
    events_hash_chain_version TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS trace_events (
    trace_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    ts TIMESTAMP NOT NULL,
    event_type TEXT NOT NULL,
    payload TEXT NOT NULL,
    prev_hash TEXT NOT NULL,
    hash TEXT NOT NULL,
    PRIMARY KEY (trace_id, seq)
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_traces_created_at ON traces(created_at);
CREATE INDEX IF NOT EXISTS idx_traces_legal_hold ON traces(legal_hold);
CREATE INDEX IF NOT EXISTS idx_trace_events_trace_id ON trace_events(trace_id);
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
