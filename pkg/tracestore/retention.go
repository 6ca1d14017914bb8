package tracestore

import (
	"context"
	"log/slog"
	"time"
)

// Lister is implemented by backends that can enumerate trace ids whose
// retention window has expired. SQLiteStore implements it; MemoryStore
// does not, and RunRetentionSweep has no path that works without a
// Lister.
type Lister interface {
	ExpiredTraceIDs(ctx context.Context, asOf time.Time) ([]string, error)
}

// ExpiredTraceIDs returns trace ids whose retention_expiry_at has passed
// and which are not under legal hold.
func (s *SQLiteStore) ExpiredTraceIDs(ctx context.Context, asOf time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT trace_id FROM traces
		WHERE legal_hold = 0 AND retention_expiry_at IS NOT NULL AND retention_expiry_at <= ?
	`, asOf)
	if err != nil {
		return nil, NewStorageError("sqlite", "list_expired", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, NewStorageError("sqlite", "scan_expired", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RetentionSweepResult summarizes one retention run.
type RetentionSweepResult struct {
	Deleted       []string
	SkippedHeld   []string
	Errored       map[string]error
}

// RunRetentionSweep deletes every trace whose retention window has
// expired, skipping (not erroring on) anything under legal hold. It
// never blocks callers for the full table: each delete is its own
// transaction, scoped to one trace id.
func RunRetentionSweep(ctx context.Context, store Store, lister Lister, asOf time.Time) RetentionSweepResult {
	logger := slog.Default().With("component", "tracestore.retention")
	result := RetentionSweepResult{Errored: make(map[string]error)}

	ids, err := lister.ExpiredTraceIDs(ctx, asOf)
	if err != nil {
		logger.Error("retention sweep: list expired failed", "error", err)
		result.Errored["__list__"] = err
		return result
	}

	for _, id := range ids {
		err := store.Delete(ctx, id)
		switch {
		case err == nil:
			result.Deleted = append(result.Deleted, id)
		case isLegalHold(err):
			result.SkippedHeld = append(result.SkippedHeld, id)
		default:
			logger.Error("retention sweep: delete failed", "trace_id", id, "error", err)
			result.Errored[id] = err
		}
	}

	logger.Info("retention sweep complete",
		"deleted", len(result.Deleted), "skipped_held", len(result.SkippedHeld), "errored", len(result.Errored))
	return result
}

func isLegalHold(err error) bool {
	_, ok := err.(*LegalHoldError)
	return ok
}
