package sidecar

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	store, err := NewStore(Config{Path: filepath.Join(dir, "sidecar.db"), RetentionDays: 90})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func ingestEvent(traceID, eventType, userID, messageID string, ts time.Time) IngestEvent {
	payload := map[string]any{"user_id": userID, "message_id": messageID}
	return IngestEvent{
		EventID:   traceID + "-" + eventType,
		TraceID:   traceID,
		EventType: eventType,
		Timestamp: ts,
		Payload:   payload,
	}
}

func TestIngestBatchRejectsMissingRequiredFields(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.IngestBatch(ctx, []IngestEvent{{EventID: "e1"}})
	require.Error(t, err)
	_, ok := err.(*MalformedEventError)
	assert.True(t, ok)
}

func TestIngestBatchRejectsMismatchedPayloadHash(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ev := ingestEvent("trace-1", "retrieval_batch", "user-1", "msg-1", time.Now().UTC())
	ev.PayloadHash = "not-the-real-hash"
	err := store.IngestBatch(ctx, []IngestEvent{ev})
	require.Error(t, err)
	_, ok := err.(*MalformedEventError)
	assert.True(t, ok)
}

func TestIngestBatchIsAllOrNothing(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	good := ingestEvent("trace-1", "retrieval_batch", "user-1", "msg-1", time.Now().UTC())
	bad := IngestEvent{EventID: ""}

	err := store.IngestBatch(ctx, []IngestEvent{good, bad})
	require.Error(t, err)

	_, err = store.GetTraceSummary(ctx, "trace-1")
	assert.Error(t, err, "trace-1 must not be visible after a batch that failed validation")
}

func TestGetTraceSummaryAggregatesEventCounts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	events := []IngestEvent{
		ingestEvent("trace-1", "retrieval_batch", "user-1", "msg-1", now),
		ingestEvent("trace-1", "citations_resolved", "user-1", "msg-1", now),
	}
	require.NoError(t, store.IngestBatch(ctx, events))

	summary, err := store.GetTraceSummary(ctx, "trace-1")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, EvidenceStatusComplete, summary.EvidenceStatus)
	assert.False(t, summary.LegalHold)
}

func TestGetTraceSummaryNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetTraceSummary(context.Background(), "does-not-exist")
	require.Error(t, err)
	_, ok := err.(*NotFoundError)
	assert.True(t, ok)
}

func TestGetTraceIDByMessageIDScopesToOwningUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.IngestBatch(ctx, []IngestEvent{
		ingestEvent("trace-1", "retrieval_batch", "user-1", "msg-1", now),
	}))

	traceID, err := store.GetTraceIDByMessageID(ctx, "user-1", "msg-1")
	require.NoError(t, err)
	assert.Equal(t, "trace-1", traceID)
}

func TestGetTraceIDByMessageIDCrossUserLooksLikeNotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.IngestBatch(ctx, []IngestEvent{
		ingestEvent("trace-1", "retrieval_batch", "user-1", "msg-1", now),
	}))

	_, errOtherUser := store.GetTraceIDByMessageID(ctx, "user-2", "msg-1")
	_, errUnknownMsg := store.GetTraceIDByMessageID(ctx, "user-1", "msg-unknown")

	require.Error(t, errOtherUser)
	require.Error(t, errUnknownMsg)
	otherUserNotFound, ok1 := errOtherUser.(*NotFoundError)
	unknownMsgNotFound, ok2 := errUnknownMsg.(*NotFoundError)
	require.True(t, ok1)
	require.True(t, ok2)
	assert.Equal(t, unknownMsgNotFound.Resource, otherUserNotFound.Resource,
		"a message_id owned by another user must map to the same not-found shape as one that was never recorded")
}

func TestAuditPackLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.IngestBatch(ctx, []IngestEvent{
		ingestEvent("trace-1", "retrieval_batch", "user-1", "msg-1", now),
	}))

	packID, err := store.CreateAuditPackRecord(ctx, "trace-1")
	require.NoError(t, err)

	_, err = store.GetAuditPackZip(ctx, packID)
	require.Error(t, err, "a queued pack has no zip bytes yet")
	_, ok := err.(*PackNotReadyError)
	assert.True(t, ok)

	require.NoError(t, store.MarkAuditPackReady(ctx, packID, []byte("zip-bytes")))

	zipBytes, err := store.GetAuditPackZip(ctx, packID)
	require.NoError(t, err)
	assert.Equal(t, []byte("zip-bytes"), zipBytes)

	record, err := store.GetAuditPackRecord(ctx, packID)
	require.NoError(t, err)
	assert.Equal(t, AuditPackReady, record.Status)
}

func TestSetLegalHoldCascadesToAuditPacks(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.IngestBatch(ctx, []IngestEvent{
		ingestEvent("trace-1", "retrieval_batch", "user-1", "msg-1", now),
	}))
	packID, err := store.CreateAuditPackRecord(ctx, "trace-1")
	require.NoError(t, err)

	require.NoError(t, store.SetLegalHold(ctx, "trace-1", true))

	summary, err := store.GetTraceSummary(ctx, "trace-1")
	require.NoError(t, err)
	assert.True(t, summary.LegalHold)

	record, err := store.GetAuditPackRecord(ctx, packID)
	require.NoError(t, err)
	assert.True(t, record.LegalHold)
}

func TestRunRetentionSweepSkipsLegalHold(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	old := time.Now().UTC().AddDate(0, 0, -100)

	require.NoError(t, store.IngestBatch(ctx, []IngestEvent{
		ingestEvent("trace-old", "retrieval_batch", "user-1", "msg-1", old),
	}))
	require.NoError(t, store.IngestBatch(ctx, []IngestEvent{
		ingestEvent("trace-held", "retrieval_batch", "user-1", "msg-2", old),
	}))
	require.NoError(t, store.SetLegalHold(ctx, "trace-held", true))

	result, err := store.RunRetentionSweep(ctx, 90, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 1, result.TracesDeleted)

	_, err = store.GetTraceSummary(ctx, "trace-old")
	assert.Error(t, err)
	_, err = store.GetTraceSummary(ctx, "trace-held")
	assert.NoError(t, err)
}
