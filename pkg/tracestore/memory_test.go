package tracestore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trust-evidence/gate/pkg/gate"
)

func TestMemoryStoreStoreAndLoadRoundTrips(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	in := StoreInput{
		TraceID:   "11111111-1111-1111-1111-111111111111",
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Response:  gate.ResponseContract{TraceID: "11111111-1111-1111-1111-111111111111"},
		Context:   ContextMinimal{SessionID: "sess1"},
		Replay:    gate.ReplayMetadata{PromptWindow: "hi"},
		Retention: gate.Retention{Mode: gate.Retention30Days},
	}

	require.NoError(t, store.Store(ctx, in))

	record, events, err := store.Load(ctx, in.TraceID)
	require.NoError(t, err)
	assert.Equal(t, in.TraceID, record.TraceID)
	assert.NotEmpty(t, record.ResponseHash)
	require.Len(t, events, 1)
	assert.Equal(t, "trace_created", events[0].EventType)
}

func TestMemoryStoreLoadMissingReturnsNotFound(t *testing.T) {
	store := NewMemoryStore()
	_, _, err := store.Load(context.Background(), "missing")
	require.Error(t, err)
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestMemoryStoreDeleteRefusesUnderLegalHold(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	in := StoreInput{
		TraceID:   "held-trace",
		CreatedAt: time.Now().UTC(),
		Retention: gate.Retention{Mode: gate.RetentionLegalHold, LegalHold: true},
	}
	require.NoError(t, store.Store(ctx, in))

	err := store.Delete(ctx, "held-trace")
	require.Error(t, err)
	var lh *LegalHoldError
	assert.ErrorAs(t, err, &lh)
}

func TestMemoryStoreDeleteSucceedsWithoutLegalHold(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	in := StoreInput{TraceID: "free-trace", CreatedAt: time.Now().UTC()}
	require.NoError(t, store.Store(ctx, in))
	require.NoError(t, store.Delete(ctx, "free-trace"))

	_, _, err := store.Load(ctx, "free-trace")
	require.Error(t, err)
}

func TestMemoryStoreEventsIncludeOneEntryPerIncident(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	in := StoreInput{
		TraceID:   "incident-trace",
		CreatedAt: time.Now().UTC(),
		Incidents: []gate.Incident{
			{Type: gate.IncidentEvidenceFailure, Confidence: gate.ConfidenceMedium},
			{Type: gate.IncidentHallucinationSpike, Confidence: gate.ConfidenceHigh},
		},
	}
	require.NoError(t, store.Store(ctx, in))

	_, events, err := store.Load(ctx, "incident-trace")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, 1, events[0].Seq)
	assert.Equal(t, 2, events[1].Seq)
	assert.Equal(t, events[0].Hash, events[1].PrevHash)
}
