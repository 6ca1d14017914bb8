package hashchain

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBuildChainThenValidate(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	events := []Event{
		{Timestamp: now, EventType: "trace_created", Payload: map[string]any{"trace_id": "t1"}},
		{Timestamp: now.Add(time.Second), EventType: "decision_recorded", Payload: map[string]any{"decision": "ALLOW"}},
	}

	built, err := BuildChain(events)
	require.NoError(t, err)
	require.Equal(t, GenesisHash, built[0].PrevHash)
	require.Equal(t, built[0].Hash, built[1].PrevHash)
	require.NoError(t, ValidateChain(built))
}

func TestValidateChainDetectsBitFlip(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	events := []Event{
		{Timestamp: now, EventType: "trace_created", Payload: map[string]any{"trace_id": "t1"}},
		{Timestamp: now, EventType: "decision_recorded", Payload: map[string]any{"decision": "ALLOW"}},
	}
	built, err := BuildChain(events)
	require.NoError(t, err)

	built[1].Payload["decision"] = "REFUSE"
	require.Error(t, ValidateChain(built))
}

func TestCanonicalHashIgnoresKeyOrder(t *testing.T) {
	a := map[string]any{"b": 1, "a": 2}
	b := map[string]any{"a": 2, "b": 1}

	ha, err := CanonicalHash(a)
	require.NoError(t, err)
	hb, err := CanonicalHash(b)
	require.NoError(t, err)
	require.Equal(t, ha, hb)
}

func TestEncodeDecodeJSONLRoundTrip(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	events := []Event{
		{Timestamp: now, EventType: "trace_created", Payload: map[string]any{"trace_id": "t1"}},
	}
	built, err := BuildChain(events)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, EncodeJSONL(&buf, built))

	decoded, err := DecodeJSONL(&buf)
	require.NoError(t, err)
	require.NoError(t, ValidateChain(decoded))
}

func TestEncodeJSONLEmptyProducesNoBytes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeJSONL(&buf, nil))
	require.Equal(t, 0, buf.Len())
}
