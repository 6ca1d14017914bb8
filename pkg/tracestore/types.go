// Package tracestore persists trace records and their hash-chained event
// logs (component I): one object per gate decision, plus an append-only
// event chain rooted at the hashchain genesis hash.
package tracestore

import (
	"time"

	"github.com/trust-evidence/gate/pkg/gate"
	"github.com/trust-evidence/gate/pkg/hashchain"
)

// ContextMinimal is the minimal request metadata persisted alongside a
// trace, never the raw prompt/model-output in full.
type ContextMinimal struct {
	SessionID     string            `json:"session_id,omitempty"`
	UserID        string            `json:"user_id,omitempty"`
	RequiredScope string            `json:"required_scope,omitempty"`
	Extra         map[string]any    `json:"extra,omitempty"`
}

// TraceRecord is the persisted object for one gate decision.
type TraceRecord struct {
	TraceID               string                   `json:"trace_id"`
	CreatedAt             time.Time                `json:"created_at"`
	Retention             gate.Retention           `json:"retention"`
	Response              gate.ResponseContract    `json:"response"`
	Context               ContextMinimal           `json:"context"`
	ReplayInputs          gate.ReplayMetadata      `json:"replay_inputs"`
	ResponseHash          string                   `json:"response_hash"`
	ContextHash           string                   `json:"context_hash"`
	ReplayInputsHash      string                   `json:"replay_inputs_hash"`
	EventsCount           int                      `json:"events_count"`
	EventsHashChainVersion string                  `json:"events_hash_chain_version"`
}

// EventsHashChainVersion is stamped into every trace record's event log.
const EventsHashChainVersion = "1.0.0"

// computeHashes derives the three integrity hashes documented for
// TraceRecord from their canonical JSON serialization.
func computeHashes(response gate.ResponseContract, context ContextMinimal, replay gate.ReplayMetadata) (responseHash, contextHash, replayHash string, err error) {
	responseHash, err = hashchain.CanonicalHash(response)
	if err != nil {
		return "", "", "", err
	}
	contextHash, err = hashchain.CanonicalHash(context)
	if err != nil {
		return "", "", "", err
	}
	replayHash, err = hashchain.CanonicalHash(replay)
	if err != nil {
		return "", "", "", err
	}
	return responseHash, contextHash, replayHash, nil
}

// buildEvents builds the per-trace event chain: one event per incident,
// or a single trace_created event when there are none.
func buildEvents(traceID string, createdAt time.Time, incidents []gate.Incident) ([]hashchain.Event, error) {
	if len(incidents) == 0 {
		return hashchain.BuildChain([]hashchain.Event{
			{Timestamp: createdAt, EventType: "trace_created", Payload: map[string]any{"trace_id": traceID}},
		})
	}

	raw := make([]hashchain.Event, 0, len(incidents))
	for _, inc := range incidents {
		raw = append(raw, hashchain.Event{
			Timestamp: createdAt,
			EventType: "incident:" + string(inc.Type),
			Payload: map[string]any{
				"trace_id":   traceID,
				"confidence": string(inc.Confidence),
				"detail":     inc.Detail,
			},
		})
	}
	return hashchain.BuildChain(raw)
}
