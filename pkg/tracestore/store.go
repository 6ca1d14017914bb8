package tracestore

import (
	"context"
	"time"

	"github.com/trust-evidence/gate/pkg/gate"
	"github.com/trust-evidence/gate/pkg/hashchain"
)

// StoreInput carries everything needed to persist one trace (component I
// step "store").
type StoreInput struct {
	TraceID   string
	CreatedAt time.Time
	Response  gate.ResponseContract
	Context   ContextMinimal
	Replay    gate.ReplayMetadata
	Incidents []gate.Incident
	Retention gate.Retention
}

// Store is the trace-persistence contract: store/load/delete over a
// per-trace object plus its hash-chained event log.
type Store interface {
	Store(ctx context.Context, in StoreInput) error
	Load(ctx context.Context, traceID string) (*TraceRecord, []hashchain.Event, error)
	Delete(ctx context.Context, traceID string) error
	Close() error
}
