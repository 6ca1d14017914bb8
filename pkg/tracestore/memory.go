package tracestore

import (
	"context"
	"sync"

	"github.com/trust-evidence/gate/pkg/hashchain"
)

// MemoryStore implements Store using an in-memory map. Intended for tests
// and for sidecar deployments backed by an external durable store fronted
// by a cache; not a production-durable backend on its own.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*TraceRecord
	events  map[string][]hashchain.Event
}

// NewMemoryStore creates an empty in-memory trace store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*TraceRecord),
		events:  make(map[string][]hashchain.Event),
	}
}

// Store computes the three integrity hashes, builds the event chain, and
// persists both artifacts.
func (s *MemoryStore) Store(ctx context.Context, in StoreInput) error {
	responseHash, contextHash, replayHash, err := computeHashes(in.Response, in.Context, in.Replay)
	if err != nil {
		return NewStorageError("memory", "hash", err)
	}

	events, err := buildEvents(in.TraceID, in.CreatedAt, in.Incidents)
	if err != nil {
		return NewStorageError("memory", "build_events", err)
	}

	record := &TraceRecord{
		TraceID:                in.TraceID,
		CreatedAt:              in.CreatedAt,
		Retention:              in.Retention,
		Response:               in.Response,
		Context:                in.Context,
		ReplayInputs:           in.Replay,
		ResponseHash:           responseHash,
		ContextHash:            contextHash,
		ReplayInputsHash:       replayHash,
		EventsCount:            len(events),
		EventsHashChainVersion: EventsHashChainVersion,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[in.TraceID] = record
	s.events[in.TraceID] = events
	return nil
}

// Load returns the stored object and decoded events for traceID.
func (s *MemoryStore) Load(ctx context.Context, traceID string) (*TraceRecord, []hashchain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[traceID]
	if !ok {
		return nil, nil, NewNotFoundError(traceID)
	}
	recordCopy := *record
	events := append([]hashchain.Event{}, s.events[traceID]...)
	return &recordCopy, events, nil
}

// Delete removes traceID's record and events, refusing when the record is
// under legal hold.
func (s *MemoryStore) Delete(ctx context.Context, traceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[traceID]
	if !ok {
		return NewNotFoundError(traceID)
	}
	if record.Retention.LegalHold {
		return NewLegalHoldError(traceID)
	}

	delete(s.records, traceID)
	delete(s.events, traceID)
	return nil
}

// Close releases resources; a no-op for the in-memory backend.
func (s *MemoryStore) Close() error {
	return nil
}
