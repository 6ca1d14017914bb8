// Package ingest implements the host-side ingest adapter (component L):
// a per-process buffered event emitter that batches turn events and
// flushes them to the evidence sidecar's ingest endpoint, minting or
// reusing a bearer token and retrying transient failures with a fixed
// linear backoff.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/trust-evidence/gate/pkg/hashchain"
	"github.com/trust-evidence/gate/pkg/security/auth"
)

// Event is one turn event queued for delivery to the sidecar.
type Event struct {
	EventID   string         `json:"event_id"`
	TraceID   string         `json:"trace_id"`
	SpanID    string         `json:"span_id,omitempty"`
	EventType string         `json:"event_type"`
	Timestamp time.Time      `json:"ts"`
	Payload   map[string]any `json:"payload"`
}

type wireEvent struct {
	Event
	PayloadHash string `json:"payload_hash"`
}

// Config configures Adapter.
type Config struct {
	// SidecarURL is the base URL of the evidence sidecar, e.g.
	// "http://localhost:8090". Read from TRUST_SIDECAR_URL when unset.
	SidecarURL string

	// BatchSize triggers an automatic flush once this many events are
	// buffered. Read from TRUST_INGEST_BATCH_SIZE (default 10, min 1).
	BatchSize int

	// MaxRetries bounds flush retry attempts on HTTP >=500 or transport
	// errors. Default 3.
	MaxRetries int

	// IngestToken is an opaque bearer token. When empty, a fresh HS256
	// JWT is minted per flush using JWTSecret.
	IngestToken string

	// JWTSecret signs a freshly minted ingest token when IngestToken is
	// empty.
	JWTSecret string

	// HTTPClient is the client used to POST batches. Defaults to
	// http.DefaultClient.
	HTTPClient *http.Client
}

func (c Config) batchSize() int {
	if c.BatchSize < 1 {
		return 10
	}
	return c.BatchSize
}

func (c Config) maxRetries() int {
	if c.MaxRetries <= 0 {
		return 3
	}
	return c.MaxRetries
}

// Adapter buffers events in memory and flushes them to the sidecar,
// either when the buffer reaches BatchSize or when Flush is called
// explicitly.
type Adapter struct {
	cfg    Config
	mu     sync.Mutex
	buffer []Event
	logger *slog.Logger
	client *http.Client
}

// New constructs an Adapter.
func New(cfg Config) *Adapter {
	if cfg.SidecarURL == "" {
		cfg.SidecarURL = os.Getenv("TRUST_SIDECAR_URL")
	}
	if cfg.BatchSize == 0 {
		if n, err := strconv.Atoi(os.Getenv("TRUST_INGEST_BATCH_SIZE")); err == nil {
			cfg.BatchSize = max(n, 1)
		}
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return &Adapter{
		cfg:    cfg,
		logger: slog.Default().With("component", "ingest.adapter"),
		client: client,
	}
}

// EmitEvent appends ev to the buffer, flushing automatically once the
// buffer reaches the configured batch size. Flush failures after
// retries drop the in-flight batch from the buffer (fail-open
// delivery): this adapter is at-most-once from a single instance.
func (a *Adapter) EmitEvent(ctx context.Context, ev Event) {
	a.mu.Lock()
	a.buffer = append(a.buffer, ev)
	shouldFlush := len(a.buffer) >= a.cfg.batchSize()
	a.mu.Unlock()

	if shouldFlush {
		if err := a.Flush(ctx); err != nil {
			a.logger.Warn("batch flush failed, events dropped from buffer", "error", err)
		}
	}
}

// Flush copies out the current buffer under the lock, clears it, then
// performs the network call unlocked so concurrent EmitEvent callers
// are never blocked on I/O.
func (a *Adapter) Flush(ctx context.Context) error {
	a.mu.Lock()
	if len(a.buffer) == 0 {
		a.mu.Unlock()
		return nil
	}
	batch := a.buffer
	a.buffer = nil
	a.mu.Unlock()

	return a.flushEvents(ctx, batch)
}

func (a *Adapter) flushEvents(ctx context.Context, events []Event) error {
	wire := make([]wireEvent, 0, len(events))
	for _, e := range events {
		hash, err := hashchain.CanonicalHash(e.Payload)
		if err != nil {
			return fmt.Errorf("ingest: hash payload for event %s: %w", e.EventID, err)
		}
		wire = append(wire, wireEvent{Event: e, PayloadHash: hash})
	}

	body, err := json.Marshal(map[string]any{"events": wire})
	if err != nil {
		return fmt.Errorf("ingest: marshal batch: %w", err)
	}

	token, err := a.resolveToken()
	if err != nil {
		return err
	}

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, a.postBatch(ctx, body, token)
	}, backoff.WithBackOff(&linearBackOff{}), backoff.WithMaxTries(uint(a.cfg.maxRetries())+1))
	return err
}

func (a *Adapter) postBatch(ctx context.Context, body []byte, token string) error {
	url := a.cfg.SidecarURL + "/v1/events"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("ingest: build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := a.client.Do(req)
	if err != nil {
		return err // transport error: retryable
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("ingest: sidecar returned %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return backoff.Permanent(fmt.Errorf("ingest: sidecar rejected batch: %d", resp.StatusCode))
	default:
		return nil
	}
}

func (a *Adapter) resolveToken() (string, error) {
	if a.cfg.IngestToken != "" {
		return a.cfg.IngestToken, nil
	}
	if a.cfg.JWTSecret == "" {
		return "", fmt.Errorf("ingest: neither IngestToken nor JWTSecret configured")
	}
	return auth.MintHS256(a.cfg.JWTSecret, "ingest-adapter", "trust:ingest", 5*time.Minute)
}

// linearBackOff implements backoff.BackOff with the fixed 0.2*attempt
// second delay documented for the ingest adapter's retry policy,
// wrapped in the cenkalti/backoff/v5 retry loop rather than a
// hand-rolled one.
type linearBackOff struct {
	attempt int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return time.Duration(float64(b.attempt)*0.2*1000) * time.Millisecond
}

func (b *linearBackOff) Reset() { b.attempt = 0 }
