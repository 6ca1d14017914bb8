package ingest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEvent(id string) Event {
	return Event{
		EventID:   id,
		TraceID:   "trace-1",
		EventType: "retrieval_batch",
		Timestamp: time.Now().UTC(),
		Payload:   map[string]any{"n": id},
	}
}

func TestFlushPostsBufferedEventsWithPayloadHash(t *testing.T) {
	var receivedAuth string
	var receivedBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&receivedBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := New(Config{SidecarURL: srv.URL, JWTSecret: "test-secret", BatchSize: 10})
	a.EmitEvent(context.Background(), newEvent("e1"))
	a.EmitEvent(context.Background(), newEvent("e2"))

	require.NoError(t, a.Flush(context.Background()))

	assert.Contains(t, receivedAuth, "Bearer ")
	events, ok := receivedBody["events"].([]any)
	require.True(t, ok)
	assert.Len(t, events, 2)
	first := events[0].(map[string]any)
	assert.NotEmpty(t, first["payload_hash"])
}

func TestEmitEventAutoFlushesAtBatchSize(t *testing.T) {
	var callCount int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&callCount, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := New(Config{SidecarURL: srv.URL, JWTSecret: "test-secret", BatchSize: 2})
	a.EmitEvent(context.Background(), newEvent("e1"))
	assert.Equal(t, int32(0), atomic.LoadInt32(&callCount), "flush must not fire before batch size is reached")

	a.EmitEvent(context.Background(), newEvent("e2"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&callCount), "flush must fire once the buffer reaches batch size")
}

func TestFlushWithEmptyBufferIsNoop(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := New(Config{SidecarURL: srv.URL, JWTSecret: "test-secret"})
	require.NoError(t, a.Flush(context.Background()))
	assert.False(t, called)
}

func TestFlushRetriesOnServerErrorThenSucceeds(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := New(Config{SidecarURL: srv.URL, JWTSecret: "test-secret", BatchSize: 1, MaxRetries: 3})
	a.EmitEvent(context.Background(), newEvent("e1"))

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&attempts) >= 3
	}, 3*time.Second, 10*time.Millisecond)
}

func TestFlushDoesNotRetryOnClientError(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	a := New(Config{SidecarURL: srv.URL, JWTSecret: "test-secret", BatchSize: 1, MaxRetries: 3})
	a.EmitEvent(context.Background(), newEvent("e1"))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts), "a 4xx rejection must not be retried")
}

func TestResolveTokenPrefersExplicitIngestToken(t *testing.T) {
	a := New(Config{IngestToken: "fixed-token"})
	token, err := a.resolveToken()
	require.NoError(t, err)
	assert.Equal(t, "fixed-token", token)
}

func TestResolveTokenFailsWithoutSecretOrToken(t *testing.T) {
	a := New(Config{})
	_, err := a.resolveToken()
	assert.Error(t, err)
}

func TestLinearBackOffIncreasesPerAttempt(t *testing.T) {
	b := &linearBackOff{}
	first := b.NextBackOff()
	second := b.NextBackOff()
	assert.Less(t, first, second)
	b.Reset()
	assert.Equal(t, first, b.NextBackOff())
}
