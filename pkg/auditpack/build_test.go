package auditpack

import (
	"archive/zip"
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trust-evidence/gate/pkg/gate"
	"github.com/trust-evidence/gate/pkg/hashchain"
	"github.com/trust-evidence/gate/pkg/tracestore"
)

func validRecordAndEvents(t *testing.T) (*tracestore.TraceRecord, []hashchain.Event) {
	t.Helper()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	response := gate.ResponseContract{
		ContractVersion: gate.ContractVersion,
		Decision:        "ALLOW",
		AnswerText:      "The deployment window is Tuesday.[1]",
		TraceID:         "trace-1",
		EvidenceBundleUser: gate.EvidenceBundleUser{
			Sources: []gate.EvidenceSource{
				{ID: "src-1", Snippet: "Deploys run Tuesdays.", Hash: "h1", TrustLevel: gate.TrustPrimary, Origin: gate.OriginInternal},
			},
			Citations: []gate.Citation{{CitationNumber: 1, SourceID: "src-1"}},
		},
		DecisionRecord: gate.DecisionRecord{
			Claims: []gate.Claim{
				{ClaimID: "c1", ClaimText: "The deployment window is Tuesday.", ClaimType: gate.ClaimFactual, VerificationStatus: gate.VerificationSupported, MatchedSourceIDs: []string{"src-1"}},
			},
			EvidenceLinks: []gate.EvidenceLink{{ClaimID: "c1", SourceID: "src-1"}},
			PolicyChecks:  []gate.PolicyCheckResult{{PolicyID: "policy-redaction", Passed: true, Version: "1.0.0"}},
			CreatedAt:     now,
		},
	}
	context := tracestore.ContextMinimal{SessionID: "sess-1", UserID: "user-1"}
	replay := gate.ReplayMetadata{PromptWindow: "when do deploys run?", PolicyVersions: map[string]string{"policy-redaction": "1.0.0"}}

	responseHash, err := hashchain.CanonicalHash(response)
	require.NoError(t, err)
	contextHash, err := hashchain.CanonicalHash(context)
	require.NoError(t, err)
	replayHash, err := hashchain.CanonicalHash(replay)
	require.NoError(t, err)

	record := &tracestore.TraceRecord{
		TraceID:                "trace-1",
		CreatedAt:              now,
		Retention:              gate.Retention{Mode: gate.Retention90Days},
		Response:               response,
		Context:                context,
		ReplayInputs:           replay,
		ResponseHash:           responseHash,
		ContextHash:            contextHash,
		ReplayInputsHash:       replayHash,
		EventsCount:            1,
		EventsHashChainVersion: tracestore.EventsHashChainVersion,
	}

	events, err := hashchain.BuildChain([]hashchain.Event{
		{Timestamp: now, EventType: "trace_created", Payload: map[string]any{"trace_id": "trace-1"}},
	})
	require.NoError(t, err)

	return record, events
}

func TestBuildHostPackHappyPath(t *testing.T) {
	record, events := validRecordAndEvents(t)

	built, err := BuildHostPack(BuildInput{
		Record:                  record,
		Events:                  events,
		SystemClaims:            []gate.SystemBehaviorClaim{},
		TestsExecuted:           []string{"go test ./..."},
		LastEvaluationTimestamp: "2026-01-01T00:00:00Z",
	})
	require.NoError(t, err)
	assert.Equal(t, "trace-1", built.TraceID)
	assert.Equal(t, "trace-1", built.Manifest.TraceID)

	wantNames := []string{
		"manifest.json",
		"final_response.json",
		"decision_record.json",
		"evidence_sources.json",
		"retrieval_metadata.json",
		"policy_evaluation_results.json",
		"incident_events.json",
		"raw_context_minimal.json",
		"retention_metadata.json",
		"replay_inputs.json",
		"system_claims_snapshot.json",
		"risk_register_snapshot.json",
		"jurisdiction_compliance.json",
		"policy_registry_snapshot.json",
		"attestation_artifact.json",
		"events.jsonl",
		"integrity/chain.jsonl",
		"chain_of_custody.md",
	}

	zr, err := zip.NewReader(bytes.NewReader(built.Zip), int64(len(built.Zip)))
	require.NoError(t, err)

	present := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		var buf bytes.Buffer
		_, err = buf.ReadFrom(rc)
		require.NoError(t, err)
		rc.Close()
		present[f.Name] = buf.Bytes()
	}

	for _, name := range wantNames {
		data, ok := present[name]
		require.Truef(t, ok, "expected archive entry %q", name)
		wantHash, ok := built.Manifest.Artifacts[name]
		require.Truef(t, ok, "expected manifest hash entry for %q", name)
		assert.Equal(t, wantHash, hashchain.SHA256Hex(data), "manifest hash for %q must match packaged bytes", name)
	}

	assert.Equal(t, built.Manifest.Artifacts["events.jsonl"], built.Manifest.Artifacts["integrity/chain.jsonl"])
	assert.Equal(t, 1, built.Manifest.Counts["events"])
	assert.Equal(t, 1, built.Manifest.Counts["claims"])
	assert.Equal(t, 1, built.Manifest.Counts["citations"])
	assert.Equal(t, 1, built.Manifest.Counts["evidence"])
}

func TestBuildHostPackRejectsResponseHashMismatch(t *testing.T) {
	record, events := validRecordAndEvents(t)
	record.ResponseHash = "deadbeef"

	_, err := BuildHostPack(BuildInput{Record: record, Events: events})
	require.Error(t, err)
	var mismatch *gate.IntegrityMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "response_hash", mismatch.Field)
}

func TestBuildHostPackRejectsContextHashMismatch(t *testing.T) {
	record, events := validRecordAndEvents(t)
	record.ContextHash = "deadbeef"

	_, err := BuildHostPack(BuildInput{Record: record, Events: events})
	require.Error(t, err)
	var mismatch *gate.IntegrityMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "context_hash", mismatch.Field)
}

func TestBuildHostPackRejectsReplayInputsHashMismatch(t *testing.T) {
	record, events := validRecordAndEvents(t)
	record.ReplayInputsHash = "deadbeef"

	_, err := BuildHostPack(BuildInput{Record: record, Events: events})
	require.Error(t, err)
	var mismatch *gate.IntegrityMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "replay_inputs_hash", mismatch.Field)
}

func TestBuildHostPackRejectsBrokenHashChain(t *testing.T) {
	record, events := validRecordAndEvents(t)
	events[0].Payload["trace_id"] = "tampered"

	_, err := BuildHostPack(BuildInput{Record: record, Events: events})
	require.Error(t, err)
	var mismatch *gate.IntegrityMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "hash chain", mismatch.Field)
}

func TestBuildHostPackRedactsChainOfCustodyNarrative(t *testing.T) {
	record, events := validRecordAndEvents(t)
	record.ReplayInputs.PromptWindow = "contact me at person@example.com about the deploy"
	responseHash, contextHash, replayHash, err := hashTripleFor(record)
	require.NoError(t, err)
	record.ResponseHash, record.ContextHash, record.ReplayInputsHash = responseHash, contextHash, replayHash

	built, err := BuildHostPack(BuildInput{Record: record, Events: events})
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(built.Zip), int64(len(built.Zip)))
	require.NoError(t, err)
	var narrative []byte
	for _, f := range zr.File {
		if f.Name == "chain_of_custody.md" {
			rc, err := f.Open()
			require.NoError(t, err)
			var buf bytes.Buffer
			_, err = buf.ReadFrom(rc)
			require.NoError(t, err)
			rc.Close()
			narrative = buf.Bytes()
		}
	}
	require.NotNil(t, narrative)
	assert.NotContains(t, string(narrative), "person@example.com")
}
