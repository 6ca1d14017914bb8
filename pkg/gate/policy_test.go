package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluatePolicyChecksEmitsFullFixedSet(t *testing.T) {
	results := EvaluatePolicyChecks(PolicyCheckInputs{})
	require.Len(t, results, len(PolicyRegistry))
	for i, r := range results {
		assert.Equal(t, PolicyRegistry[i].PolicyID, r.PolicyID)
	}
}

func TestEvaluatePolicyChecksFactualEvidenceTrust(t *testing.T) {
	claims := []Claim{
		{ClaimType: ClaimFactual, VerificationStatus: VerificationUnsupported},
	}
	results := EvaluatePolicyChecks(PolicyCheckInputs{Claims: claims})
	factual := findPolicyResult(results, "factual_evidence_trust")
	require.NotNil(t, factual)
	assert.False(t, factual.Passed)
	assert.Equal(t, 1, factual.Details["unsupported_factual_claims"])
}

func TestEvaluatePolicyChecksStreamingBlocked(t *testing.T) {
	results := EvaluatePolicyChecks(PolicyCheckInputs{StreamRequested: true})
	streaming := findPolicyResult(results, "streaming_partials_blocked")
	require.NotNil(t, streaming)
	assert.False(t, streaming.Passed)
}

func TestEvaluatePolicyChecksEvidencePresence(t *testing.T) {
	results := EvaluatePolicyChecks(PolicyCheckInputs{NumEvidenceSources: 0})
	presence := findPolicyResult(results, "evidence_presence")
	require.NotNil(t, presence)
	assert.False(t, presence.Passed)
}

func TestPolicyVersionChangeLogRecordsFailClosedBump(t *testing.T) {
	found := false
	for _, c := range PolicyVersionChangeLog {
		if c.PolicyID == "fail_closed_default" {
			found = true
			assert.Equal(t, "1.1.0", c.FromVersion)
			assert.Equal(t, "2.0.0", c.ToVersion)
		}
	}
	assert.True(t, found)
}

func findPolicyResult(results []PolicyCheckResult, id string) *PolicyCheckResult {
	for i := range results {
		if results[i].PolicyID == id {
			return &results[i]
		}
	}
	return nil
}
