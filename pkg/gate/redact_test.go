package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactTextDetectsAllFixedDetectors(t *testing.T) {
	text := "Contact john.doe@example.com or +1-555-123-4567, SSN 123-45-6789, chart MRN-123456."
	redacted, events := RedactText(text)

	assert.Contains(t, redacted, "[REDACTED_EMAIL]")
	assert.Contains(t, redacted, "[REDACTED_PHONE]")
	assert.Contains(t, redacted, "[REDACTED_NATIONAL_ID]")
	assert.Contains(t, redacted, "[REDACTED_MEDICAL_RECORD]")

	require.Len(t, events, 4)
	assert.Equal(t, "EMAIL", events[0].Detector)
	assert.Equal(t, "PHONE", events[1].Detector)
	assert.Equal(t, "NATIONAL_ID", events[2].Detector)
	assert.Equal(t, "MEDICAL_RECORD", events[3].Detector)
	for _, e := range events {
		assert.Equal(t, "pii_redaction", e.PolicyID)
		assert.Equal(t, 1, e.Count)
	}
}

func TestRedactTextIsIdempotent(t *testing.T) {
	text := "Reach me at john.doe@example.com."
	once, _ := RedactText(text)
	twice, events := RedactText(once)
	assert.Equal(t, once, twice)
	assert.Empty(t, events)
}

func TestRedactTextNoPII(t *testing.T) {
	redacted, events := RedactText("Saturn has rings.")
	assert.Equal(t, "Saturn has rings.", redacted)
	assert.Empty(t, events)
}

func TestRedactEvidenceAppliesToSnippets(t *testing.T) {
	sources := []EvidenceSource{
		{ID: "s1", Snippet: "email me at a@b.com"},
	}
	redacted, events := RedactEvidence(sources)
	require.Len(t, redacted, 1)
	assert.Contains(t, redacted[0].Snippet, "[REDACTED_EMAIL]")
	require.Len(t, events, 1)
	assert.Equal(t, "EMAIL", events[0].Detector)
}
