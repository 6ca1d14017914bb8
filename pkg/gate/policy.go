package gate

// PolicyDefinition is one fixed registry entry (component F).
type PolicyDefinition struct {
	PolicyID        string   `json:"policy_id"`
	Description     string   `json:"description"`
	Scope           string   `json:"scope"`
	Version         string   `json:"version"`
	EnforcedBy      string   `json:"enforced_by"`
	AcceptanceTests []string `json:"acceptance_tests"`
}

// PolicyVersionChange records one version bump for a policy, kept for
// the `policy versions` operator command.
type PolicyVersionChange struct {
	PolicyID    string `json:"policy_id"`
	FromVersion string `json:"from_version"`
	ToVersion   string `json:"to_version"`
	ChangedAt   string `json:"changed_at"`
	Reason      string `json:"reason"`
}

// PolicyRegistry is the fixed set of policies evaluated on every gate run.
var PolicyRegistry = []PolicyDefinition{
	{
		PolicyID:        "fail_closed_default",
		Description:     "Evidence or policy failures default to refusal rather than best-effort answering.",
		Scope:           "gate",
		Version:         "2.0.0",
		EnforcedBy:      "orchestrator",
		AcceptanceTests: []string{"no_evidence_refuses", "policy_error_refuses"},
	},
	{
		PolicyID:        "no_fabricated_citations",
		Description:     "Every citation number binds to a surviving evidence source id.",
		Scope:           "gate",
		Version:         "1.0.0",
		EnforcedBy:      "contract",
		AcceptanceTests: []string{"citation_ids_resolve"},
	},
	{
		PolicyID:        "factual_evidence_trust",
		Description:     "FACTUAL claims are trusted only when backed by PRIMARY or 2+ SECONDARY sources.",
		Scope:           "claims",
		Version:         "2.0.0",
		EnforcedBy:      "claim_engine",
		AcceptanceTests: []string{"factual_requires_trusted_evidence"},
	},
	{
		PolicyID:        "streaming_partials_blocked",
		Description:     "Streaming responses are never enforced partial; the gate runs only on completed drafts.",
		Scope:           "gate",
		Version:         "1.0.0",
		EnforcedBy:      "orchestrator",
		AcceptanceTests: []string{"streaming_request_blocked"},
	},
	{
		PolicyID:        "jurisdiction_compliance",
		Description:     "Evidence outside the allowed jurisdiction or required scope is rejected before use.",
		Scope:           "evidence",
		Version:         "1.0.0",
		EnforcedBy:      "jurisdiction_filter",
		AcceptanceTests: []string{"out_of_jurisdiction_rejected"},
	},
	{
		PolicyID:        "pii_redaction",
		Description:     "Personally identifying patterns are redacted from answers and evidence snippets.",
		Scope:           "output",
		Version:         "1.0.0",
		EnforcedBy:      "redactor",
		AcceptanceTests: []string{"email_redacted", "phone_redacted"},
	},
	{
		PolicyID:        "evidence_presence",
		Description:     "At least one evidence source survives normalization and filtering.",
		Scope:           "evidence",
		Version:         "1.0.0",
		EnforcedBy:      "orchestrator",
		AcceptanceTests: []string{"empty_evidence_fails"},
	},
	{
		PolicyID:        "unsupported_claims_handled",
		Description:     "Every non-SUPPORTED claim is rewritten with its UNKNOWN/PARTIAL marker rather than surfaced verbatim.",
		Scope:           "claims",
		Version:         "1.0.0",
		EnforcedBy:      "claim_engine",
		AcceptanceTests: []string{"unsupported_claim_prefixed"},
	},
}

// PolicyVersionChangeLog records the two documented version bumps in this
// registry's history.
var PolicyVersionChangeLog = []PolicyVersionChange{
	{
		PolicyID:    "fail_closed_default",
		FromVersion: "1.1.0",
		ToVersion:   "2.0.0",
		ChangedAt:   "2026-01-15T00:00:00Z",
		Reason:      "Tightened default from best-effort-with-warning to hard refusal on evidence/policy failure.",
	},
	{
		PolicyID:    "factual_evidence_trust",
		FromVersion: "1.1.0",
		ToVersion:   "2.0.0",
		ChangedAt:   "2026-01-15T00:00:00Z",
		Reason:      "Raised the SECONDARY-source bar from 1 to 2 matches to qualify a FACTUAL claim as SUPPORTED.",
	},
}

// PolicyCheckInputs carries everything evaluate_policy_checks needs to
// derive the full fixed policy-check set.
type PolicyCheckInputs struct {
	Claims              []Claim
	StreamRequested     bool
	JurisdictionViolated bool
	RedactionApplied    bool
	NumEvidenceSources  int
}

// EvaluatePolicyChecks always emits the full fixed policy set, in
// PolicyRegistry order (component F).
func EvaluatePolicyChecks(in PolicyCheckInputs) []PolicyCheckResult {
	unsupportedFactual := 0
	unsupportedTotal := 0
	for _, c := range in.Claims {
		if c.VerificationStatus == VerificationUnsupported {
			unsupportedTotal++
			if c.ClaimType == ClaimFactual {
				unsupportedFactual++
			}
		}
	}

	byID := func(id string) PolicyDefinition {
		for _, p := range PolicyRegistry {
			if p.PolicyID == id {
				return p
			}
		}
		return PolicyDefinition{}
	}

	results := make([]PolicyCheckResult, 0, len(PolicyRegistry))
	for _, def := range PolicyRegistry {
		var result PolicyCheckResult
		switch def.PolicyID {
		case "fail_closed_default":
			result = PolicyCheckResult{PolicyID: def.PolicyID, Passed: true, Version: def.Version}
		case "no_fabricated_citations":
			result = PolicyCheckResult{PolicyID: def.PolicyID, Passed: true, Version: def.Version}
		case "factual_evidence_trust":
			result = PolicyCheckResult{
				PolicyID: def.PolicyID,
				Passed:   unsupportedFactual == 0,
				Version:  def.Version,
				Details:  map[string]any{"unsupported_factual_claims": unsupportedFactual},
			}
		case "streaming_partials_blocked":
			result = PolicyCheckResult{
				PolicyID: def.PolicyID,
				Passed:   !in.StreamRequested,
				Version:  def.Version,
			}
		case "jurisdiction_compliance":
			result = PolicyCheckResult{
				PolicyID: def.PolicyID,
				Passed:   !in.JurisdictionViolated,
				Version:  def.Version,
			}
		case "pii_redaction":
			result = PolicyCheckResult{
				PolicyID: def.PolicyID,
				Passed:   true,
				Version:  def.Version,
				Details:  map[string]any{"applied": in.RedactionApplied},
			}
		case "evidence_presence":
			result = PolicyCheckResult{
				PolicyID: def.PolicyID,
				Passed:   in.NumEvidenceSources >= 1,
				Version:  def.Version,
			}
		case "unsupported_claims_handled":
			result = PolicyCheckResult{
				PolicyID: def.PolicyID,
				Passed:   true,
				Version:  def.Version,
				Details:  map[string]any{"unsupported_claims": unsupportedTotal},
			}
		default:
			result = PolicyCheckResult{PolicyID: def.PolicyID, Passed: true, Version: byID(def.PolicyID).Version}
		}
		results = append(results, result)
	}

	return results
}
