// Package replay implements the replay evaluator (component M): it
// reloads a persisted trace, re-runs the deterministic claim engine
// against the same sanitized prompt and stored evidence, and reports
// whether the replayed outcome matches what was originally recorded.
package replay

import (
	"context"
	"fmt"
	"reflect"
	"sort"

	"github.com/trust-evidence/gate/pkg/gate"
	"github.com/trust-evidence/gate/pkg/tracestore"
)

// Result is the outcome of replaying one trace.
type Result struct {
	TraceID            string            `json:"trace_id"`
	Equivalent         bool              `json:"equivalent"`
	ReplayedClaims     []gate.Claim      `json:"replayed_claims"`
	ReplayedFailureModes []string        `json:"replayed_failure_modes"`
	ReplayedMetrics    gate.Metrics      `json:"replayed_metrics"`
	RecordedClaims     []gate.Claim      `json:"recorded_claims"`
	RecordedFailureModes []string        `json:"recorded_failure_modes"`
	RecordedMetrics    gate.Metrics      `json:"recorded_metrics"`
	PolicyVersions     map[string]string `json:"policy_versions"`
	Mismatches         []string          `json:"mismatches,omitempty"`
}

// Evaluate loads traceID from store, re-normalizes the persisted
// evidence (confirming normalization is idempotent), re-runs the claim
// engine against the stored sanitized prompt window, and compares the
// result against the recorded decision record.
func Evaluate(ctx context.Context, store tracestore.Store, traceID string, systemClaims []gate.SystemBehaviorClaim, trustedTools gate.TrustedTools) (*Result, error) {
	record, _, err := store.Load(ctx, traceID)
	if err != nil {
		return nil, fmt.Errorf("replay: load trace %s: %w", traceID, err)
	}

	storedEvidence := record.ReplayInputs.Evidence
	reNormalized := reNormalizeStoredEvidence(storedEvidence, trustedTools)

	replayedClaims, _, _, _, replayedMetrics := gate.EvaluateClaims(
		record.ReplayInputs.PromptWindow, reNormalized, systemClaims)

	replayedFailureModes := deriveClaimEngineFailureModes(reNormalized, replayedClaims)

	recordedClaims := record.Response.DecisionRecord.Claims
	recordedFailureModes := record.Response.DecisionRecord.FailureModes
	recordedMetrics := record.Response.DecisionRecord.Metrics

	var mismatches []string
	claimsEqual := claimsEquivalent(replayedClaims, recordedClaims)
	if !claimsEqual {
		mismatches = append(mismatches, "claims")
	}
	failureModesEqual := stringSetsEquivalent(replayedFailureModes, intersectClaimEngineModes(recordedFailureModes))
	if !failureModesEqual {
		mismatches = append(mismatches, "failure_modes")
	}
	metricsEqual := replayedMetrics == recordedMetrics
	if !metricsEqual {
		mismatches = append(mismatches, "metrics")
	}

	return &Result{
		TraceID:              traceID,
		Equivalent:           claimsEqual && failureModesEqual && metricsEqual,
		ReplayedClaims:       replayedClaims,
		ReplayedFailureModes: replayedFailureModes,
		ReplayedMetrics:      replayedMetrics,
		RecordedClaims:       recordedClaims,
		RecordedFailureModes: recordedFailureModes,
		RecordedMetrics:      recordedMetrics,
		PolicyVersions:       record.ReplayInputs.PolicyVersions,
		Mismatches:           mismatches,
	}, nil
}

// reNormalizeStoredEvidence round-trips already-normalized evidence
// through NormalizeEvidence's raw-item shape to confirm normalization
// is idempotent: the persisted EvidenceSource fields become the raw
// item's fields one-for-one.
func reNormalizeStoredEvidence(sources []gate.EvidenceSource, trustedTools gate.TrustedTools) []gate.EvidenceSource {
	raw := make([]gate.RawEvidenceItem, 0, len(sources))
	for _, s := range sources {
		raw = append(raw, gate.RawEvidenceItem{
			"id":                  s.ID,
			"title":               s.Title,
			"uri":                 s.URI,
			"snippet":             s.Snippet,
			"hash":                s.Hash,
			"trust_level":         string(s.TrustLevel),
			"origin":               string(s.Origin),
			"confidence_weight":    s.ConfidenceWeight,
			"jurisdiction":         string(s.Jurisdiction),
			"data_classification":  string(s.DataClassification),
			"allowed_scopes":       s.AllowedScopes,
			"tool_name":            s.ToolName,
		})
	}
	return gate.NormalizeEvidence(raw, trustedTools)
}

// deriveClaimEngineFailureModes mirrors the claim-engine-attributable
// subset of the orchestrator's failure-mode derivation (component H
// step 6): the parts replay can reconstruct from stored evidence and
// claims alone, as opposed to modes that depend on live kill-switch
// state or pre-redaction raw provenance that is not persisted.
func deriveClaimEngineFailureModes(evidence []gate.EvidenceSource, claims []gate.Claim) []string {
	anyUnsupported := false
	for _, c := range claims {
		if c.VerificationStatus == gate.VerificationUnsupported {
			anyUnsupported = true
			break
		}
	}
	if len(evidence) == 0 && anyUnsupported {
		return []string{"no_supporting_evidence_found"}
	}
	return nil
}

// intersectClaimEngineModes filters a recorded failure-mode list down
// to the subset deriveClaimEngineFailureModes can itself produce, so
// equivalence checking compares like with like.
func intersectClaimEngineModes(modes []string) []string {
	var out []string
	for _, m := range modes {
		if m == "no_supporting_evidence_found" {
			out = append(out, m)
		}
	}
	return out
}

func claimsEquivalent(a, b []gate.Claim) bool {
	if len(a) != len(b) {
		return false
	}
	sortedA := append([]gate.Claim(nil), a...)
	sortedB := append([]gate.Claim(nil), b...)
	sort.Slice(sortedA, func(i, j int) bool { return sortedA[i].ClaimID < sortedA[j].ClaimID })
	sort.Slice(sortedB, func(i, j int) bool { return sortedB[i].ClaimID < sortedB[j].ClaimID })
	return reflect.DeepEqual(sortedA, sortedB)
}

func stringSetsEquivalent(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	sortedA := append([]string(nil), a...)
	sortedB := append([]string(nil), b...)
	sort.Strings(sortedA)
	sort.Strings(sortedB)
	return reflect.DeepEqual(sortedA, sortedB)
}
