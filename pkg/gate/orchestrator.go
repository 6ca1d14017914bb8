package gate

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// TrustLayerVersion is stamped into every replay-inputs snapshot.
const TrustLayerVersion = "2.0.0"

// RetentionPolicy carries the orchestrator's default retention window
// choice and the one the caller can upgrade to.
type RetentionPolicy struct {
	DefaultDays int
	LongDays    int
}

// DefaultRetentionPolicy matches the 30/90-day defaults described for
// component H step 12.
var DefaultRetentionPolicy = RetentionPolicy{DefaultDays: 30, LongDays: 90}

// DefaultAllowedJurisdictions is used when a HostContext does not specify
// allowed jurisdictions.
var DefaultAllowedJurisdictions = []Jurisdiction{
	JurisdictionUS, JurisdictionEU, JurisdictionUK, JurisdictionCA, JurisdictionUnknown,
}

// EnforceMode controls whether missing critical provenance is a hard
// refusal (Enforce) or silently observed (Observe). The spec leaves the
// observe-mode behavior as an explicit open question; this gate takes
// Enforce as the conservative default (see DESIGN.md).
type EnforceMode string

const (
	EnforceModeEnforce EnforceMode = "enforce"
	EnforceModeObserve EnforceMode = "observe"
)

// GateDependencies are the stateful collaborators the orchestrator needs
// beyond its pure input data: the kill-switch (process-wide halt state)
// and the system-claim registry.
type GateDependencies struct {
	KillSwitch     *KillSwitch
	SystemClaims   []SystemBehaviorClaim
	TrustedTools   TrustedTools
	Enforce        EnforceMode
}

// Run executes the full 15-step gate pipeline (component H) over a draft
// answer and raw evidence, producing the final ResponseContract.
func Run(deps GateDependencies, host HostContext, draft string, rawEvidence []RawEvidenceItem) (ResponseContract, error) {
	if err := AssertNoBypassInputs(host, ""); err != nil {
		return ResponseContract{}, err
	}

	traceID := uuid.NewString()
	now := time.Now().UTC()

	// Step 2: normalize raw evidence (B).
	sources := NormalizeEvidence(rawEvidence, deps.TrustedTools)

	// Step 3: enforce jurisdiction (C).
	allowed := host.AllowedJurisdictions
	if len(allowed) == 0 {
		allowed = DefaultAllowedJurisdictions
	}
	jurisdictionResult := EnforceJurisdiction(sources, allowed, host.RequiredScope)

	// Step 4: classify threats, apply containment (C).
	threatSignals := ClassifyThreatSignals(draft, jurisdictionResult.Accepted)
	contained := ApplyThreatContainment(jurisdictionResult.Accepted, threatSignals)

	// Step 5: run claim engine (D).
	claims, claimGraph, evidenceLinks, hallucinations, metrics := EvaluateClaims(draft, contained, deps.SystemClaims)

	var systemClaimRefs []string
	for _, c := range claims {
		if c.SystemClaimRef != "" {
			systemClaimRefs = append(systemClaimRefs, c.SystemClaimRef)
		}
	}

	var failureModes []string

	// Step 6: kill-switch halt.
	claimTypes := make([]ClaimType, 0, len(claims))
	for _, c := range claims {
		claimTypes = append(claimTypes, c.ClaimType)
	}
	halted := deps.KillSwitch != nil && deps.KillSwitch.ShouldHalt("gate", claimTypes)
	if halted {
		failureModes = append(failureModes, "kill_switch_active")
	}

	anyUnsupported := false
	for _, c := range claims {
		if c.VerificationStatus == VerificationUnsupported {
			anyUnsupported = true
			break
		}
	}
	if len(contained) == 0 && anyUnsupported {
		failureModes = append(failureModes, "no_supporting_evidence_found")
	}

	// Step 7: missing critical provenance.
	missingCriticalProvenance := false
	for _, item := range rawEvidence {
		if v, ok := item["missing_fields"]; ok {
			if slice, ok := v.([]string); ok && len(slice) > 0 {
				missingCriticalProvenance = true
				break
			}
			if slice, ok := v.([]any); ok && len(slice) > 0 {
				missingCriticalProvenance = true
				break
			}
		}
	}
	if missingCriticalProvenance && deps.Enforce == EnforceModeEnforce {
		failureModes = append(failureModes, "critical_provenance_missing")
	}

	if jurisdictionResult.Violation {
		failureModes = append(failureModes, "jurisdiction_violation")
	}

	// Step 8: redact (E) answer and evidence snippets.
	enforcedLines := make([]string, 0, len(claims))
	for _, c := range claims {
		enforcedLines = append(enforcedLines, RenderClaimLine(c))
	}
	candidateAnswer := strings.Join(enforcedLines, " ")
	redactedAnswer, answerRedactions := RedactText(candidateAnswer)
	redactedSources, sourceRedactions := RedactEvidence(contained)
	redactionEvents := mergeRedactionEvents(append(answerRedactions, sourceRedactions...))
	redactionApplied := len(redactionEvents) > 0

	// Step 9: evaluate policies (F).
	policyChecks := EvaluatePolicyChecks(PolicyCheckInputs{
		Claims:               claims,
		StreamRequested:      host.StreamRequested,
		JurisdictionViolated: jurisdictionResult.Violation,
		RedactionApplied:     redactionApplied,
		NumEvidenceSources:   len(redactedSources),
	})

	// Step 10: build citations.
	citations := make([]Citation, 0, len(redactedSources))
	for i, s := range redactedSources {
		citations = append(citations, Citation{CitationNumber: i + 1, SourceID: s.ID})
	}

	// Step 11: assemble answer_text by precedence.
	var refusals []string
	if jurisdictionResult.Violation {
		refusals = append(refusals, "REFUSE: jurisdiction_violation_disallowed_evidence")
	}
	if halted {
		reason := ""
		if deps.KillSwitch != nil {
			reason = deps.KillSwitch.Reason()
		}
		refusals = append(refusals, "REFUSE: kill_switch_active ("+reason+")")
	}
	if missingCriticalProvenance && deps.Enforce == EnforceModeEnforce {
		refusals = append(refusals, "REFUSE: critical_provenance_missing")
	}

	var answerText string
	switch {
	case len(refusals) > 0:
		answerText = strings.Join(refusals, "\n")
	default:
		answerText = redactedAnswer
	}
	if len(refusals) == 0 && len(redactedSources) == 0 && anyUnsupported && !strings.HasPrefix(answerText, "UNKNOWN:") {
		answerText = "UNKNOWN: no supporting evidence found."
	}

	// Step 12: build retention.
	retention := buildRetention(host, now)

	// Step 13: build replay inputs.
	promptWindow := host.RawPrompt
	if len(promptWindow) > 500 {
		promptWindow = promptWindow[:500]
	}
	policyVersions := make(map[string]string, len(PolicyRegistry))
	for _, p := range PolicyRegistry {
		policyVersions[p.PolicyID] = p.Version
	}
	replay := ReplayMetadata{
		PromptWindow:      promptWindow,
		Evidence:          redactedSources,
		PolicyVersions:    policyVersions,
		TrustLayerVersion: TrustLayerVersion,
	}

	// Step 14: classify incidents, bind risks.
	var incidents []Incident
	var riskRefs []string
	if deps.KillSwitch != nil {
		incidents = deps.KillSwitch.ClassifyIncidents(failureModes, metrics, true)
	}
	for _, mode := range failureModes {
		if strings.Contains(mode, "unsupported") || mode == "no_supporting_evidence_found" {
			riskRefs = append(riskRefs, "RISK-001")
			break
		}
	}
	if len(threatSignals) > 0 {
		riskRefs = append(riskRefs, "RISK-002")
	}

	decisionRecord := DecisionRecord{
		Claims:              claims,
		ClaimGraph:          claimGraph,
		SystemClaimRefs:      systemClaimRefs,
		EvidenceLinks:       evidenceLinks,
		PolicyChecks:        policyChecks,
		HallucinationEvents: hallucinations,
		ThreatSignals:       threatSignals,
		Incidents:           incidents,
		RiskRefs:            riskRefs,
		RedactionEvents:     redactionEvents,
		Replay:              replay,
		Metrics:             metrics,
		FailureModes:        dedupSortedStrings(failureModes),
		CreatedAt:           now,
		Retention:           retention,
	}

	resp := TrustEvidenceResponse{
		AnswerText: answerText,
		EvidenceBundleUser: EvidenceBundleUser{
			Sources:   redactedSources,
			Citations: citations,
			RetrievalMetadata: RetrievalMetadata{
				RejectedSourceIDs:     rejectedIDs(jurisdictionResult.Rejected),
				JurisdictionViolation: jurisdictionResult.Violation,
			},
		},
		DecisionRecord: decisionRecord,
		TraceID:        traceID,
	}

	// Step 15: serialize (N), assert contract shape.
	contract := BuildContract(resp)
	if err := AssertContractShape(contract); err != nil {
		return ResponseContract{}, err
	}
	if err := AssertNoBypassInputs(host, answerText); err != nil {
		return ResponseContract{}, err
	}

	return contract, nil
}

func buildRetention(host HostContext, now time.Time) Retention {
	if host.LegalHold {
		return Retention{Mode: RetentionLegalHold, LegalHold: true}
	}

	days := DefaultRetentionPolicy.DefaultDays
	mode := Retention30Days
	if host.RetentionDays > DefaultRetentionPolicy.DefaultDays {
		days = DefaultRetentionPolicy.LongDays
		mode = Retention90Days
	}
	expiry := now.AddDate(0, 0, days)
	return Retention{Mode: mode, ExpiryAt: &expiry, LegalHold: false}
}

func rejectedIDs(rejected []EvidenceSource) []string {
	if len(rejected) == 0 {
		return nil
	}
	out := make([]string, 0, len(rejected))
	for _, s := range rejected {
		out = append(out, s.ID)
	}
	return out
}

func mergeRedactionEvents(events []RedactionEvent) []RedactionEvent {
	if len(events) == 0 {
		return nil
	}
	order := make([]string, 0, len(events))
	totals := make(map[string]int, len(events))
	for _, e := range events {
		if _, ok := totals[e.Detector]; !ok {
			order = append(order, e.Detector)
		}
		totals[e.Detector] += e.Count
	}
	out := make([]RedactionEvent, 0, len(order))
	for _, detector := range order {
		out = append(out, RedactionEvent{PolicyID: "pii_redaction", Detector: detector, Count: totals[detector]})
	}
	return out
}
