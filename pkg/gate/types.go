// Package gate implements the trust-and-evidence gate: the deterministic
// pipeline that turns a draft answer and raw retrieved evidence into a
// fixed-shape response contract and a decision record (spec components
// B through H, N).
package gate

import "time"

// TrustLevel classifies how much an evidence source is trusted.
type TrustLevel string

const (
	TrustPrimary    TrustLevel = "PRIMARY"
	TrustSecondary  TrustLevel = "SECONDARY"
	TrustUnverified TrustLevel = "UNVERIFIED"
)

// Origin classifies where an evidence source came from.
type Origin string

const (
	OriginInternal   Origin = "INTERNAL"
	OriginCustomer   Origin = "CUSTOMER"
	OriginThirdParty Origin = "THIRD_PARTY"
	OriginTool       Origin = "TOOL"
)

// Jurisdiction is the legal/regulatory region an evidence source is bound
// to.
type Jurisdiction string

const (
	JurisdictionEU      Jurisdiction = "EU"
	JurisdictionUS      Jurisdiction = "US"
	JurisdictionUK      Jurisdiction = "UK"
	JurisdictionCA      Jurisdiction = "CA"
	JurisdictionUnknown Jurisdiction = "UNKNOWN"
)

// DataClassification marks the sensitivity of an evidence source's content.
type DataClassification string

const (
	ClassificationPublic       DataClassification = "PUBLIC"
	ClassificationInternal     DataClassification = "INTERNAL"
	ClassificationConfidential DataClassification = "CONFIDENTIAL"
	ClassificationRegulated    DataClassification = "REGULATED"
)

// DefaultAllowedScopes is applied to an evidence source when the raw item
// does not specify allowed_scopes.
var DefaultAllowedScopes = []string{"response_generation", "retrieval", "enforcement"}

// EvidenceSource is an immutable, normalized reference to a piece of
// retrieved content (component B output).
type EvidenceSource struct {
	ID                 string       `json:"id"`
	Title              string       `json:"title,omitempty"`
	URI                string       `json:"uri,omitempty"`
	Snippet            string       `json:"snippet"`
	Offsets            []int        `json:"offsets,omitempty"`
	Hash               string       `json:"hash"`
	TrustLevel         TrustLevel   `json:"trust_level"`
	Origin             Origin       `json:"origin"`
	ConfidenceWeight   float64      `json:"confidence_weight"`
	Jurisdiction       Jurisdiction `json:"jurisdiction"`
	DataClassification DataClassification `json:"data_classification"`
	AllowedScopes      []string     `json:"allowed_scopes"`
	ToolName           string       `json:"tool_name,omitempty"`
	MissingFields      []string     `json:"missing_fields,omitempty"`
}

// ClaimType classifies the kind of assertion a claim makes.
type ClaimType string

const (
	ClaimFactual      ClaimType = "FACTUAL"
	ClaimDerived      ClaimType = "DERIVED"
	ClaimInterpretive ClaimType = "INTERPRETIVE"
	ClaimSystem       ClaimType = "SYSTEM"
)

// VerificationStatus is the outcome of matching a claim against evidence.
type VerificationStatus string

const (
	VerificationSupported  VerificationStatus = "SUPPORTED"
	VerificationPartial    VerificationStatus = "PARTIAL"
	VerificationUnsupported VerificationStatus = "UNSUPPORTED"
)

// UnsupportedMode further classifies why a claim was not supported.
type UnsupportedMode string

const (
	ModeToolUntrusted UnsupportedMode = "TOOL_UNTRUSTED"
	ModeOutOfScope    UnsupportedMode = "OUT_OF_SCOPE"
	ModeNoEvidence    UnsupportedMode = "NO_EVIDENCE"
	ModeContradicted  UnsupportedMode = "CONTRADICTED"
)

// Claim is a single asserted sentence extracted from a draft answer.
type Claim struct {
	ClaimID            string              `json:"claim_id"`
	ClaimText          string              `json:"claim_text"`
	ClaimType          ClaimType           `json:"claim_type"`
	EvidenceRequired   bool                `json:"evidence_required"`
	VerificationStatus VerificationStatus  `json:"verification_status"`
	UnsupportedMode    UnsupportedMode     `json:"unsupported_mode,omitempty"`
	MatchedSourceIDs   []string            `json:"matched_source_ids,omitempty"`
	SystemClaimRef     string              `json:"system_claim_ref,omitempty"`
}

// ClaimGraphEdge links a DERIVED claim to the claims it was derived from.
type ClaimGraphEdge struct {
	ClaimID      string   `json:"claim_id"`
	DerivedFrom  []string `json:"derived_from"`
}

// EvidenceLink binds a claim to the evidence source(s) that matched it.
type EvidenceLink struct {
	ClaimID  string `json:"claim_id"`
	SourceID string `json:"source_id"`
}

// PolicyCheckResult is one named policy's evaluation outcome.
type PolicyCheckResult struct {
	PolicyID string         `json:"policy_id"`
	Passed   bool           `json:"passed"`
	Version  string         `json:"version"`
	Details  map[string]any `json:"details,omitempty"`
}

// ThreatSignalType classifies a detected adversarial signal.
type ThreatSignalType string

const (
	ThreatPromptInjection    ThreatSignalType = "PROMPT_INJECTION_ATTEMPT"
	ThreatEvidencePoisoning  ThreatSignalType = "EVIDENCE_POISONING_SUSPECTED"
)

// Confidence is a coarse confidence level for threat signals and incidents.
type Confidence string

const (
	ConfidenceLow      Confidence = "LOW"
	ConfidenceMedium   Confidence = "MEDIUM"
	ConfidenceHigh     Confidence = "HIGH"
	ConfidenceCritical Confidence = "CRITICAL"
)

// ThreatSignal is one detected adversarial pattern in the draft or
// evidence.
type ThreatSignal struct {
	Type       ThreatSignalType `json:"type"`
	Confidence Confidence       `json:"confidence"`
	Detail     string           `json:"detail,omitempty"`
}

// IncidentType classifies an operational incident raised from failure
// signals.
type IncidentType string

const (
	IncidentEvidenceFailure     IncidentType = "EVIDENCE_FAILURE"
	IncidentHallucinationSpike  IncidentType = "HALLUCINATION_SPIKE"
	IncidentBypassAttempt       IncidentType = "TRUST_GATE_BYPASS_ATTEMPT"
	IncidentReplayInconsistency IncidentType = "REPLAY_INCONSISTENCY"
)

// Incident is a single classified operational incident.
type Incident struct {
	Type       IncidentType `json:"type"`
	Confidence Confidence   `json:"confidence"`
	Detail     string       `json:"detail,omitempty"`
}

// RedactionEvent records one detector's hit count during PII redaction.
type RedactionEvent struct {
	PolicyID string `json:"policy_id"`
	Detector string `json:"detector"`
	Count    int    `json:"count"`
}

// HallucinationEvent is emitted for every non-SUPPORTED claim.
type HallucinationEvent struct {
	ClaimID  string     `json:"claim_id"`
	Severity Confidence `json:"severity"`
}

// Metrics summarizes claim-engine outcomes for one gate run.
type Metrics struct {
	NumClaimsTotal      int     `json:"num_claims_total"`
	NumClaimsUnsupported int    `json:"num_claims_unsupported"`
	PctSuppressed       float64 `json:"pct_suppressed"`
}

// ReplayMetadata is the sanitized, replayable input snapshot persisted
// alongside a decision record.
type ReplayMetadata struct {
	PromptWindow    string           `json:"prompt_window"`
	Evidence        []EvidenceSource `json:"evidence"`
	PolicyVersions  map[string]string `json:"policy_versions"`
	TrustLayerVersion string         `json:"trust_layer_version"`
}

// RetentionMode is the coarse retention window assigned to a trace.
type RetentionMode string

const (
	Retention30Days  RetentionMode = "30_DAYS"
	Retention90Days  RetentionMode = "90_DAYS"
	RetentionLegalHold RetentionMode = "LEGAL_HOLD"
)

// Retention carries a trace's retention classification.
type Retention struct {
	Mode       RetentionMode `json:"mode"`
	ExpiryAt   *time.Time    `json:"expiry_at,omitempty"`
	LegalHold  bool          `json:"legal_hold"`
}

// DecisionRecord aggregates everything the gate decided about one turn.
type DecisionRecord struct {
	Claims              []Claim              `json:"claims"`
	ClaimGraph          []ClaimGraphEdge     `json:"claim_graph"`
	SystemClaimRefs     []string             `json:"system_claim_refs"`
	EvidenceLinks       []EvidenceLink       `json:"evidence_links"`
	PolicyChecks        []PolicyCheckResult  `json:"policy_checks"`
	HallucinationEvents []HallucinationEvent `json:"hallucination_events"`
	ThreatSignals       []ThreatSignal       `json:"threat_signals"`
	Incidents           []Incident           `json:"incidents"`
	RiskRefs            []string             `json:"risk_refs"`
	RedactionEvents     []RedactionEvent     `json:"redaction_events"`
	Replay              ReplayMetadata       `json:"replay"`
	Metrics             Metrics              `json:"metrics"`
	FailureModes        []string             `json:"failure_modes"`
	CreatedAt           time.Time            `json:"created_at"`
	Retention           Retention            `json:"retention"`
}

// Citation binds a 1-based citation number to an evidence source ID.
type Citation struct {
	CitationNumber int    `json:"citation_number"`
	SourceID       string `json:"source_id"`
}

// RetrievalMetadata carries jurisdiction/threat-containment bookkeeping
// surfaced to the caller alongside the evidence bundle.
type RetrievalMetadata struct {
	RejectedSourceIDs []string `json:"rejected_source_ids,omitempty"`
	JurisdictionViolation bool `json:"jurisdiction_violation"`
}

// EvidenceBundleUser is the user-visible evidence/citation view.
type EvidenceBundleUser struct {
	Sources           []EvidenceSource  `json:"sources"`
	Citations         []Citation        `json:"citations"`
	RetrievalMetadata RetrievalMetadata `json:"retrieval_metadata"`
}

// TrustEvidenceResponse is the gate's internal decision output, before it
// is serialized into the fixed-order ResponseContract (component N).
type TrustEvidenceResponse struct {
	AnswerText         string              `json:"answer_text"`
	EvidenceBundleUser EvidenceBundleUser  `json:"evidence_bundle_user"`
	DecisionRecord     DecisionRecord      `json:"decision_record"`
	TraceID            string              `json:"trace_id"`
}

// HostContext is the minimal per-turn request metadata the gate receives
// from the embedding host.
type HostContext struct {
	SessionID         string            `json:"session_id,omitempty"`
	UserID            string            `json:"user_id,omitempty"`
	RawPrompt         string            `json:"raw_prompt,omitempty"`
	RawModelOutput    string            `json:"raw_model_output,omitempty"`
	StreamRequested   bool              `json:"stream_requested,omitempty"`
	AllowedJurisdictions []Jurisdiction `json:"allowed_jurisdictions,omitempty"`
	RequiredScope     string            `json:"required_scope,omitempty"`
	LegalHold         bool              `json:"legal_hold,omitempty"`
	RetentionDays     int               `json:"retention_days,omitempty"`
	Extra             map[string]any    `json:"extra,omitempty"`
}

// RawEvidenceItem is one free-form raw retrieved item, as received from
// the host's retrieval layer, prior to normalization.
type RawEvidenceItem map[string]any
