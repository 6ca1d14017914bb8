// Package auditpack builds the exportable, hash-verified ZIP bundle for
// one trace (component J): re-verifies stored integrity hashes, writes
// the named JSON artifacts, composes a redacted chain-of-custody
// narrative, and packages everything behind a manifest binding every
// artifact's SHA-256.
package auditpack

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/trust-evidence/gate/pkg/gate"
	"github.com/trust-evidence/gate/pkg/hashchain"
	"github.com/trust-evidence/gate/pkg/tracestore"
)

// AlgoVersions is stamped into every manifest.
var AlgoVersions = map[string]string{
	"hash":       "sha256",
	"canonical":  "json-sorted-keys-v1",
	"hash_chain": tracestore.EventsHashChainVersion,
}

// HostAuditPack is the in-memory result of building a host-side pack,
// before ZIP packaging, plus the packaged bytes themselves.
type HostAuditPack struct {
	TraceID  string
	Zip      []byte
	Manifest Manifest
}

// Manifest is emitted as manifest.json inside every audit pack.
type Manifest struct {
	TraceID      string            `json:"trace_id"`
	Retention    gate.Retention    `json:"retention"`
	NarrativeHash string           `json:"narrative_hash"`
	Artifacts    map[string]string `json:"artifacts"`
	Counts       map[string]int    `json:"counts"`
	AlgoVersions map[string]string `json:"algo_versions"`
}

// AttestationArtifact is written as attestation_artifact.json.
type AttestationArtifact struct {
	SystemClaims           []gate.SystemBehaviorClaim   `json:"system_claims"`
	Policies                []gate.PolicyDefinition     `json:"policies"`
	PolicyChangeLog         []gate.PolicyVersionChange  `json:"policy_change_log"`
	RiskRegister            []RiskRegisterEntry         `json:"risk_register"`
	TestsExecuted           []string                    `json:"tests_executed"`
	LastEvaluationTimestamp string                      `json:"last_evaluation_timestamp"`
}

// RiskRegisterEntry documents one named residual risk referenced by
// decision records (RISK-001, RISK-002, ...): what it is, how it is
// mitigated, who accepted the residual exposure, and how often that
// acceptance is revisited.
type RiskRegisterEntry struct {
	RiskID       string `json:"risk_id"`
	Description  string `json:"description"`
	Mitigation   string `json:"mitigation"`
	AcceptedBy   string `json:"accepted_by"`
	ReviewCycle  string `json:"review_cycle"`
	Status       string `json:"status"`
}

// RiskRegister is the fixed register referenced by DecisionRecord.RiskRefs.
var RiskRegister = []RiskRegisterEntry{
	{
		RiskID:      "RISK-001",
		Description: "Unsupported or contradicted claims reached answer_text.",
		Mitigation:  "Claim engine blocks FACTUAL claims lacking PRIMARY or 2+ SECONDARY evidence; contradicted claims are never cited.",
		AcceptedBy:  "trust-and-safety",
		ReviewCycle: "quarterly",
		Status:      "mitigated",
	},
	{
		RiskID:      "RISK-002",
		Description: "A prompt-injection or evidence-poisoning signal was detected on this turn.",
		Mitigation:  "Threat containment strips flagged sources before the claim engine runs; the incident is recorded regardless.",
		AcceptedBy:  "trust-and-safety",
		ReviewCycle: "quarterly",
		Status:      "mitigated",
	},
}

// BuildInput carries everything BuildHostPack needs beyond the stored
// trace: the registries the attestation artifact snapshots and the
// timestamp the export runs at.
type BuildInput struct {
	Record                  *tracestore.TraceRecord
	Events                  []hashchain.Event
	SystemClaims            []gate.SystemBehaviorClaim
	TestsExecuted           []string
	LastEvaluationTimestamp string
}

// BuildHostPack performs the full component-J export pipeline and
// returns the packaged ZIP bytes and its manifest. Any integrity or
// hash-chain failure aborts before any bytes are returned.
func BuildHostPack(in BuildInput) (*HostAuditPack, error) {
	record := in.Record

	// Step 2: recompute and compare the three integrity hashes.
	if err := verifyRecordHashes(record); err != nil {
		return nil, err
	}

	// Step 3: decode and validate the hash chain.
	if err := hashchain.ValidateChain(in.Events); err != nil {
		return nil, gate.NewIntegrityMismatchError("hash chain", err)
	}

	artifacts := map[string]any{
		"final_response.json":             record.Response,
		"decision_record.json":            record.Response.DecisionRecord,
		"evidence_sources.json":           record.Response.EvidenceBundleUser.Sources,
		"retrieval_metadata.json":         record.Response.EvidenceBundleUser.RetrievalMetadata,
		"policy_evaluation_results.json":  record.Response.DecisionRecord.PolicyChecks,
		"incident_events.json":            record.Response.DecisionRecord.Incidents,
		"raw_context_minimal.json":        record.Context,
		"retention_metadata.json":         record.Retention,
		"replay_inputs.json":               record.ReplayInputs,
		"system_claims_snapshot.json":      in.SystemClaims,
		"risk_register_snapshot.json":      RiskRegister,
		"jurisdiction_compliance.json":     record.Response.EvidenceBundleUser.RetrievalMetadata,
		"policy_registry_snapshot.json":    gate.PolicyRegistry,
	}

	attestation := AttestationArtifact{
		SystemClaims:            in.SystemClaims,
		Policies:                gate.PolicyRegistry,
		PolicyChangeLog:         gate.PolicyVersionChangeLog,
		RiskRegister:            RiskRegister,
		TestsExecuted:           in.TestsExecuted,
		LastEvaluationTimestamp: in.LastEvaluationTimestamp,
	}
	artifacts["attestation_artifact.json"] = attestation

	fileBytes := make(map[string][]byte, len(artifacts))
	artifactHashes := make(map[string]string, len(artifacts)+3)
	for name, v := range artifacts {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("auditpack: marshal %s: %w", name, err)
		}
		fileBytes[name] = data
		artifactHashes[name] = hashchain.SHA256Hex(data)
	}

	// events.jsonl / integrity/chain.jsonl: the same chain, two names for
	// the two archive slots the fixed layout reserves for it.
	var chainBuf bytes.Buffer
	if err := hashchain.EncodeJSONL(&chainBuf, in.Events); err != nil {
		return nil, fmt.Errorf("auditpack: encode event chain: %w", err)
	}
	fileBytes["events.jsonl"] = chainBuf.Bytes()
	fileBytes["integrity/chain.jsonl"] = chainBuf.Bytes()
	artifactHashes["events.jsonl"] = hashchain.SHA256Hex(chainBuf.Bytes())
	artifactHashes["integrity/chain.jsonl"] = artifactHashes["events.jsonl"]

	// Step 7: compose and redact the narrative, hash the redacted bytes.
	narrative := composeNarrative(record, in.Events)
	redactedNarrative, _ := gate.RedactText(narrative)
	fileBytes["chain_of_custody.md"] = []byte(redactedNarrative)
	narrativeHash := hashchain.SHA256Hex([]byte(redactedNarrative))
	artifactHashes["chain_of_custody.md"] = narrativeHash

	manifest := Manifest{
		TraceID:       record.TraceID,
		Retention:     record.Retention,
		NarrativeHash: narrativeHash,
		Artifacts:     artifactHashes,
		Counts: map[string]int{
			"events":      len(in.Events),
			"claims":      len(record.Response.DecisionRecord.Claims),
			"citations":   len(record.Response.EvidenceBundleUser.Citations),
			"evidence":    len(record.Response.EvidenceBundleUser.Sources),
			"incidents":   len(record.Response.DecisionRecord.Incidents),
		},
		AlgoVersions: AlgoVersions,
	}
	manifestBytes, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("auditpack: marshal manifest: %w", err)
	}
	fileBytes["manifest.json"] = manifestBytes

	zipBytes, err := packageZip(fileBytes)
	if err != nil {
		return nil, err
	}

	return &HostAuditPack{TraceID: record.TraceID, Zip: zipBytes, Manifest: manifest}, nil
}

func verifyRecordHashes(record *tracestore.TraceRecord) error {
	responseHash, contextHash, replayHash, err := hashTripleFor(record)
	if err != nil {
		return err
	}
	if responseHash != record.ResponseHash {
		return gate.NewIntegrityMismatchError("response_hash", nil)
	}
	if contextHash != record.ContextHash {
		return gate.NewIntegrityMismatchError("context_hash", nil)
	}
	if replayHash != record.ReplayInputsHash {
		return gate.NewIntegrityMismatchError("replay_inputs_hash", nil)
	}
	return nil
}

func hashTripleFor(record *tracestore.TraceRecord) (responseHash, contextHash, replayHash string, err error) {
	responseHash, err = hashchain.CanonicalHash(record.Response)
	if err != nil {
		return "", "", "", err
	}
	contextHash, err = hashchain.CanonicalHash(record.Context)
	if err != nil {
		return "", "", "", err
	}
	replayHash, err = hashchain.CanonicalHash(record.ReplayInputs)
	if err != nil {
		return "", "", "", err
	}
	return responseHash, contextHash, replayHash, nil
}

// packageZip writes every file into a DEFLATE-compressed ZIP archive at
// the given root-relative names.
func packageZip(files map[string][]byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	for name, data := range files {
		fw, err := w.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
		if err != nil {
			return nil, fmt.Errorf("auditpack: create zip entry %s: %w", name, err)
		}
		if _, err := fw.Write(data); err != nil {
			return nil, fmt.Errorf("auditpack: write zip entry %s: %w", name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("auditpack: close zip: %w", err)
	}
	return buf.Bytes(), nil
}

func sanitizeSummary(text string, maxLen int) string {
	redacted, _ := gate.RedactText(text)
	if len(redacted) <= maxLen {
		return redacted
	}
	return redacted[:maxLen]
}

func composeNarrative(record *tracestore.TraceRecord, events []hashchain.Event) string {
	var sb bytes.Buffer

	fmt.Fprintf(&sb, "# Chain of Custody: %s\n\n", record.TraceID)
	fmt.Fprintf(&sb, "## Request Summary\n%s\n\n", sanitizeSummary(record.ReplayInputs.PromptWindow, 220))

	sb.WriteString("## Suppressed Claims\n")
	for _, c := range record.Response.DecisionRecord.Claims {
		if c.VerificationStatus != gate.VerificationSupported {
			fmt.Fprintf(&sb, "- %s: %s (%s)\n", c.ClaimID, c.ClaimType, c.VerificationStatus)
		}
	}
	sb.WriteString("\n## Evidence-to-Claim Links\n")
	for _, link := range record.Response.DecisionRecord.EvidenceLinks {
		fmt.Fprintf(&sb, "- %s -> %s\n", link.ClaimID, link.SourceID)
	}

	sb.WriteString("\n## Policies Evaluated\n")
	for _, p := range record.Response.DecisionRecord.PolicyChecks {
		fmt.Fprintf(&sb, "- %s: passed=%v version=%s\n", p.PolicyID, p.Passed, p.Version)
	}

	fmt.Fprintf(&sb, "\n## Jurisdiction Compliance\nviolation=%v\n",
		record.Response.EvidenceBundleUser.RetrievalMetadata.JurisdictionViolation)

	sb.WriteString("\n## Failure Modes\n")
	for _, mode := range record.Response.DecisionRecord.FailureModes {
		fmt.Fprintf(&sb, "- %s\n", mode)
	}

	sb.WriteString("\n## Artifact Digests\n")
	fmt.Fprintf(&sb, "- response_hash: %s\n", record.ResponseHash)
	fmt.Fprintf(&sb, "- context_hash: %s\n", record.ContextHash)
	fmt.Fprintf(&sb, "- replay_inputs_hash: %s\n", record.ReplayInputsHash)

	fmt.Fprintf(&sb, "\n## Context\nsession=%s user=%s\n", record.Context.SessionID, record.Context.UserID)
	fmt.Fprintf(&sb, "\n## Event Chain\n%d events, hash-chain version %s\n", len(events), record.EventsHashChainVersion)

	return sb.String()
}
