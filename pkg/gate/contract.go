package gate

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
)

// ContractVersion is the current response-contract schema version.
const ContractVersion = "2.0.0"

// contractKeyOrder is the fixed top-level key order every serialized
// ResponseContract must produce. The earlier 4-key shape (answer,
// citations, attribution, policy_trace) is kept as a legacy-compatible
// mirror of data that also lives in the newer answer_text/
// evidence_bundle_user/decision_record fields, rather than reintroduced
// as an independent representation.
var contractKeyOrder = []string{
	"contract_version", "decision", "answer", "citations", "attribution",
	"audit_pack_ref", "policy_trace", "failure_mode", "answer_text",
	"evidence_bundle_user", "decision_record", "trace_id",
}

// ResponseContract is the fixed-shape, ordered-key user-visible payload
// (component N).
type ResponseContract struct {
	ContractVersion    string                `json:"contract_version"`
	Decision           string                `json:"decision"`
	Answer             string                `json:"answer"`
	Citations          []Citation            `json:"citations"`
	Attribution        []string              `json:"attribution"`
	AuditPackRef       string                `json:"audit_pack_ref"`
	PolicyTrace        []PolicyCheckResult   `json:"policy_trace"`
	FailureMode        string                `json:"failure_mode"`
	AnswerText         string                `json:"answer_text"`
	EvidenceBundleUser EvidenceBundleUser    `json:"evidence_bundle_user"`
	DecisionRecord     DecisionRecord        `json:"decision_record"`
	TraceID            string                `json:"trace_id"`
}

// deriveDecision maps the enforced answer text's prefix to a decision
// label.
func deriveDecision(answerText string) string {
	switch {
	case strings.HasPrefix(answerText, "REFUSE:"):
		return "REFUSE"
	case strings.HasPrefix(answerText, "UNKNOWN:"):
		return "UNKNOWN"
	default:
		return "ALLOW"
	}
}

// deriveFailureMode returns the first element of the sorted, deduplicated
// failure modes, or "none" if there are none.
func deriveFailureMode(failureModes []string) string {
	if len(failureModes) == 0 {
		return "none"
	}
	deduped := dedupSortedStrings(failureModes)
	if len(deduped) == 0 {
		return "none"
	}
	return deduped[0]
}

func dedupSortedStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

// deriveAttribution summarizes evidence sources as "<source_id>:<trust_level>"
// strings, one per citation, for the legacy-compatible attribution field.
func deriveAttribution(citations []Citation, sources []EvidenceSource) []string {
	byID := make(map[string]EvidenceSource, len(sources))
	for _, s := range sources {
		byID[s.ID] = s
	}

	attribution := make([]string, 0, len(citations))
	for _, c := range citations {
		if s, ok := byID[c.SourceID]; ok {
			attribution = append(attribution, s.ID+":"+string(s.TrustLevel))
		}
	}
	return attribution
}

// BuildContract assembles the fixed-shape ResponseContract from a decided
// TrustEvidenceResponse.
func BuildContract(resp TrustEvidenceResponse) ResponseContract {
	failureModes := dedupSortedStrings(resp.DecisionRecord.FailureModes)
	decision := deriveDecision(resp.AnswerText)

	return ResponseContract{
		ContractVersion:    ContractVersion,
		Decision:           decision,
		Answer:             resp.AnswerText,
		Citations:          resp.EvidenceBundleUser.Citations,
		Attribution:        deriveAttribution(resp.EvidenceBundleUser.Citations, resp.EvidenceBundleUser.Sources),
		AuditPackRef:       "/trust/audit-packs/" + resp.TraceID,
		PolicyTrace:        resp.DecisionRecord.PolicyChecks,
		FailureMode:        deriveFailureMode(failureModes),
		AnswerText:         resp.AnswerText,
		EvidenceBundleUser: resp.EvidenceBundleUser,
		DecisionRecord:     resp.DecisionRecord,
		TraceID:            resp.TraceID,
	}
}

// AssertContractShape re-marshals contract and asserts its top-level key
// order exactly matches contractKeyOrder, raising ContractViolationError
// (TRUST_GATE_BYPASS_ATTEMPT) on any mismatch. This is the boundary
// assertion described in component N: a reordered or malformed shape
// must never reach a caller.
func AssertContractShape(contract ResponseContract) error {
	raw, err := json.Marshal(contract)
	if err != nil {
		return NewContractViolationError("contract did not serialize", err)
	}

	keys, err := topLevelKeyOrder(raw)
	if err != nil {
		return NewContractViolationError("contract shape unreadable", err)
	}

	if len(keys) != len(contractKeyOrder) {
		return NewContractViolationError("contract key count mismatch", nil)
	}
	for i, k := range keys {
		if k != contractKeyOrder[i] {
			return NewContractViolationError("contract key order mismatch at position "+itoa(i), nil)
		}
	}

	return nil
}

// topLevelKeyOrder extracts the top-level object keys of raw JSON in
// encounter order using a streaming decoder, since map-based unmarshaling
// would discard order.
func topLevelKeyOrder(raw []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if _, ok := tok.(json.Delim); !ok {
		return nil, NewContractViolationError("top-level value is not an object", nil)
	}

	var keys []string
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, NewContractViolationError("non-string object key", nil)
		}
		keys = append(keys, key)

		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}

	return keys, nil
}

// AssertNoBypassInputs inspects the host context and the enforced answer
// text for raw-model-output leakage or streaming-partial surfacing,
// raising ContractViolationError when found. This is the supplemented
// counterpart to AssertContractShape: it guards the inputs side of the
// boundary rather than the output shape.
func AssertNoBypassInputs(host HostContext, enforcedAnswer string) error {
	if host.RawModelOutput == "unsafe" {
		return NewContractViolationError("raw model output surfaced unsafe marker", nil)
	}
	if host.StreamRequested && enforcedAnswer == "" {
		return NewContractViolationError("streaming partial surfaced without enforcement", nil)
	}
	return nil
}
