package gate

import (
	"fmt"
	"strings"

	"github.com/trust-evidence/gate/pkg/hashchain"
)

// TrustedTools is the configured set of tool names whose TOOL-origin
// evidence is accepted at its declared trust level; any other tool name
// is forced to UNVERIFIED.
type TrustedTools map[string]bool

var validTrustLevels = map[string]bool{
	string(TrustPrimary): true, string(TrustSecondary): true, string(TrustUnverified): true,
}

// NormalizeEvidence turns raw, heterogeneous retrieved items into an
// ordered list of closed-shape EvidenceSource values (component B).
func NormalizeEvidence(items []RawEvidenceItem, trustedTools TrustedTools) []EvidenceSource {
	seen := make(map[string]bool)
	out := make([]EvidenceSource, 0, len(items))

	for idx, item := range items {
		snippet := strings.TrimSpace(stringField(item, "snippet"))
		if snippet == "" {
			continue
		}

		id := deriveID(item, idx)
		title := stringField(item, "title")
		hash := hashchain.SHA256Hex([]byte(id + "|" + title + "|" + snippet))

		dedupKey := id + "|" + hash
		if seen[dedupKey] {
			continue
		}
		seen[dedupKey] = true

		origin := Origin(strings.ToUpper(stringField(item, "origin")))
		if origin == "" {
			origin = OriginThirdParty
		}

		trust := normalizeTrustLevel(item)
		toolName := stringField(item, "tool_name")
		if origin == OriginTool && !trustedTools[toolName] {
			trust = TrustUnverified
		}

		confidence := normalizeConfidence(item, trust)

		jurisdiction := Jurisdiction(strings.ToUpper(stringField(item, "jurisdiction")))
		if jurisdiction == "" {
			jurisdiction = JurisdictionUnknown
		}

		classification := DataClassification(strings.ToUpper(stringField(item, "data_classification")))
		if classification == "" {
			classification = ClassificationInternal
		}

		scopes := stringSliceField(item, "allowed_scopes")
		if len(scopes) == 0 {
			scopes = append([]string{}, DefaultAllowedScopes...)
		}

		out = append(out, EvidenceSource{
			ID:                 id,
			Title:              title,
			URI:                stringField(item, "uri"),
			Snippet:            snippet,
			Hash:               hash,
			TrustLevel:         trust,
			Origin:             origin,
			ConfidenceWeight:   confidence,
			Jurisdiction:       jurisdiction,
			DataClassification: classification,
			AllowedScopes:      scopes,
			ToolName:           toolName,
			MissingFields:      stringSliceField(item, "missing_fields"),
		})
	}

	return out
}

func deriveID(item RawEvidenceItem, idx int) string {
	for _, key := range []string{"id", "document_id", "uri"} {
		if v := stringField(item, key); v != "" {
			return v
		}
	}

	connectorID := stringField(item, "connector_id")
	sourceIdentifier := stringField(item, "source_identifier")
	uri := stringField(item, "uri")
	if connectorID != "" || sourceIdentifier != "" || uri != "" {
		digest := hashchain.SHA256Hex([]byte(connectorID + "|" + sourceIdentifier + "|" + uri))
		return "derived:" + digest[:16]
	}

	return fmt.Sprintf("source_%d", idx)
}

func normalizeTrustLevel(item RawEvidenceItem) TrustLevel {
	v := strings.ToUpper(stringField(item, "trust_level"))
	if validTrustLevels[v] {
		return TrustLevel(v)
	}
	return TrustSecondary
}

func normalizeConfidence(item RawEvidenceItem, trust TrustLevel) float64 {
	if v, ok := floatField(item, "confidence_weight"); ok {
		if v < 0 {
			return 0
		}
		if v > 1 {
			return 1
		}
		return v
	}

	switch trust {
	case TrustPrimary:
		return 0.9
	case TrustSecondary:
		return 0.6
	default:
		return 0.2
	}
}

func stringField(item RawEvidenceItem, key string) string {
	v, ok := item[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func stringSliceField(item RawEvidenceItem, key string) []string {
	v, ok := item[key]
	if !ok || v == nil {
		return nil
	}
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, e := range vv {
			out = append(out, fmt.Sprintf("%v", e))
		}
		return out
	default:
		return nil
	}
}

func floatField(item RawEvidenceItem, key string) (float64, bool) {
	v, ok := item[key]
	if !ok || v == nil {
		return 0, false
	}
	switch vv := v.(type) {
	case float64:
		return vv, true
	case float32:
		return float64(vv), true
	case int:
		return float64(vv), true
	default:
		return 0, false
	}
}
