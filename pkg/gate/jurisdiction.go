package gate

import "strings"

// JurisdictionResult is the outcome of enforcing jurisdiction/scope rules
// over a normalized evidence list (component C).
type JurisdictionResult struct {
	Accepted  []EvidenceSource
	Rejected  []EvidenceSource
	Violation bool
}

// EnforceJurisdiction partitions sources into accepted/rejected by
// allowed jurisdictions and required scope.
func EnforceJurisdiction(sources []EvidenceSource, allowed []Jurisdiction, requiredScope string) JurisdictionResult {
	allowedSet := make(map[Jurisdiction]bool, len(allowed))
	for _, j := range allowed {
		allowedSet[j] = true
	}

	var result JurisdictionResult
	for _, s := range sources {
		if !allowedSet[s.Jurisdiction] || !containsScope(s.AllowedScopes, requiredScope) {
			result.Rejected = append(result.Rejected, s)
			result.Violation = true
			continue
		}
		result.Accepted = append(result.Accepted, s)
	}

	return result
}

func containsScope(scopes []string, required string) bool {
	if required == "" {
		return true
	}
	for _, s := range scopes {
		if s == required {
			return true
		}
	}
	return false
}

var promptInjectionPhrases = []string{
	"ignore previous instructions",
	"system prompt",
	"override policy",
}

var poisoningPhrases = []string{
	"jailbreak",
	"fabricated",
	"poison",
	"do not trust policy",
}

// ClassifyThreatSignals detects adversarial patterns in the draft answer
// and accepted evidence snippets.
func ClassifyThreatSignals(answer string, sources []EvidenceSource) []ThreatSignal {
	var signals []ThreatSignal

	lowerAnswer := strings.ToLower(answer)
	for _, phrase := range promptInjectionPhrases {
		if strings.Contains(lowerAnswer, phrase) {
			signals = append(signals, ThreatSignal{
				Type:       ThreatPromptInjection,
				Confidence: ConfidenceHigh,
				Detail:     phrase,
			})
			break
		}
	}

	hits := 0
	for _, s := range sources {
		lowerSnippet := strings.ToLower(s.Snippet)
		for _, phrase := range poisoningPhrases {
			if strings.Contains(lowerSnippet, phrase) {
				hits++
				break
			}
		}
	}
	if hits > 0 {
		confidence := ConfidenceMedium
		if hits >= 2 {
			confidence = ConfidenceHigh
		}
		signals = append(signals, ThreatSignal{
			Type:       ThreatEvidencePoisoning,
			Confidence: confidence,
		})
	}

	return signals
}

// ApplyThreatContainment forces every source to UNVERIFIED when evidence
// poisoning was detected, and reduces confidence_weight by 0.3 (floored at
// 0) when any threat signal is present.
func ApplyThreatContainment(sources []EvidenceSource, signals []ThreatSignal) []EvidenceSource {
	if len(signals) == 0 {
		return sources
	}

	poisoned := false
	for _, sig := range signals {
		if sig.Type == ThreatEvidencePoisoning {
			poisoned = true
			break
		}
	}

	out := make([]EvidenceSource, len(sources))
	for i, s := range sources {
		if poisoned {
			s.TrustLevel = TrustUnverified
		}
		s.ConfidenceWeight -= 0.3
		if s.ConfidenceWeight < 0 {
			s.ConfidenceWeight = 0
		}
		out[i] = s
	}

	return out
}
