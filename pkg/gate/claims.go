package gate

import (
	"math"
	"regexp"
	"strings"
)

// SystemBehaviorClaim is a registry entry that SYSTEM claims bind to by
// substring/keyword match (component D). ValidFrom/ValidTo are stored on
// each entry; the claim engine does not filter entries by date.
type SystemBehaviorClaim struct {
	ID        string
	Text      string
	Version   string
	ValidFrom string
	ValidTo   string
}

const minimumKeywordHits = 1

var sentenceSplitter = regexp.MustCompile(`[.!?]+(?:\s+|$)|\n+`)

var derivedPrefixes = []string{
	"therefore", "thus", "hence", "as a result", "this means", "so ", "based on",
}

var interpretiveMarkers = []string{
	"suggests", "likely", "recommend", "appears", "possibly", "probably", "seems",
}

var systemMarkers = []string{
	"system", "policy", "tool", "capability", "gate", "unknown", "response contract",
}

var conversationalPrefixes = []string{
	"hi", "hello", "thanks", "thank you", "you're welcome", "how can i help",
}

var tokenPattern = regexp.MustCompile(`[a-z0-9]{4,}`)

// SplitClaims splits a draft answer into candidate claim sentences on
// terminal punctuation and newlines, falling back to the whole draft when
// no split points are found.
func SplitClaims(draft string) []string {
	parts := sentenceSplitter.Split(draft, -1)
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		trimmed := strings.TrimSpace(draft)
		if trimmed != "" {
			out = []string{trimmed}
		}
	}
	return out
}

// ClassifyClaimType applies the first-match-wins classification rules.
func ClassifyClaimType(sentence string) ClaimType {
	lower := strings.ToLower(sentence)

	for _, prefix := range derivedPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return ClaimDerived
		}
	}
	for _, marker := range interpretiveMarkers {
		if strings.Contains(lower, marker) {
			return ClaimInterpretive
		}
	}
	for _, marker := range systemMarkers {
		if strings.Contains(lower, marker) {
			return ClaimSystem
		}
	}
	return ClaimFactual
}

// IsConversational reports whether sentence opens with a conversational
// prefix, in which case it requires no evidence and is trivially
// SUPPORTED.
func IsConversational(sentence string) bool {
	lower := strings.ToLower(strings.TrimSpace(sentence))
	for _, prefix := range conversationalPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

func tokenize(s string) map[string]bool {
	tokens := tokenPattern.FindAllString(strings.ToLower(s), -1)
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}

func sharedTokenCount(a, b map[string]bool) int {
	n := 0
	for t := range a {
		if b[t] {
			n++
		}
	}
	return n
}

// matchesEvidence reports whether source matches the claim text, by
// substring containment or >=minimumKeywordHits shared >=4-char tokens.
func matchesEvidence(claimText string, source EvidenceSource) bool {
	lowerClaim := strings.ToLower(claimText)
	lowerSnippet := strings.ToLower(source.Snippet)

	if strings.Contains(lowerSnippet, lowerClaim) {
		return true
	}
	return sharedTokenCount(tokenize(claimText), tokenize(source.Snippet)) >= minimumKeywordHits
}

// hasContradiction reports whether exactly one of claimText/snippet
// contains the token " not ".
func hasContradiction(claimText, snippet string) bool {
	a := strings.Contains(" "+strings.ToLower(claimText)+" ", " not ")
	b := strings.Contains(" "+strings.ToLower(snippet)+" ", " not ")
	return a != b
}

// EvaluateClaims runs the claim engine (component D) over a draft answer
// and the contained evidence list, returning claims in source order, the
// claim graph, evidence links, hallucination events, and metrics.
func EvaluateClaims(draft string, evidence []EvidenceSource, registry []SystemBehaviorClaim) (
	[]Claim, []ClaimGraphEdge, []EvidenceLink, []HallucinationEvent, Metrics,
) {
	sentences := SplitClaims(draft)

	var claims []Claim
	var graph []ClaimGraphEdge
	var links []EvidenceLink
	var hallucinations []HallucinationEvent
	var supportedClaims []string

	for i, sentence := range sentences {
		claimID := claimIDFor(i)

		if IsConversational(sentence) {
			claims = append(claims, Claim{
				ClaimID:            claimID,
				ClaimText:          sentence,
				ClaimType:          ClassifyClaimType(sentence),
				EvidenceRequired:   false,
				VerificationStatus: VerificationSupported,
			})
			supportedClaims = append(supportedClaims, claimID)
			continue
		}

		claimType := ClassifyClaimType(sentence)

		var claim Claim
		switch claimType {
		case ClaimDerived:
			claim, graph = evaluateDerivedClaim(claimID, sentence, supportedClaims, graph)
		case ClaimSystem:
			claim = evaluateSystemClaim(claimID, sentence, registry)
		case ClaimInterpretive:
			var claimLinks []EvidenceLink
			claim, claimLinks = evaluateLexicalClaim(claimID, sentence, claimType, evidence)
			links = append(links, claimLinks...)
		default: // FACTUAL
			var claimLinks []EvidenceLink
			claim, claimLinks = evaluateLexicalClaim(claimID, sentence, claimType, evidence)
			links = append(links, claimLinks...)
		}

		claims = append(claims, claim)
		if claim.VerificationStatus == VerificationSupported {
			supportedClaims = append(supportedClaims, claimID)
		} else {
			hallucinations = append(hallucinations, HallucinationEvent{
				ClaimID:  claimID,
				Severity: severityFor(claimType),
			})
		}
	}

	metrics := computeMetrics(claims)
	return claims, graph, links, hallucinations, metrics
}

func claimIDFor(i int) string {
	return "claim_" + itoa(i+1)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func severityFor(t ClaimType) Confidence {
	switch t {
	case ClaimFactual, ClaimSystem:
		return ConfidenceHigh
	case ClaimDerived:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func evaluateLexicalClaim(claimID, sentence string, claimType ClaimType, evidence []EvidenceSource) (Claim, []EvidenceLink) {
	var matched []EvidenceSource
	var matchedIDs []string
	var links []EvidenceLink
	contradicted := false

	for _, s := range evidence {
		if !matchesEvidence(sentence, s) {
			continue
		}
		matched = append(matched, s)
		matchedIDs = append(matchedIDs, s.ID)
		links = append(links, EvidenceLink{ClaimID: claimID, SourceID: s.ID})
		if hasContradiction(sentence, s.Snippet) {
			contradicted = true
		}
	}

	claim := Claim{
		ClaimID:          claimID,
		ClaimText:        sentence,
		ClaimType:        claimType,
		EvidenceRequired: true,
		MatchedSourceIDs: matchedIDs,
	}

	switch claimType {
	case ClaimFactual:
		primaryHit := false
		secondaryHits := 0
		allUnverified := len(matched) > 0
		for _, s := range matched {
			switch s.TrustLevel {
			case TrustPrimary:
				primaryHit = true
				allUnverified = false
			case TrustSecondary:
				secondaryHits++
				allUnverified = false
			}
		}

		if primaryHit || secondaryHits >= 2 {
			claim.VerificationStatus = VerificationSupported
		} else {
			claim.VerificationStatus = VerificationUnsupported
			switch {
			case len(matched) > 0 && allUnverified:
				claim.UnsupportedMode = ModeToolUntrusted
			case len(matched) > 0:
				claim.UnsupportedMode = ModeOutOfScope
			default:
				claim.UnsupportedMode = ModeNoEvidence
			}
		}
	default: // INTERPRETIVE
		trustedHit := false
		for _, s := range matched {
			if s.TrustLevel != TrustUnverified {
				trustedHit = true
			}
		}
		if len(matched) > 0 {
			claim.VerificationStatus = VerificationPartial
			if !trustedHit {
				claim.UnsupportedMode = ModeToolUntrusted
			}
		} else {
			claim.VerificationStatus = VerificationUnsupported
			claim.UnsupportedMode = ModeNoEvidence
		}
	}

	if contradicted && claim.VerificationStatus != VerificationSupported {
		claim.UnsupportedMode = ModeContradicted
	}

	return claim, links
}

func evaluateDerivedClaim(claimID, sentence string, supportedClaims []string, graph []ClaimGraphEdge) (Claim, []ClaimGraphEdge) {
	claim := Claim{
		ClaimID:          claimID,
		ClaimText:        sentence,
		ClaimType:        ClaimDerived,
		EvidenceRequired: true,
	}

	if len(supportedClaims) == 0 {
		claim.VerificationStatus = VerificationUnsupported
		claim.UnsupportedMode = ModeOutOfScope
		return claim, graph
	}

	parents := supportedClaims
	if len(parents) > 2 {
		parents = parents[len(parents)-2:]
	}
	claim.VerificationStatus = VerificationSupported
	graph = append(graph, ClaimGraphEdge{ClaimID: claimID, DerivedFrom: append([]string{}, parents...)})

	return claim, graph
}

func evaluateSystemClaim(claimID, sentence string, registry []SystemBehaviorClaim) Claim {
	claim := Claim{
		ClaimID:          claimID,
		ClaimText:        sentence,
		ClaimType:        ClaimSystem,
		EvidenceRequired: true,
	}

	lowerSentence := strings.ToLower(sentence)
	sentenceTokens := tokenize(sentence)

	for _, entry := range registry {
		lowerEntry := strings.ToLower(entry.Text)
		matched := strings.Contains(lowerSentence, lowerEntry) || strings.Contains(lowerEntry, lowerSentence)
		if !matched {
			matched = sharedTokenCount(sentenceTokens, tokenize(entry.Text)) >= 3
		}
		if matched {
			claim.VerificationStatus = VerificationSupported
			claim.SystemClaimRef = entry.ID
			return claim
		}
	}

	claim.VerificationStatus = VerificationUnsupported
	claim.UnsupportedMode = ModeOutOfScope
	return claim
}

func computeMetrics(claims []Claim) Metrics {
	total := len(claims)
	unsupported := 0
	for _, c := range claims {
		if c.VerificationStatus == VerificationUnsupported {
			unsupported++
		}
	}

	pct := 0.0
	if total > 0 {
		pct = roundTo4(float64(unsupported) / float64(total))
	}

	return Metrics{
		NumClaimsTotal:       total,
		NumClaimsUnsupported: unsupported,
		PctSuppressed:        pct,
	}
}

func roundTo4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// RenderClaimLine formats a claim's contribution to the enforced answer
// text: SUPPORTED is emitted verbatim, PARTIAL is prefixed "PARTIAL: ",
// and UNSUPPORTED is prefixed "UNKNOWN: ".
func RenderClaimLine(c Claim) string {
	switch c.VerificationStatus {
	case VerificationPartial:
		return "PARTIAL: " + c.ClaimText
	case VerificationUnsupported:
		return "UNKNOWN: " + c.ClaimText
	default:
		return c.ClaimText
	}
}
