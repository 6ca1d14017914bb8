package gate

import "regexp"

// redactionDetector pairs a label with the pattern that finds it. Order
// matters: detectors run in this fixed sequence, and text already replaced
// by an earlier detector (e.g. a digit run taken by PHONE) is no longer
// visible to a later one such as NATIONAL_ID.
type redactionDetector struct {
	label   string
	pattern *regexp.Regexp
}

var redactionDetectors = []redactionDetector{
	{"EMAIL", regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)},
	{"PHONE", regexp.MustCompile(`\+?\d{1,3}[-.\s]?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)},
	{"NATIONAL_ID", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{"MEDICAL_RECORD", regexp.MustCompile(`\bMRN[-:\s]?\d{6,10}\b`)},
}

// RedactText applies every detector in fixed order to text, replacing each
// match with "[REDACTED_<LABEL>]", and returns the redacted text plus one
// RedactionEvent per detector that fired at least once. Running RedactText
// on already-redacted text is a no-op: none of the detector patterns match
// a "[REDACTED_...]" token.
func RedactText(text string) (string, []RedactionEvent) {
	var events []RedactionEvent

	for _, d := range redactionDetectors {
		count := 0
		text = d.pattern.ReplaceAllStringFunc(text, func(string) string {
			count++
			return "[REDACTED_" + d.label + "]"
		})
		if count > 0 {
			events = append(events, RedactionEvent{
				PolicyID: "pii_redaction",
				Detector: d.label,
				Count:    count,
			})
		}
	}

	return text, events
}

// RedactEvidence applies RedactText to an evidence source's snippet,
// returning the redacted copy and any redaction events it produced.
func RedactEvidence(sources []EvidenceSource) ([]EvidenceSource, []RedactionEvent) {
	out := make([]EvidenceSource, len(sources))
	var allEvents []RedactionEvent

	for i, s := range sources {
		redacted, events := RedactText(s.Snippet)
		s.Snippet = redacted
		out[i] = s
		allEvents = append(allEvents, events...)
	}

	return out, allEvents
}
