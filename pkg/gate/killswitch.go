package gate

import (
	"strings"
	"sync"
)

// HaltMode classifies the current granularity of an active kill-switch
// halt.
type HaltMode string

const (
	HaltNone      HaltMode = "none"
	HaltSystem    HaltMode = "SYSTEM_HALT"
	HaltDomain    HaltMode = "DOMAIN_HALT"
	HaltClaimType HaltMode = "CLAIM_TYPE_HALT"
)

// KillSwitch is the global halt control. It is a small mutex-guarded
// struct rather than a package-level singleton so callers can construct
// one explicitly at the gate's wiring point and inject it.
type KillSwitch struct {
	mu         sync.RWMutex
	mode       HaltMode
	domain     string
	claimType  ClaimType
	reason     string
}

// New constructs a cleared KillSwitch.
func New() *KillSwitch {
	return &KillSwitch{mode: HaltNone}
}

// ShouldHalt reports whether the current halt state blocks domain or any
// of claimTypes.
func (k *KillSwitch) ShouldHalt(domain string, claimTypes []ClaimType) bool {
	k.mu.RLock()
	defer k.mu.RUnlock()

	switch k.mode {
	case HaltSystem:
		return true
	case HaltDomain:
		return k.domain == domain
	case HaltClaimType:
		for _, ct := range claimTypes {
			if ct == k.claimType {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// Reason returns the reason string recorded when the current halt was
// activated, empty when no halt is active.
func (k *KillSwitch) Reason() string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.reason
}

// Mode returns the current halt mode.
func (k *KillSwitch) Mode() HaltMode {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.mode
}

// ActivateSystemHalt sets the halt mode to SYSTEM_HALT. Once set, it
// stays set until an admin clears it; activating again while already at
// SYSTEM_HALT is a no-op other than refreshing the reason.
func (k *KillSwitch) ActivateSystemHalt(reason string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.mode = HaltSystem
	k.reason = reason
}

// ActivateDomainHalt sets the halt mode to DOMAIN_HALT for domain.
func (k *KillSwitch) ActivateDomainHalt(domain, reason string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.mode == HaltSystem {
		return
	}
	k.mode = HaltDomain
	k.domain = domain
	k.reason = reason
}

// ActivateClaimTypeHalt sets the halt mode to CLAIM_TYPE_HALT for
// claimType.
func (k *KillSwitch) ActivateClaimTypeHalt(claimType ClaimType, reason string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.mode == HaltSystem {
		return
	}
	k.mode = HaltClaimType
	k.claimType = claimType
	k.reason = reason
}

// Clear resets the kill-switch to no halt. Administrative action only.
func (k *KillSwitch) Clear() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.mode = HaltNone
	k.domain = ""
	k.claimType = ""
	k.reason = ""
}

// ClassifyIncidents maps failure/metric signals to incident events,
// auto-activating SYSTEM_HALT when a bypass attempt is among
// failureModes.
func (k *KillSwitch) ClassifyIncidents(failureModes []string, metrics Metrics, replayConsistent bool) []Incident {
	var incidents []Incident

	for _, mode := range failureModes {
		if mode == "no_supporting_evidence_found" {
			incidents = append(incidents, Incident{Type: IncidentEvidenceFailure, Confidence: ConfidenceMedium})
			break
		}
	}

	if metrics.PctSuppressed >= 0.5 {
		incidents = append(incidents, Incident{Type: IncidentHallucinationSpike, Confidence: ConfidenceHigh})
	}

	for _, mode := range failureModes {
		if strings.Contains(mode, "TRUST_GATE_BYPASS_ATTEMPT") {
			incidents = append(incidents, Incident{Type: IncidentBypassAttempt, Confidence: ConfidenceCritical})
			k.ActivateSystemHalt("TRUST_GATE_BYPASS_ATTEMPT")
			break
		}
	}

	if !replayConsistent {
		incidents = append(incidents, Incident{Type: IncidentReplayInconsistency, Confidence: ConfidenceHigh})
	}

	return incidents
}
