package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trust-evidence/gate/pkg/gate"
)

func TestLoadKillswitchStateMissingFileYieldsHaltNone(t *testing.T) {
	st, err := loadKillswitchState(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, gate.HaltNone, st.Mode)
}

func TestSaveThenLoadKillswitchStateRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "killswitch.json")

	want := killswitchState{Mode: gate.HaltDomain, Domain: "finance", Reason: "incident-42"}
	require.NoError(t, saveKillswitchState(path, want))

	got, err := loadKillswitchState(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "DOMAIN_HALT", decoded["mode"])
}

func TestLoadKillswitchStateRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "killswitch.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	_, err := loadKillswitchState(path)
	assert.Error(t, err)
}

func TestKillswitchActivateRequiresDomainForDomainMode(t *testing.T) {
	killswitchFlags = struct {
		statePath string
		mode      string
		domain    string
		claimType string
		reason    string
	}{
		statePath: filepath.Join(t.TempDir(), "killswitch.json"),
		mode:      "domain",
		reason:    "test",
	}

	err := killswitchActivate(nil, nil)
	assert.Error(t, err)
}

func TestKillswitchActivateThenClearRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "killswitch.json")
	killswitchFlags = struct {
		statePath string
		mode      string
		domain    string
		claimType string
		reason    string
	}{
		statePath: path,
		mode:      "system",
		reason:    "manual incident response",
	}

	require.NoError(t, killswitchActivate(nil, nil))
	st, err := loadKillswitchState(path)
	require.NoError(t, err)
	assert.Equal(t, gate.HaltSystem, st.Mode)
	assert.Equal(t, "manual incident response", st.Reason)

	require.NoError(t, killswitchClear(nil, nil))
	st, err = loadKillswitchState(path)
	require.NoError(t, err)
	assert.Equal(t, gate.HaltNone, st.Mode)
}
