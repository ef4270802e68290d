package harness

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Regenerate with: go test ./internal/harness -run TestRunGolden -update
func TestRunGolden_KeyProgression(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "jo_key_progression.yaml"))
	require.NoError(t, err)

	result := RunGolden(t, scenario)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestSnapshot_Deterministic(t *testing.T) {
	result := &Result{
		FinalKey:  keyPriya,
		FinalStep: 2,
		Trace: []TraceEvent{
			{Type: "saved", At: 2000, Data: map[string]interface{}{"step": float64(1), "mode": "debounced", "key": keyPriya, "outcome": "ok"}},
			{Type: "prompt", At: 300, Data: map[string]interface{}{"visible": false, "kind": "crash"}},
		},
	}

	first, err := NewSnapshot("snapshot", result).Bytes()
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := NewSnapshot("snapshot", result).Bytes()
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	assert.Contains(t, string(first), `"key": "draft:2026-09:priya_nair:9876543210",
        "mode": "debounced",
        "outcome": "ok",
        "step": 1`)
	assert.Equal(t, byte('\n'), first[len(first)-1])
}

func TestSnapshot_EndsWithUnload(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "unload_emergency.yaml"))
	require.NoError(t, err)
	result, err := Run(scenario)
	require.NoError(t, err)

	data, err := NewSnapshot(scenario.Name, result).Bytes()
	require.NoError(t, err)

	var snap Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.Equal(t, scenario.Name, snap.Scenario)
	assert.Equal(t, "draft:2026-09:asha_rao:9123456789", snap.FinalKey)
	require.NotEmpty(t, snap.Trace)
	last := snap.Trace[len(snap.Trace)-1]
	assert.Equal(t, TraceUnload, last.Type)
	assert.Equal(t, true, last.Data["saved"])
}
