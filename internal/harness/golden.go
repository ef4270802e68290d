package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

const goldenDir = "testdata/golden"

// Snapshot is the golden-file form of a scenario run: where the session
// ended and every event on the way.
type Snapshot struct {
	Scenario  string       `json:"scenario_name"`
	FinalKey  string       `json:"final_key"`
	FinalStep int          `json:"final_step"`
	Trace     []TraceEvent `json:"trace"`
}

// NewSnapshot captures result under the scenario name.
func NewSnapshot(name string, result *Result) Snapshot {
	return Snapshot{
		Scenario:  name,
		FinalKey:  result.FinalKey,
		FinalStep: result.FinalStep,
		Trace:     result.Trace,
	}
}

// Bytes renders the snapshot as indented JSON ending in a newline. Event
// data are maps, which encoding/json writes in key order.
func (s Snapshot) Bytes() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RunGolden runs scenario and compares its snapshot with
// testdata/golden/<name>.golden. Pass -update to rewrite the file.
func RunGolden(t *testing.T, scenario *Scenario) *Result {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		t.Fatalf("run %s: %v", scenario.Name, err)
	}
	data, err := NewSnapshot(scenario.Name, result).Bytes()
	if err != nil {
		t.Fatalf("snapshot %s: %v", scenario.Name, err)
	}

	g := goldie.New(t, goldie.WithFixtureDir(goldenDir), goldie.WithNameSuffix(".golden"))
	g.Assert(t, scenario.Name, data)
	return result
}
