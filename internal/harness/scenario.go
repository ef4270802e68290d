package harness

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario defines a session replay.
// A scenario seeds the draft store, drives one editing session through a
// list of steps on a fake clock and asserts on the resulting event trace
// and final store state.
type Scenario struct {
	// Name uniquely identifies this scenario. Also names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Settings tune the session under test. Optional.
	Settings Settings `yaml:"settings,omitempty"`

	// Seed contains drafts written to the store before the session starts.
	// These model other tabs and earlier crashed sessions.
	Seed []SeedDraft `yaml:"seed,omitempty"`

	// Steps is the session script, executed in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	// Supported types: trace_contains, trace_order, trace_count, final_state
	Assertions []Assertion `yaml:"assertions"`
}

// Settings selects the collaborators wired into the session.
type Settings struct {
	// Backend is "ok" (local reports table, default), "fail" or "none".
	Backend string `yaml:"backend,omitempty"`

	// Rules enables the form rules. Default true.
	Rules *bool `yaml:"rules,omitempty"`

	// Scoring enables the derived score pipeline. Default true.
	Scoring *bool `yaml:"scoring,omitempty"`

	// RecoveryWindow overrides the crash scan window ("2h", "0").
	RecoveryWindow string `yaml:"recovery_window,omitempty"`
}

// Backend modes.
const (
	BackendOK   = "ok"
	BackendFail = "fail"
	BackendNone = "none"
)

// SeedDraft is a draft present in the store when the session starts.
type SeedDraft struct {
	// Key is the draft key.
	Key string `yaml:"key"`

	// Session is the session ID recorded in the draft.
	Session string `yaml:"session"`

	// SavedAgo is how long before the scenario start the draft was saved.
	SavedAgo string `yaml:"saved_ago"`

	// Step is the step the draft was saved on. Default 1.
	Step int `yaml:"step,omitempty"`

	// Emergency marks the draft as written on unload.
	Emergency bool `yaml:"emergency,omitempty"`

	// Legacy writes the bare submission in the minimal fallback format.
	Legacy bool `yaml:"legacy,omitempty"`

	// Submission is the draft content in its JSON field names.
	Submission map[string]interface{} `yaml:"submission"`
}

// Step is one session action. Exactly one action field must be set;
// Expect may accompany any of them.
type Step struct {
	// Mutate sets one field.
	Mutate *MutateStep `yaml:"mutate,omitempty"`

	// Confirm pins the identity to a known user.
	Confirm *ConfirmStep `yaml:"confirm,omitempty"`

	// Advance moves the fake clock, firing due timers.
	Advance string `yaml:"advance,omitempty"`

	// GoTo navigates to a step.
	GoTo int `yaml:"goto,omitempty"`

	// Resume resumes the draft under this key.
	Resume string `yaml:"resume,omitempty"`

	// Do runs a lifecycle action: start, save, hidden, unload, fresh,
	// dismiss or submit.
	Do string `yaml:"do,omitempty"`

	// Expect checks the session right after the action.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// MutateStep sets Path to Value.
type MutateStep struct {
	Path  string      `yaml:"path"`
	Value interface{} `yaml:"value"`
}

// ConfirmStep is a known identity.
type ConfirmStep struct {
	Name  string `yaml:"name"`
	Phone string `yaml:"phone"`
}

// ExpectClause specifies the expected session state after a step.
type ExpectClause struct {
	// Error is the expected error code: CRITICAL_VALIDATION,
	// BACKEND_FAILURE, NOT_FOUND or "none".
	Error string `yaml:"error,omitempty"`

	// Key is the expected draft key.
	Key string `yaml:"key,omitempty"`

	// Step is the expected current step.
	Step int `yaml:"step,omitempty"`

	// Prompt is the expected prompt kind ("crash", "user_drafts", "none").
	Prompt string `yaml:"prompt,omitempty"`
}

// Lifecycle actions accepted by Step.Do.
const (
	DoStart   = "start"
	DoSave    = "save"
	DoHidden  = "hidden"
	DoUnload  = "unload"
	DoFresh   = "fresh"
	DoDismiss = "dismiss"
	DoSubmit  = "submit"
)

// Expected error codes besides the submit codes.
const (
	ExpectNoError  = "none"
	ExpectNotFound = "NOT_FOUND"
)

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": Check an event appears in trace with data
	// - "trace_order": Check events appear in order
	// - "trace_count": Check an event appears exactly N times
	// - "final_state": Query table and verify expected values
	Type string `yaml:"type"`

	// Event is the event type (used by trace_contains, trace_count).
	Event string `yaml:"event,omitempty"`

	// Data are the expected event fields (used by trace_contains,
	// trace_count). Subset match - only specified fields are validated.
	Data map[string]interface{} `yaml:"data,omitempty"`

	// Table is the table name (used by final_state).
	Table string `yaml:"table,omitempty"`

	// Where specifies query filters (used by final_state).
	// All fields must match exactly.
	Where map[string]interface{} `yaml:"where,omitempty"`

	// Expect contains expected column values (used by final_state).
	// Subset match - only specified fields are validated.
	Expect map[string]interface{} `yaml:"expect,omitempty"`

	// Count is the expected number of occurrences (used by trace_count).
	Count int `yaml:"count,omitempty"`

	// Events is the expected event order (used by trace_order).
	Events []string `yaml:"events,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	switch s.Settings.Backend {
	case "", BackendOK, BackendFail, BackendNone:
	default:
		return fmt.Errorf("settings.backend: unknown backend %q", s.Settings.Backend)
	}
	if s.Settings.RecoveryWindow != "" {
		if _, err := time.ParseDuration(s.Settings.RecoveryWindow); err != nil {
			return fmt.Errorf("settings.recovery_window: %w", err)
		}
	}

	for i, d := range s.Seed {
		if d.Key == "" {
			return fmt.Errorf("seed[%d]: key is required", i)
		}
		if d.Submission == nil {
			return fmt.Errorf("seed[%d]: submission is required", i)
		}
		if d.SavedAgo != "" {
			if _, err := time.ParseDuration(d.SavedAgo); err != nil {
				return fmt.Errorf("seed[%d].saved_ago: %w", i, err)
			}
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateStep checks that exactly one action is set.
func validateStep(index int, st *Step) error {
	actions := 0
	if st.Mutate != nil {
		actions++
		if st.Mutate.Path == "" {
			return fmt.Errorf("steps[%d].mutate: path is required", index)
		}
	}
	if st.Confirm != nil {
		actions++
		if st.Confirm.Name == "" || st.Confirm.Phone == "" {
			return fmt.Errorf("steps[%d].confirm: name and phone are required", index)
		}
	}
	if st.Advance != "" {
		actions++
		d, err := time.ParseDuration(st.Advance)
		if err != nil {
			return fmt.Errorf("steps[%d].advance: %w", index, err)
		}
		if d < 0 {
			return fmt.Errorf("steps[%d].advance: must be non-negative", index)
		}
	}
	if st.GoTo != 0 {
		actions++
	}
	if st.Resume != "" {
		actions++
	}
	if st.Do != "" {
		actions++
		switch st.Do {
		case DoStart, DoSave, DoHidden, DoUnload, DoFresh, DoDismiss, DoSubmit:
		default:
			return fmt.Errorf("steps[%d]: unknown action %q", index, st.Do)
		}
	}

	if actions != 1 {
		return fmt.Errorf("steps[%d]: exactly one action is required, got %d", index, actions)
	}

	if st.Expect != nil && st.Expect.Error != "" {
		switch strings.ToUpper(st.Expect.Error) {
		case "NONE", ExpectNotFound, "CRITICAL_VALIDATION", "BACKEND_FAILURE":
		default:
			return fmt.Errorf("steps[%d].expect: unknown error code %q", index, st.Expect.Error)
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
