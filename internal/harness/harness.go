package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/draftkeep/internal/backend"
	"github.com/roach88/draftkeep/internal/engine"
	"github.com/roach88/draftkeep/internal/form"
	"github.com/roach88/draftkeep/internal/identity"
	"github.com/roach88/draftkeep/internal/rules"
	"github.com/roach88/draftkeep/internal/scoring"
	"github.com/roach88/draftkeep/internal/store"
	"github.com/roach88/draftkeep/internal/testutil"
)

// Epoch is the fake clock reading at the start of every scenario. The
// current reporting period at Epoch is 2026-09.
var Epoch = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

// SessionPrefix prefixes the IDs of sessions started by the harness. The
// first session is "<prefix>-1".
const SessionPrefix = "tab"

// errBackendDown is returned by the "fail" backend.
var errBackendDown = errors.New("backend unavailable")

type failingBackend struct{}

func (failingBackend) Submit(context.Context, form.Submission) (form.Submission, error) {
	return form.Submission{}, errBackendDown
}

// Harness runs one scenario against a real session.
type Harness struct {
	store   *store.Store
	session *engine.Session
	clock   *testutil.FakeClock
	events  <-chan engine.Event
	logger  *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation, on a
// fake clock starting at Epoch with sequential session IDs, so the trace is
// reproducible.
//
// Execution flow:
// 1. Create fresh in-memory database and seed drafts
// 2. Build a session with the configured rules, scoring and backend
// 3. Execute steps, collecting published events after each
// 4. Evaluate assertions against the trace and the database
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	if err := seed(ctx, st, scenario.Seed); err != nil {
		return nil, fmt.Errorf("failed to seed drafts: %w", err)
	}

	h := &Harness{
		store:  st,
		clock:  testutil.NewFakeClock(Epoch),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}

	opts, err := h.sessionOptions(scenario.Settings)
	if err != nil {
		return nil, err
	}
	h.session = engine.NewSession(st, opts...)
	defer h.session.Close()

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	h.events = h.session.Subscribe(subCtx, 4096)

	result := newResult()
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}
	result.FinalKey = h.session.Key()
	result.FinalStep = h.session.Step()

	actx := &AssertionContext{
		Store: st,
		Ctx:   ctx,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.fail(errMsg)
	}

	return result, nil
}

func (h *Harness) sessionOptions(cfg Settings) ([]engine.SessionOption, error) {
	settings := engine.DefaultSettings()
	if cfg.RecoveryWindow != "" {
		d, err := time.ParseDuration(cfg.RecoveryWindow)
		if err != nil {
			return nil, fmt.Errorf("recovery window: %w", err)
		}
		settings.RecoveryWindow = d
	}

	policy := identity.DefaultPolicy()
	opts := []engine.SessionOption{
		engine.WithClock(h.clock),
		engine.WithIDGenerator(testutil.NewSequentialIDs(SessionPrefix)),
		engine.WithClientInfo("harness", "local"),
		engine.WithSettings(settings),
		engine.WithPolicy(policy),
		engine.WithLogger(h.logger),
		engine.WithMetrics(engine.NewMetrics(prometheus.NewRegistry())),
	}

	if cfg.Rules == nil || *cfg.Rules {
		steps, err := rules.NewSteps(policy)
		if err != nil {
			return nil, fmt.Errorf("load form rules: %w", err)
		}
		opts = append(opts,
			engine.WithStepValidator(steps),
			engine.WithFieldValidator(rules.NewField(policy)),
		)
	}
	if cfg.Scoring == nil || *cfg.Scoring {
		opts = append(opts, engine.WithScorer(scoring.Default{}))
	}

	switch cfg.Backend {
	case "", BackendOK:
		local, err := backend.NewLocal(h.store.DB(), backend.WithNow(h.clock.Now))
		if err != nil {
			return nil, err
		}
		opts = append(opts, engine.WithBackend(local))
	case BackendFail:
		opts = append(opts, engine.WithBackend(failingBackend{}))
	case BackendNone:
	}
	return opts, nil
}

// seed writes the scenario's initial drafts.
func seed(ctx context.Context, st *store.Store, drafts []SeedDraft) error {
	for i, d := range drafts {
		sub, err := decodeSubmission(d.Submission)
		if err != nil {
			return fmt.Errorf("seed[%d]: %w", i, err)
		}
		if sub.Period == "" {
			if k, err := identity.Parse(d.Key); err == nil {
				sub.Period = k.Period
			}
		}

		var ago time.Duration
		if d.SavedAgo != "" {
			if ago, err = time.ParseDuration(d.SavedAgo); err != nil {
				return fmt.Errorf("seed[%d]: %w", i, err)
			}
		}
		saved := Epoch.Add(-ago)
		step := d.Step
		if step == 0 {
			step = form.StepProfile
		}

		if d.Legacy {
			err = st.SetLegacy(ctx, d.Key, sub, step, saved)
		} else {
			err = st.Set(ctx, d.Key, &store.Record{
				Submission:    sub,
				CurrentStep:   step,
				LastSaved:     saved,
				Session:       store.SessionInfo{SessionID: d.Session, Client: "seed", Timestamp: saved},
				EmergencySave: d.Emergency,
			})
		}
		if err != nil {
			return fmt.Errorf("seed[%d]: %w", i, err)
		}
	}
	return nil
}

// decodeSubmission converts YAML submission fields onto an empty form.
func decodeSubmission(fields map[string]interface{}) (form.Submission, error) {
	sub := form.Empty("")
	data, err := json.Marshal(fields)
	if err != nil {
		return sub, fmt.Errorf("encode submission: %w", err)
	}
	if err := json.Unmarshal(data, &sub); err != nil {
		return sub, fmt.Errorf("decode submission: %w", err)
	}
	return sub, nil
}

// executeStep runs one step, then records every event it published and
// checks its expect clause.
func (h *Harness) executeStep(ctx context.Context, i int, step Step, result *Result) error {
	var stepErr error

	switch {
	case step.Mutate != nil:
		stepErr = h.session.Mutate(ctx, form.Path(step.Mutate.Path), step.Mutate.Value)
	case step.Confirm != nil:
		stepErr = h.session.ConfirmIdentity(ctx, identity.Confirmed{
			Name:  step.Confirm.Name,
			Phone: step.Confirm.Phone,
		})
	case step.Advance != "":
		d, err := time.ParseDuration(step.Advance)
		if err != nil {
			return err
		}
		h.clock.Advance(d)
	case step.GoTo != 0:
		h.session.GoToStep(ctx, step.GoTo)
	case step.Resume != "":
		stepErr = h.session.ResumeDraft(ctx, step.Resume)
	case step.Do != "":
		stepErr = h.do(ctx, step.Do, result)
	}

	h.collect(result)

	if stepErr != nil {
		result.record(TraceError, h.offset(), map[string]interface{}{
			"code":    errorCode(stepErr),
			"message": stepErr.Error(),
		})
	}
	if step.Expect != nil {
		h.checkExpect(i, step.Expect, stepErr, result)
	}

	h.logger.Info("scenario step completed", "step", i, "error", stepErr)
	return nil
}

// do runs a lifecycle action and returns the session's error, if any.
func (h *Harness) do(ctx context.Context, action string, result *Result) error {
	switch action {
	case DoStart:
		h.session.Start(ctx)
	case DoSave:
		h.session.SaveNow(ctx)
	case DoHidden:
		h.session.HandleVisibilityHidden(ctx)
	case DoUnload:
		res := h.session.HandleUnload(ctx)
		h.collect(result)
		result.record(TraceUnload, h.offset(), map[string]interface{}{
			"saved":        res.Saved,
			"warn_unsaved": res.WarnUnsaved,
		})
	case DoFresh:
		h.session.StartFresh()
	case DoDismiss:
		h.session.DismissPrompt()
	case DoSubmit:
		_, err := h.session.Submit(ctx)
		return err
	default:
		return fmt.Errorf("unknown action %q", action)
	}
	return nil
}

// collect moves every buffered session event into the trace.
func (h *Harness) collect(result *Result) {
	for {
		select {
		case evt := <-h.events:
			result.record(evt.Type, evt.Timestamp-Epoch.UnixMilli(), normalizeData(evt.Data))
		default:
			return
		}
	}
}

func (h *Harness) offset() int64 {
	return h.clock.Now().Sub(Epoch).Milliseconds()
}

func (h *Harness) checkExpect(i int, want *ExpectClause, err error, result *Result) {
	if want.Error != "" {
		got := ExpectNoError
		if err != nil {
			got = errorCode(err)
		}
		if !strings.EqualFold(got, want.Error) {
			result.fail(fmt.Sprintf("steps[%d]: expected error %s, got %s", i, want.Error, got))
		}
	}
	if want.Key != "" {
		if got := h.session.Key(); got != want.Key {
			result.fail(fmt.Sprintf("steps[%d]: expected key %s, got %s", i, want.Key, got))
		}
	}
	if want.Step != 0 {
		if got := h.session.Step(); got != want.Step {
			result.fail(fmt.Sprintf("steps[%d]: expected step %d, got %d", i, want.Step, got))
		}
	}
	if want.Prompt != "" {
		p := h.session.Prompt()
		got := string(p.Kind)
		if !p.Visible || got == "" {
			got = "none"
		}
		if got != want.Prompt {
			result.fail(fmt.Sprintf("steps[%d]: expected prompt %s, got %s", i, want.Prompt, got))
		}
	}
}

// errorCode names err for traces and expect clauses.
func errorCode(err error) string {
	var se *engine.SubmitError
	switch {
	case errors.As(err, &se):
		return string(se.Code)
	case errors.Is(err, engine.ErrDraftNotFound):
		return ExpectNotFound
	case errors.Is(err, form.ErrUnknownPath):
		return "UNKNOWN_PATH"
	default:
		return "ERROR"
	}
}

// normalizeData converts event data to the value types JSON decoding
// produces, so YAML expectations and golden files compare cleanly.
func normalizeData(data map[string]any) map[string]interface{} {
	if len(data) == 0 {
		return nil
	}
	out, err := normalize(data)
	if err != nil {
		return map[string]interface{}{"unencodable": err.Error()}
	}
	m, _ := out.(map[string]interface{})
	return m
}

func normalize(v interface{}) (interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
