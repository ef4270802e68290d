package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/draftkeep/internal/engine"
	"github.com/roach88/draftkeep/internal/form"
	"github.com/roach88/draftkeep/internal/scoring"
)

// StepReport is the validation outcome of one step.
type StepReport struct {
	Step     int               `json:"step"`
	Errors   map[string]string `json:"errors"`
	Warnings map[string]string `json:"warnings"`
}

// ValidationReport is the result of the validate command.
type ValidationReport struct {
	Key    string       `json:"key"`
	Valid  bool         `json:"valid"`
	Steps  []StepReport `json:"steps"`
	Scores form.Scores  `json:"scores"`
}

// Text renders the report for humans.
func (r ValidationReport) Text() string {
	var b strings.Builder
	status := "valid"
	if !r.Valid {
		status = "has errors"
	}
	fmt.Fprintf(&b, "%s: %s\n", r.Key, status)
	for _, s := range r.Steps {
		for _, p := range sortedKeys(s.Errors) {
			fmt.Fprintf(&b, "  step %d  error    %s: %s\n", s.Step, p, s.Errors[p])
		}
		for _, p := range sortedKeys(s.Warnings) {
			fmt.Fprintf(&b, "  step %d  warning  %s: %s\n", s.Step, p, s.Warnings[p])
		}
	}
	fmt.Fprintf(&b, "  overall score %.1f (kpi %.1f, learning %.1f, relationship %.1f)\n",
		r.Scores.Overall, r.Scores.KPI, r.Scores.Learning, r.Scores.Relationship)
	return b.String()
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var step int

	cmd := &cobra.Command{
		Use:   "validate <key>",
		Short: "Validate a stored draft step by step",
		Long: `Run the step rules against a stored draft and print errors, warnings
and derived scores. Validation is advisory: it never changes the draft.

Exit codes:
  0 - No errors
  1 - At least one step has errors, or the draft does not exist
  2 - Command error

Examples:
  draftkeep validate "draft:2026-09:priya_nair:9876543210"
  draftkeep validate "draft:2026-09:priya_nair:9876543210" --step 2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(rootOpts, cmd, func(e *env, f *OutputFormatter) error {
				return runValidate(e, f, cmd, args[0], step)
			})
		},
	}

	cmd.Flags().IntVar(&step, "step", 0, "validate only this step (1-5, default all)")
	return cmd
}

func runValidate(e *env, f *OutputFormatter, cmd *cobra.Command, key string, step int) error {
	if step < 0 || step > form.StepCount {
		return f.Fail(ExitCommandError, ErrCodeInvalidInput,
			fmt.Sprintf("--step must be between 1 and %d", form.StepCount), nil)
	}

	rec, err := e.store.Get(cmd.Context(), key)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("read draft: %v", err), nil)
	}
	if rec == nil {
		return f.Fail(ExitFailure, ErrCodeNotFound, fmt.Sprintf("no draft under %s", key), nil)
	}

	steps, err := e.steps()
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	v := engine.NewValidation(steps)

	report := ValidationReport{Key: key, Valid: true}
	for s := 1; s <= form.StepCount; s++ {
		if step != 0 && s != step {
			continue
		}
		res := v.ValidateStep(s, rec.Submission)
		report.Steps = append(report.Steps, StepReport{
			Step:     s,
			Errors:   pathMap(res.Errors),
			Warnings: pathMap(res.Warnings),
		})
		if res.HasErrors() {
			report.Valid = false
		}
	}
	report.Scores = scoring.Default{}.Score(rec.Submission).Scores

	if err := f.Success(report); err != nil {
		return err
	}
	if !report.Valid {
		return &ExitError{Code: ExitFailure, Message: "draft has validation errors", Reported: true}
	}
	return nil
}

func pathMap(m map[form.Path]string) map[string]string {
	out := make(map[string]string, len(m))
	for p, msg := range m {
		out[string(p)] = msg
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
