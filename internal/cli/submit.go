package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/draftkeep/internal/engine"
)

// SubmitResult is the result of a successful submit.
type SubmitResult struct {
	Key         string    `json:"key"`
	Phone       string    `json:"phone"`
	Period      string    `json:"period"`
	Revision    int       `json:"revision"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Text renders the result for humans.
func (r SubmitResult) Text() string {
	return fmt.Sprintf("Submitted %s (%s, %s) revision %d\n", r.Key, r.Phone, r.Period, r.Revision)
}

// NewSubmitCommand creates the submit command.
func NewSubmitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "submit <key>",
		Short: "Submit a stored draft to the reports backend",
		Long: `Resume the draft stored under key in a fresh session and submit it.

Only the critical fields (name, phone, reporting period) block submission.
On success the draft is removed; on a backend failure it is kept as a
backup and can be submitted again.

Exit codes:
  0 - Submitted
  1 - Draft missing, critical validation failed or backend refused
  2 - Command error

Examples:
  draftkeep submit "draft:2026-09:priya_nair:9876543210"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(rootOpts, cmd, func(e *env, f *OutputFormatter) error {
				return runSubmit(e, f, cmd, args[0])
			})
		},
	}
}

func runSubmit(e *env, f *OutputFormatter, cmd *cobra.Command, key string) error {
	ctx := cmd.Context()

	opts, err := e.sessionOptions()
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	s := engine.NewSession(e.store, opts...)
	defer s.Close()

	if err := s.ResumeDraft(ctx, key); err != nil {
		if errors.Is(err, engine.ErrDraftNotFound) {
			return f.Fail(ExitFailure, ErrCodeNotFound, fmt.Sprintf("no draft under %s", key), nil)
		}
		return f.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}
	f.VerboseLog("resumed %s at step %d as session %s", key, s.Step(), s.ID())

	saved, err := s.Submit(ctx)
	if err != nil {
		var se *engine.SubmitError
		if !errors.As(err, &se) {
			return f.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
		}
		if se.Code == engine.ErrCodeCriticalValidation {
			return f.Fail(ExitFailure, ErrCodeCritical, se.Message, pathMap(se.Fields))
		}
		return f.Fail(ExitFailure, ErrCodeBackend, se.Message, map[string]string{
			"backup_key": se.BackupKey,
			"cause":      errString(se.Err),
		})
	}

	res := SubmitResult{
		Key:    key,
		Phone:  saved.Identity.Phone,
		Period: saved.Period,
	}
	if saved.SubmittedAt != nil {
		res.SubmittedAt = *saved.SubmittedAt
	}
	if report, err := e.reports.Get(ctx, saved.Identity.Phone, saved.Period); err == nil && report != nil {
		res.Revision = report.Revision
		res.SubmittedAt = report.SubmittedAt
	}
	return f.Success(res)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
