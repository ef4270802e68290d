package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// Candidate is one recoverable draft found by scan.
type Candidate struct {
	Key       string    `json:"key"`
	Reason    string    `json:"reason,omitempty"`
	Step      int       `json:"step"`
	LastSaved time.Time `json:"last_saved"`
	Session   string    `json:"session,omitempty"`
}

// ScanResult is the result of the scan command.
type ScanResult struct {
	Mode       string      `json:"mode"` // "crash" | "user"
	Candidates []Candidate `json:"candidates"`
}

// Text renders the candidates for humans.
func (r ScanResult) Text() string {
	if len(r.Candidates) == 0 {
		return "Nothing to recover.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d recoverable draft(s):\n", len(r.Candidates))
	for _, c := range r.Candidates {
		fmt.Fprintf(&b, "  %s  step %d  saved %s", c.Key, c.Step, c.LastSaved.Format(time.RFC3339))
		if c.Reason != "" {
			fmt.Fprintf(&b, "  (%s)", c.Reason)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// NewScanCommand creates the scan command.
func NewScanCommand(rootOpts *RootOptions) *cobra.Command {
	var who string

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Find drafts left behind by interrupted sessions",
		Long: `Scan the store for recoverable drafts.

Without --who, lists crash candidates: unsubmitted drafts saved inside the
recovery window that were emergency-saved or hold significant content.
With --who, lists every draft belonging to that identity.

Exit codes:
  0 - Scan completed (with or without candidates)
  2 - Store could not be read

Examples:
  draftkeep scan
  draftkeep scan --who "priya_nair:9876543210" --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(rootOpts, cmd, func(e *env, f *OutputFormatter) error {
				return runScan(e, f, cmd, who)
			})
		},
	}

	cmd.Flags().StringVar(&who, "who", "", "list drafts of this identity instead of crash candidates")
	return cmd
}

func runScan(e *env, f *OutputFormatter, cmd *cobra.Command, who string) error {
	ctx := cmd.Context()
	d := e.detector()
	res := ScanResult{Candidates: []Candidate{}}

	if who != "" {
		res.Mode = "user"
		drafts, err := d.ScanForUserDrafts(ctx, who)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
		}
		for _, dr := range drafts {
			res.Candidates = append(res.Candidates, Candidate{
				Key:       dr.Key,
				Step:      dr.Record.CurrentStep,
				LastSaved: dr.Record.LastSaved,
				Session:   dr.Record.Session.SessionID,
			})
		}
		return f.Success(res)
	}

	res.Mode = "crash"
	found, err := d.ScanForCrashes(ctx)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}
	for _, c := range found {
		res.Candidates = append(res.Candidates, Candidate{
			Key:       c.Key,
			Reason:    c.Reason,
			Step:      c.Record.CurrentStep,
			LastSaved: c.Record.LastSaved,
			Session:   c.Record.Session.SessionID,
		})
	}
	f.VerboseLog("recovery window %s", e.cfg.Settings().RecoveryWindow)
	return f.Success(res)
}
