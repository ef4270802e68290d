package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/draftkeep/internal/engine"
	"github.com/roach88/draftkeep/internal/form"
	"github.com/roach88/draftkeep/internal/identity"
)

// MigrateOptions holds flags for the migrate command.
type MigrateOptions struct {
	*RootOptions
	Name   string
	Phone  string
	Period string
}

// MigrationRow is the outcome for one legacy key.
type MigrationRow struct {
	From    string `json:"from"`
	Outcome string `json:"outcome"`
}

// MigrationReport is the result of the migrate command.
type MigrationReport struct {
	Target     string         `json:"target"`
	Migrations []MigrationRow `json:"migrations"`
}

// Text renders the report for humans.
func (r MigrationReport) Text() string {
	if len(r.Migrations) == 0 {
		return fmt.Sprintf("No legacy drafts for %s.\n", r.Target)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Target %s\n", r.Target)
	for _, m := range r.Migrations {
		fmt.Fprintf(&b, "  %-9s %s\n", m.Outcome, m.From)
	}
	return b.String()
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MigrateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Move provisional drafts of an identity to its canonical key",
		Long: `Move every draft saved under a provisional key of the given identity
(anonymous name, placeholder phone) to the canonical key. A newer draft
already under the canonical key wins; the older one is dropped.

Examples:
  draftkeep migrate --name "Priya Nair" --phone 9876543210
  draftkeep migrate --name "Priya Nair" --phone 9876543210 --period 2026-08`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(rootOpts, cmd, func(e *env, f *OutputFormatter) error {
				return runMigrate(opts, e, f, cmd)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "confirmed name (required)")
	cmd.Flags().StringVar(&opts.Phone, "phone", "", "confirmed phone (required)")
	cmd.Flags().StringVar(&opts.Period, "period", "", "reporting period YYYY-MM (default: previous month)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("phone")

	return cmd
}

func runMigrate(opts *MigrateOptions, e *env, f *OutputFormatter, cmd *cobra.Command) error {
	if opts.Period != "" && !form.ValidPeriod(opts.Period) {
		return f.Fail(ExitCommandError, ErrCodeInvalidInput,
			fmt.Sprintf("invalid period %q: want YYYY-MM", opts.Period), nil)
	}

	r := identity.NewResolver(e.cfg.Policy(), time.Now)
	who := &identity.Confirmed{Name: opts.Name, Phone: opts.Phone}
	keys := r.EnumerateLegacyKeys(identity.Inputs{Name: opts.Name, Phone: opts.Phone}, who, opts.Period)

	m := engine.NewMigrator(e.store, time.Now, e.logger, e.metrics)
	results := m.MigrateLegacy(cmd.Context(), keys)

	report := MigrationReport{Target: keys[0], Migrations: []MigrationRow{}}
	failed := false
	for _, res := range results {
		report.Migrations = append(report.Migrations, MigrationRow{From: res.From, Outcome: string(res.Outcome)})
		if res.Outcome == engine.OutcomeFailed {
			failed = true
		}
	}
	if err := f.Success(report); err != nil {
		return err
	}
	if failed {
		return &ExitError{Code: ExitFailure, Message: "some drafts could not be migrated", Reported: true}
	}
	return nil
}
