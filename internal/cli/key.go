package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/draftkeep/internal/form"
	"github.com/roach88/draftkeep/internal/identity"
)

// KeyOptions holds flags for the key command.
type KeyOptions struct {
	*RootOptions
	Name      string
	Phone     string
	Period    string
	Confirmed bool
}

// KeyResult is the resolved key for one set of identity inputs.
type KeyResult struct {
	Key        string   `json:"key"`
	Stable     bool     `json:"stable"`
	LegacyKeys []string `json:"legacy_keys"`
}

// Text renders the result for humans.
func (r KeyResult) Text() string {
	var b strings.Builder
	fmt.Fprintln(&b, r.Key)
	if !r.Stable {
		fmt.Fprintln(&b, "  (provisional: identity incomplete)")
	}
	for _, k := range r.LegacyKeys {
		fmt.Fprintf(&b, "  legacy: %s\n", k)
	}
	return b.String()
}

// NewKeyCommand creates the key command.
func NewKeyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &KeyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "key",
		Short: "Resolve the draft key for an identity",
		Long: `Resolve the storage key a draft with the given identity is filed under,
and list the provisional keys earlier states of the same identity used.

Examples:
  draftkeep key --name "Priya Nair" --phone 9876543210
  draftkeep key --name Jo --period 2026-08 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKey(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "name as typed")
	cmd.Flags().StringVar(&opts.Phone, "phone", "", "phone as typed")
	cmd.Flags().StringVar(&opts.Period, "period", "", "reporting period YYYY-MM (default: previous month)")
	cmd.Flags().BoolVar(&opts.Confirmed, "confirmed", false, "treat name and phone as a confirmed identity")

	return cmd
}

func runKey(opts *KeyOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	if opts.Period != "" && !form.ValidPeriod(opts.Period) {
		return f.Fail(ExitCommandError, ErrCodeInvalidInput,
			fmt.Sprintf("invalid period %q: want YYYY-MM", opts.Period), nil)
	}
	if opts.Confirmed && (opts.Name == "" || opts.Phone == "") {
		return f.Fail(ExitCommandError, ErrCodeInvalidInput, "--confirmed needs both --name and --phone", nil)
	}

	return f.Success(resolveKey(opts.Config.Policy(), opts, time.Now))
}

func resolveKey(policy identity.Policy, opts *KeyOptions, now func() time.Time) KeyResult {
	r := identity.NewResolver(policy, now)
	in := identity.Inputs{Name: opts.Name, Phone: opts.Phone}
	var confirmed *identity.Confirmed
	if opts.Confirmed {
		confirmed = &identity.Confirmed{Name: opts.Name, Phone: opts.Phone}
	}

	keys := r.EnumerateLegacyKeys(in, confirmed, opts.Period)
	return KeyResult{
		Key:        keys[0],
		Stable:     r.IsStable(in, confirmed),
		LegacyKeys: keys[1:],
	}
}
