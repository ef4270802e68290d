package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/draftkeep/internal/store"
)

// DraftSummary is one row of drafts list.
type DraftSummary struct {
	Key       string    `json:"key"`
	Period    string    `json:"period"`
	LastSaved time.Time `json:"last_saved"`
	Version   int64     `json:"version"`
	Emergency bool      `json:"emergency,omitempty"`
	Legacy    bool      `json:"legacy,omitempty"`
}

// DraftList is the result of drafts list.
type DraftList struct {
	Drafts []DraftSummary `json:"drafts"`
}

// Text renders the list for humans.
func (l DraftList) Text() string {
	if len(l.Drafts) == 0 {
		return "No drafts.\n"
	}
	var b strings.Builder
	for _, d := range l.Drafts {
		var flags []string
		if d.Emergency {
			flags = append(flags, "emergency")
		}
		if d.Legacy {
			flags = append(flags, "legacy")
		}
		fmt.Fprintf(&b, "%s  v%d  %s", d.Key, d.Version, d.LastSaved.Format(time.RFC3339))
		if len(flags) > 0 {
			fmt.Fprintf(&b, "  [%s]", strings.Join(flags, ","))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// DraftDetail is the result of drafts show.
type DraftDetail struct {
	Key    string        `json:"key"`
	Record *store.Record `json:"record"`
}

// Text renders the record as indented JSON under its key.
func (d DraftDetail) Text() string {
	data, err := json.MarshalIndent(d.Record, "", "  ")
	if err != nil {
		return fmt.Sprintf("%s\n  (unprintable record: %v)\n", d.Key, err)
	}
	return fmt.Sprintf("%s\n%s\n", d.Key, data)
}

type deleted struct {
	Key     string `json:"key"`
	Deleted bool   `json:"deleted"`
}

func (d deleted) Text() string {
	return fmt.Sprintf("Deleted %s\n", d.Key)
}

// NewDraftsCommand creates the drafts command group.
func NewDraftsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drafts",
		Short: "List, show and delete stored drafts",
	}
	cmd.AddCommand(newDraftsListCommand(rootOpts))
	cmd.AddCommand(newDraftsShowCommand(rootOpts))
	cmd.AddCommand(newDraftsDeleteCommand(rootOpts))
	return cmd
}

func newDraftsListCommand(opts *RootOptions) *cobra.Command {
	var who string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List drafts, newest first",
		Long: `List every draft in the store, newest first.

--who restricts the list to one identity, given as "name:phone", a bare
phone number or a name.

Examples:
  draftkeep drafts list
  draftkeep drafts list --who 9876543210 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(opts, cmd, func(e *env, f *OutputFormatter) error {
				return listDrafts(e, f, cmd, who)
			})
		},
	}
	cmd.Flags().StringVar(&who, "who", "", "only drafts of this identity")
	return cmd
}

func listDrafts(e *env, f *OutputFormatter, cmd *cobra.Command, who string) error {
	ctx := cmd.Context()
	entries, err := e.store.ListDrafts(ctx)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("list drafts: %v", err), nil)
	}

	var keep map[string]bool
	if who != "" {
		keys, err := e.store.ListKeysFor(ctx, who)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("list drafts for %q: %v", who, err), nil)
		}
		keep = make(map[string]bool, len(keys))
		for _, k := range keys {
			keep[k] = true
		}
	}

	list := DraftList{Drafts: []DraftSummary{}}
	for _, ent := range entries {
		if keep != nil && !keep[ent.Key] {
			continue
		}
		list.Drafts = append(list.Drafts, DraftSummary{
			Key:       ent.Key,
			Period:    ent.Period,
			LastSaved: ent.LastSaved,
			Version:   ent.Version,
			Emergency: ent.Emergency,
			Legacy:    ent.Legacy,
		})
	}
	f.VerboseLog("%d of %d drafts listed", len(list.Drafts), len(entries))
	return f.Success(list)
}

func newDraftsShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <key>",
		Short: "Print one draft record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(opts, cmd, func(e *env, f *OutputFormatter) error {
				rec, err := e.store.Get(cmd.Context(), args[0])
				if err != nil {
					return f.Fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("read draft: %v", err), nil)
				}
				if rec == nil {
					return f.Fail(ExitFailure, ErrCodeNotFound, fmt.Sprintf("no draft under %s", args[0]), nil)
				}
				return f.Success(DraftDetail{Key: args[0], Record: rec})
			})
		},
	}
}

func newDraftsDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete one draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(opts, cmd, func(e *env, f *OutputFormatter) error {
				ctx := cmd.Context()
				rec, err := e.store.Get(ctx, args[0])
				if err != nil {
					return f.Fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("read draft: %v", err), nil)
				}
				if rec == nil {
					return f.Fail(ExitFailure, ErrCodeNotFound, fmt.Sprintf("no draft under %s", args[0]), nil)
				}
				if err := e.store.Delete(ctx, args[0]); err != nil {
					return f.Fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("delete draft: %v", err), nil)
				}
				return f.Success(deleted{Key: args[0], Deleted: true})
			})
		},
	}
}

// withEnv opens the storage stack, runs fn and closes the stack.
func withEnv(opts *RootOptions, cmd *cobra.Command, fn func(e *env, f *OutputFormatter) error) error {
	f := opts.formatter(cmd)
	e, err := openEnv(opts.Config)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}
	defer e.Close()
	return fn(e, f)
}
