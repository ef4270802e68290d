package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/draftkeep/internal/engine"
	"github.com/roach88/draftkeep/internal/form"
	"github.com/roach88/draftkeep/internal/identity"
)

// SessionOptions holds flags for the session command.
type SessionOptions struct {
	*RootOptions
	Events  bool
	Metrics bool
}

// NewSessionCommand creates the session command.
func NewSessionCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SessionOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "session",
		Short: "Drive an editing session from stdin",
		Long: `Open an editing session on the configured store and read commands from
stdin, one per line:

  set <path> <value>       edit a field (value is JSON; bare text is a string)
  confirm <name> <phone>   pick a known identity (phone is the last word)
  goto <step>              navigate to a step (writes the draft)
  save                     write the draft now
  hide                     backgrounded (writes the draft)
  resume <key>             resume a stored draft
  fresh                    discard offered drafts, start empty
  dismiss                  hide the recovery prompt
  submit                   submit to the reports backend
  status                   print key, step and prompt
  quit                     unload and exit

End of input, Ctrl-C and SIGTERM unload the session like quit: the draft
is written as an emergency save.

Examples:
  draftkeep session
  printf 'set identity.name "Priya Nair"\ngoto 2\n' | draftkeep session --events`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(rootOpts, cmd, func(e *env, f *OutputFormatter) error {
				return runSession(opts, e, f, cmd)
			})
		},
	}

	cmd.Flags().BoolVar(&opts.Events, "events", false, "print session events as JSON lines")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "print session counters on exit")

	return cmd
}

// lockedWriter serializes writes from the command loop and the event
// printer.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func runSession(opts *SessionOptions, e *env, f *OutputFormatter, cmd *cobra.Command) error {
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sessOpts, err := e.sessionOptions()
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	s := engine.NewSession(e.store, sessOpts...)
	defer s.Close()

	out := &lockedWriter{w: cmd.OutOrStdout()}

	var printer sync.WaitGroup
	if opts.Events {
		events := s.Subscribe(ctx, 256)
		printer.Add(1)
		go func() {
			defer printer.Done()
			enc := json.NewEncoder(out)
			for evt := range events {
				_ = enc.Encode(evt)
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(cmd.InOrStdin())
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	s.Start(ctx)
	slog.Info("session started", "session", s.ID(), "key", s.Key())

loop:
	for {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, unloading session", "signal", sig)
			break loop
		case <-ctx.Done():
			break loop
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			quit, err := sessionCommand(ctx, s, out, line)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
			if quit {
				break loop
			}
		}
	}

	res := s.HandleUnload(context.WithoutCancel(ctx))
	fmt.Fprintf(out, "unload: saved=%t warn_unsaved=%t key=%s\n", res.Saved, res.WarnUnsaved, s.Key())

	s.Close()
	cancel()
	printer.Wait()

	if opts.Metrics {
		text, err := e.metricsText()
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
		}
		if text != "" {
			fmt.Fprintln(out, text)
		}
	}
	if res.WarnUnsaved {
		return &ExitError{Code: ExitFailure, Message: "unsaved changes could not be written", Reported: true}
	}
	return nil
}

// sessionCommand executes one input line. It reports whether the session
// should end.
func sessionCommand(ctx context.Context, s *engine.Session, out io.Writer, line string) (bool, error) {
	verb, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)

	switch verb {
	case "", "#":
		return false, nil
	case "quit", "exit":
		return true, nil
	case "set":
		path, raw, ok := strings.Cut(rest, " ")
		if !ok {
			return false, errors.New("usage: set <path> <value>")
		}
		return false, mutate(ctx, s, form.Path(path), strings.TrimSpace(raw))
	case "confirm":
		i := strings.LastIndex(rest, " ")
		if i <= 0 {
			return false, errors.New("usage: confirm <name> <phone>")
		}
		return false, s.ConfirmIdentity(ctx, identity.Confirmed{
			Name:  strings.TrimSpace(rest[:i]),
			Phone: strings.TrimSpace(rest[i+1:]),
		})
	case "goto":
		n, err := strconv.Atoi(rest)
		if err != nil {
			return false, fmt.Errorf("usage: goto <step>: %w", err)
		}
		fmt.Fprintf(out, "step %d\n", s.GoToStep(ctx, n))
	case "save":
		fmt.Fprintf(out, "saved=%t\n", s.SaveNow(ctx))
	case "hide":
		fmt.Fprintf(out, "saved=%t\n", s.HandleVisibilityHidden(ctx))
	case "resume":
		if err := s.ResumeDraft(ctx, rest); err != nil {
			return false, err
		}
		fmt.Fprintf(out, "resumed %s at step %d\n", s.Key(), s.Step())
	case "fresh":
		s.StartFresh()
	case "dismiss":
		s.DismissPrompt()
	case "submit":
		if _, err := s.Submit(ctx); err != nil {
			return false, err
		}
		fmt.Fprintf(out, "submitted %s\n", s.Key())
	case "status":
		p := s.Prompt()
		fmt.Fprintf(out, "key=%s step=%d unsaved=%t prompt=%s\n",
			s.Key(), s.Step(), s.HasUnsavedChanges(), promptName(p))
	default:
		return false, fmt.Errorf("unknown command %q", verb)
	}
	return false, nil
}

// mutate decodes raw as JSON and applies it. Values that do not decode, or
// that decode to the wrong type for the field, are applied as text.
func mutate(ctx context.Context, s *engine.Session, path form.Path, raw string) error {
	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return s.Mutate(ctx, path, raw)
	}
	err := s.Mutate(ctx, path, value)
	if err != nil && !errors.Is(err, form.ErrUnknownPath) {
		if _, isString := value.(string); !isString {
			return s.Mutate(ctx, path, raw)
		}
	}
	return err
}

func promptName(p engine.Prompt) string {
	if !p.Visible {
		return "none"
	}
	return string(p.Kind)
}
