package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/draftkeep/internal/config"
)

type configWritten struct {
	Path string `json:"path"`
}

func (c configWritten) Text() string {
	return fmt.Sprintf("Wrote %s\n", c.Path)
}

// NewConfigCommand creates the config command group.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
		// config init writes the file the root hook would otherwise read.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(rootOpts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", rootOpts.Format, ValidFormats)
			}
			return nil
		},
	}
	cmd.AddCommand(newConfigInitCommand(rootOpts))
	cmd.AddCommand(newConfigShowCommand(rootOpts))
	return cmd
}

func newConfigInitCommand(opts *RootOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a config file with the built-in defaults",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			path := "draftkeep.yaml"
			if opts.ConfigPath != "" {
				path = opts.ConfigPath
			}
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return f.Fail(ExitCommandError, ErrCodeInvalidInput,
					fmt.Sprintf("%s already exists (use --force to overwrite)", path), nil)
			}
			if err := config.WriteFile(path, config.Default()); err != nil {
				return f.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
			}
			return f.Success(configWritten{Path: path})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func newConfigShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeInvalidInput, err.Error(), nil)
			}
			return f.Success(effectiveConfig{cfg})
		},
	}
}

type effectiveConfig struct {
	*config.Config
}

func (c effectiveConfig) Text() string {
	s := c.Settings()
	return fmt.Sprintf(`storage:  %s %s
reports:  %s
timing:   save %s, validate %s, score %s, settle %s, celebrate %s
recovery: window %s
identity: name >= %d runes, phone %d digits
scoring:  celebrate at %.1f
log:      %s
`,
		c.Storage.Backend, c.Storage.Path,
		orDefault(c.Reports(), "(draft database)"),
		s.SaveDebounce, s.ValidateDebounce, s.ScoreDebounce, s.SettleDelay, s.CelebrateFor,
		s.RecoveryWindow,
		c.Identity.MinNameRunes, c.Identity.PhoneDigits,
		c.Scoring.CelebrateAt,
		c.Log.Level)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
