// Package cli is the planner command line.
package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	logx "planner/pkg/logx"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Format     string // "text" | "json"
	LogLevel   string

	log logx.Logger
}

// Logger is the console logger of one-shot commands. It writes to stderr so
// it never mixes with command output.
func (o *RootOptions) Logger() logx.Logger { return o.log }

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the planner CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "planner",
		Short: "Run lanes of recurring tasks",
		Long: `planner runs named lanes of scheduled tasks. Each lane sleeps until
its next task is due, runs it (a command or a log message), and reschedules it
according to its repeat rule.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			opts.log = logx.NewConsole(cmd.ErrOrStderr(), opts.LogLevel)
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "./planner.yaml", "path to config (json or yaml)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "warn", "log level of one-shot commands (debug|info|warn|error)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewNextCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))

	return cmd
}
