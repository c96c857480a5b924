package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"planner/internal/app"
)

type runOptions struct {
	watch bool
	lanes []string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every lane (or --lane ones) until they have no task left",
		Long: `Run every lane concurrently, one worker per lane, until each lane is
empty. With --watch the process stays up and restarts the lanes when the
config file changes. SIGINT/SIGTERM stop the lanes; the final state is saved
when storage is configured.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runLanes(ctx, rootOpts, opts)
		},
	}
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "reload lanes when the config changes")
	cmd.Flags().StringSliceVarP(&opts.lanes, "lane", "l", nil, "run only these lanes")
	return cmd
}

func runLanes(ctx context.Context, rootOpts *RootOptions, opts *runOptions) error {
	a, err := app.NewApp(app.Options{ConfigPath: rootOpts.ConfigPath, Watch: opts.watch, Lanes: opts.lanes})
	if err != nil {
		return err
	}
	defer a.Close()
	return a.Run(ctx)
}
