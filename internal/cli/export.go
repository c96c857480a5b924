package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"planner/internal/app"
	"planner/internal/config"
	"planner/internal/job"
	"planner/internal/task/scheduler"
)

type exportOptions struct {
	out       string
	as        string
	fromState bool
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &exportOptions{}
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the scheduler state (lanes and history) as JSON or YAML",
		Long: `Write the lanes built from the config, or with --from-state the state
saved by the last run, in the scheduler's persisted representation.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format := scheduler.Format(opts.as)
			if opts.as == "" {
				format = scheduler.FormatFromPath(opts.out)
			}
			data, err := exportState(cmd, rootOpts, opts, format)
			if err != nil {
				return err
			}
			if opts.out == "" || opts.out == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			return os.WriteFile(opts.out, data, 0o644)
		},
	}
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "output file (default stdout)")
	cmd.Flags().StringVar(&opts.as, "as", "", "json or yaml (default from --out extension, else json)")
	cmd.Flags().BoolVar(&opts.fromState, "from-state", false, "export the state saved by the last run")
	return cmd
}

func exportState(cmd *cobra.Command, rootOpts *RootOptions, opts *exportOptions, format scheduler.Format) ([]byte, error) {
	switch format {
	case scheduler.FormatJSON, scheduler.FormatYAML:
	default:
		return nil, fmt.Errorf("invalid export format %q (use json or yaml)", format)
	}
	cfg, err := loadConfig(rootOpts)
	if err != nil {
		return nil, err
	}
	plan, err := config.Build(cfg, time.Now())
	if err != nil {
		return nil, err
	}

	var s *scheduler.Scheduler[job.Job]
	if opts.fromState {
		store, err := app.OpenStore(cfg, rootOpts.Logger())
		if err != nil {
			return nil, err
		}
		if store == nil {
			return nil, errNoStorage
		}
		defer store.Close()
		st, ok, err := store.LoadState(cmd.Context(), cfg.StateName())
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("no saved state %q", cfg.StateName())
		}
		if s, err = scheduler.Decode[job.Job](scheduler.Format(st.Format), st.Data, plan.Options()...); err != nil {
			return nil, fmt.Errorf("decode saved state: %w", err)
		}
	} else {
		if s, err = plan.Scheduler(); err != nil {
			return nil, err
		}
	}
	return scheduler.Encode(format, s)
}
