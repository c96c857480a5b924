package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"planner/internal/config"
	"planner/internal/job"
	"planner/internal/task/scheduler"
)

type nextOptions struct {
	count int
	at    string
}

// NextRow is one upcoming fire.
type NextRow struct {
	Lane string    `json:"lane"`
	Task string    `json:"task"`
	Due  time.Time `json:"due"`
	Rule string    `json:"rule"`
}

// NewNextCommand creates the next command.
func NewNextCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &nextOptions{}
	cmd := &cobra.Command{
		Use:   "next [lane...]",
		Short: "Show the upcoming fires of each lane",
		Long: `Replay the lanes on a virtual clock and print the next --count fires of
each. Nothing runs. --at evaluates from another instant (same syntax as a
task's due).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			rows, err := upcoming(cfg, args, opts, time.Now())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				return writeJSON(out, rows)
			}
			now := time.Now()
			w := newTable(out)
			fmt.Fprintln(w, "LANE\tTASK\tDUE\tWHEN\tRULE")
			for _, r := range rows {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.Lane, r.Task, r.Due.Format("2006-01-02 15:04:05 -07:00"), relative(r.Due, now), r.Rule)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&opts.count, "count", "n", 5, "fires to show per lane")
	cmd.Flags().StringVar(&opts.at, "at", "", "evaluate from this instant instead of now")
	return cmd
}

func upcoming(cfg *config.Config, lanes []string, opts *nextOptions, now time.Time) ([]NextRow, error) {
	plan, err := config.Build(cfg, now)
	if err != nil {
		return nil, err
	}
	from := now
	if opts.at != "" {
		if from, err = config.ParseDue(opts.at, now, plan.Location); err != nil {
			return nil, fmt.Errorf("--at: %w", err)
		}
	}
	s, err := plan.Scheduler()
	if err != nil {
		return nil, err
	}
	if len(lanes) == 0 {
		lanes = plan.LaneNames()
	}

	var rows []NextRow
	for _, name := range lanes {
		occ, err := s.Preview(name, from, opts.count)
		if err != nil {
			return rows, err
		}
		rows = append(rows, occurrenceRows(name, occ, plan.Location)...)
	}
	return rows, nil
}

func occurrenceRows(laneName string, occ []scheduler.Occurrence[job.Job], loc *time.Location) []NextRow {
	rows := make([]NextRow, 0, len(occ))
	for _, o := range occ {
		rows = append(rows, NextRow{Lane: laneName, Task: o.Payload.Name, Due: o.Due.In(loc), Rule: o.Rule.String()})
	}
	return rows
}
