package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"planner/internal/app"
	"planner/internal/storage"
)

type historyOptions struct {
	lane  string
	kind  string
	since time.Duration
	limit int
}

var errNoStorage = errors.New("storage is not configured")

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &historyOptions{}
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List journaled fires and removals, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := listHistory(cmd.Context(), rootOpts, opts, time.Now())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				return writeJSON(out, recs)
			}
			now := time.Now()
			w := newTable(out)
			fmt.Fprintln(w, "AT\tWHEN\tLANE\tKIND\tTASK\tTOOK\tERROR")
			for _, r := range recs {
				took := (time.Duration(r.TookMS) * time.Millisecond).String()
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					r.At.Local().Format("2006-01-02 15:04:05"), relative(r.At, now), r.Lane, r.Kind, r.Task, took, r.Error)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&opts.lane, "lane", "l", "", "only this lane")
	cmd.Flags().StringVar(&opts.kind, "kind", "", "fired or removed")
	cmd.Flags().DurationVar(&opts.since, "since", 0, "only records newer than this (e.g. 24h)")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 50, "maximum records")
	return cmd
}

func listHistory(ctx context.Context, rootOpts *RootOptions, opts *historyOptions, now time.Time) ([]storage.FireRecord, error) {
	switch opts.kind {
	case "", storage.KindFired, storage.KindRemoved:
	default:
		return nil, fmt.Errorf("invalid kind %q (use %s or %s)", opts.kind, storage.KindFired, storage.KindRemoved)
	}
	cfg, err := loadConfig(rootOpts)
	if err != nil {
		return nil, err
	}
	store, err := app.OpenStore(cfg, rootOpts.Logger())
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errNoStorage
	}
	defer store.Close()

	q := storage.FireQuery{Lane: opts.lane, Kind: opts.kind, Limit: opts.limit}
	if opts.since > 0 {
		q.Since = now.Add(-opts.since)
	}
	return store.ListFires(ctx, q)
}
