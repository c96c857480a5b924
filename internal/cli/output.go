package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"planner/internal/config"
	logx "planner/pkg/logx"
)

const tabwriterPadding = 2

// writeJSON prints v indented, for --format json.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, tabwriterPadding, ' ', 0)
}

// relative renders t against now ("in 5 minutes", "2 hours ago").
func relative(t, now time.Time) string {
	return humanize.RelTime(t, now, "ago", "from now")
}

func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfgm := config.NewConfigManager(opts.ConfigPath)
	cfgm.SetLogger(opts.Logger().With(logx.String("comp", "config")))
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
