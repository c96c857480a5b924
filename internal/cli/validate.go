package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"planner/internal/config"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Lanes  int      `json:"lanes"`
	Tasks  int      `json:"tasks"`
	Errors []string `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the config without running anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res := validate(rootOpts)
			out := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				if err := writeJSON(out, res); err != nil {
					return err
				}
			} else if res.Valid {
				fmt.Fprintf(out, "ok: %d lanes, %d tasks\n", res.Lanes, res.Tasks)
			} else {
				for _, e := range res.Errors {
					fmt.Fprintln(out, "error:", e)
				}
			}
			if !res.Valid {
				return fmt.Errorf("config %s is invalid", rootOpts.ConfigPath)
			}
			return nil
		},
	}
}

func validate(opts *RootOptions) ValidationResult {
	cfg, err := loadConfig(opts)
	if err != nil {
		return ValidationResult{Errors: []string{err.Error()}}
	}
	if err := config.Validate(context.Background(), cfg); err != nil {
		return ValidationResult{Errors: strings.Split(err.Error(), "\n")}
	}
	plan, err := config.Build(cfg, time.Now())
	if err != nil {
		return ValidationResult{Errors: []string{err.Error()}}
	}
	res := ValidationResult{Valid: true, Lanes: len(plan.Lanes)}
	for _, tasks := range plan.Lanes {
		res.Tasks += len(tasks)
	}
	return res
}
