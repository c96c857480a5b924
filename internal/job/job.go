// Package job is the payload the planner CLI schedules: either a message that
// is logged when the task fires, or a command that is executed.
package job

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrEmptyJob = errors.New("job needs a message or a command")

// Job is one scheduled unit of work.
type Job struct {
	Name    string        `json:"name"`
	Message string        `json:"message,omitempty"`
	Command []string      `json:"command,omitempty"`
	Timeout time.Duration `json:"timeout,omitempty"`
}

// Clone returns a copy that shares no memory with j.
func (j Job) Clone() Job {
	cp := j
	if j.Command != nil {
		cp.Command = append([]string(nil), j.Command...)
	}
	return cp
}

func (j Job) Validate() error {
	if strings.TrimSpace(j.Name) == "" {
		return errors.New("job name required")
	}
	if len(j.Command) == 0 && strings.TrimSpace(j.Message) == "" {
		return fmt.Errorf("job %q: %w", j.Name, ErrEmptyJob)
	}
	if len(j.Command) > 0 && strings.TrimSpace(j.Command[0]) == "" {
		return fmt.Errorf("job %q: empty command", j.Name)
	}
	if j.Timeout < 0 {
		return fmt.Errorf("job %q: timeout must be >= 0", j.Name)
	}
	return nil
}

func (j Job) String() string { return j.Name }
