package repetition

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrMisconfiguredCustomRepetition means a Custom task was reached without a
// real Handler installed. It is a programmer error.
var ErrMisconfiguredCustomRepetition = errors.New("custom repetition reached but no handler is configured")

// Handler decides the recurrence of Custom tasks.
//
// Next receives the reference instant and the task's current due date. It
// returns the next due date, or ok=false to stop recurring.
type Handler interface {
	Next(now, due time.Time) (next time.Time, ok bool)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(now, due time.Time) (time.Time, bool)

func (f HandlerFunc) Next(now, due time.Time) (time.Time, bool) { return f(now, due) }

type unconfigured struct{}

// Unconfigured returns the default Handler. It aborts on use.
func Unconfigured() Handler { return unconfigured{} }

func (unconfigured) Next(_, _ time.Time) (time.Time, bool) {
	panic(ErrMisconfiguredCustomRepetition)
}

// IsConfigured reports whether h can serve Custom tasks.
func IsConfigured(h Handler) bool {
	if h == nil {
		return false
	}
	_, def := h.(unconfigured)
	return !def
}

// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// CronHandler is a Handler driven by a cron expression.
//
// Supported forms are the ones of robfig/cron: "0 9 * * 1-5", "*/30 * * * * *",
// "@daily", "@every 90m", optionally prefixed with "CRON_TZ=Area/City".
type CronHandler struct {
	spec  string
	sched cron.Schedule
}

func NewCronHandler(spec string) (*CronHandler, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, errors.New("cron spec required")
	}
	sched, err := cronParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	return &CronHandler{spec: spec, sched: sched}, nil
}

func (h *CronHandler) Spec() string { return h.spec }

// Next evaluates the expression in due's zone. A schedule with no further
// activation (robfig/cron gives up after five years) stops the task.
func (h *CronHandler) Next(now, due time.Time) (time.Time, bool) {
	next := h.sched.Next(now.In(due.Location()))
	if next.IsZero() {
		return time.Time{}, false
	}
	return next, true
}
