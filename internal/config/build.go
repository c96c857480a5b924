package config

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"planner/internal/job"
	"planner/internal/storage"
	"planner/internal/task/lane"
	"planner/internal/task/repetition"
	"planner/internal/task/scheduler"
	"planner/internal/task/sleep"
)

// Plan is a config resolved against a reference instant.
type Plan struct {
	Location *time.Location
	Lanes    map[string][]lane.Task[job.Job]
	// Handlers holds the cron handler of every lane that declares one.
	Handlers map[string]*repetition.CronHandler
}

// Options returns the scheduler options installing the lane handlers.
func (p *Plan) Options() []scheduler.Option {
	names := make([]string, 0, len(p.Handlers))
	for name := range p.Handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	opts := make([]scheduler.Option, 0, len(names))
	for _, name := range names {
		opts = append(opts, scheduler.WithLaneHandler(name, p.Handlers[name]))
	}
	return opts
}

// Scheduler builds a scheduler over the plan's lanes.
func (p *Plan) Scheduler(opts ...scheduler.Option) (*scheduler.Scheduler[job.Job], error) {
	return scheduler.New(p.Lanes, nil, append(p.Options(), opts...)...)
}

// LaneNames returns the lane names in sorted order.
func (p *Plan) LaneNames() []string {
	names := make([]string, 0, len(p.Lanes))
	for name := range p.Lanes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build resolves every lane of cfg. Relative due dates ("now", "+1h", "HH:MM")
// are computed from now. All problems are reported together.
func Build(cfg *Config, now time.Time) (*Plan, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	loc, err := loadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		return nil, err
	}
	precision, err := buildPrecision(cfg.Scheduler)
	if err != nil {
		return nil, err
	}
	if cfg.Scheduler.MaxFiresPerSec < 0 {
		return nil, errors.New("scheduler.max_fires_per_sec must be >= 0")
	}

	plan := &Plan{
		Location: loc,
		Lanes:    make(map[string][]lane.Task[job.Job], len(cfg.Lanes)),
		Handlers: map[string]*repetition.CronHandler{},
	}
	var errs []error
	for name, lc := range cfg.Lanes {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, errors.New("lanes: empty lane name"))
			continue
		}
		if strings.TrimSpace(lc.Cron) != "" {
			h, err := repetition.NewCronHandler(lc.Cron)
			if err != nil {
				errs = append(errs, fmt.Errorf("lanes.%s.cron: %w", name, err))
			} else {
				plan.Handlers[name] = h
			}
		}
		tasks := make([]lane.Task[job.Job], 0, len(lc.Tasks))
		seen := map[string]bool{}
		for i, tc := range lc.Tasks {
			path := fmt.Sprintf("lanes.%s.tasks[%d]", name, i)
			t, err := buildTask(tc, now, loc, precision)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", path, err))
				continue
			}
			if seen[t.Payload.Name] {
				errs = append(errs, fmt.Errorf("%s: duplicate task name %q", path, t.Payload.Name))
				continue
			}
			seen[t.Payload.Name] = true
			if t.Rule.Kind == repetition.KindCustom && strings.TrimSpace(lc.Cron) == "" {
				errs = append(errs, fmt.Errorf("%s: %w (set lanes.%s.cron)", path, repetition.ErrMisconfiguredCustomRepetition, name))
				continue
			}
			tasks = append(tasks, t)
		}
		plan.Lanes[name] = tasks
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return plan, nil
}

// Validate checks cfg the way a run would build it. It is the ConfigManager
// validator used on hot reload.
func Validate(_ context.Context, cfg *Config) error {
	plan, err := Build(cfg, time.Now())
	if err != nil {
		return err
	}
	if _, err := plan.Scheduler(); err != nil {
		return err
	}
	if cfg.Storage != nil {
		if _, err := StorageSettings(cfg.Storage); err != nil {
			return err
		}
	}
	return nil
}

// StorageSettings maps the storage section onto storage.Config.
func StorageSettings(sc *StorageConfig) (storage.Config, error) {
	if sc == nil {
		return storage.Config{}, nil
	}
	bt, err := parseDuration("storage.busy_timeout", sc.BusyTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	switch strings.ToLower(strings.TrimSpace(sc.Driver)) {
	case "", "none", "file", "sqlite", "sqlite3":
	default:
		return storage.Config{}, fmt.Errorf("storage.driver: unknown driver %q", sc.Driver)
	}
	return storage.Config{Driver: sc.Driver, Path: sc.Path, BusyTimeout: bt}, nil
}

// StateName is the key of the snapshot saved at the end of a run.
func (c *Config) StateName() string {
	if c.Storage == nil || strings.TrimSpace(c.Storage.StateName) == "" {
		return "default"
	}
	return strings.TrimSpace(c.Storage.StateName)
}

func buildTask(tc TaskConfig, now time.Time, loc *time.Location, p sleep.Precision) (lane.Task[job.Job], error) {
	timeout, err := parseDuration("timeout", tc.Timeout)
	if err != nil {
		return lane.Task[job.Job]{}, err
	}
	j := job.Job{
		Name:    strings.TrimSpace(tc.Name),
		Message: tc.Message,
		Command: append([]string(nil), tc.Command...),
		Timeout: timeout,
	}
	if err := j.Validate(); err != nil {
		return lane.Task[job.Job]{}, err
	}

	due, err := ParseDue(tc.Due, now, loc)
	if err != nil {
		return lane.Task[job.Job]{}, err
	}

	rule := repetition.Once()
	if strings.TrimSpace(tc.Repeat) != "" {
		if rule, err = repetition.ParseRule(tc.Repeat); err != nil {
			return lane.Task[job.Job]{}, err
		}
	}

	st, err := sleep.Parse(strings.ToLower(strings.TrimSpace(tc.Sleep)), p)
	if err != nil {
		return lane.Task[job.Job]{}, err
	}
	return lane.Task[job.Job]{Payload: j, Due: due, Rule: rule, Sleep: st}, nil
}

var (
	reClock    = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?::(\d{2}))?$`)
	dueLayouts = []string{"2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02"}
)

// ParseDue resolves a due date. Layouts without an offset are read in loc.
func ParseDue(raw string, now time.Time, loc *time.Location) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if loc == nil {
		loc = time.Local
	}
	switch {
	case s == "":
		return time.Time{}, errors.New("due required")
	case strings.EqualFold(s, "now"):
		// next whole second, so the lane start does not find it overdue
		return now.Truncate(time.Second).Add(time.Second), nil
	case strings.HasPrefix(s, "+"):
		d, err := time.ParseDuration(s[1:])
		if err != nil || d < 0 {
			return time.Time{}, fmt.Errorf("invalid relative due %q (use +90m)", raw)
		}
		return now.Add(d), nil
	case reClock.MatchString(s):
		return nextClock(s, now, loc)
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range dueLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid due %q (use RFC 3339, 2006-01-02 15:04, HH:MM, now or +duration)", raw)
}

// nextClock returns the first instant at or after now showing the given
// wall-clock time in loc.
func nextClock(s string, now time.Time, loc *time.Location) (time.Time, error) {
	m := reClock.FindStringSubmatch(s)
	hh, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	ss := 0
	if m[3] != "" {
		ss, _ = strconv.Atoi(m[3])
	}
	if hh > 23 || mm > 59 || ss > 59 {
		return time.Time{}, fmt.Errorf("invalid time of day %q", s)
	}
	ref := now.In(loc)
	t := time.Date(ref.Year(), ref.Month(), ref.Day(), hh, mm, ss, 0, loc)
	if t.Before(now) {
		t = time.Date(ref.Year(), ref.Month(), ref.Day()+1, hh, mm, ss, 0, loc)
	}
	return t, nil
}

func loadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("scheduler.timezone: %w", err)
	}
	return loc, nil
}

func buildPrecision(sc SchedulerConfig) (sleep.Precision, error) {
	acc, err := parseDuration("scheduler.high_precision_accuracy", sc.HighPrecisionAccuracy)
	if err != nil {
		return sleep.Precision{}, err
	}
	p := sleep.Precision{NativeAccuracy: acc}
	switch strings.ToLower(strings.TrimSpace(sc.Spin)) {
	case "", "yield":
		p.Spin = sleep.SpinYield
	case "hint", "spin":
		p.Spin = sleep.SpinHint
	default:
		return sleep.Precision{}, fmt.Errorf("scheduler.spin: unknown mode %q (use yield or hint)", sc.Spin)
	}
	return p, nil
}

func parseDuration(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}
