package job

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"planner/internal/task/scheduler"
	logx "planner/pkg/logx"
)

const defaultOutputLimit = 4096

// Executor runs jobs for the lanes of a scheduler. Each lane gets its own
// limiter so a burst of overdue tasks in one lane cannot starve the machine.
type Executor struct {
	log         logx.Logger
	limit       rate.Limit
	burst       int
	outputLimit int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

type Option func(*Executor)

func WithLogger(log logx.Logger) Option { return func(e *Executor) { e.log = log } }

// WithRate caps fires per second per lane. perSec <= 0 disables the limit.
func WithRate(perSec float64, burst int) Option {
	return func(e *Executor) {
		if perSec <= 0 {
			e.limit = rate.Inf
			return
		}
		e.limit = rate.Limit(perSec)
		e.burst = max(1, burst)
	}
}

// WithOutputLimit caps the command output kept for the log line.
func WithOutputLimit(n int) Option { return func(e *Executor) { e.outputLimit = n } }

func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		log:         logx.Nop(),
		limit:       rate.Inf,
		burst:       1,
		outputLimit: defaultOutputLimit,
		limiters:    map[string]*rate.Limiter{},
	}
	for _, o := range opts {
		o(e)
	}
	if e.log.IsZero() {
		e.log = logx.Nop()
	}
	return e
}

// Callback adapts the executor to a scheduler lane. Failures are logged; the
// scheduler never retries a job.
func (e *Executor) Callback(laneName string) scheduler.Callback[Job] {
	return func(ctx context.Context, j Job) {
		if _, err := e.Run(ctx, laneName, j); err != nil && ctx.Err() == nil {
			e.log.Error("job failed", logx.String("lane", laneName), logx.String("job", j.Name), logx.Err(err))
		}
	}
}

// Result describes one finished job.
type Result struct {
	Output string
	Took   time.Duration
}

// Run executes j synchronously. A message job only logs the message.
func (e *Executor) Run(ctx context.Context, laneName string, j Job) (Result, error) {
	if err := e.limiter(laneName).Wait(ctx); err != nil {
		return Result{}, fmt.Errorf("rate limit: %w", err)
	}
	log := e.log.With(logx.String("lane", laneName), logx.String("job", j.Name))
	start := time.Now()

	if len(j.Command) == 0 {
		log.Info(j.Message)
		return Result{Output: j.Message, Took: time.Since(start)}, nil
	}

	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, j.Command[0], j.Command[1:]...)
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	res := Result{Output: truncate(strings.TrimSpace(out.String()), e.outputLimit), Took: time.Since(start)}
	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w (%v)", ctx.Err(), err)
		}
		return res, fmt.Errorf("run %s: %w", j.Command[0], err)
	}
	log.Info("job done", logx.Duration("took", res.Took), logx.String("output", res.Output))
	return res, nil
}

func (e *Executor) limiter(laneName string) *rate.Limiter {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.limiters[laneName]
	if !ok {
		l = rate.NewLimiter(e.limit, e.burst)
		e.limiters[laneName] = l
	}
	return l
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	// Back up so a multi-byte rune is never split.
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
