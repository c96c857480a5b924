package scheduler

import (
	"context"
	"time"

	"planner/internal/eventbus"
	"planner/internal/task/repetition"
	"planner/internal/task/sleep"
	logx "planner/pkg/logx"
)

// Callback is invoked synchronously on the lane's goroutine when a task fires.
type Callback[P any] func(ctx context.Context, payload P)

// Clock reads the current instant.
type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// Waiter blocks for d using the task's sleep strategy.
type Waiter interface {
	Wait(ctx context.Context, d time.Duration, s sleep.Strategy) error
}

type WaiterFunc func(ctx context.Context, d time.Duration, s sleep.Strategy) error

func (f WaiterFunc) Wait(ctx context.Context, d time.Duration, s sleep.Strategy) error {
	return f(ctx, d, s)
}

type strategyWaiter struct{}

func (strategyWaiter) Wait(ctx context.Context, d time.Duration, s sleep.Strategy) error {
	return s.Sleep(ctx, d)
}

type options struct {
	clock    Clock
	waiter   Waiter
	log      logx.Logger
	bus      eventbus.Bus
	handler  repetition.Handler
	handlers map[string]repetition.Handler
}

type Option func(*options)

func WithClock(c Clock) Option { return func(o *options) { o.clock = c } }

func WithWaiter(w Waiter) Option { return func(o *options) { o.waiter = w } }

func WithLogger(log logx.Logger) Option { return func(o *options) { o.log = log } }

// WithEventBus publishes lane lifecycle events (see EventLaneStarted and friends).
func WithEventBus(b eventbus.Bus) Option { return func(o *options) { o.bus = b } }

// WithCustomHandler sets the Handler used by Custom tasks of every lane that
// has no handler of its own.
func WithCustomHandler(h repetition.Handler) Option {
	return func(o *options) { o.handler = h }
}

// WithLaneHandler sets the Handler used by Custom tasks of one lane.
func WithLaneHandler(lane string, h repetition.Handler) Option {
	return func(o *options) {
		if o.handlers == nil {
			o.handlers = map[string]repetition.Handler{}
		}
		o.handlers[lane] = h
	}
}

func buildOptions(opts []Option) options {
	o := options{
		clock:   ClockFunc(time.Now),
		waiter:  strategyWaiter{},
		handler: repetition.Unconfigured(),
	}
	for _, fn := range opts {
		if fn != nil {
			fn(&o)
		}
	}
	if o.clock == nil {
		o.clock = ClockFunc(time.Now)
	}
	if o.waiter == nil {
		o.waiter = strategyWaiter{}
	}
	if o.log.IsZero() {
		o.log = logx.Nop()
	}
	if o.handler == nil {
		o.handler = repetition.Unconfigured()
	}
	return o
}

func (o options) handlerFor(lane string) repetition.Handler {
	if h, ok := o.handlers[lane]; ok && h != nil {
		return h
	}
	return o.handler
}
