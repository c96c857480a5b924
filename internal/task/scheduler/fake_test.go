package scheduler

import (
	"context"
	"sync"
	"time"

	"planner/internal/task/lane"
	"planner/internal/task/repetition"
	"planner/internal/task/sleep"
)

// fakeClock is both the Clock and the Waiter: waiting moves time forward.
type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	waits []time.Duration
}

func newFakeClock(at time.Time) *fakeClock { return &fakeClock{now: at} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Wait(ctx context.Context, d time.Duration, _ sleep.Strategy) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.waits = append(c.waits, d)
	c.mu.Unlock()
	return nil
}

func (c *fakeClock) options(extra ...Option) []Option {
	return append([]Option{WithClock(c), WithWaiter(c)}, extra...)
}

var start = time.Date(2026, 10, 19, 9, 0, 0, 0, time.FixedZone("", 2*3600))

func task(name string, due time.Time, r repetition.Rule) lane.Task[string] {
	return lane.Task[string]{Payload: name, Due: due, Rule: r, Sleep: sleep.Native()}
}

type firing struct {
	payload string
	at      time.Time
}

type recorder struct {
	mu    sync.Mutex
	clock Clock
	fired []firing
}

func (r *recorder) callback(_ context.Context, p string) {
	r.mu.Lock()
	r.fired = append(r.fired, firing{payload: p, at: r.clock.Now()})
	r.mu.Unlock()
}

func (r *recorder) payloads() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.fired))
	for _, f := range r.fired {
		out = append(out, f.payload)
	}
	return out
}

func names(ts []lane.Task[string]) []string {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.Payload)
	}
	return out
}
