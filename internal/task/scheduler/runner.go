package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"planner/internal/runtime/supervisor"
	logx "planner/pkg/logx"
)

// Runner executes lanes concurrently, one goroutine per lane. Every worker
// runs on a private deep copy of the base Scheduler: workers share nothing
// and the base is never modified. Final state is read from each Handle.
type Runner[P any] struct {
	base *Scheduler[P]
	sup  *supervisor.Supervisor
	log  logx.Logger
}

func NewRunner[P any](ctx context.Context, base *Scheduler[P]) *Runner[P] {
	log := base.opts.log
	return &Runner[P]{
		base: base,
		sup:  supervisor.New(ctx, supervisor.WithLogger(log)),
		log:  log,
	}
}

// Handle joins one lane worker.
type Handle[P any] struct {
	lane  string
	done  chan struct{}
	sched *Scheduler[P]
	err   error
}

func (h *Handle[P]) Lane() string { return h.lane }

// Done is closed when the worker has returned.
func (h *Handle[P]) Done() <-chan struct{} { return h.done }

// Join waits for the worker and returns its private Scheduler with the run's
// error. If ctx ends first, Join returns ctx.Err() and the worker keeps running.
func (h *Handle[P]) Join(ctx context.Context) (*Scheduler[P], error) {
	select {
	case <-h.done:
		return h.sched, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Spawn clones the base Scheduler and runs lane name on the clone in a new
// supervised goroutine. Errors, including UnknownLane, come back from Join.
func (r *Runner[P]) Spawn(name string, cb Callback[P]) *Handle[P] {
	return spawn(r.sup, r.base, name, cb)
}

func spawn[P any](sup *supervisor.Supervisor, base *Scheduler[P], name string, cb Callback[P]) *Handle[P] {
	h := &Handle[P]{lane: name, done: make(chan struct{}), sched: base.Clone()}
	sup.Go("lane:"+name, func(ctx context.Context) error {
		defer close(h.done)
		defer func() {
			if p := recover(); p != nil {
				h.err = fmt.Errorf("%w: lane %q: %v", ErrWorkerPanicked, name, p)
				panic(p)
			}
		}()
		h.err = h.sched.Run(ctx, name, cb)
		return h.err
	})
	return h
}

// Wait blocks until every spawned worker returned.
func (r *Runner[P]) Wait(ctx context.Context) error { return r.sup.Wait(ctx) }

// Stop cancels every worker and waits for them.
func (r *Runner[P]) Stop(ctx context.Context) error { return r.sup.Stop(ctx) }

// Snapshot reports the workers' goroutine statistics.
func (r *Runner[P]) Snapshot() supervisor.Snapshot { return r.sup.Snapshot() }

// Scope is a bounded set of lane workers. Every worker spawned through it is
// joined before Runner.Scope returns, so callbacks may capture variables of
// the enclosing function freely.
type Scope[P any] struct {
	base *Scheduler[P]
	sup  *supervisor.Supervisor

	mu      sync.Mutex
	handles []*Handle[P]
}

func (sc *Scope[P]) Spawn(name string, cb Callback[P]) *Handle[P] {
	h := spawn(sc.sup, sc.base, name, cb)
	sc.mu.Lock()
	sc.handles = append(sc.handles, h)
	sc.mu.Unlock()
	return h
}

// Scope calls fn, then waits for every worker fn spawned. Workers stop when
// ctx is done. The result joins every worker error.
func (r *Runner[P]) Scope(ctx context.Context, fn func(sc *Scope[P])) error {
	sc := &Scope[P]{
		base: r.base,
		sup:  supervisor.New(ctx, supervisor.WithLogger(r.log)),
	}
	fn(sc)
	_ = sc.sup.Wait(context.Background())

	sc.mu.Lock()
	defer sc.mu.Unlock()
	var errs []error
	for _, h := range sc.handles {
		if h.err != nil {
			errs = append(errs, h.err)
		}
	}
	return errors.Join(errs...)
}

// SpawnScoped runs lane name in its own scope and blocks until it is done.
func (r *Runner[P]) SpawnScoped(ctx context.Context, name string, cb Callback[P]) (*Scheduler[P], error) {
	var h *Handle[P]
	err := r.Scope(ctx, func(sc *Scope[P]) { h = sc.Spawn(name, cb) })
	return h.sched, err
}
