package scheduler

import (
	"context"
	"fmt"
	"math"
	"runtime/debug"
	"sort"
	"time"

	"planner/internal/task/lane"
	"planner/internal/task/repetition"
	logx "planner/pkg/logx"
)

// Scheduler owns the pending tasks of every lane and the tasks that left them.
//
// Every lane key is also a history key; New and Decode establish it and Run
// keeps it.
type Scheduler[P any] struct {
	lanes   map[string][]lane.Task[P]
	history map[string][]lane.Task[P]
	opts    options
}

// Cloner is implemented by payloads that need a deep copy when a Scheduler is
// cloned.
type Cloner[P any] interface {
	Clone() P
}

// New copies lanes and history into a new Scheduler. Due dates are normalized
// to fixed offsets and every lane is sorted by due date.
//
// It fails when a constant-gap rule has a non-positive gap, or when a lane has
// Custom tasks but no Handler was configured for it.
func New[P any](lanes, history map[string][]lane.Task[P], opts ...Option) (*Scheduler[P], error) {
	s := &Scheduler[P]{
		lanes:   make(map[string][]lane.Task[P], len(lanes)),
		history: make(map[string][]lane.Task[P], len(lanes)+len(history)),
		opts:    buildOptions(opts),
	}
	for name, tasks := range lanes {
		custom := repetition.IsConfigured(s.opts.handlerFor(name))
		for i, t := range tasks {
			if err := t.Rule.Validate(); err != nil {
				return nil, fmt.Errorf("lane %q task %d: %w", name, i, err)
			}
			if t.Rule.Kind == repetition.KindCustom && !custom {
				return nil, fmt.Errorf("lane %q task %d: %w", name, i, repetition.ErrMisconfiguredCustomRepetition)
			}
		}
		cp := copyTasks(tasks)
		lane.Sort(cp)
		s.lanes[name] = cp
	}
	for name, tasks := range history {
		s.history[name] = copyTasks(tasks)
	}
	for name := range s.lanes {
		if _, ok := s.history[name]; !ok {
			s.history[name] = []lane.Task[P]{}
		}
	}
	return s, nil
}

// Run drives lane name until it has no pending task, ctx is done, or an error
// occurs. Tasks that left the lane are appended to its history before Run
// returns, whatever the outcome.
func (s *Scheduler[P]) Run(ctx context.Context, name string, cb Callback[P]) (err error) {
	tasks, ok := s.lanes[name]
	if !ok {
		return &UnknownLaneError{Lane: name}
	}
	if cb == nil {
		cb = func(context.Context, P) {}
	}
	log := s.opts.log.With(logx.String("lane", name))
	q := lane.NewQueue(&tasks, s.opts.handlerFor(name))

	defer func() {
		s.lanes[name] = tasks
		removed := q.Removed()
		s.appendHistory(name, removed)
		ev := LaneEvent{Lane: name, Pending: len(tasks), Removed: len(removed)}
		if err != nil {
			ev.Error = err.Error()
			log.Warn("lane stopped", logx.Int("pending", len(tasks)), logx.Int("removed", len(removed)), logx.Err(err))
		} else {
			log.Info("lane finished", logx.Int("removed", len(removed)))
		}
		s.publish(EventLaneFinished, ev)
	}()

	now := s.opts.clock.Now()
	advanced, dropped := q.CatchUp(now)
	log.Info("lane started", logx.Int("tasks", q.Len()), logx.Int("caught_up", advanced), logx.Int("dropped", dropped))
	s.publish(EventLaneStarted, LaneEvent{Lane: name, Pending: q.Len(), Removed: dropped})

	for {
		next, ok := q.Peek()
		if !ok {
			return nil
		}
		// Callbacks take time; the wait is measured from after they ran.
		now = s.opts.clock.Now()
		wait, ok := waitFor(next.Due, now)
		if !ok {
			return &DateOutOfRangeError{Lane: name, Due: next.Due}
		}
		if log.Enabled(logx.LevelDebug) {
			log.Debug("waiting", logx.Time("due", next.Due), logx.Duration("wait", wait), logx.String("sleep", next.Sleep.String()))
		}
		if err := s.opts.waiter.Wait(ctx, wait, next.Sleep); err != nil {
			return err
		}

		now = s.opts.clock.Now()
		batch := q.Due(now)
		for i, t := range batch {
			if err := s.fire(ctx, name, t, cb, log); err != nil {
				// Tasks of the batch that already fired still move on.
				s.advance(q, name, now, i, log)
				return err
			}
		}
		s.advance(q, name, now, len(batch), log)
	}
}

// advance consumes the first n due tasks and reports the ones that left.
func (s *Scheduler[P]) advance(q *lane.Queue[P], name string, now time.Time, n int, log logx.Logger) {
	before := len(q.Removed())
	q.AdvanceFirst(now, n)
	for _, t := range q.Removed()[before:] {
		log.Debug("task removed", logx.Time("due", t.Due), logx.String("rule", t.Rule.String()))
		s.publish(EventTaskRemoved, LaneEvent{Lane: name, Payload: t.Payload, Rule: t.Rule.String(), Due: t.Due, Pending: q.Len()})
	}
}

func (s *Scheduler[P]) fire(ctx context.Context, name string, t lane.Task[P], cb Callback[P], log logx.Logger) (err error) {
	start := s.opts.clock.Now()
	defer func() {
		if r := recover(); r != nil {
			pe := &CallbackPanicError{Lane: name, Due: t.Due, Value: r, Stack: string(debug.Stack())}
			log.Error("callback panicked", logx.Time("due", t.Due), logx.Any("panic", r), logx.Stack(pe.Stack))
			s.publish(EventTaskFired, LaneEvent{
				Lane: name, Payload: t.Payload, Rule: t.Rule.String(), Due: t.Due,
				Fired: start, Duration: s.opts.clock.Now().Sub(start), Error: pe.Error(),
			})
			err = pe
		}
	}()
	cb(ctx, t.Payload)

	dur := s.opts.clock.Now().Sub(start)
	log.Debug("task fired", logx.Time("due", t.Due), logx.String("rule", t.Rule.String()), logx.Duration("took", dur))
	s.publish(EventTaskFired, LaneEvent{Lane: name, Payload: t.Payload, Rule: t.Rule.String(), Due: t.Due, Fired: start, Duration: dur})
	return nil
}

// waitFor converts due into a wait from now. Overdue tasks wait 0. ok is false
// when the distance does not fit in a Duration or due is the zero time.
func waitFor(due, now time.Time) (time.Duration, bool) {
	if due.IsZero() {
		return 0, false
	}
	d := due.Sub(now)
	if d == math.MaxInt64 || d == math.MinInt64 {
		return 0, false
	}
	if d < 0 {
		d = 0
	}
	return d, true
}

func (s *Scheduler[P]) appendHistory(name string, removed []lane.Task[P]) {
	h, ok := s.history[name]
	if !ok {
		// New and Decode create a history entry for every lane.
		s.opts.log.Error("history entry missing; recreating", logx.String("lane", name))
		h = []lane.Task[P]{}
	}
	s.history[name] = append(h, removed...)
}

// LaneNames returns the registered lanes, sorted.
func (s *Scheduler[P]) LaneNames() []string {
	names := make([]string, 0, len(s.lanes))
	for name := range s.lanes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lane returns a copy of the pending tasks of a lane.
func (s *Scheduler[P]) Lane(name string) ([]lane.Task[P], bool) {
	tasks, ok := s.lanes[name]
	if !ok {
		return nil, false
	}
	return copyTasks(tasks), true
}

// History returns a copy of the tasks that left a lane, in removal order.
func (s *Scheduler[P]) History(name string) ([]lane.Task[P], bool) {
	tasks, ok := s.history[name]
	if !ok {
		return nil, false
	}
	return copyTasks(tasks), true
}

// Lanes returns a copy of every lane's pending tasks.
func (s *Scheduler[P]) Lanes() map[string][]lane.Task[P] { return copyMap(s.lanes) }

// Histories returns a copy of every lane's history.
func (s *Scheduler[P]) Histories() map[string][]lane.Task[P] { return copyMap(s.history) }

// Clone returns an independent deep copy sharing only the options.
func (s *Scheduler[P]) Clone() *Scheduler[P] {
	return &Scheduler[P]{
		lanes:   copyMap(s.lanes),
		history: copyMap(s.history),
		opts:    s.opts,
	}
}

func copyMap[P any](in map[string][]lane.Task[P]) map[string][]lane.Task[P] {
	out := make(map[string][]lane.Task[P], len(in))
	for k, v := range in {
		out[k] = copyTasks(v)
	}
	return out
}

// copyTasks deep-copies tasks, normalizing due dates and cloning payloads that
// implement Cloner.
func copyTasks[P any](in []lane.Task[P]) []lane.Task[P] {
	out := make([]lane.Task[P], len(in))
	for i, t := range in {
		t.Due = lane.FixedOffset(t.Due)
		if c, ok := any(t.Payload).(Cloner[P]); ok {
			t.Payload = c.Clone()
		}
		out[i] = t
	}
	return out
}
