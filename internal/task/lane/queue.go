package lane

import (
	"fmt"
	"time"

	"planner/internal/task/repetition"
)

// Queue works on one lane's task sequence for the duration of a run.
//
// It owns the sequence behind current (kept sorted after every pass) and the
// append-only list of tasks that left the lane, in removal order.
type Queue[P any] struct {
	current *[]Task[P]
	removed []Task[P]
	handler repetition.Handler
}

// NewQueue borrows *current. A nil handler means repetition.Unconfigured.
func NewQueue[P any](current *[]Task[P], h repetition.Handler) *Queue[P] {
	if h == nil {
		h = repetition.Unconfigured()
	}
	return &Queue[P]{current: current, handler: h}
}

// Peek returns the earliest task.
func (q *Queue[P]) Peek() (Task[P], bool) {
	if len(*q.current) == 0 {
		var zero Task[P]
		return zero, false
	}
	return (*q.current)[0], true
}

func (q *Queue[P]) Len() int { return len(*q.current) }

// Due returns the tasks due at or before now, in firing order. The slice
// aliases the queue and is valid until the next pass.
func (q *Queue[P]) Due(now time.Time) []Task[P] {
	cur := *q.current
	return cur[:prefix(cur, now, true)]
}

// Removed returns the tasks that left the lane so far.
func (q *Queue[P]) Removed() []Task[P] { return q.removed }

// CatchUp fast-forwards every task due strictly before now without consuming
// repetition counts. Once tasks are dropped, Custom tasks are dropped when the
// handler says so. Missed occurrences are neither fired nor counted.
func (q *Queue[P]) CatchUp(now time.Time) (advanced, removed int) {
	return q.pass(now, false, false)
}

// Advance is the pass that follows a fire: every task due at or before now
// consumes one occurrence, then is either rescheduled or removed.
func (q *Queue[P]) Advance(now time.Time) (advanced, removed int) {
	return q.pass(now, true, true)
}

// AdvanceFirst is Advance limited to the first n tasks due at or before now.
// It is used when a batch stops partway through firing.
func (q *Queue[P]) AdvanceFirst(now time.Time, n int) (advanced, removed int) {
	n = min(n, prefix(*q.current, now, true))
	return q.advanceN(now, n, true)
}

func (q *Queue[P]) pass(now time.Time, inclusive, consume bool) (advanced, removed int) {
	return q.advanceN(now, prefix(*q.current, now, inclusive), consume)
}

// advanceN steps the first n tasks, which must all be due.
func (q *Queue[P]) advanceN(now time.Time, n int, consume bool) (advanced, removed int) {
	cur := *q.current
	if n <= 0 {
		return 0, 0
	}

	// Filter the prefix in place; writes never overtake reads.
	kept := cur[:0]
	for i := 0; i < n; i++ {
		t := cur[i]
		if q.step(&t, now, consume) {
			kept = append(kept, t)
			advanced++
			continue
		}
		q.removed = append(q.removed, t)
		removed++
	}
	kept = append(kept, cur[n:]...)
	clear(cur[len(kept):])

	Sort(kept)
	*q.current = kept
	return advanced, removed
}

// step moves t past now and reports whether it stays in the lane.
func (q *Queue[P]) step(t *Task[P], now time.Time, consume bool) bool {
	ref := now.In(t.Due.Location())

	switch t.Rule.Kind {
	case repetition.KindOnce:
		return false
	case repetition.KindCustom:
		next, ok := q.handler.Next(ref, t.Due)
		if !ok {
			return false
		}
		t.Due = FixedOffset(next)
		return true
	}

	if consume && t.Rule.Count.Consume() {
		return false
	}

	switch t.Rule.Kind {
	case repetition.KindWeekly:
		t.Due = repetition.NextWeekly(ref, t.Due)
	case repetition.KindMonthly:
		t.Due = repetition.NextMonthly(ref, t.Due)
	case repetition.KindYearly:
		t.Due = repetition.NextYearly(ref, t.Due)
	case repetition.KindConstantGap:
		next, err := repetition.NextConstantGap(ref, t.Due, t.Rule.Gap)
		if err != nil {
			panic(err)
		}
		t.Due = next
	default:
		panic(fmt.Errorf("%w: %d", repetition.ErrUnknownKind, uint8(t.Rule.Kind)))
	}
	return true
}

// prefix is the length of the leading run of tasks due before now (or at now
// when inclusive). tasks must be sorted.
func prefix[P any](tasks []Task[P], now time.Time, inclusive bool) int {
	for i, t := range tasks {
		if t.Due.After(now) || (!inclusive && t.Due.Equal(now)) {
			return i
		}
	}
	return len(tasks)
}
