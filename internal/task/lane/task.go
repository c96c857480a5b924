// Package lane holds the ordered task queue of one execution lane and the two
// passes that move it forward in time.
package lane

import (
	"slices"
	"time"

	"planner/internal/task/repetition"
	"planner/internal/task/sleep"
)

// Task is a payload with a due date, a repetition rule and a sleep strategy.
// Tasks are ordered by Due only.
type Task[P any] struct {
	Payload P               `json:"payload"`
	Due     time.Time       `json:"due_date"`
	Rule    repetition.Rule `json:"repetition"`
	Sleep   sleep.Strategy  `json:"sleep_strategy"`
}

// Compare orders tasks by due date. Equal due dates compare equal.
func Compare[P any](a, b Task[P]) int { return a.Due.Compare(b.Due) }

// Sort orders tasks by due date, keeping the relative order of ties.
func Sort[P any](tasks []Task[P]) { slices.SortStableFunc(tasks, Compare[P]) }

// FixedOffset returns t in a zone that is only its current UTC offset, without
// a monotonic clock reading. The zero time is returned unchanged.
func FixedOffset(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	_, off := t.Zone()
	return t.Round(0).In(time.FixedZone("", off))
}
