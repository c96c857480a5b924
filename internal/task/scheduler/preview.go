package scheduler

import (
	"strings"
	"time"

	"planner/internal/task/lane"
	"planner/internal/task/repetition"
)

// Occurrence is one upcoming fire found by Preview.
type Occurrence[P any] struct {
	Due     time.Time
	Payload P
	Rule    repetition.Rule
}

// Preview replays lane name from now on a private copy, with a virtual clock
// that jumps straight to each due date, and returns up to limit upcoming
// fires. Nothing waits, no callback runs and the Scheduler is not modified.
func (s *Scheduler[P]) Preview(name string, now time.Time, limit int) ([]Occurrence[P], error) {
	tasks, ok := s.lanes[name]
	if !ok {
		return nil, &UnknownLaneError{Lane: name}
	}
	if limit <= 0 {
		return nil, nil
	}
	tasks = copyTasks(tasks)
	q := lane.NewQueue(&tasks, s.opts.handlerFor(name))
	q.CatchUp(now)

	out := make([]Occurrence[P], 0, limit)
	for len(out) < limit {
		next, ok := q.Peek()
		if !ok {
			break
		}
		if _, ok := waitFor(next.Due, now); !ok {
			return out, &DateOutOfRangeError{Lane: name, Due: next.Due}
		}
		if next.Due.After(now) {
			now = next.Due
		}
		for _, t := range q.Due(now) {
			out = append(out, Occurrence[P]{Due: t.Due, Payload: t.Payload, Rule: t.Rule})
			if len(out) == limit {
				break
			}
		}
		q.Advance(now)
	}
	return out, nil
}

// FormatOccurrences renders due dates as a short comma-separated list in loc.
func FormatOccurrences[P any](occ []Occurrence[P], loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	var b strings.Builder
	for i, o := range occ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(o.Due.In(loc).Format("2006-01-02 15:04:05"))
	}
	return b.String()
}
