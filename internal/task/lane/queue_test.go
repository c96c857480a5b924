package lane

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planner/internal/task/repetition"
)

var utc2 = time.FixedZone("", 2*3600)

func task(name string, due time.Time, r repetition.Rule) Task[string] {
	return Task[string]{Payload: name, Due: due, Rule: r}
}

func payloads(ts []Task[string]) []string {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.Payload)
	}
	return out
}

func TestSortIsStable(t *testing.T) {
	t.Parallel()
	at := time.Date(2026, 1, 1, 8, 0, 0, 0, utc2)
	ts := []Task[string]{
		task("c", at.Add(time.Hour), repetition.Once()),
		task("a1", at, repetition.Once()),
		task("a2", at, repetition.Once()),
		task("a3", at, repetition.Once()),
	}
	Sort(ts)
	assert.Equal(t, []string{"a1", "a2", "a3", "c"}, payloads(ts))
}

func TestCatchUpSkipsWithoutConsuming(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, utc2)
	cur := []Task[string]{
		task("once", now.Add(-2*time.Second), repetition.Once()),
		task("weekly", now.Add(-3*week), repetition.Weekly(repetition.Finite(2))),
		task("at-now", now, repetition.Once()),
		task("later", now.Add(time.Hour), repetition.Once()),
	}
	q := NewQueue(&cur, nil)

	advanced, removed := q.CatchUp(now)
	assert.Equal(t, 1, advanced)
	assert.Equal(t, 1, removed)
	assert.Equal(t, []string{"once"}, payloads(q.Removed()))

	// A task due exactly at start is left for the run loop.
	assert.Equal(t, []string{"at-now", "later", "weekly"}, payloads(cur))
	w := cur[2]
	assert.True(t, w.Due.Equal(now.Add(week)), "got %s", w.Due)
	n, _ := w.Rule.Count.Remaining()
	assert.EqualValues(t, 2, n)
}

const week = 7 * 24 * time.Hour

func TestAdvanceConsumesAndRemoves(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, utc2)
	cur := []Task[string]{
		task("gap", now, repetition.ConstantGap(time.Hour, repetition.Finite(1))),
		task("weekly", now, repetition.Weekly(repetition.Finite(2))),
		task("inf", now, repetition.Yearly(repetition.Infinite())),
	}
	q := NewQueue(&cur, nil)

	require.Len(t, q.Due(now), 3)
	advanced, removed := q.Advance(now)
	assert.Equal(t, 2, advanced)
	assert.Equal(t, 1, removed)

	require.Len(t, q.Removed(), 1)
	gone := q.Removed()[0]
	assert.Equal(t, "gap", gone.Payload)
	assert.True(t, gone.Due.Equal(now), "removed task keeps its last due date")

	assert.Equal(t, []string{"weekly", "inf"}, payloads(cur))
	assert.True(t, cur[0].Due.Equal(now.Add(week)))
	assert.True(t, cur[1].Due.Equal(now.AddDate(1, 0, 0)))
	n, _ := cur[0].Rule.Count.Remaining()
	assert.EqualValues(t, 1, n)
}

func TestAdvanceResortsOutOfOrderTasks(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, utc2)
	cur := []Task[string]{
		task("weekly", now.Add(-time.Minute), repetition.Weekly(repetition.Infinite())),
		task("gap", now, repetition.ConstantGap(time.Hour, repetition.Infinite())),
		task("mid", now.Add(2*time.Hour), repetition.Once()),
	}
	q := NewQueue(&cur, nil)
	q.Advance(now)

	assert.Equal(t, []string{"gap", "mid", "weekly"}, payloads(cur))
	assert.True(t, cur[0].Due.Equal(now.Add(time.Hour)))
}

func TestFiniteZeroIsExhaustedOnFirstFire(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	cur := []Task[string]{task("z", now, repetition.Monthly(repetition.Finite(0)))}
	q := NewQueue(&cur, nil)
	q.Advance(now)
	assert.Empty(t, cur)
	assert.Len(t, q.Removed(), 1)
}

func TestCustomHandler(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	calls := 0
	h := repetition.HandlerFunc(func(now, due time.Time) (time.Time, bool) {
		calls++
		if calls > 1 {
			return time.Time{}, false
		}
		return now.Add(time.Minute), true
	})
	cur := []Task[string]{task("c", now, repetition.Custom())}
	q := NewQueue(&cur, h)

	q.Advance(now)
	require.Len(t, cur, 1)
	assert.True(t, cur[0].Due.Equal(now.Add(time.Minute)))

	q.Advance(now.Add(time.Minute))
	assert.Empty(t, cur)
	assert.Equal(t, []string{"c"}, payloads(q.Removed()))
}

func TestCustomWithoutHandlerPanics(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	cur := []Task[string]{task("c", now, repetition.Custom())}
	q := NewQueue(&cur, nil)
	assert.PanicsWithValue(t, repetition.ErrMisconfiguredCustomRepetition, func() { q.Advance(now) })
}

func TestInvalidGapPanics(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	cur := []Task[string]{task("g", now, repetition.ConstantGap(0, repetition.Infinite()))}
	q := NewQueue(&cur, nil)
	assert.Panics(t, func() { q.Advance(now) })
}

func TestDueStopsAtFirstFutureTask(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	cur := []Task[string]{
		task("a", now.Add(-time.Second), repetition.Once()),
		task("b", now, repetition.Once()),
		task("c", now.Add(time.Nanosecond), repetition.Once()),
	}
	q := NewQueue(&cur, nil)
	assert.Equal(t, []string{"a", "b"}, payloads(q.Due(now)))

	p, ok := q.Peek()
	require.True(t, ok)
	assert.Equal(t, "a", p.Payload)
	assert.Equal(t, 3, q.Len())
}

func TestFixedOffsetKeepsInstant(t *testing.T) {
	t.Parallel()
	loc, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	in := time.Date(2026, 7, 1, 9, 30, 0, 0, loc)
	out := FixedOffset(in)
	assert.True(t, out.Equal(in))
	_, off := out.Zone()
	assert.Equal(t, 2*3600, off)
	assert.Equal(t, 9, out.Hour())
	assert.True(t, FixedOffset(time.Time{}).IsZero())
}

func TestAdvanceFirstLeavesTheRestOfTheBatch(t *testing.T) {
	t.Parallel()
	at := time.Date(2026, 1, 1, 8, 0, 0, 0, utc2)
	ts := []Task[string]{
		task("a", at, repetition.Once()),
		task("b", at, repetition.Weekly(repetition.Infinite())),
		task("c", at, repetition.Once()),
		task("later", at.Add(time.Hour), repetition.Once()),
	}
	q := NewQueue(&ts, nil)

	advanced, removed := q.AdvanceFirst(at, 2)
	assert.Equal(t, 1, advanced)
	assert.Equal(t, 1, removed)
	assert.Equal(t, []string{"a"}, payloads(q.Removed()))
	assert.Equal(t, []string{"c", "later", "b"}, payloads(ts))
	assert.True(t, ts[2].Due.Equal(at.Add(7*24*time.Hour)))

	// n is capped at the due prefix.
	advanced, removed = q.AdvanceFirst(at, 10)
	assert.Equal(t, 0, advanced)
	assert.Equal(t, 1, removed)
	assert.Equal(t, []string{"later", "b"}, payloads(ts))
}
