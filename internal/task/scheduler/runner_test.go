package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planner/internal/task/lane"
	"planner/internal/task/repetition"
)

// newTwoLaneScheduler only holds tasks due at start that never recur, so the
// shared fake clock never moves while the workers run.
func newTwoLaneScheduler(t *testing.T) *Scheduler[string] {
	t.Helper()
	clk := newFakeClock(start)
	s, err := New(map[string][]lane.Task[string]{
		"a": {
			task("a1", start, repetition.Once()),
			task("a2", start, repetition.ConstantGap(time.Minute, repetition.Finite(1))),
		},
		"b": {
			task("b1", start, repetition.Weekly(repetition.Finite(1))),
			task("b2", start, repetition.Once()),
		},
	}, nil, clk.options()...)
	require.NoError(t, err)
	return s
}

func TestRunnerWorkersAreIsolated(t *testing.T) {
	t.Parallel()
	s := newTwoLaneScheduler(t)
	r := NewRunner(context.Background(), s)

	var fired atomic.Int32
	cb := func(context.Context, string) { fired.Add(1) }
	ha := r.Spawn("a", cb)
	hb := r.Spawn("b", cb)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sa, err := ha.Join(ctx)
	require.NoError(t, err)
	sb, err := hb.Join(ctx)
	require.NoError(t, err)
	require.NoError(t, r.Wait(ctx))

	assert.Equal(t, int32(4), fired.Load())

	histA, _ := sa.History("a")
	assert.Equal(t, []string{"a1", "a2"}, names(histA))
	histB, _ := sa.History("b")
	assert.Empty(t, histB, "worker a never ran lane b")

	histB, _ = sb.History("b")
	assert.Equal(t, []string{"b1", "b2"}, names(histB))

	// The base scheduler is untouched.
	for _, name := range []string{"a", "b"} {
		h, _ := s.History(name)
		assert.Empty(t, h)
	}
	pa, _ := s.Lane("a")
	assert.Len(t, pa, 2)

	assert.Equal(t, uint64(2), r.Snapshot().Counters.Started)
}

func TestRunnerUnknownLaneComesBackFromJoin(t *testing.T) {
	t.Parallel()
	s := newTwoLaneScheduler(t)
	r := NewRunner(context.Background(), s)
	_, err := r.Spawn("nope", nil).Join(context.Background())
	assert.ErrorIs(t, err, ErrUnknownLane)
	assert.Error(t, r.Wait(context.Background()))
}

func TestScopeJoinsEveryWorker(t *testing.T) {
	t.Parallel()
	s := newTwoLaneScheduler(t)
	r := NewRunner(context.Background(), s)

	// Locals of this frame are safe to capture: Scope joins before returning.
	var na, nb int
	var handles []*Handle[string]
	err := r.Scope(context.Background(), func(sc *Scope[string]) {
		handles = append(handles,
			sc.Spawn("a", func(context.Context, string) { na++ }),
			sc.Spawn("b", func(context.Context, string) { nb++ }),
		)
	})
	require.NoError(t, err)
	assert.Equal(t, 2, na)
	assert.Equal(t, 2, nb)
	for _, h := range handles {
		select {
		case <-h.Done():
		default:
			t.Fatalf("lane %s still running after Scope", h.Lane())
		}
	}
}

func TestScopeJoinsErrors(t *testing.T) {
	t.Parallel()
	s := newTwoLaneScheduler(t)
	r := NewRunner(context.Background(), s)
	err := r.Scope(context.Background(), func(sc *Scope[string]) {
		sc.Spawn("a", nil)
		sc.Spawn("x", nil)
		sc.Spawn("y", nil)
	})
	var ule *UnknownLaneError
	require.ErrorAs(t, err, &ule)
	assert.Contains(t, err.Error(), `"x"`)
	assert.Contains(t, err.Error(), `"y"`)
}

func TestSpawnScoped(t *testing.T) {
	t.Parallel()
	clk := newFakeClock(start)
	s, err := New(map[string][]lane.Task[string]{
		"b": {task("b1", start, repetition.Weekly(repetition.Finite(3)))},
	}, nil, clk.options()...)
	require.NoError(t, err)
	r := NewRunner(context.Background(), s)

	fired := 0
	got, err := r.SpawnScoped(context.Background(), "b", func(context.Context, string) { fired++ })
	require.NoError(t, err)
	assert.Equal(t, 3, fired)
	h, _ := got.History("b")
	assert.Len(t, h, 1)

	_, err = r.SpawnScoped(context.Background(), "nope", nil)
	assert.ErrorIs(t, err, ErrUnknownLane)
}

func TestRunnerStopCancelsWorkers(t *testing.T) {
	t.Parallel()
	s, err := New(map[string][]lane.Task[string]{
		"forever": {task("tick", time.Now().Add(time.Hour), repetition.Weekly(repetition.Infinite()))},
	}, nil)
	require.NoError(t, err)

	r := NewRunner(context.Background(), s)
	h := r.Spawn("forever", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Stop(ctx))
	got, err := h.Join(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	pending, _ := got.Lane("forever")
	assert.Len(t, pending, 1)
}
