package job

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planner/internal/eventbus"
	"planner/internal/storage"
	"planner/internal/task/lane"
	"planner/internal/task/repetition"
	"planner/internal/task/scheduler"
	logx "planner/pkg/logx"
)

func TestRecord(t *testing.T) {
	due := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	fired := due.Add(time.Second)

	rec, ok := Record(eventbus.Event{Type: scheduler.EventTaskFired, Time: fired.Add(time.Second), Data: scheduler.LaneEvent{
		Lane: "ops", Payload: Job{Name: "backup"}, Rule: "Weekly(Infinite)", Due: due, Fired: fired, Duration: 1500 * time.Millisecond,
	}})
	require.True(t, ok)
	assert.Equal(t, storage.KindFired, rec.Kind)
	assert.Equal(t, "backup", rec.Task)
	assert.Equal(t, fired, rec.At)
	assert.Equal(t, int64(1500), rec.TookMS)

	rec, ok = Record(eventbus.Event{Type: scheduler.EventTaskRemoved, Time: fired, Data: scheduler.LaneEvent{Lane: "ops", Payload: 42}})
	require.True(t, ok)
	assert.Equal(t, storage.KindRemoved, rec.Kind)
	assert.Equal(t, "42", rec.Task)

	_, ok = Record(eventbus.Event{Type: scheduler.EventLaneStarted, Data: scheduler.LaneEvent{Lane: "ops"}})
	assert.False(t, ok)
	_, ok = Record(eventbus.Event{Type: scheduler.EventTaskFired, Data: "junk"})
	assert.False(t, ok)
}

func TestJournalRecordsLaneRun(t *testing.T) {
	store, err := storage.Open(storage.Config{Driver: "file", Path: t.TempDir()}, logx.Nop())
	require.NoError(t, err)
	defer store.Close()

	now := time.Now().Round(0)
	bus := eventbus.New()
	j := NewJournal(store, logx.Nop())
	ch, unsub := j.Subscribe(bus, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		j.Run(context.Background(), ch)
	}()

	s, err := scheduler.New(map[string][]lane.Task[Job]{
		"notes": {
			{Payload: Job{Name: "first", Message: "a"}, Due: now.Add(-time.Hour), Rule: repetition.Once()},
			{Payload: Job{Name: "second", Message: "b"}, Due: now.Add(100 * time.Millisecond), Rule: repetition.Once()},
		},
	}, nil, scheduler.WithEventBus(bus))
	require.NoError(t, err)
	require.NoError(t, s.Run(context.Background(), "notes", NewExecutor().Callback("notes")))

	unsub()
	<-done

	fired, err := store.ListFires(context.Background(), storage.FireQuery{Lane: "notes", Kind: storage.KindFired})
	require.NoError(t, err)
	require.Len(t, fired, 1)
	assert.Equal(t, "second", fired[0].Task)

	removed, err := store.ListFires(context.Background(), storage.FireQuery{Kind: storage.KindRemoved})
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.Equal(t, "second", removed[0].Task)
}
