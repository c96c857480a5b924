package job

import (
	"context"
	"fmt"

	"planner/internal/eventbus"
	"planner/internal/storage"
	"planner/internal/task/scheduler"
	logx "planner/pkg/logx"
)

// Journal copies task events from the bus into a storage fire journal.
type Journal struct {
	store storage.Store
	log   logx.Logger
}

func NewJournal(store storage.Store, log logx.Logger) *Journal {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Journal{store: store, log: log}
}

// Subscribe registers the journal on bus. Call Run with the returned channel
// and the unsubscribe func when the lanes are done.
func (j *Journal) Subscribe(bus eventbus.Bus, buffer int) (<-chan eventbus.Event, func()) {
	return bus.Subscribe(buffer, scheduler.EventTaskFired, scheduler.EventTaskRemoved)
}

// Run writes every task event received on ch until ch is closed. Write errors
// are logged and do not stop the journal.
func (j *Journal) Run(ctx context.Context, ch <-chan eventbus.Event) {
	for ev := range ch {
		rec, ok := Record(ev)
		if !ok {
			continue
		}
		if err := j.store.AppendFire(ctx, rec); err != nil {
			j.log.Warn("journal append failed", logx.String("lane", rec.Lane), logx.String("kind", rec.Kind), logx.Err(err))
		}
	}
}

// Record converts a lane event into a journal record. ok is false for events
// the journal does not keep.
func Record(ev eventbus.Event) (storage.FireRecord, bool) {
	le, ok := ev.Data.(scheduler.LaneEvent)
	if !ok {
		return storage.FireRecord{}, false
	}
	rec := storage.FireRecord{
		Lane: le.Lane,
		Task: taskName(le.Payload),
		Rule: le.Rule,
		Due:  le.Due,
		At:   ev.Time,
	}
	switch ev.Type {
	case scheduler.EventTaskFired:
		rec.Kind = storage.KindFired
		if !le.Fired.IsZero() {
			rec.At = le.Fired
		}
		rec.TookMS = le.Duration.Milliseconds()
		rec.Error = le.Error
	case scheduler.EventTaskRemoved:
		rec.Kind = storage.KindRemoved
	default:
		return storage.FireRecord{}, false
	}
	return rec, true
}

func taskName(p any) string {
	switch v := p.(type) {
	case Job:
		return v.Name
	case fmt.Stringer:
		return v.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
