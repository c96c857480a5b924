package scheduler

import (
	"time"

	"planner/internal/eventbus"
)

// Event types published on the bus.
const (
	EventLaneStarted  = "lane.started"
	EventTaskFired    = "lane.task_fired"
	EventTaskRemoved  = "lane.task_removed"
	EventLaneFinished = "lane.finished"
)

// LaneEvent is the Data of every lane event. Payload is set for task events.
type LaneEvent struct {
	Lane     string
	Payload  any
	Rule     string
	Due      time.Time
	Fired    time.Time
	Duration time.Duration
	Pending  int
	Removed  int
	Error    string
}

func (s *Scheduler[P]) publish(typ string, ev LaneEvent) {
	if s.opts.bus == nil {
		return
	}
	s.opts.bus.Publish(eventbus.Event{Type: typ, Time: s.opts.clock.Now(), Data: ev})
}
