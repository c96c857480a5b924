package scheduler

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrUnknownLane      = errors.New("unknown lane")
	ErrDateOutOfRange   = errors.New("due date out of range")
	ErrCallbackPanicked = errors.New("callback panicked")
	ErrWorkerPanicked   = errors.New("lane worker panicked")
)

// UnknownLaneError is returned when a lane name is not registered. Nothing is
// mutated.
type UnknownLaneError struct {
	Lane string
}

func (e *UnknownLaneError) Error() string { return fmt.Sprintf("unknown lane %q", e.Lane) }
func (e *UnknownLaneError) Unwrap() error { return ErrUnknownLane }

// DateOutOfRangeError is returned when a due date cannot be turned into a wait.
// Progress made before it is kept in the lane's history.
type DateOutOfRangeError struct {
	Lane string
	Due  time.Time
}

func (e *DateOutOfRangeError) Error() string {
	return fmt.Sprintf("lane %q: due date %s cannot be waited for", e.Lane, e.Due.Format(time.RFC3339Nano))
}

func (e *DateOutOfRangeError) Unwrap() error { return ErrDateOutOfRange }

// CallbackPanicError ends a run whose callback panicked. The task that was
// firing and the rest of its batch stay in the lane, not advanced; tasks of the
// batch that fired before it are advanced as usual.
type CallbackPanicError struct {
	Lane  string
	Due   time.Time
	Value any
	Stack string
}

func (e *CallbackPanicError) Error() string {
	return fmt.Sprintf("lane %q: callback panicked at %s: %v", e.Lane, e.Due.Format(time.RFC3339), e.Value)
}

func (e *CallbackPanicError) Unwrap() error { return ErrCallbackPanicked }
