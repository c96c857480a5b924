// Package scheduler runs lanes of repeating tasks.
//
// A Scheduler owns every lane's pending tasks and the history of tasks that
// left each lane. Run drives one lane to completion on the caller's goroutine:
//   - a silent catch-up pass fast-forwards tasks that were already overdue
//   - then, repeatedly: wait for the earliest task, fire the callback for every
//     task due at that instant, and advance or remove them
//
// A Scheduler is not safe for concurrent use. Runner executes lanes in
// parallel by giving every worker its own deep copy; results are collected from
// the worker handles, never from the original value.
package scheduler
