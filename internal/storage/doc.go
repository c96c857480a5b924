// Package storage persists what a planner run leaves behind:
//   - the scheduler state (lanes and history) written when a run ends
//   - a journal of every fire and removal, appended as it happens
//
// Stored state is for inspection and export; a run never resumes from it.
package storage
