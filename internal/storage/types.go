package storage

import (
	"errors"
	"time"
)

var (
	ErrDisabled = errors.New("storage disabled")
	ErrClosed   = errors.New("storage closed")
)

// Config configures storage.
//
// Driver values:
//   - "file": JSON Lines journal plus a state file
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Fire kinds.
const (
	KindFired   = "fired"
	KindRemoved = "removed"
)

// FireRecord is one journal entry. Keep it compact and schema-stable.
type FireRecord struct {
	ID     string    `json:"id"`
	Lane   string    `json:"lane"`
	Kind   string    `json:"kind"`
	Task   string    `json:"task"`
	Rule   string    `json:"rule"`
	Due    time.Time `json:"due"`
	At     time.Time `json:"at"`
	TookMS int64     `json:"took_ms"`
	Error  string    `json:"error,omitempty"`
}

// FireQuery filters ListFires. Zero fields match everything. Results are
// newest first.
type FireQuery struct {
	Lane  string
	Kind  string
	Since time.Time
	Limit int
}

func (q FireQuery) match(r FireRecord) bool {
	if q.Lane != "" && r.Lane != q.Lane {
		return false
	}
	if q.Kind != "" && r.Kind != q.Kind {
		return false
	}
	if !q.Since.IsZero() && r.At.Before(q.Since) {
		return false
	}
	return true
}

// State is a saved scheduler encoding.
type State struct {
	Name    string
	Format  string
	Data    []byte
	SavedAt time.Time
}
