package storage

import (
	"context"
	"errors"
	"strings"

	logx "planner/pkg/logx"
)

// Store is the persistence API used by the planner.
type Store interface {
	AppendFire(ctx context.Context, r FireRecord) error
	ListFires(ctx context.Context, q FireQuery) ([]FireRecord, error)
	SaveState(ctx context.Context, st State) error
	LoadState(ctx context.Context, name string) (st State, ok bool, err error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, ErrDisabled) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, ErrDisabled
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
