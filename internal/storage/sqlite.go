package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	logx "planner/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sqlx.DB
	log logx.Logger
}

type fireRow struct {
	ID     string         `db:"id"`
	Lane   string         `db:"lane"`
	Kind   string         `db:"kind"`
	Task   string         `db:"task"`
	Rule   string         `db:"rule"`
	Due    string         `db:"due"`
	AtNS   int64          `db:"at_ns"`
	TookMS int64          `db:"took_ms"`
	Err    sql.NullString `db:"err"`
}

type stateRow struct {
	Name    string `db:"name"`
	Format  string `db:"format"`
	Data    []byte `db:"data"`
	SavedAt string `db:"saved_at"`
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()))
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) AppendFire(ctx context.Context, r FireRecord) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.At.IsZero() {
		r.At = time.Now()
	}
	query, args, err := sq.
		Insert("fires").
		Columns("id", "lane", "kind", "task", "rule", "due", "at_ns", "took_ms", "err").
		Values(r.ID, r.Lane, r.Kind, r.Task, r.Rule, r.Due.Format(time.RFC3339Nano), r.At.UnixNano(), r.TookMS, nullStr(r.Error)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

func (s *sqliteStore) ListFires(ctx context.Context, q FireQuery) ([]FireRecord, error) {
	qb := sq.
		Select("id", "lane", "kind", "task", "rule", "due", "at_ns", "took_ms", "err").
		From("fires").
		OrderBy("at_ns DESC", "rowid DESC")
	if q.Lane != "" {
		qb = qb.Where(sq.Eq{"lane": q.Lane})
	}
	if q.Kind != "" {
		qb = qb.Where(sq.Eq{"kind": q.Kind})
	}
	if !q.Since.IsZero() {
		qb = qb.Where(sq.GtOrEq{"at_ns": q.Since.UnixNano()})
	}
	if q.Limit > 0 {
		qb = qb.Limit(uint64(q.Limit))
	}
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []fireRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	out := make([]FireRecord, 0, len(rows))
	for _, row := range rows {
		due, err := time.Parse(time.RFC3339Nano, row.Due)
		if err != nil {
			return nil, fmt.Errorf("fire %s: due: %w", row.ID, err)
		}
		out = append(out, FireRecord{
			ID:     row.ID,
			Lane:   row.Lane,
			Kind:   row.Kind,
			Task:   row.Task,
			Rule:   row.Rule,
			Due:    due,
			At:     time.Unix(0, row.AtNS),
			TookMS: row.TookMS,
			Error:  row.Err.String,
		})
	}
	return out, nil
}

func (s *sqliteStore) SaveState(ctx context.Context, st State) error {
	if st.SavedAt.IsZero() {
		st.SavedAt = time.Now()
	}
	query, args, err := sq.
		Insert("state").
		Columns("name", "format", "data", "saved_at").
		Values(st.Name, st.Format, st.Data, st.SavedAt.Format(time.RFC3339Nano)).
		Suffix(`ON CONFLICT(name) DO UPDATE SET
			format = excluded.format,
			data = excluded.data,
			saved_at = excluded.saved_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

func (s *sqliteStore) LoadState(ctx context.Context, name string) (State, bool, error) {
	query, args, err := sq.
		Select("name", "format", "data", "saved_at").
		From("state").
		Where(sq.Eq{"name": name}).
		ToSql()
	if err != nil {
		return State{}, false, fmt.Errorf("build query: %w", err)
	}
	var row stateRow
	err = s.db.GetContext(ctx, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, err
	}
	saved, err := time.Parse(time.RFC3339Nano, row.SavedAt)
	if err != nil {
		return State{}, false, fmt.Errorf("state %s: saved_at: %w", name, err)
	}
	return State{Name: row.Name, Format: row.Format, Data: row.Data, SavedAt: saved}, true, nil
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
