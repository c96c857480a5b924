package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	logx "planner/pkg/logx"
)

// fileStore keeps everything next to cfg.Path:
//   - <prefix>.fires.jsonl          (append-only JSON Lines)
//   - <prefix>.state.<name>.json    (latest state per name, replaced atomically)
type fileStore struct {
	log    logx.Logger
	prefix string

	mu        sync.Mutex
	firesPath string
	fires     *os.File
}

type stateFile struct {
	Name    string    `json:"name"`
	Format  string    `json:"format"`
	Data    string    `json:"data"`
	SavedAt time.Time `json:"saved_at"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	firesPath := prefix + ".fires.jsonl"
	f, err := os.OpenFile(firesPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	return &fileStore{log: log, prefix: prefix, firesPath: firesPath, fires: f}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fires == nil {
		return nil
	}
	err := s.fires.Close()
	s.fires = nil
	return err
}

func (s *fileStore) AppendFire(_ context.Context, r FireRecord) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.At.IsZero() {
		r.At = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fires == nil {
		return ErrClosed
	}
	return json.NewEncoder(s.fires).Encode(r)
}

func (s *fileStore) ListFires(ctx context.Context, q FireQuery) ([]FireRecord, error) {
	s.mu.Lock()
	closed := s.fires == nil
	s.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	f, err := os.Open(s.firesPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []FireRecord
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var r FireRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			// A torn last line after a crash is skipped.
			s.log.Debug("skipping bad journal line", logx.Err(err))
			continue
		}
		if q.match(r) {
			out = append(out, r)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].At.After(out[j].At) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *fileStore) statePath(name string) string {
	return s.prefix + ".state." + sanitizeName(name) + ".json"
}

// SaveState writes a temporary file and renames it over the previous state.
func (s *fileStore) SaveState(_ context.Context, st State) error {
	if st.SavedAt.IsZero() {
		st.SavedAt = time.Now()
	}
	path := s.statePath(st.Name)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fires == nil {
		return ErrClosed
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	rec := stateFile{Name: st.Name, Format: st.Format, Data: string(st.Data), SavedAt: st.SavedAt}
	if err := json.NewEncoder(f).Encode(rec); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *fileStore) LoadState(_ context.Context, name string) (State, bool, error) {
	b, err := os.ReadFile(s.statePath(name))
	if errors.Is(err, os.ErrNotExist) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, err
	}
	var rec stateFile
	if err := json.Unmarshal(b, &rec); err != nil {
		return State{}, false, err
	}
	return State{Name: rec.Name, Format: rec.Format, Data: []byte(rec.Data), SavedAt: rec.SavedAt}, true, nil
}

func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "default"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
