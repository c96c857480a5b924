package app

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planner/internal/config"
	"planner/internal/job"
	"planner/internal/storage"
	"planner/internal/task/scheduler"
)

type notifyRecorder struct {
	mu     sync.Mutex
	states []string
}

func (n *notifyRecorder) notify(s string) {
	n.mu.Lock()
	n.states = append(n.states, s)
	n.mu.Unlock()
}

func (n *notifyRecorder) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.states...)
}

func newTestApp(t *testing.T, body string, opts Options) (*App, *notifyRecorder) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "planner.yaml")
	body = "storage: {driver: file, path: " + filepath.Join(dir, "store") + "}\n" + body
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	opts.ConfigPath = path
	a, err := NewApp(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	rec := &notifyRecorder{}
	a.notify = rec.notify
	return a, rec
}

const twoTasks = `
lanes:
  notes:
    tasks:
      - {name: hello, message: hi, due: now}
      - {name: tick, message: tick, due: now, repeat: "every 200ms x2"}
`

func TestRunFiresJournalsAndSavesState(t *testing.T) {
	a, rec := newTestApp(t, twoTasks, Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, a.Run(ctx))

	fires, err := a.store.ListFires(ctx, storage.FireQuery{Lane: "notes", Kind: storage.KindFired})
	require.NoError(t, err)
	names := map[string]int{}
	for _, f := range fires {
		names[f.Task]++
	}
	assert.Equal(t, 1, names["hello"])
	assert.GreaterOrEqual(t, names["tick"], 2)

	st, ok, err := a.store.LoadState(ctx, "default")
	require.NoError(t, err)
	require.True(t, ok)
	s, err := scheduler.Decode[job.Job](scheduler.Format(st.Format), st.Data)
	require.NoError(t, err)
	pending, _ := s.Lane("notes")
	done, _ := s.History("notes")
	assert.Empty(t, pending)
	assert.Len(t, done, 2)

	states := rec.all()
	require.NotEmpty(t, states)
	assert.Equal(t, daemon.SdNotifyReady, states[0])
	assert.Equal(t, daemon.SdNotifyStopping, states[len(states)-1])
}

func TestRunUnknownLaneFails(t *testing.T) {
	a, _ := newTestApp(t, twoTasks, Options{Lanes: []string{"missing"}})

	err := a.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, scheduler.ErrUnknownLane)

	// the lanes that did not run keep their pending tasks
	s, err := a.State()
	require.NoError(t, err)
	pending, _ := s.Lane("notes")
	assert.Len(t, pending, 2)
}

func TestRunWatchStopsOnCancel(t *testing.T) {
	a, _ := newTestApp(t, `
lanes:
  later:
    tasks:
      - {name: far, message: later, due: "+1h"}
`, Options{Watch: true})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- a.Run(ctx) }()
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
	s, err := a.State()
	require.NoError(t, err)
	pending, _ := s.Lane("later")
	assert.Len(t, pending, 1)
}

func TestReloadDecision(t *testing.T) {
	a, rec := newTestApp(t, twoTasks, Options{})
	cfg := a.cfgm.Get()
	gen := &generation{cfg: cfg}

	assert.False(t, a.reload(gen, cfg))
	assert.Empty(t, rec.all())

	logging := *cfg
	logging.Logging.Level = "debug"
	assert.False(t, a.reload(gen, &logging))
	assert.Same(t, &logging, gen.cfg)
	assert.Equal(t, []string{daemon.SdNotifyReloading, daemon.SdNotifyReady}, rec.all())

	lanes := logging
	lanes.Lanes = map[string]config.LaneConfig{"other": {Tasks: []config.TaskConfig{{Name: "x", Message: "y", Due: "+1h"}}}}
	assert.True(t, a.reload(gen, &lanes))
}
