package logx

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func TestFileSinkWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "planner.log")
	svc, log := New(Config{Level: "debug", File: FileConfig{Enabled: true, Path: path}})

	log.With(String("lane", "reports")).Info("task fired", Int("pending", 2))
	log.Debug("debug line")
	require.NoError(t, svc.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(raw)
	assert.Contains(t, out, `"lane":"reports"`)
	assert.Contains(t, out, `"pending":2`)
	assert.Contains(t, out, `"message":"task fired"`)
	assert.Contains(t, out, `"caller":"logging_test.go:`)
	assert.Contains(t, out, "debug line")
}

func TestLevelFiltersFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "planner.log")
	svc, log := New(Config{Level: "warn", File: FileConfig{Enabled: true, Path: path}})

	log.Info("quiet")
	log.Warn("loud")
	assert.False(t, log.Enabled(LevelInfo))
	assert.True(t, log.Enabled(LevelError))
	require.NoError(t, svc.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "quiet")
	assert.Contains(t, string(raw), "loud")
}

func TestAlertSinkHonoursMinLevelAndRate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "planner.log")
	cfg := Config{
		Level: "debug",
		File:  FileConfig{Enabled: true, Path: path},
		Alert: AlertConfig{Enabled: true, MinLevel: "error", RatePerSec: 1},
	}
	svc, log := New(cfg)
	defer svc.Close()
	var buf syncBuffer
	svc.SetAlertOutput(&buf)

	log.Warn("below threshold")
	log.Error("job failed", String("lane", "backup"), Stack("goroutine 1\nmain.main()"))
	log.Error("second failure")

	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "[ERROR] job failed"), lines[0])
	assert.Contains(t, lines[0], "lane=backup")
	assert.Contains(t, lines[0], `stack="goroutine 1\nmain.main()"`)
	assert.NotContains(t, out, "below threshold")
	assert.Equal(t, uint64(1), svc.AlertsDropped())
}

func TestApplySwapsConfigForLiveLoggers(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a.log")
	second := filepath.Join(dir, "b.log")

	svc, log := New(Config{Level: "info", File: FileConfig{Enabled: true, Path: first}})
	child := log.With(String("component", "test"))
	child.Info("one")

	svc.Apply(Config{Level: "info", File: FileConfig{Enabled: true, Path: second}})
	child.Info("two")
	require.NoError(t, svc.Close())

	a, err := os.ReadFile(first)
	require.NoError(t, err)
	b, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Contains(t, string(a), "one")
	assert.NotContains(t, string(a), "two")
	assert.Contains(t, string(b), "two")
	assert.Contains(t, string(b), `"component":"test"`)
}

func TestZeroAndNopLoggersAreSafe(t *testing.T) {
	var zero Logger
	assert.True(t, zero.IsZero())
	zero.Error("dropped")
	Nop().Info("dropped", Err(nil))
	assert.False(t, Nop().IsZero())
}

func TestFormatAlert(t *testing.T) {
	got := formatAlert([]byte(`{"level":"warn","message":"slow","b":2,"a":"x","time":"t"}` + "\n"))
	assert.Equal(t, "[WARN] slow a=x b=2", got)

	assert.Equal(t, "plain text", formatAlert([]byte("  plain text \n")))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, parseLevel(" debug ", LevelInfo))
	assert.Equal(t, LevelWarn, parseLevel("WARNING", LevelInfo))
	assert.Equal(t, LevelInfo, parseLevel("bogus", LevelInfo))
}

func TestClipKeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "short", clip("short", 10))
	assert.Equal(t, "abcd...", clip("abcdefghij", 7))
	// "é" spans bytes 4-5; a cut at 5 would split it.
	got := clip("abcdéfgh", 8)
	assert.Equal(t, "abcd...", got)
	assert.True(t, utf8.ValidString(got))
}

func TestNewConsoleWritesToGivenWriter(t *testing.T) {
	var buf syncBuffer
	log := NewConsole(&buf, "warn")
	log.Info("hidden")
	log.Warn("shown", String("lane", "ops"))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "ops")
	assert.Contains(t, out, "logging_test.go:")
	assert.False(t, log.Enabled(LevelInfo))
}
