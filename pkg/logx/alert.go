package logx

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	stackKey = "stack"

	alertMaxLine  = 2000
	alertMaxValue = 300
	alertMaxStack = 400
)

// alertSink copies records at or above minLevel to out, one compact line per
// record, at most RatePerSec lines a second. Lines over the rate are counted
// and dropped.
type alertSink struct {
	mu       sync.Mutex
	out      io.Writer
	limiter  *rate.Limiter
	minLevel zerolog.Level
	dropped  atomic.Uint64
}

func newAlertSink(out io.Writer) *alertSink {
	a := &alertSink{out: out}
	a.configure(AlertConfig{})
	return a
}

func (a *alertSink) configure(cfg AlertConfig) {
	rps := max(1, cfg.RatePerSec)
	a.mu.Lock()
	a.minLevel = parseLevel(cfg.MinLevel, zerolog.WarnLevel)
	a.limiter = rate.NewLimiter(rate.Limit(rps), rps)
	a.mu.Unlock()
}

func (a *alertSink) setOutput(w io.Writer) {
	a.mu.Lock()
	a.out = w
	a.mu.Unlock()
}

func (a *alertSink) Write(p []byte) (int, error) {
	return a.WriteLevel(zerolog.InfoLevel, p)
}

// WriteLevel never fails: the alert copy must not break the primary sinks.
func (a *alertSink) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if level < a.minLevel {
		return len(p), nil
	}
	if !a.limiter.Allow() {
		a.dropped.Add(1)
		return len(p), nil
	}
	if line := formatAlert(p); line != "" {
		_, _ = io.WriteString(a.out, line+"\n")
	}
	return len(p), nil
}

// formatAlert renders a zerolog JSON record as "[LEVEL] msg k=v ...", keys
// sorted and a quoted stack last. Input that is not JSON passes through
// trimmed.
func formatAlert(p []byte) string {
	p = bytes.TrimSpace(p)
	var rec map[string]any
	if err := json.Unmarshal(p, &rec); err != nil {
		return clip(string(p), alertMaxLine)
	}

	var b strings.Builder
	if lvl, _ := rec[zerolog.LevelFieldName].(string); lvl != "" {
		fmt.Fprintf(&b, "[%s] ", strings.ToUpper(lvl))
	}
	msg, _ := rec[zerolog.MessageFieldName].(string)
	b.WriteString(msg)

	stack, hasStack := rec[stackKey]
	for _, k := range []string{zerolog.TimestampFieldName, zerolog.LevelFieldName, zerolog.MessageFieldName, stackKey} {
		delete(rec, k)
	}
	for _, k := range slices.Sorted(maps.Keys(rec)) {
		fmt.Fprintf(&b, " %s=%s", k, clip(fmt.Sprint(rec[k]), alertMaxValue))
	}
	if hasStack {
		fmt.Fprintf(&b, " %s=%s", stackKey, strconv.Quote(clip(fmt.Sprint(stack), alertMaxStack)))
	}
	return clip(b.String(), alertMaxLine)
}

// clip cuts s to at most n bytes on a rune boundary and marks the cut. n must
// be larger than the marker.
func clip(s string, n int) string {
	const mark = "..."
	if len(s) <= n {
		return s
	}
	cut := n - len(mark)
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + mark
}
