package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planner/internal/task/lane"
	"planner/internal/task/repetition"
	"planner/internal/task/sleep"
)

type note struct {
	Title string   `json:"title"`
	Tags  []string `json:"tags,omitempty"`
}

func sampleScheduler(t *testing.T) *Scheduler[note] {
	t.Helper()
	h := repetition.HandlerFunc(func(now, due time.Time) (time.Time, bool) { return time.Time{}, false })
	s, err := New(map[string][]lane.Task[note]{
		"work": {
			{Payload: note{Title: "standup", Tags: []string{"team"}}, Due: start, Rule: repetition.Weekly(repetition.Finite(3))},
			{Payload: note{Title: "backup"}, Due: start.Add(time.Hour), Rule: repetition.ConstantGap(90*time.Minute, repetition.Infinite()),
				Sleep: sleep.HighPrecision(sleep.Precision{NativeAccuracy: time.Millisecond, Spin: sleep.SpinHint})},
			{Payload: note{Title: "cron"}, Due: start.Add(2 * time.Hour), Rule: repetition.Custom()},
		},
		"home": {
			{Payload: note{Title: "rent"}, Due: start.AddDate(0, 0, 12), Rule: repetition.Monthly(repetition.Infinite())},
			{Payload: note{Title: "birthday"}, Due: time.Date(2028, 2, 29, 8, 0, 0, 0, time.UTC), Rule: repetition.Yearly(repetition.Infinite())},
		},
	}, map[string][]lane.Task[note]{
		"home": {{Payload: note{Title: "old"}, Due: start.AddDate(0, -1, 0), Rule: repetition.Once()}},
	}, WithCustomHandler(h))
	require.NoError(t, err)
	return s
}

func requireSameState(t *testing.T, want, got *Scheduler[note]) {
	t.Helper()
	for _, m := range []struct {
		a, b map[string][]lane.Task[note]
	}{{want.Lanes(), got.Lanes()}, {want.Histories(), got.Histories()}} {
		require.Len(t, m.b, len(m.a))
		for name, tasks := range m.a {
			other, ok := m.b[name]
			require.True(t, ok, name)
			require.Len(t, other, len(tasks), name)
			for i := range tasks {
				assert.Equal(t, tasks[i].Payload, other[i].Payload)
				assert.Equal(t, tasks[i].Rule, other[i].Rule)
				assert.Equal(t, tasks[i].Sleep, other[i].Sleep)
				assert.True(t, tasks[i].Due.Equal(other[i].Due), "%s/%d: %s != %s", name, i, tasks[i].Due, other[i].Due)
				_, wo := tasks[i].Due.Zone()
				_, go_ := other[i].Due.Zone()
				assert.Equal(t, wo, go_)
			}
		}
	}
}

func TestCodecRoundTrip(t *testing.T) {
	t.Parallel()
	s := sampleScheduler(t)
	h := repetition.HandlerFunc(func(now, due time.Time) (time.Time, bool) { return time.Time{}, false })

	for _, f := range []Format{FormatJSON, FormatYAML} {
		b, err := Encode(f, s)
		require.NoError(t, err, f)
		back, err := Decode[note](f, b, WithCustomHandler(h))
		require.NoError(t, err, "%s:\n%s", f, b)
		requireSameState(t, s, back)
	}
}

func TestDecodeRecreatesMissingHistory(t *testing.T) {
	t.Parallel()
	raw := `{
  "lanes": {
    "daily": [
      {"payload": {"title": "x"}, "due_date": "2026-10-19T09:00:00+02:00", "repetition": {"ConstantGap": {"gap": 86400, "count": {"Finite": 2}}}, "sleep_strategy": "Native"}
    ]
  },
  "history": {}
}`
	s, err := Decode[note](FormatJSON, []byte(raw))
	require.NoError(t, err)
	h, ok := s.History("daily")
	assert.True(t, ok)
	assert.Empty(t, h)

	tasks, _ := s.Lane("daily")
	require.Len(t, tasks, 1)
	assert.Equal(t, 24*time.Hour, tasks[0].Rule.Gap)
	_, off := tasks[0].Due.Zone()
	assert.Equal(t, 7200, off)
}

func TestDecodeYAML(t *testing.T) {
	t.Parallel()
	raw := `
lanes:
  weekly:
    - payload: {title: gym}
      due_date: "2026-10-19T18:00:00Z"
      repetition: {Weekly: {Finite: 2}}
      sleep_strategy: Native
`
	s, err := Decode[note](FormatYAML, []byte(raw))
	require.NoError(t, err)
	tasks, _ := s.Lane("weekly")
	require.Len(t, tasks, 1)
	assert.Equal(t, "gym", tasks[0].Payload.Title)
	assert.Equal(t, repetition.Weekly(repetition.Finite(2)), tasks[0].Rule)
}

func TestDecodeRejects(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"unknown field": `{"lanes": {}, "history": {}, "extra": 1}`,
		"trailing":      `{"lanes": {}, "history": {}} {}`,
		"bad gap":       `{"lanes": {"l": [{"payload": {}, "due_date": "2026-10-19T09:00:00Z", "repetition": {"ConstantGap": {"gap": 0, "count": "Infinite"}}, "sleep_strategy": "Native"}]}}`,
		"custom":        `{"lanes": {"l": [{"payload": {}, "due_date": "2026-10-19T09:00:00Z", "repetition": "Custom", "sleep_strategy": "Native"}]}}`,
	}
	for name, raw := range cases {
		_, err := Decode[note](FormatJSON, []byte(raw))
		assert.Error(t, err, name)
	}
	_, err := Decode[note]("toml", []byte(`{}`))
	assert.Error(t, err)
}

func TestFormatFromPath(t *testing.T) {
	t.Parallel()
	assert.Equal(t, FormatYAML, FormatFromPath("/tmp/state.YML"))
	assert.Equal(t, FormatYAML, FormatFromPath("state.yaml"))
	assert.Equal(t, FormatJSON, FormatFromPath("state.json"))
	assert.Equal(t, FormatJSON, FormatFromPath("state"))
}
