package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrefixSubscription(t *testing.T) {
	t.Parallel()
	b := New()
	all, unsubAll := b.Subscribe(4)
	defer unsubAll()
	lanes, unsubLanes := b.Subscribe(4, "lane.")
	defer unsubLanes()

	b.Publish(Event{Type: "lane.started"})
	b.Publish(Event{Type: "config.reloaded"})

	assert.Len(t, all, 2)
	require.Len(t, lanes, 1)
	e := <-lanes
	assert.Equal(t, "lane.started", e.Type)
	assert.False(t, e.Time.IsZero())
}

func TestSlowSubscriberDrops(t *testing.T) {
	t.Parallel()
	b := New()
	_, unsub := b.Subscribe(1)
	defer unsub()

	for i := 0; i < 3; i++ {
		b.Publish(Event{Type: "x"})
	}
	st := b.Stats()
	assert.Equal(t, uint64(3), st.Published)
	assert.Equal(t, uint64(1), st.Delivered)
	assert.Equal(t, uint64(2), st.Dropped)
}

func TestUnsubscribeClosesAndIsIdempotent(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(1)
	unsub()
	unsub()
	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, b.Stats().Subscribers)

	assert.NotPanics(t, func() { b.Publish(Event{Type: "after"}) })
}
