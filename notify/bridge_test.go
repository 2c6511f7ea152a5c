package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/teranos/reportwatch/bus"
	"github.com/teranos/reportwatch/frame"
	"github.com/teranos/reportwatch/tracker"
)

type collect struct {
	got []Notification
}

func (c *collect) Notify(n Notification) { c.got = append(c.got, n) }

func newTestBridge(sink Sink, opts ...BridgeOption) *Bridge {
	return NewBridge(sink, "en", append([]BridgeOption{WithBridgeLogger(zap.NewNop().Sugar())}, opts...)...)
}

func TestBridgeDeliversTerminalOnce(t *testing.T) {
	sink := &collect{}
	b := newTestBridge(sink)

	evt := terminal(frame.StatusSuccess)
	assert.True(t, b.Handle(evt))
	assert.False(t, b.Handle(evt))
	require.Len(t, sink.got, 1)
	assert.Equal(t, "a1", sink.got[0].EntityID)
}

func TestBridgeSeparatesJobsByStart(t *testing.T) {
	sink := &collect{}
	b := newTestBridge(sink)

	first := terminal(frame.StatusFailure)
	second := terminal(frame.StatusSuccess)
	second.StartedAt = started.Add(time.Minute)

	assert.True(t, b.Handle(first))
	assert.True(t, b.Handle(second))
	assert.Len(t, sink.got, 2)
}

func TestBridgeSkipsProgress(t *testing.T) {
	sink := &collect{}
	b := newTestBridge(sink)
	assert.False(t, b.Handle(tracker.Event{Type: tracker.EventMessage, EntityID: "a1", Status: frame.StatusProgress}))
	assert.Empty(t, sink.got)
}

func TestBridgeDedupIsBounded(t *testing.T) {
	sink := &collect{}
	b := newTestBridge(sink, WithDedupSize(2))

	mk := func(i int) tracker.Event {
		e := terminal(frame.StatusSuccess)
		e.StartedAt = started.Add(time.Duration(i) * time.Second)
		return e
	}
	for i := 0; i < 3; i++ {
		require.True(t, b.Handle(mk(i)))
	}
	// oldest entry was evicted, newest still suppressed
	assert.True(t, b.Handle(mk(0)))
	assert.False(t, b.Handle(mk(2)))
}

func TestBridgeAttach(t *testing.T) {
	var got []Notification
	events := bus.New[tracker.Event](zap.NewNop().Sugar())
	b := newTestBridge(SinkFunc(func(n Notification) { got = append(got, n) }))

	detach := b.Attach(events)
	events.Publish(terminal(frame.StatusTimeout))
	require.Len(t, got, 1)
	assert.Equal(t, KindError, got[0].Kind)

	detach()
	later := terminal(frame.StatusSuccess)
	later.StartedAt = started.Add(time.Hour)
	events.Publish(later)
	assert.Len(t, got, 1)
}
