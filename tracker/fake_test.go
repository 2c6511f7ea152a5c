package tracker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/teranos/reportwatch/errors"
)

// fakeConn is an in-memory Conn driven by the test
type fakeConn struct {
	frames chan []byte
	closed chan struct{}
	once   sync.Once

	mu          sync.Mutex
	closeCode   int
	closeReason string
	dropErr     error
}

func newFakeConn() *fakeConn {
	return &fakeConn{frames: make(chan []byte, 16), closed: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case f := <-c.frames:
		return f, nil
	case <-c.closed:
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.dropErr != nil {
			return nil, c.dropErr
		}
		return nil, errors.New("use of closed network connection")
	}
}

func (c *fakeConn) CloseWithReason(code int, reason string) error {
	c.mu.Lock()
	if c.closeReason == "" {
		c.closeCode, c.closeReason = code, reason
	}
	c.mu.Unlock()
	return c.Close()
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// drop simulates the network going away
func (c *fakeConn) drop(err error) {
	c.mu.Lock()
	c.dropErr = err
	c.mu.Unlock()
	c.Close()
}

func (c *fakeConn) send(s string) { c.frames <- []byte(s) }

func (c *fakeConn) reason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeReason
}

func (c *fakeConn) waitClosed(t *testing.T) {
	t.Helper()
	select {
	case <-c.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("connection was not closed")
	}
}

// fakeDialer hands out queued conns; an empty queue blocks until ctx ends
type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	err   error
	urls  []string
	onDial func(url string)
}

func (d *fakeDialer) queue(c *fakeConn) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.conns = append(d.conns, c)
	return c
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.mu.Lock()
	d.urls = append(d.urls, url)
	onDial, err := d.onDial, d.err
	var c *fakeConn
	if len(d.conns) > 0 {
		c, d.conns = d.conns[0], d.conns[1:]
	}
	d.mu.Unlock()

	if onDial != nil {
		onDial(url)
	}
	if err != nil {
		return nil, err
	}
	if c == nil {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return c, nil
}

func (d *fakeDialer) dialed() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.urls...)
}

// recorder collects every event published on a tracker's bus
type recorder struct {
	mu     sync.Mutex
	events []Event
	ch     chan Event
}

func record(tr *Tracker) *recorder {
	r := &recorder{ch: make(chan Event, 64)}
	tr.Subscribe(func(e Event) {
		r.mu.Lock()
		r.events = append(r.events, e)
		r.mu.Unlock()
		r.ch <- e
	})
	return r
}

func (r *recorder) next(t *testing.T) Event {
	t.Helper()
	select {
	case e := <-r.ch:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

// until returns events up to and including the first one of typ
func (r *recorder) until(t *testing.T, typ EventType) []Event {
	t.Helper()
	var out []Event
	for {
		e := r.next(t)
		out = append(out, e)
		if e.Type == typ {
			return out
		}
	}
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recorder) terminals(entityID string) []Event {
	var out []Event
	for _, e := range r.all() {
		if e.Terminal && e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out
}

func types(events []Event) []EventType {
	out := make([]EventType, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

func waitCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func requireJobError(t *testing.T, err error, target error) *JobError {
	t.Helper()
	require.Error(t, err)
	require.True(t, errors.Is(err, target), "expected %v, got %v", target, err)
	var je *JobError
	require.True(t, errors.As(err, &je), "expected *JobError, got %T", err)
	return je
}
