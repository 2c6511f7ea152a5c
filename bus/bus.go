// Package bus is a synchronous multi-subscriber fan-out.
//
// The bus knows nothing about jobs: every subscriber receives every event and
// filters for the entity it cares about.
package bus

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/teranos/reportwatch/logger"
)

// Listener receives published events
type Listener[T any] func(T)

type subscription[T any] struct {
	id uint64
	fn Listener[T]
}

// Bus delivers each published event to every current subscriber in
// subscription order. A panicking listener is recovered and logged; it does
// not stop delivery to the others or affect the publisher.
type Bus[T any] struct {
	mu     sync.RWMutex
	subs   []subscription[T]
	nextID uint64
	logger *zap.SugaredLogger
}

// New creates an empty bus. A nil logger falls back to the "bus" component logger.
func New[T any](log *zap.SugaredLogger) *Bus[T] {
	if log == nil {
		log = logger.ComponentLogger("bus")
	}
	return &Bus[T]{logger: log}
}

// Subscribe registers fn and returns a function that removes it.
// The returned function is safe to call more than once.
func (b *Bus[T]) Subscribe(fn Listener[T]) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription[T]{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus[T]) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish calls every listener synchronously before returning.
// Listeners may subscribe or unsubscribe while being called; changes take
// effect from the next Publish.
func (b *Bus[T]) Publish(evt T) {
	b.mu.RLock()
	subs := make([]subscription[T], len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		b.deliver(s, evt)
	}
}

func (b *Bus[T]) deliver(s subscription[T], evt T) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Errorw("Listener panicked",
				"subscriber", s.id,
				logger.FieldError, fmt.Sprint(r))
		}
	}()
	s.fn(evt)
}

// Len returns the number of current subscribers
func (b *Bus[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Channel subscribes a buffered channel to the bus. Sends are non-blocking:
// when the buffer is full the event is dropped for this channel only.
// The channel is unsubscribed and closed once ctx is done.
func (b *Bus[T]) Channel(ctx context.Context, buffer int) <-chan T {
	ch := make(chan T, buffer)
	var (
		mu     sync.Mutex
		closed bool
	)

	unsubscribe := b.Subscribe(func(evt T) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- evt:
		default:
			b.logger.Debugw("Subscriber channel full, dropping event", "buffer", buffer)
		}
	})

	go func() {
		<-ctx.Done()
		unsubscribe()
		mu.Lock()
		closed = true
		close(ch)
		mu.Unlock()
	}()

	return ch
}
