// Package promise provides a value that settles exactly once.
package promise

import (
	"context"
	"sync"
)

// Promise is settled at most once, either with a value or an error.
// Waiters block on Done or Wait; later settlements are ignored.
type Promise[T any] struct {
	once sync.Once
	done chan struct{}
	val  T
	err  error
}

// New returns an unsettled promise
func New[T any]() *Promise[T] {
	return &Promise[T]{done: make(chan struct{})}
}

// Resolve settles the promise with v. Returns false if already settled.
func (p *Promise[T]) Resolve(v T) bool {
	return p.settle(v, nil)
}

// Reject settles the promise with err. Returns false if already settled.
func (p *Promise[T]) Reject(err error) bool {
	var zero T
	return p.settle(zero, err)
}

func (p *Promise[T]) settle(v T, err error) bool {
	settled := false
	p.once.Do(func() {
		p.val, p.err = v, err
		close(p.done)
		settled = true
	})
	return settled
}

// Done is closed once the promise settles
func (p *Promise[T]) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the promise settles or ctx is done
func (p *Promise[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		return p.val, p.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
