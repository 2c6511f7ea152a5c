package promise

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func settled[T any](p *Promise[T]) bool {
	select {
	case <-p.Done():
		return true
	default:
		return false
	}
}

func TestPromise_SettlesOnce(t *testing.T) {
	p := New[int]()
	assert.False(t, settled(p))

	assert.True(t, p.Resolve(1))
	assert.False(t, p.Resolve(2))
	assert.False(t, p.Reject(errors.New("late")))

	v, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestPromise_Reject(t *testing.T) {
	p := New[string]()
	boom := errors.New("boom")
	p.Reject(boom)

	assert.True(t, settled(p))
	v, err := p.Wait(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, v)
}

func TestPromise_WaitHonoursContext(t *testing.T) {
	p := New[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := p.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, settled(p))
}

func TestPromise_ConcurrentSettle(t *testing.T) {
	p := New[int]()
	var wg sync.WaitGroup
	wins := make(chan int, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if p.Resolve(i) {
				wins <- i
			}
		}(i)
	}
	wg.Wait()
	close(wins)

	var winners []int
	for w := range wins {
		winners = append(winners, w)
	}
	require.Len(t, winners, 1)
	v, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, winners[0], v)
}
