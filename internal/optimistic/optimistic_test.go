package optimistic

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunner_Run(t *testing.T) {
	r, err := NewRunner(nil, nil)
	require.NoError(t, err)

	t.Run("Persisted", func(t *testing.T) {
		state := 1
		err := r.Run(context.Background(), Mutation{
			Name:    "set",
			Apply:   func() { state = 2 },
			Persist: func(context.Context) error { return nil },
			Revert:  func() { state = 1 },
		})
		require.NoError(t, err)
		assert.Equal(t, 2, state)
	})

	t.Run("RolledBack", func(t *testing.T) {
		boom := errors.New("write rejected")
		state := 1
		var seen int
		err := r.Run(context.Background(), Mutation{
			Name:  "set",
			Apply: func() { state = 2 },
			Persist: func(context.Context) error {
				seen = state
				return boom
			},
			Revert: func() { state = 1 },
		})
		require.ErrorIs(t, err, boom)
		assert.Equal(t, 2, seen, "persist must observe the applied state")
		assert.Equal(t, 1, state)
	})
}

func TestRunner_PersistOnly(t *testing.T) {
	r, err := NewRunner(nil, nil)
	require.NoError(t, err)

	calls := 0
	require.NoError(t, r.Run(context.Background(), Mutation{
		Name:    "write",
		Persist: func(context.Context) error { calls++; return nil },
	}))
	boom := errors.New("write rejected")
	require.ErrorIs(t, r.Run(context.Background(), Mutation{
		Name:    "write",
		Persist: func(context.Context) error { calls++; return boom },
	}), boom)
	assert.Equal(t, 2, calls)
}

func TestLocks(t *testing.T) {
	t.Run("SerializesSameKey", func(t *testing.T) {
		var l Locks
		var active, peak atomic.Int32
		var wg sync.WaitGroup
		for range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock, err := l.Lock(context.Background(), "k")
				if !assert.NoError(t, err) {
					return
				}
				defer unlock()
				n := active.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				active.Add(-1)
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), peak.Load())
		assert.Zero(t, l.Len())
	})

	t.Run("IndependentKeys", func(t *testing.T) {
		var l Locks
		unlockA, err := l.Lock(context.Background(), "a")
		require.NoError(t, err)
		defer unlockA()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		unlockB, err := l.Lock(ctx, "b")
		require.NoError(t, err)
		unlockB()
		assert.Equal(t, 1, l.Len())
	})

	t.Run("ContextCancelled", func(t *testing.T) {
		var l Locks
		unlock, err := l.Lock(context.Background(), "k")
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_, err = l.Lock(ctx, "k")
		require.ErrorIs(t, err, context.DeadlineExceeded)

		unlock()
		unlock()
		assert.Zero(t, l.Len())
	})
}
