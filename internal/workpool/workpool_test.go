package workpool

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

func TestPool_RunsSubmittedJobs(t *testing.T) {
	p := New("test", 4, 16)

	var n atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		require.NoError(t, p.Submit(func(ctx context.Context) {
			defer wg.Done()
			n.Add(1)
		}))
	}
	wg.Wait()
	p.Close()

	assert.EqualValues(t, 16, n.Load())
	assert.Zero(t, p.Dropped())
}

func TestPool_SubmitReportsErrQueueFullWithoutBlocking(t *testing.T) {
	block := make(chan struct{})
	p := New("saturate", 1, 1)
	t.Cleanup(func() { close(block) })

	// Occupy the single worker so the queue fills up behind it.
	require.NoError(t, p.Submit(func(ctx context.Context) { <-block }))
	time.Sleep(10 * time.Millisecond) // let the worker pick up the job above
	require.NoError(t, p.Submit(func(ctx context.Context) { <-block }))

	err := p.Submit(func(ctx context.Context) {})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrQueueFull))
	assert.Equal(t, int64(1), p.Dropped())
}

func TestPool_CloseWaitsForQueuedWork(t *testing.T) {
	p := New("drain", 2, 8)

	var finished atomic.Bool
	require.NoError(t, p.Submit(func(ctx context.Context) {
		time.Sleep(10 * time.Millisecond)
		finished.Store(true)
	}))

	p.Close()
	assert.True(t, finished.Load())
}
