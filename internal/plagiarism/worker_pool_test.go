package plagiarism

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	n  *atomic.Int64
	wg *sync.WaitGroup
}

func (j countingJob) Execute(ctx context.Context) error {
	defer j.wg.Done()
	j.n.Add(1)
	return nil
}

func TestWorkerPoolRunsEverySubmittedJob(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 3, zerolog.Nop())
	defer pool.Close()

	var n atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		require.NoError(t, pool.Submit(countingJob{n: &n, wg: &wg}))
	}
	wg.Wait()

	assert.Equal(t, int64(50), n.Load())
	assert.Equal(t, 3, pool.Size())
}

func TestWorkerPoolSubmitAfterClose(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 1, zerolog.Nop())
	pool.Close()
	pool.Close()

	var wg sync.WaitGroup
	err := pool.Submit(countingJob{n: new(atomic.Int64), wg: &wg})
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestWorkerPoolDefaultSize(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 0, zerolog.Nop())
	defer pool.Close()

	assert.Positive(t, pool.Size())
}

func TestWorkerPoolErr(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewWorkerPool(ctx, 1, zerolog.Nop())
	assert.NoError(t, pool.Err())

	cancel()
	assert.ErrorIs(t, pool.Err(), context.Canceled)

	pool.Close()
	assert.ErrorIs(t, pool.Err(), ErrPoolClosed)
}
