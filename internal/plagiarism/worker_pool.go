package plagiarism

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
)

// ErrPoolClosed is returned by Submit after Close.
var ErrPoolClosed = errors.New("worker pool is closed")

type Job interface {
	Execute(ctx context.Context) error
}

type WorkerPool struct {
	workers  int
	jobQueue chan Job
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	logger   zerolog.Logger

	mu     sync.RWMutex
	closed bool
}

// creates a new worker pool; size <= 0 means one worker per CPU
func NewWorkerPool(ctx context.Context, size int, logger zerolog.Logger) *WorkerPool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	logger.Info().
		Int("totalCPU", runtime.NumCPU()).
		Int("workers", size).
		Msg("Worker pool initialized")
	poolCtx, cancel := context.WithCancel(ctx)

	pool := &WorkerPool{
		workers:  size,
		jobQueue: make(chan Job, size*2), // Buffer 2x the worker count
		ctx:      poolCtx,
		cancel:   cancel,
		logger:   logger,
	}

	// Start workers
	pool.start()

	return pool
}

// starts all worker goroutines
func (p *WorkerPool) start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// worker goroutine that processes jobs until the queue is closed. Queued
// jobs always run, even after cancellation, so that their completion
// signals fire; they see the canceled context and bail out early.
func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	for job := range p.jobQueue {
		if err := job.Execute(p.ctx); err != nil {
			p.logger.Debug().Err(err).Int("worker", id).Msg("Worker job failed")
		}
	}
}

// submits a job to the pool
func (p *WorkerPool) Submit(job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case <-p.ctx.Done():
		return p.ctx.Err()
	case p.jobQueue <- job:
		return nil
	}
}

// closes the worker pool and waits for all workers to finish
func (p *WorkerPool) Close() {
	p.cancel()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobQueue)
	p.mu.Unlock()

	p.wg.Wait()
}

// Err reports why the pool no longer runs jobs: ErrPoolClosed after Close,
// or the cancellation of the context it was created with. Nil while live.
func (p *WorkerPool) Err() error {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return ErrPoolClosed
	}
	return p.ctx.Err()
}

// returns the number of workers
func (p *WorkerPool) Size() int {
	return p.workers
}
