package plagiarism

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RishiKendai/plagscan/internal/metrics"
	"github.com/RishiKendai/plagscan/internal/models"
	"github.com/rs/zerolog"
)

// SweepJob compares one source document against every other document of the
// corpus and publishes the whole batch with a single send.
type SweepJob struct {
	RunCtx     context.Context
	Source     Document
	Corpus     []Document
	Cache      *signatureCache
	Timeout    time.Duration
	ResultChan chan<- Batch
	FailChan   chan<- models.FailedDocument
	Done       *sync.WaitGroup
	Finished   *atomic.Int64
	Logger     zerolog.Logger
	Metrics    *metrics.Metrics
}

// Execute runs the sweep. It is canceled by either the pool context or the
// run context. With a timeout set, the source's own work (building its
// signature and comparing) must fit in it; time spent waiting for another
// document's signature is charged to that document instead.
func (j *SweepJob) Execute(ctx context.Context) error {
	defer j.Done.Done()

	baseCtx, cancel := context.WithCancel(j.RunCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	batch, err := j.sweep(baseCtx)
	finished := j.Finished.Add(1)
	if err != nil {
		j.Metrics.DocumentDone("failed")
		j.Logger.Warn().Err(err).Str("document", j.Source.ID).Msg("Document failed")
		j.FailChan <- models.FailedDocument{
			ID:     j.Source.ID,
			Path:   j.Source.Path,
			Reason: err.Error(),
		}
		return err
	}

	j.Metrics.DocumentDone("compared")
	j.Metrics.ComparisonsDone(len(batch.Results))
	j.Logger.Debug().
		Str("document", j.Source.ID).
		Int("comparisons", len(batch.Results)).
		Int64("finished", finished).
		Int("total", len(j.Corpus)).
		Msg("Sweep completed")

	// Buffered to the corpus size; never blocks.
	j.ResultChan <- batch
	return nil
}

func (j *SweepJob) sweep(ctx context.Context) (Batch, error) {
	started := time.Now()

	ownCtx := ctx
	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ownCtx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}
	src, err := j.Cache.Get(ownCtx, j.Source)
	if err != nil {
		return Batch{}, interruptErr(err)
	}

	batch := Batch{
		SourceID:   j.Source.ID,
		SourcePath: j.Source.Path,
		Results:    make([]models.ComparisonResult, 0, len(j.Corpus)),
	}

	var waited time.Duration
	for _, target := range j.Corpus {
		if target.Path == j.Source.Path || target.ID == j.Source.ID {
			continue
		}
		if err := ctx.Err(); err != nil {
			return Batch{}, interruptErr(err)
		}
		if j.Timeout > 0 && time.Since(started)-waited > j.Timeout {
			return Batch{}, interruptErr(context.DeadlineExceeded)
		}

		fetchStart := time.Now()
		dst, err := j.Cache.Get(ctx, target)
		waited += time.Since(fetchStart)
		if err != nil {
			var readErr *DocumentReadError
			if errors.As(err, &readErr) {
				// The target's own sweep reports it.
				continue
			}
			return Batch{}, interruptErr(err)
		}

		similarity, err := Estimate(src, dst)
		if err != nil {
			return Batch{}, fmt.Errorf("failed to compare with %s: %w", target.ID, err)
		}

		batch.Results = append(batch.Results, models.ComparisonResult{
			SourceID:   j.Source.ID,
			TargetID:   target.ID,
			Similarity: similarity,
		})
	}

	return batch, nil
}

func interruptErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("comparison sweep timed out: %w", err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("comparison sweep canceled: %w", err)
	}
	return err
}

// Options configures an Engine.
type Options struct {
	Pool            *WorkerPool
	Source          Source
	Hasher          *MinHasher
	DocumentTimeout time.Duration
	Status          StatusReporter
	Metrics         *metrics.Metrics
	Logger          zerolog.Logger
}

// Engine runs all-pairs comparisons over a worker pool.
type Engine struct {
	pool            *WorkerPool
	source          Source
	hasher          *MinHasher
	documentTimeout time.Duration
	status          StatusReporter
	metrics         *metrics.Metrics
	logger          zerolog.Logger
}

func NewEngine(opts Options) *Engine {
	hasher := opts.Hasher
	if hasher == nil {
		hasher = NewMinHasher(DefaultNumPerm, DefaultSeed)
	}
	status := opts.Status
	if status == nil {
		status = NewLogStatusReporter(opts.Logger)
	}

	return &Engine{
		pool:            opts.Pool,
		source:          opts.Source,
		hasher:          hasher,
		documentTimeout: opts.DocumentTimeout,
		status:          status,
		metrics:         opts.Metrics,
		logger:          opts.Logger,
	}
}

// NumPerm returns the signature length of the engine's hasher.
func (e *Engine) NumPerm() int {
	return e.hasher.NumPerm()
}

// Run compares every document with every other one and aggregates the
// results. All sweeps finish before any result is read. Documents that
// cannot be read are listed in Report.Failed and appear in no row.
func (e *Engine) Run(ctx context.Context, runID string, canon *Canonicalizer, docs []Document) (*models.Report, error) {
	started := time.Now()
	e.updateStatus(ctx, runID, models.StepInit)

	cache := newSignatureCache(e.source, canon, e.hasher, e.metrics, e.documentTimeout)
	resultChan := make(chan Batch, len(docs))
	failChan := make(chan models.FailedDocument, len(docs))
	var wg sync.WaitGroup
	var finished atomic.Int64

	// Submit one sweep per document. A pool that stops accepting jobs ends
	// the whole run; none of its documents are at fault.
	var dispatchErr error
	for _, doc := range docs {
		wg.Add(1)
		job := &SweepJob{
			RunCtx:     ctx,
			Source:     doc,
			Corpus:     docs,
			Cache:      cache,
			Timeout:    e.documentTimeout,
			ResultChan: resultChan,
			FailChan:   failChan,
			Done:       &wg,
			Finished:   &finished,
			Logger:     e.logger,
			Metrics:    e.metrics,
		}

		if err := e.pool.Submit(job); err != nil {
			wg.Done()
			e.logger.Error().Err(err).Str("document", doc.ID).Msg("Failed to submit job")
			dispatchErr = err
			break
		}
	}
	e.updateStatus(ctx, runID, models.StepDispatched)

	// Barrier: nothing is read before every sweep has published.
	e.updateStatus(ctx, runID, models.StepCollecting)
	wg.Wait()
	close(resultChan)
	close(failChan)

	if err := ctx.Err(); err != nil {
		e.fail(runID, started)
		return nil, fmt.Errorf("comparison run canceled: %w", err)
	}
	// Sweeps cut short by a stopped pool would otherwise look like
	// unreadable documents.
	if dispatchErr == nil {
		dispatchErr = e.pool.Err()
	}
	if dispatchErr != nil {
		e.fail(runID, started)
		return nil, fmt.Errorf("comparison run interrupted: %w", dispatchErr)
	}

	failed := make([]models.FailedDocument, 0)
	failedIDs := make(map[string]bool)
	for f := range failChan {
		failed = append(failed, f)
		failedIDs[f.ID] = true
	}
	sort.Slice(failed, func(i, j int) bool { return failed[i].Path < failed[j].Path })

	batches := make([]Batch, 0, len(docs))
	for b := range resultChan {
		if len(failedIDs) > 0 {
			b.Results = dropTargets(b.Results, failedIDs)
		}
		batches = append(batches, b)
	}

	pairwise, summary, err := Aggregate(batches)
	if err != nil {
		e.fail(runID, started)
		return nil, fmt.Errorf("failed to aggregate results: %w", err)
	}
	e.updateStatus(ctx, runID, models.StepAggregated)

	report := &models.Report{
		RunID:     runID,
		NumPerm:   e.hasher.NumPerm(),
		Documents: len(docs),
		Pairwise:  pairwise,
		Summary:   summary,
		Failed:    failed,
		Status:    "completed",
		StartedAt: started,
		CreatedAt: time.Now(),
	}

	e.updateStatus(ctx, runID, models.StepDone)
	e.metrics.ObserveRun("completed", time.Since(started))

	e.logger.Info().
		Str("runId", runID).
		Int("documents", len(docs)).
		Int("rows", len(pairwise)).
		Int("failed", len(failed)).
		Int("signatures", cache.Len()).
		Dur("elapsed", time.Since(started)).
		Msg("Comparison run completed")

	return report, nil
}

func (e *Engine) fail(runID string, started time.Time) {
	// The run context may already be done; record the failure regardless.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	e.updateStatus(ctx, runID, models.StepFailed)
	e.metrics.ObserveRun("failed", time.Since(started))
}

func (e *Engine) updateStatus(ctx context.Context, runID string, step models.Step) {
	if err := e.status.ReportStep(ctx, runID, step); err != nil {
		e.logger.Warn().Err(err).Str("runId", runID).Str("step", string(step)).Msg("Failed to update run status")
	}
}

// dropTargets removes rows pointing at documents that failed.
func dropTargets(results []models.ComparisonResult, failedIDs map[string]bool) []models.ComparisonResult {
	kept := results[:0]
	for _, r := range results {
		if !failedIDs[r.TargetID] {
			kept = append(kept, r)
		}
	}
	return kept
}
