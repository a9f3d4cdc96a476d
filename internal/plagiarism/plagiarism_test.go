package plagiarism

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/RishiKendai/plagscan/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource serves documents from memory. Paths listed in block never
// return until the read context is done.
type fakeSource struct {
	mu    sync.Mutex
	docs  map[string]string
	errs  map[string]error
	block map[string]bool
	reads map[string]int
}

func newFakeSource(docs map[string]string) *fakeSource {
	return &fakeSource{
		docs:  docs,
		errs:  make(map[string]error),
		block: make(map[string]bool),
		reads: make(map[string]int),
	}
}

func (f *fakeSource) ReadDocument(ctx context.Context, path string) (string, error) {
	f.mu.Lock()
	f.reads[path]++
	blocked := f.block[path]
	err := f.errs[path]
	text, ok := f.docs[path]
	f.mu.Unlock()

	if blocked {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("no such document: %s", path)
	}
	return text, nil
}

func (f *fakeSource) readCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads[path]
}

func docsOf(paths ...string) []Document {
	docs := make([]Document, len(paths))
	for i, p := range paths {
		docs[i] = NewDocument(p)
	}
	return docs
}

func newTestEngine(t *testing.T, source Source, timeout time.Duration) *Engine {
	t.Helper()
	pool := NewWorkerPool(context.Background(), 4, zerolog.Nop())
	t.Cleanup(pool.Close)

	return NewEngine(Options{
		Pool:            pool,
		Source:          source,
		DocumentTimeout: timeout,
		Logger:          zerolog.Nop(),
	})
}

func runEngine(t *testing.T, engine *Engine, docs []Document) *models.Report {
	t.Helper()
	rep, err := engine.Run(context.Background(), "run-1", NewCanonicalizer(cComments, nil), docs)
	require.NoError(t, err)
	return rep
}

func TestRunIdenticalDocuments(t *testing.T) {
	source := newFakeSource(map[string]string{
		"/c/a.c": "int x;\nint y; // note\n",
		"/c/b.c": "/* header */int y;\nint x;\n",
	})

	rep := runEngine(t, newTestEngine(t, source, 0), docsOf("/c/a.c", "/c/b.c"))

	assert.Equal(t, []models.ComparisonResult{
		{SourceID: "a.c", TargetID: "b.c", Similarity: 1},
		{SourceID: "b.c", TargetID: "a.c", Similarity: 1},
	}, rep.Pairwise)
	require.Len(t, rep.Summary, 2)
	assert.Equal(t, 1.0, *rep.Summary[0].MaxSimilarity)
	assert.Equal(t, 1.0, *rep.Summary[1].MaxSimilarity)
	assert.Empty(t, rep.Failed)
	assert.Equal(t, DefaultNumPerm, rep.NumPerm)
}

func TestRunDisjointDocuments(t *testing.T) {
	source := newFakeSource(map[string]string{
		"/c/a.c": "alpha beta\ngamma",
		"/c/b.c": "one two\nthree",
	})

	rep := runEngine(t, newTestEngine(t, source, 0), docsOf("/c/a.c", "/c/b.c"))

	require.Len(t, rep.Pairwise, 2)
	for _, r := range rep.Pairwise {
		assert.Equal(t, 0.0, r.Similarity)
	}
}

func TestRunSingleDocument(t *testing.T) {
	source := newFakeSource(map[string]string{"/c/A.txt": "hello"})

	rep := runEngine(t, newTestEngine(t, source, 0), docsOf("/c/A.txt"))

	assert.Empty(t, rep.Pairwise)
	require.Len(t, rep.Summary, 1)
	assert.Equal(t, "A.txt", rep.Summary[0].ID)
	assert.Nil(t, rep.Summary[0].MaxSimilarity)
}

func TestRunEmptyCorpus(t *testing.T) {
	rep := runEngine(t, newTestEngine(t, newFakeSource(nil), 0), nil)

	assert.Empty(t, rep.Pairwise)
	assert.Empty(t, rep.Summary)
}

func TestRunComparesEveryOrderedPair(t *testing.T) {
	docs := map[string]string{}
	var paths []string
	for i := 0; i < 7; i++ {
		p := fmt.Sprintf("/c/doc%d.c", i)
		docs[p] = fmt.Sprintf("shared line\nint v%d;\nint w%d;", i, i%3)
		paths = append(paths, p)
	}
	source := newFakeSource(docs)

	rep := runEngine(t, newTestEngine(t, source, 0), docsOf(paths...))

	require.Len(t, rep.Pairwise, 7*6)
	seen := make(map[string]bool)
	for i, r := range rep.Pairwise {
		assert.NotEqual(t, r.SourceID, r.TargetID)
		key := r.SourceID + "|" + r.TargetID
		assert.False(t, seen[key], "duplicate row %s", key)
		seen[key] = true
		if i > 0 {
			assert.LessOrEqual(t, rep.Pairwise[i-1].SourceID, r.SourceID)
		}
	}
	for _, p := range paths {
		assert.Equal(t, 1, source.readCount(p), "each document is read once")
	}
}

func TestRunIsDeterministic(t *testing.T) {
	docs := map[string]string{}
	var paths []string
	for i := 0; i < 12; i++ {
		p := fmt.Sprintf("/c/f%02d.c", i)
		docs[p] = fmt.Sprintf("int main() {\nreturn %d;\n}\nputs(%d);", i%4, i%5)
		paths = append(paths, p)
	}

	first := runEngine(t, newTestEngine(t, newFakeSource(docs), 0), docsOf(paths...))
	second := runEngine(t, newTestEngine(t, newFakeSource(docs), 0), docsOf(paths...))

	assert.Equal(t, first.Pairwise, second.Pairwise)
	assert.Equal(t, first.Summary, second.Summary)
}

func TestRunIsolatesUnreadableDocument(t *testing.T) {
	source := newFakeSource(map[string]string{
		"/c/a.c": "int a;",
		"/c/c.c": "int a;",
	})
	source.errs["/c/bad.c"] = errors.New("document is not valid UTF-8")

	rep := runEngine(t, newTestEngine(t, source, 0), docsOf("/c/a.c", "/c/bad.c", "/c/c.c"))

	assert.Equal(t, []models.ComparisonResult{
		{SourceID: "a.c", TargetID: "c.c", Similarity: 1},
		{SourceID: "c.c", TargetID: "a.c", Similarity: 1},
	}, rep.Pairwise)
	require.Len(t, rep.Failed, 1)
	assert.Equal(t, "bad.c", rep.Failed[0].ID)
	assert.Equal(t, "/c/bad.c", rep.Failed[0].Path)
	assert.Contains(t, rep.Failed[0].Reason, "not valid UTF-8")
	for _, s := range rep.Summary {
		assert.NotEqual(t, "bad.c", s.ID)
	}
}

func TestRunTimesOutSlowDocument(t *testing.T) {
	source := newFakeSource(map[string]string{
		"/c/a.c": "int a;\nint b;",
		"/c/b.c": "int a;",
	})
	source.block["/c/slow.c"] = true

	rep := runEngine(t, newTestEngine(t, source, 50*time.Millisecond), docsOf("/c/a.c", "/c/b.c", "/c/slow.c"))

	require.Len(t, rep.Failed, 1)
	assert.Equal(t, "slow.c", rep.Failed[0].ID)
	require.Len(t, rep.Pairwise, 2)
	for _, r := range rep.Pairwise {
		assert.NotEqual(t, "slow.c", r.TargetID)
	}
}

func TestRunCanceledContext(t *testing.T) {
	source := newFakeSource(map[string]string{"/c/a.c": "a", "/c/b.c": "b"})
	engine := newTestEngine(t, source, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Run(ctx, "run-1", NewCanonicalizer(nil, nil), docsOf("/c/a.c", "/c/b.c"))
	assert.ErrorIs(t, err, context.Canceled)
}

type recordingStatus struct {
	mu    sync.Mutex
	steps []models.Step
}

func (r *recordingStatus) ReportStep(_ context.Context, _ string, step models.Step) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, step)
	return nil
}

func TestRunReportsSteps(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 2, zerolog.Nop())
	defer pool.Close()
	status := &recordingStatus{}
	engine := NewEngine(Options{
		Pool:   pool,
		Source: newFakeSource(map[string]string{"/c/a.c": "a", "/c/b.c": "b"}),
		Status: status,
		Logger: zerolog.Nop(),
	})

	runEngine(t, engine, docsOf("/c/a.c", "/c/b.c"))

	assert.Equal(t, []models.Step{
		models.StepInit,
		models.StepDispatched,
		models.StepCollecting,
		models.StepAggregated,
		models.StepDone,
	}, status.steps)
}

func TestRunFailsWhenPoolIsStopped(t *testing.T) {
	docs := map[string]string{"/c/a.c": "int a;", "/c/b.c": "int a;"}

	tests := map[string]func() *WorkerPool{
		"pool context canceled": func() *WorkerPool {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			return NewWorkerPool(ctx, 2, zerolog.Nop())
		},
		"pool closed": func() *WorkerPool {
			pool := NewWorkerPool(context.Background(), 2, zerolog.Nop())
			pool.Close()
			return pool
		},
	}

	for name, newPool := range tests {
		t.Run(name, func(t *testing.T) {
			pool := newPool()
			t.Cleanup(pool.Close)
			status := &recordingStatus{}
			engine := NewEngine(Options{
				Pool:   pool,
				Source: newFakeSource(docs),
				Status: status,
				Logger: zerolog.Nop(),
			})

			rep, err := engine.Run(context.Background(), "run-1", NewCanonicalizer(nil, nil), docsOf("/c/a.c", "/c/b.c"))

			require.Error(t, err)
			assert.Nil(t, rep)
			assert.Contains(t, err.Error(), "interrupted")
			require.NotEmpty(t, status.steps)
			assert.Equal(t, models.StepFailed, status.steps[len(status.steps)-1])
		})
	}
}
