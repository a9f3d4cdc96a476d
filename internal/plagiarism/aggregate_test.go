package plagiarism

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/RishiKendai/plagscan/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func row(src, dst string, sim float64) models.ComparisonResult {
	return models.ComparisonResult{SourceID: src, TargetID: dst, Similarity: sim}
}

func TestAggregateOrdersBySourceRegardlessOfArrival(t *testing.T) {
	batchA := Batch{SourceID: "a.c", Results: []models.ComparisonResult{row("a.c", "c.c", 0.25), row("a.c", "b.c", 0.5)}}
	batchB := Batch{SourceID: "b.c", Results: []models.ComparisonResult{row("b.c", "a.c", 0.5), row("b.c", "c.c", 0)}}
	batchC := Batch{SourceID: "c.c", Results: []models.ComparisonResult{row("c.c", "a.c", 0.25), row("c.c", "b.c", 0)}}

	first, firstSummary, err := Aggregate([]Batch{batchC, batchA, batchB})
	require.NoError(t, err)
	second, secondSummary, err := Aggregate([]Batch{batchB, batchC, batchA})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, firstSummary, secondSummary)
	assert.Equal(t, []models.ComparisonResult{
		row("a.c", "c.c", 0.25), row("a.c", "b.c", 0.5),
		row("b.c", "a.c", 0.5), row("b.c", "c.c", 0),
		row("c.c", "a.c", 0.25), row("c.c", "b.c", 0),
	}, first)

	require.Len(t, firstSummary, 3)
	assert.Equal(t, "a.c", firstSummary[0].ID)
	assert.Equal(t, 0.5, *firstSummary[0].MaxSimilarity)
	assert.Equal(t, 0.5, *firstSummary[1].MaxSimilarity)
	assert.Equal(t, 0.25, *firstSummary[2].MaxSimilarity)
}

func TestAggregateIsCaseSensitive(t *testing.T) {
	pairwise, _, err := Aggregate([]Batch{
		{SourceID: "b.c", Results: []models.ComparisonResult{row("b.c", "B.c", 1)}},
		{SourceID: "B.c", Results: []models.ComparisonResult{row("B.c", "b.c", 1)}},
	})
	require.NoError(t, err)

	assert.Equal(t, "B.c", pairwise[0].SourceID)
	assert.Equal(t, "b.c", pairwise[1].SourceID)
}

func TestAggregateZeroSimilarityStillSetsMax(t *testing.T) {
	_, summary, err := Aggregate([]Batch{
		{SourceID: "a.c", Results: []models.ComparisonResult{row("a.c", "b.c", 0)}},
	})
	require.NoError(t, err)

	require.NotNil(t, summary[0].MaxSimilarity)
	assert.Equal(t, 0.0, *summary[0].MaxSimilarity)
}

func TestAggregateSourceWithoutPeers(t *testing.T) {
	pairwise, summary, err := Aggregate([]Batch{{SourceID: "A.txt"}})
	require.NoError(t, err)

	assert.Empty(t, pairwise)
	require.Len(t, summary, 1)
	assert.Equal(t, "A.txt", summary[0].ID)
	assert.Nil(t, summary[0].MaxSimilarity)
}

func TestAggregateRejectsMalformedBatches(t *testing.T) {
	tests := []struct {
		name  string
		batch Batch
	}{
		{"self pair", Batch{SourceID: "a.c", Results: []models.ComparisonResult{row("a.c", "a.c", 1)}}},
		{"foreign row", Batch{SourceID: "a.c", Results: []models.ComparisonResult{row("b.c", "c.c", 1)}}},
		{"out of range", Batch{SourceID: "a.c", Results: []models.ComparisonResult{row("a.c", "b.c", 1.5)}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Aggregate([]Batch{tt.batch})
			var aggErr *AggregationError
			assert.ErrorAs(t, err, &aggErr)
		})
	}
}

func TestIsPermanent(t *testing.T) {
	_, _, aggErr := Aggregate([]Batch{{SourceID: "a.c", Results: []models.ComparisonResult{row("a.c", "a.c", 1)}}})
	require.Error(t, aggErr)

	assert.True(t, IsPermanent(fmt.Errorf("failed to aggregate results: %w", aggErr)))
	assert.True(t, IsPermanent(&ConfigError{Field: "template", Err: errors.New("missing")}))
	assert.False(t, IsPermanent(errors.New("mongo unavailable")))
	assert.False(t, IsPermanent(fmt.Errorf("comparison run canceled: %w", context.Canceled)))
}
