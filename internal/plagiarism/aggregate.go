package plagiarism

import (
	"sort"

	"github.com/RishiKendai/plagscan/internal/models"
)

// Batch is everything one sweep produced for its source document. A batch
// with no results still registers the source in the summary.
type Batch struct {
	SourceID   string
	SourcePath string
	Results    []models.ComparisonResult
}

// Aggregate flattens the batches into the pairwise table, ordered by source
// id, and folds the per-source maximum into the summary. The output does not
// depend on the order the batches arrived in.
func Aggregate(batches []Batch) ([]models.ComparisonResult, []models.SummaryEntry, error) {
	total := 0
	for _, b := range batches {
		total += len(b.Results)
	}

	// Rows of a batch keep their corpus order, so ordering the batches
	// orders the whole table. Equal ids (same file name in different
	// directories) fall back to the path.
	ordered := make([]Batch, len(batches))
	copy(ordered, batches)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].SourceID != ordered[j].SourceID {
			return ordered[i].SourceID < ordered[j].SourceID
		}
		return ordered[i].SourcePath < ordered[j].SourcePath
	})

	pairwise := make([]models.ComparisonResult, 0, total)
	for _, b := range ordered {
		for _, r := range b.Results {
			if r.SourceID != b.SourceID {
				return nil, nil, &AggregationError{SourceID: b.SourceID, Reason: "row source " + r.SourceID + " does not match batch"}
			}
			if r.SourceID == r.TargetID {
				return nil, nil, &AggregationError{SourceID: b.SourceID, Reason: "self comparison"}
			}
			if r.Similarity < 0 || r.Similarity > 1 {
				return nil, nil, &AggregationError{SourceID: b.SourceID, Reason: "similarity out of range"}
			}
		}
		pairwise = append(pairwise, b.Results...)
	}

	summary := make([]models.SummaryEntry, 0, len(ordered))
	index := make(map[string]int, len(ordered))
	for _, b := range ordered {
		if _, seen := index[b.SourceID]; !seen {
			index[b.SourceID] = len(summary)
			summary = append(summary, models.SummaryEntry{ID: b.SourceID})
		}
	}
	for _, r := range pairwise {
		entry := &summary[index[r.SourceID]]
		if entry.MaxSimilarity == nil || r.Similarity > *entry.MaxSimilarity {
			v := r.Similarity
			entry.MaxSimilarity = &v
		}
	}

	return pairwise, summary, nil
}
