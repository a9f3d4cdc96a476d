package models

import (
	"time"
)

type Step string

const (
	StepIdle       Step = "idle"
	StepInit       Step = "init"
	StepDispatched Step = "dispatched"
	StepCollecting Step = "collecting"
	StepAggregated Step = "aggregated"
	StepDone       Step = "done"
	StepFailed     Step = "failed"
)

// ComparisonResult is one directed pair of the pairwise table.
type ComparisonResult struct {
	SourceID   string  `bson:"sourceId" json:"sourceId"`
	TargetID   string  `bson:"targetId" json:"targetId"`
	Similarity float64 `bson:"similarity" json:"similarity"`
}

// SummaryEntry holds the highest similarity a document reached against any
// peer. MaxSimilarity is nil when the document had nothing to compare with.
type SummaryEntry struct {
	ID            string   `bson:"id" json:"id"`
	MaxSimilarity *float64 `bson:"maxSimilarity" json:"maxSimilarity"`
}

// FailedDocument is a document excluded from the run.
type FailedDocument struct {
	ID     string `bson:"id" json:"id"`
	Path   string `bson:"path" json:"path"`
	Reason string `bson:"reason" json:"reason"`
}

// Report is the outcome of one comparison run.
type Report struct {
	RunID          string             `bson:"runId" json:"runId"`
	CorpusPath     string             `bson:"corpusPath" json:"corpusPath"`
	NumPerm        int                `bson:"numPerm" json:"numPerm"`
	Documents      int                `bson:"documents" json:"documents"`
	Pairwise       []ComparisonResult `bson:"pairwise" json:"pairwise"`
	Summary        []SummaryEntry     `bson:"summary" json:"summary"`
	Failed         []FailedDocument   `bson:"failed" json:"failed"`
	GraphThreshold *float64           `bson:"graphThreshold,omitempty" json:"graphThreshold,omitempty"`
	Status         string             `bson:"status" json:"status"` // completed, failed
	Error          string             `bson:"error,omitempty" json:"error,omitempty"`
	StartedAt      time.Time          `bson:"startedAt" json:"startedAt"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
}
