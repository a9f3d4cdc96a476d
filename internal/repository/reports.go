package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RishiKendai/plagscan/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const reportsCollection = "similarity_reports"

type ReportsRepository struct {
	mongoRepo *MongoRepository
}

func NewReportsRepository(mongoRepo *MongoRepository) *ReportsRepository {
	return &ReportsRepository{
		mongoRepo: mongoRepo,
	}
}

// SaveReport stores report under its run ID, replacing an earlier version
// such as the pending placeholder written when the run was accepted.
func (r *ReportsRepository) SaveReport(ctx context.Context, report *models.Report) error {
	if err := stampReport(report, time.Now()); err != nil {
		return err
	}

	filter := bson.M{"runId": report.RunID}
	opts := options.Replace().SetUpsert(true)
	if err := r.mongoRepo.ReplaceOne(ctx, reportsCollection, filter, report, opts); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}

	return nil
}

// stampReport checks that report can be stored and sets CreatedAt when the
// caller left it empty. A completed report keeps its completion time.
func stampReport(report *models.Report, now time.Time) error {
	if report.RunID == "" {
		return fmt.Errorf("report has no run ID")
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = now
	}
	return nil
}

// GetReportByRunID returns the latest report of a run, or nil when none
// exists yet.
func (r *ReportsRepository) GetReportByRunID(ctx context.Context, runID string) (*models.Report, error) {
	filter := bson.M{"runId": runID}
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	var report models.Report
	err := r.mongoRepo.FindOne(ctx, reportsCollection, filter, opts).Decode(&report)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find report: %w", err)
	}

	return &report, nil
}
