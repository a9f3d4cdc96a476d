package plagiarism

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RishiKendai/plagscan/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const statusKeyPrefix = "similarity_run_status:"

// StatusReporter records the lifecycle step of a run.
type StatusReporter interface {
	ReportStep(ctx context.Context, runID string, step models.Step) error
}

var validSteps = map[models.Step]bool{
	models.StepIdle:       true,
	models.StepInit:       true,
	models.StepDispatched: true,
	models.StepCollecting: true,
	models.StepAggregated: true,
	models.StepDone:       true,
	models.StepFailed:     true,
}

func validateStep(step models.Step) error {
	if !validSteps[step] {
		return fmt.Errorf("unknown step: %s", step)
	}
	return nil
}

// RedisStatusStore keeps the current step of every run in Redis.
type RedisStatusStore struct {
	client redis.Cmdable
	ttl    time.Duration
	logger zerolog.Logger
}

func NewRedisStatusStore(client redis.Cmdable, ttl time.Duration, logger zerolog.Logger) *RedisStatusStore {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &RedisStatusStore{client: client, ttl: ttl, logger: logger}
}

func (s *RedisStatusStore) ReportStep(ctx context.Context, runID string, step models.Step) error {
	if err := validateStep(step); err != nil {
		return err
	}

	rkey := statusKeyPrefix + runID

	err := s.client.Set(ctx, rkey, string(step), s.ttl).Err()
	if err != nil {
		s.logger.Error().Err(err).
			Str("step", string(step)).
			Str("runId", runID).
			Str("redisKey", rkey).
			Msg("Failed to update status in Redis")
		return fmt.Errorf("failed to update status in Redis: %w", err)
	}

	s.logger.Trace().
		Str("step", string(step)).
		Str("runId", runID).
		Msg("Status updated in Redis")

	return nil
}

// GetStep returns the last reported step, or StepIdle when the run is
// unknown or its status expired.
func (s *RedisStatusStore) GetStep(ctx context.Context, runID string) (models.Step, error) {
	val, err := s.client.Get(ctx, statusKeyPrefix+runID).Result()
	if errors.Is(err, redis.Nil) {
		return models.StepIdle, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read status from Redis: %w", err)
	}
	return models.Step(val), nil
}

// LogStatusReporter only logs steps. It is used when no Redis is configured.
type LogStatusReporter struct {
	logger zerolog.Logger
}

func NewLogStatusReporter(logger zerolog.Logger) *LogStatusReporter {
	return &LogStatusReporter{logger: logger}
}

func (r *LogStatusReporter) ReportStep(ctx context.Context, runID string, step models.Step) error {
	if err := validateStep(step); err != nil {
		return err
	}
	r.logger.Debug().Str("runId", runID).Str("step", string(step)).Msg("Run step")
	return nil
}
