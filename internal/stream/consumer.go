package stream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/RishiKendai/plagscan/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Processor runs one comparison.
type Processor interface {
	Compute(ctx context.Context, req models.CompareRequest) (*models.Report, error)
}

// ReportSaver persists the report of a run.
type ReportSaver interface {
	SaveReport(ctx context.Context, report *models.Report) error
}

// StatusReporter records the lifecycle step of a run.
type StatusReporter interface {
	ReportStep(ctx context.Context, runID string, step models.Step) error
}

// ConsumerOptions names the stream a Consumer reads and how long entries
// are kept.
type ConsumerOptions struct {
	StreamKey string
	Group     string
	Name      string
	Retention time.Duration
}

const (
	readCount        = 10
	readBlock        = time.Second
	claimMinIdle     = time.Minute
	claimBatch       = 100
	pelCheckInterval = 30 * time.Second
	trimInterval     = time.Hour
)

// Consumer reads compare requests from a Redis stream consumer group, runs
// each one once and stores its report.
type Consumer struct {
	client    redis.Cmdable
	opts      ConsumerOptions
	processor Processor
	reports   ReportSaver
	status    StatusReporter
	retry     *RetryHandler

	lastPELCheck time.Time
}

// NewConsumer creates a Consumer. status may be nil.
func NewConsumer(client redis.Cmdable, opts ConsumerOptions, processor Processor, reports ReportSaver, status StatusReporter, retry *RetryHandler) *Consumer {
	return &Consumer{
		client:    client,
		opts:      opts,
		processor: processor,
		reports:   reports,
		status:    status,
		retry:     retry,
	}
}

// Start consumes until ctx is done. Entries a previous consumer claimed but
// never acknowledged are picked up first.
func (c *Consumer) Start(ctx context.Context) error {
	if err := c.ensureGroup(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to create consumer group")
	}

	if err := c.claimStale(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to recover pending entries on startup")
	}
	c.lastPELCheck = time.Now()

	go c.trimPeriodically(ctx)

	for ctx.Err() == nil {
		if time.Since(c.lastPELCheck) > pelCheckInterval {
			if err := c.claimStale(ctx); err != nil {
				log.Warn().Err(err).Msg("Failed to recover pending entries")
			}
			c.lastPELCheck = time.Now()
		}

		if err := c.readOnce(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("Error consuming messages")
			time.Sleep(time.Second)
		}
	}
	return ctx.Err()
}

func (c *Consumer) ensureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.opts.StreamKey, c.opts.Group, "$").Err()
	switch {
	case err == nil:
		log.Info().Str("group", c.opts.Group).Str("stream", c.opts.StreamKey).Msg("Created consumer group")
		return nil
	case strings.Contains(err.Error(), "BUSYGROUP"):
		return nil
	default:
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
}

// claimStale takes over entries idle in the pending list for longer than
// claimMinIdle and processes them.
func (c *Consumer) claimStale(ctx context.Context) error {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: c.opts.StreamKey,
		Group:  c.opts.Group,
		Start:  "-",
		End:    "+",
		Count:  claimBatch,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to list pending entries: %w", err)
	}

	var ids []string
	for _, p := range pending {
		if p.Idle >= claimMinIdle {
			ids = append(ids, p.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	claimed, err := c.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   c.opts.StreamKey,
		Group:    c.opts.Group,
		Consumer: c.opts.Name,
		MinIdle:  claimMinIdle,
		Messages: ids,
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to claim pending entries: %w", err)
	}

	log.Info().Int("claimed", len(claimed)).Msg("Recovered pending entries")
	c.processAll(ctx, claimed)
	return nil
}

func (c *Consumer) readOnce(ctx context.Context) error {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.opts.Group,
		Consumer: c.opts.Name,
		Streams:  []string{c.opts.StreamKey, ">"},
		Count:    readCount,
		Block:    readBlock,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read from stream: %w", err)
	}

	for _, s := range streams {
		if s.Stream == c.opts.StreamKey {
			c.processAll(ctx, s.Messages)
		}
	}
	return nil
}

func (c *Consumer) processAll(ctx context.Context, msgs []redis.XMessage) {
	for _, msg := range msgs {
		if err := c.processMessage(ctx, msg); err != nil {
			log.Error().Err(err).Str("message_id", msg.ID).Msg("Failed to process message")
		}
	}
}

// processMessage runs the request carried by msg exactly once. A request
// that cannot be parsed or whose run fails is dead-lettered, recorded as a
// failed report and acknowledged. Only saving the finished report is
// retried. On shutdown the entry is left pending for the next consumer.
func (c *Consumer) processMessage(ctx context.Context, msg redis.XMessage) error {
	fields := make(map[string]string, len(msg.Values))
	values := make(map[string]interface{}, len(msg.Values))
	for k, v := range msg.Values {
		if s, ok := v.(string); ok {
			fields[k] = s
			values[k] = s
		}
	}

	req, err := ParseRequest(&StreamMessage{ID: msg.ID, Fields: fields})
	if err != nil {
		c.deadLetter(ctx, msg.ID, values, err)
		_ = c.acknowledge(ctx, msg.ID)
		return fmt.Errorf("invalid compare request: %w", err)
	}

	started := time.Now()
	if err := c.reports.SaveReport(ctx, &models.Report{
		RunID:      req.RunID,
		CorpusPath: req.CorpusPath,
		Status:     "pending",
		StartedAt:  started,
	}); err != nil {
		log.Warn().Err(err).Str("runId", req.RunID).Msg("Failed to create pending report")
	}

	report, err := c.processor.Compute(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		c.recordFailure(req, started, err)
		c.deadLetter(ctx, msg.ID, values, err)
		_ = c.acknowledge(ctx, msg.ID)
		return err
	}

	err = c.retry.RetryWithBackoff(ctx, func() error {
		return c.reports.SaveReport(ctx, report)
	}, msg.ID, values)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		_ = c.acknowledge(ctx, msg.ID)
		return err
	}

	log.Info().Str("message_id", msg.ID).Str("runId", req.RunID).Msg("Compare request processed")
	return c.acknowledge(ctx, msg.ID)
}

// recordFailure marks the run failed in the status store and replaces its
// pending report.
func (c *Consumer) recordFailure(req models.CompareRequest, started time.Time, runErr error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if c.status != nil {
		if err := c.status.ReportStep(ctx, req.RunID, models.StepFailed); err != nil {
			log.Warn().Err(err).Str("runId", req.RunID).Msg("Failed to update failed status")
		}
	}

	if err := c.reports.SaveReport(ctx, &models.Report{
		RunID:      req.RunID,
		CorpusPath: req.CorpusPath,
		Status:     "failed",
		Error:      runErr.Error(),
		StartedAt:  started,
	}); err != nil {
		log.Error().Err(err).Str("runId", req.RunID).Msg("Failed to save failed report")
	}
}

func (c *Consumer) deadLetter(ctx context.Context, id string, values map[string]interface{}, cause error) {
	if err := c.retry.sendToDeadLetter(ctx, id, values, cause); err != nil {
		log.Error().Err(err).Str("message_id", id).Msg("Failed to send message to dead letter stream")
	}
}

// trim drops entries older than the retention window.
func (c *Consumer) trim(ctx context.Context) error {
	cutoff := time.Now().Add(-c.opts.Retention)
	trimmed, err := c.client.XTrimMinID(ctx, c.opts.StreamKey, fmt.Sprintf("%d-0", cutoff.UnixMilli())).Result()
	if err != nil {
		return fmt.Errorf("failed to trim stream: %w", err)
	}
	if trimmed > 0 {
		log.Debug().Int64("trimmed", trimmed).Time("cutoff", cutoff).Msg("Trimmed stream")
	}
	return nil
}

func (c *Consumer) trimPeriodically(ctx context.Context) {
	ticker := time.NewTicker(trimInterval)
	defer ticker.Stop()

	for {
		if err := c.trim(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("Failed to trim stream")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (c *Consumer) acknowledge(ctx context.Context, id string) error {
	if err := c.client.XAck(ctx, c.opts.StreamKey, c.opts.Group, id).Err(); err != nil {
		log.Error().Err(err).Str("message_id", id).Msg("Failed to acknowledge message")
		return err
	}
	return nil
}
