package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RetryHandler retries failed messages with exponential backoff and moves
// the ones that keep failing to a dead letter stream.
type RetryHandler struct {
	client        redis.Cmdable
	deadLetterKey string
	maxRetries    int
	baseDelay     time.Duration
	isPermanent   func(error) bool
}

// NewRetryHandler creates a handler. Errors for which isPermanent reports
// true go to the dead letter stream without retrying; nil retries every
// error.
func NewRetryHandler(client redis.Cmdable, deadLetterKey string, isPermanent func(error) bool) *RetryHandler {
	if isPermanent == nil {
		isPermanent = func(error) bool { return false }
	}
	return &RetryHandler{
		client:        client,
		deadLetterKey: deadLetterKey,
		maxRetries:    3,
		baseDelay:     2 * time.Second,
		isPermanent:   isPermanent,
	}
}

// RetryWithBackoff runs fn until it succeeds or the attempts are used up.
// The returned error is fn's last error; by then the message is already in
// the dead letter stream.
func (h *RetryHandler) RetryWithBackoff(ctx context.Context, fn func() error, messageID string, fields map[string]interface{}) error {
	var err error
	for attempt := 0; attempt <= h.maxRetries; attempt++ {
		if attempt > 0 {
			delay := h.baseDelay * time.Duration(1<<(attempt-1))
			log.Warn().
				Err(err).
				Str("message_id", messageID).
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("Retrying message")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err = fn()
		if err == nil {
			return nil
		}
		if h.isPermanent(err) {
			break
		}
	}

	if dlqErr := h.sendToDeadLetter(ctx, messageID, fields, err); dlqErr != nil {
		log.Error().Err(dlqErr).Str("message_id", messageID).Msg("Failed to send message to dead letter stream")
	}
	return err
}

func (h *RetryHandler) sendToDeadLetter(ctx context.Context, messageID string, fields map[string]interface{}, cause error) error {
	values := make(map[string]interface{}, len(fields)+3)
	for k, v := range fields {
		values[k] = v
	}
	values["original_id"] = messageID
	values["error"] = cause.Error()
	values["failed_at"] = time.Now().UTC().Format(time.RFC3339)

	if err := h.client.XAdd(ctx, &redis.XAddArgs{
		Stream: h.deadLetterKey,
		Values: values,
	}).Err(); err != nil {
		return fmt.Errorf("failed to add to dead letter stream: %w", err)
	}

	log.Warn().
		Str("message_id", messageID).
		Str("stream", h.deadLetterKey).
		Msg("Message moved to dead letter stream")
	return nil
}
