package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/payflow-fin/payflow/internal/processlog"
)

// NewProcessLogRecordHandler returns the Asynq handler that persists
// queued business process log entries.
func NewProcessLogRecordHandler(recorder processlog.Recorder, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var entry processlog.Entry
		if err := json.Unmarshal(t.Payload(), &entry); err != nil {
			logger.Warn("process log task payload", slog.Any("error", err))
			return asynq.SkipRetry
		}
		if err := entry.Validate(); err != nil {
			logger.Warn("process log task invalid", slog.Any("error", err))
			return asynq.SkipRetry
		}
		return recorder.Record(ctx, entry)
	}
}

// AsyncRecorder enqueues log entries for background persistence. Enqueue
// failures fall back to the direct recorder so entries are not lost when
// Redis is unavailable.
type AsyncRecorder struct {
	client   *Client
	fallback processlog.Recorder
	logger   *slog.Logger
}

// NewAsyncRecorder builds AsyncRecorder instance.
func NewAsyncRecorder(client *Client, fallback processlog.Recorder, logger *slog.Logger) *AsyncRecorder {
	return &AsyncRecorder{client: client, fallback: fallback, logger: logger}
}

// Record queues the entry, stamping identity and timestamp at enqueue
// time so the persisted row reflects when the business event happened.
func (r *AsyncRecorder) Record(ctx context.Context, entry processlog.Entry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if err := entry.Validate(); err != nil {
		return err
	}
	task, err := NewProcessLogTask(entry)
	if err != nil {
		return err
	}
	if _, err := r.client.Enqueue(ctx, task, asynq.MaxRetry(5)); err != nil {
		r.logger.Warn("process log enqueue, writing direct", slog.Any("error", err))
		return r.fallback.Record(ctx, entry)
	}
	return nil
}
