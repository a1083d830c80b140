package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/payflow-fin/payflow/internal/shared"
)

// NewIdempotencyCleanupHandler returns the handler pruning idempotency
// keys older than the payload window. Runs nightly via the scheduler.
func NewIdempotencyCleanupHandler(store *shared.IdempotencyStore, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload IdempotencyCleanupPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if payload.OlderThanHours <= 0 {
			payload.OlderThanHours = 72
		}
		removed, err := store.Cleanup(ctx, time.Duration(payload.OlderThanHours)*time.Hour)
		if err != nil {
			return err
		}
		logger.Info("idempotency cleanup",
			slog.Int64("removed", removed),
			slog.Int("older_than_hours", payload.OlderThanHours))
		return nil
	}
}
