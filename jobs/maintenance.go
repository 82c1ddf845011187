package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/fundline/fundline/internal/shared"
)

// IdempotencyCleanupJob prunes idempotency keys past retention. Retention
// stays generous because earnings keys guard one posting per worker-month;
// dropping a recent key would let a replay double-credit.
type IdempotencyCleanupJob struct {
	store  *shared.IdempotencyStore
	logger *slog.Logger
}

// NewIdempotencyCleanupJob constructs the job.
func NewIdempotencyCleanupJob(store *shared.IdempotencyStore, logger *slog.Logger) *IdempotencyCleanupJob {
	return &IdempotencyCleanupJob{store: store, logger: logger}
}

// Handle processes TaskIdempotencyCleanup tasks.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload IdempotencyCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	days := payload.RetentionDays
	if days <= 0 {
		days = 400
	}
	if err := j.store.Cleanup(ctx, time.Duration(days)*24*time.Hour); err != nil {
		return err
	}
	j.logger.Info("idempotency cleanup complete", slog.Int("retention_days", days))
	return nil
}
