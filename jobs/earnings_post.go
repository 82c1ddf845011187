package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fundline/fundline/internal/ledger"
	"github.com/fundline/fundline/internal/shared"
)

// EarningsPostJob credits each worker's attendance earnings for one period.
// Posting is idempotent per (worker, period), so a retried or duplicated task
// leaves the ledger unchanged.
type EarningsPostJob struct {
	pool    *pgxpool.Pool
	service *ledger.Service
	logger  *slog.Logger
}

// NewEarningsPostJob constructs the job.
func NewEarningsPostJob(pool *pgxpool.Pool, service *ledger.Service, logger *slog.Logger) *EarningsPostJob {
	return &EarningsPostJob{pool: pool, service: service, logger: logger}
}

// Handle processes TaskEarningsPost tasks.
func (j *EarningsPostJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload EarningsPostPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	start, end, err := resolvePeriod(payload.Period, time.Now())
	if err != nil {
		j.logger.Error("earnings post period", slog.String("period", payload.Period), slog.Any("error", err))
		return asynq.SkipRetry
	}

	workers, err := j.workersWithAttendance(ctx, start, end)
	if err != nil {
		return fmt.Errorf("list workers with attendance: %w", err)
	}

	posted := 0
	for _, workerID := range workers {
		_, err := j.service.PostEarnings(ctx, workerID, start, end)
		switch {
		case err == nil:
			posted++
		case errors.Is(err, shared.ErrIdempotencyConflict), errors.Is(err, shared.ErrNotFound):
			// already posted, or no positive earnings this period
		default:
			j.logger.Error("post earnings", slog.Int64("worker_id", workerID), slog.Any("error", err))
		}
	}
	j.logger.Info("earnings posting complete",
		slog.String("period", start.Format("2006-01")),
		slog.Int("workers", len(workers)),
		slog.Int("posted", posted))
	return nil
}

func (j *EarningsPostJob) workersWithAttendance(ctx context.Context, start, end time.Time) ([]int64, error) {
	rows, err := j.pool.Query(ctx, `SELECT DISTINCT worker_id FROM attendance WHERE date >= $1 AND date <= $2 ORDER BY worker_id`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// resolvePeriod turns a YYYY-MM string into [first, last] day bounds. Empty
// input selects the month before now.
func resolvePeriod(period string, now time.Time) (time.Time, time.Time, error) {
	var start time.Time
	if period == "" {
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		start = first.AddDate(0, -1, 0)
	} else {
		var err error
		start, err = time.Parse("2006-01", period)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	end := start.AddDate(0, 1, -1)
	return start, end, nil
}
