package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// InstallmentsRemindJob logs contract installments coming due so supervisors
// can schedule payments. Fully paid installments and inactive contracts are
// skipped.
type InstallmentsRemindJob struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewInstallmentsRemindJob constructs the job.
func NewInstallmentsRemindJob(pool *pgxpool.Pool, logger *slog.Logger) *InstallmentsRemindJob {
	return &InstallmentsRemindJob{pool: pool, logger: logger}
}

// Handle processes TaskInstallmentsRemind tasks.
func (j *InstallmentsRemindJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload InstallmentsRemindPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	within := payload.WithinDays
	if within <= 0 {
		within = 7
	}
	cutoff := time.Now().AddDate(0, 0, within)

	rows, err := j.pool.Query(ctx, `SELECT ci.contract_id, ci.installment_number, ci.amount - ci.paid_amount, ci.due_date, c.worker_id
FROM contract_installments ci
JOIN contracts c ON c.id = ci.contract_id
WHERE c.status = 'active' AND ci.status <> 'paid' AND ci.due_date IS NOT NULL AND ci.due_date <= $1
ORDER BY ci.due_date`, cutoff)
	if err != nil {
		return fmt.Errorf("scan due installments: %w", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var (
			contractID, workerID int64
			number               int
			outstanding          decimal.Decimal
			due                  time.Time
		)
		if err := rows.Scan(&contractID, &number, &outstanding, &due, &workerID); err != nil {
			return err
		}
		count++
		j.logger.Info("installment due",
			slog.Int64("contract_id", contractID),
			slog.Int("installment", number),
			slog.Int64("worker_id", workerID),
			slog.String("outstanding", outstanding.StringFixed(2)),
			slog.String("due_date", due.Format("2006-01-02")))
	}
	if err := rows.Err(); err != nil {
		return err
	}
	j.logger.Info("installment reminder scan complete", slog.Int("due", count), slog.Int("within_days", within))
	return nil
}
