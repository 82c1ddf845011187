// Package jobs holds the asynq task definitions and worker plumbing for
// background processing.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskEarningsPost posts one month of attendance earnings into worker
	// ledgers.
	TaskEarningsPost = "earnings:post"
	// TaskInstallmentsRemind scans for contract installments coming due.
	TaskInstallmentsRemind = "installments:remind"
	// TaskIdempotencyCleanup prunes aged idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// EarningsPostPayload selects the period to post. An empty period means the
// previous calendar month.
type EarningsPostPayload struct {
	Period string `json:"period"`
}

// NewEarningsPostTask constructs an earnings posting task.
func NewEarningsPostTask(payload EarningsPostPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskEarningsPost, data), nil
}

// IdempotencyCleanupPayload bounds key retention.
type IdempotencyCleanupPayload struct {
	RetentionDays int `json:"retentionDays"`
}

// NewIdempotencyCleanupTask constructs a key cleanup task.
func NewIdempotencyCleanupTask(payload IdempotencyCleanupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}

// InstallmentsRemindPayload bounds the reminder window.
type InstallmentsRemindPayload struct {
	WithinDays int `json:"withinDays"`
}

// NewInstallmentsRemindTask constructs an installment reminder task.
func NewInstallmentsRemindTask(payload InstallmentsRemindPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInstallmentsRemind, data), nil
}
