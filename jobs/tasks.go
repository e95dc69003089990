package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReplenishmentScan recomputes the replenishment plan and optionally orders it.
	TaskReplenishmentScan = "replenishment:scan"
	// TaskIdempotencyCleanup purges expired idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// ReplenishmentScanPayload tunes a single scan run. AutoOrder overrides the
// worker default when set; Force bypasses the once-per-day guard.
type ReplenishmentScanPayload struct {
	AutoOrder *bool `json:"auto_order,omitempty"`
	Force     bool  `json:"force"`
}

// NewReplenishmentScanTask builds a scan task.
func NewReplenishmentScanTask(payload ReplenishmentScanPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReplenishmentScan, body, asynq.Queue(QueueDefault)), nil
}

// NewIdempotencyCleanupTask builds a cleanup task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil, asynq.Queue(QueueDefault))
}

// TaskByName builds a task with default payload for operator triggers.
func TaskByName(name string) (*asynq.Task, bool) {
	switch name {
	case TaskReplenishmentScan:
		task, err := NewReplenishmentScanTask(ReplenishmentScanPayload{})
		return task, err == nil
	case TaskIdempotencyCleanup:
		return NewIdempotencyCleanupTask(), true
	default:
		return nil, false
	}
}
