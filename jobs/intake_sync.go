package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
)

// IntakeNotifier is the slice of the intake service the job needs.
type IntakeNotifier interface {
	NotifyWorkOrderFinalized(ctx context.Context, workOrderID int64, note string) (int, error)
}

// IntakeSyncJob replays the finalize notification against the intake module.
// The underlying append is keyed on (record, work order, note), so retries
// and duplicate deliveries leave a single history entry.
type IntakeSyncJob struct {
	Notifier IntakeNotifier
	Logger   *slog.Logger
}

func NewIntakeSyncJob(notifier IntakeNotifier, logger *slog.Logger) *IntakeSyncJob {
	return &IntakeSyncJob{Notifier: notifier, Logger: logger}
}

// Handle processes TaskIntakeSync tasks.
func (j *IntakeSyncJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Notifier == nil {
		return errors.New("intake sync: handler not configured")
	}
	var payload IntakeSyncPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.WorkOrderID <= 0 || payload.Note == "" {
		return asynq.SkipRetry
	}

	logger := j.logger().With(slog.Int64("work_order_id", payload.WorkOrderID))
	appended, err := j.Notifier.NotifyWorkOrderFinalized(ctx, payload.WorkOrderID, payload.Note)
	if err != nil {
		logger.Error("intake sync failed", slog.Any("error", err))
		return err
	}
	logger.Info("intake sync completed", slog.Int("appended", appended))
	return nil
}

func (j *IntakeSyncJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskIntakeSync))
	}
	return slog.Default().With(slog.String("job", TaskIntakeSync))
}
