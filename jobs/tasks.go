package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the queue all Meridian background jobs run on.
	QueueDefault = "default"
	// TaskIntakeSync reconciles intake record history after a work order is
	// finalized. The task is idempotent and safe to run more than once.
	TaskIntakeSync = "intake:sync"
)

// IntakeSyncPayload identifies the finalized work order and the history note
// to append to its linked intake records.
type IntakeSyncPayload struct {
	WorkOrderID int64  `json:"work_order_id"`
	Note        string `json:"note"`
}

// NewIntakeSyncTask constructs the reconciliation task. The task id is
// derived from the work order so duplicate finalize attempts collapse into a
// single queued task.
func NewIntakeSyncTask(payload IntakeSyncPayload) (*asynq.Task, []asynq.Option, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	opts := []asynq.Option{
		asynq.Queue(QueueDefault),
		asynq.TaskID(fmt.Sprintf("%s:%d", TaskIntakeSync, payload.WorkOrderID)),
		asynq.MaxRetry(5),
	}
	return asynq.NewTask(TaskIntakeSync, data), opts, nil
}
