package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	calls []IntakeSyncPayload
	err   error
}

func (r *recordingNotifier) NotifyWorkOrderFinalized(_ context.Context, workOrderID int64, note string) (int, error) {
	r.calls = append(r.calls, IntakeSyncPayload{WorkOrderID: workOrderID, Note: note})
	return 1, r.err
}

func intakeSyncTask(t *testing.T, payload IntakeSyncPayload) *asynq.Task {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return asynq.NewTask(TaskIntakeSync, data)
}

func TestIntakeSyncHandleForwardsPayload(t *testing.T) {
	notifier := &recordingNotifier{}
	job := NewIntakeSyncJob(notifier, slog.New(slog.NewTextHandler(io.Discard, nil)))

	task := intakeSyncTask(t, IntakeSyncPayload{WorkOrderID: 42, Note: "OT 00042 finalizada"})
	require.NoError(t, job.Handle(context.Background(), task))

	require.Len(t, notifier.calls, 1)
	assert.Equal(t, int64(42), notifier.calls[0].WorkOrderID)
	assert.Equal(t, "OT 00042 finalizada", notifier.calls[0].Note)
}

func TestIntakeSyncHandleSkipsMalformedPayload(t *testing.T) {
	notifier := &recordingNotifier{}
	job := NewIntakeSyncJob(notifier, slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := job.Handle(context.Background(), asynq.NewTask(TaskIntakeSync, []byte("not-json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = job.Handle(context.Background(), intakeSyncTask(t, IntakeSyncPayload{WorkOrderID: 0, Note: ""}))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Empty(t, notifier.calls, "malformed tasks never reach the intake module")
}

func TestIntakeSyncHandlePropagatesFailure(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("intake store down")}
	job := NewIntakeSyncJob(notifier, slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := job.Handle(context.Background(), intakeSyncTask(t, IntakeSyncPayload{WorkOrderID: 7, Note: "OT 00007 finalizada"}))
	require.Error(t, err, "failures must be retried by the queue")
}

func TestNewIntakeSyncTaskIsKeyedByWorkOrder(t *testing.T) {
	a, optsA, err := NewIntakeSyncTask(IntakeSyncPayload{WorkOrderID: 9, Note: "OT 00009 finalizada"})
	require.NoError(t, err)
	b, optsB, err := NewIntakeSyncTask(IntakeSyncPayload{WorkOrderID: 9, Note: "OT 00009 finalizada"})
	require.NoError(t, err)

	assert.Equal(t, a.Type(), b.Type())
	assert.JSONEq(t, string(a.Payload()), string(b.Payload()))
	assert.Equal(t, optsA, optsB, "same order produces the same task id")
}
