package intake

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type historyKey struct {
	recordID    int64
	workOrderID int64
	note        string
}

type mockRepository struct {
	mu      sync.Mutex
	records map[int64]Record
	history map[historyKey]HistoryEntry
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		records: make(map[int64]Record),
		history: make(map[historyKey]HistoryEntry),
	}
}

func (m *mockRepository) Get(_ context.Context, id int64) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	for key, entry := range m.history {
		if key.recordID == id {
			rec.History = append(rec.History, entry)
		}
	}
	return &rec, nil
}

func (m *mockRepository) ListByWorkOrder(_ context.Context, workOrderID int64) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Record
	for _, rec := range m.records {
		if rec.WorkOrderID != nil && *rec.WorkOrderID == workOrderID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *mockRepository) UpdateStatus(_ context.Context, id int64, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return ErrNotFound
	}
	rec.Status = status
	m.records[id] = rec
	return nil
}

func (m *mockRepository) AppendHistory(_ context.Context, entry HistoryEntry) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var wo int64
	if entry.WorkOrderID != nil {
		wo = *entry.WorkOrderID
	}
	key := historyKey{recordID: entry.RecordID, workOrderID: wo, note: entry.Note}
	if _, exists := m.history[key]; exists {
		return false, nil
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	m.history[key] = entry
	return true, nil
}

func (m *mockRepository) historyCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.history)
}

func seedRecord(repo *mockRepository, id int64, status Status, workOrderID *int64) {
	repo.records[id] = Record{ID: id, ClientID: 1, Instrument: "HPLC", Status: status, WorkOrderID: workOrderID}
}

func TestNotifyWorkOrderFinalizedSkipsDelivered(t *testing.T) {
	repo := newMockRepository()
	wo := int64(42)
	seedRecord(repo, 1, StatusInRepair, &wo)
	seedRecord(repo, 2, StatusDelivered, &wo)
	seedRecord(repo, 3, StatusReceived, &wo)
	seedRecord(repo, 4, StatusReceived, nil)

	svc := NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
	appended, err := svc.NotifyWorkOrderFinalized(context.Background(), wo, "OT 00042 finalizada")
	require.NoError(t, err)
	assert.Equal(t, 2, appended)
	assert.Equal(t, 2, repo.historyCount())
}

func TestNotifyWorkOrderFinalizedIsIdempotent(t *testing.T) {
	repo := newMockRepository()
	wo := int64(7)
	seedRecord(repo, 1, StatusInDiagnosis, &wo)

	svc := NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
	for i := 0; i < 3; i++ {
		_, err := svc.NotifyWorkOrderFinalized(context.Background(), wo, "OT 00007 finalizada")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, repo.historyCount(), "re-running the notification must not duplicate entries")
}

func TestUpdateStatusRejectsUnknown(t *testing.T) {
	repo := newMockRepository()
	seedRecord(repo, 1, StatusReceived, nil)

	svc := NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := svc.UpdateStatus(context.Background(), 1, Status("LOST"))
	assert.Error(t, err)
}
