package workorders

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-lsm/meridian/internal/clients"
	"github.com/meridian-lsm/meridian/internal/editor"
	"github.com/meridian-lsm/meridian/internal/platform/field"
)

func ptr[T any](v T) *T { return &v }

type mockWorkOrderRepo struct {
	mu     sync.Mutex
	orders map[int64]WorkOrder
	items  map[int64][]WorkOrderItem
	seq    int64
	saves  int
}

func newMockWorkOrderRepo() *mockWorkOrderRepo {
	return &mockWorkOrderRepo{
		orders: make(map[int64]WorkOrder),
		items:  make(map[int64][]WorkOrderItem),
	}
}

func (m *mockWorkOrderRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, m)
}

func (m *mockWorkOrderRepo) Get(_ context.Context, id int64) (*WorkOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	o = o.Clone()
	o.Items = append([]WorkOrderItem(nil), m.items[id]...)
	return &o, nil
}

func (m *mockWorkOrderRepo) List(context.Context, ListWorkOrdersRequest) ([]WorkOrderSummary, int, error) {
	return nil, 0, nil
}

func (m *mockWorkOrderRepo) Create(_ context.Context, o WorkOrder) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o.ID = int64(len(m.orders) + 1)
	o.Version = 1
	m.orders[o.ID] = o
	return o.ID, nil
}

func (m *mockWorkOrderRepo) Save(_ context.Context, o WorkOrder, baseVersion int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	stored, ok := m.orders[o.ID]
	if !ok {
		return 0, ErrNotFound
	}
	if stored.Version != baseVersion {
		return 0, editor.ErrVersionConflict
	}
	o.Version = baseVersion + 1
	m.orders[o.ID] = o
	return o.Version, nil
}

func (m *mockWorkOrderRepo) AddItem(_ context.Context, orderID int64, item WorkOrderItem) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item.ID = int64(len(m.items[orderID]) + 1)
	m.items[orderID] = append(m.items[orderID], item)
	return item.ID, nil
}

func (m *mockWorkOrderRepo) GenerateNumber(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	return fmt.Sprintf("%05d", m.seq), nil
}

func (m *mockWorkOrderRepo) stored(id int64) WorkOrder {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[id]
}

type mockClientRepo struct{}

func (mockClientRepo) Get(_ context.Context, id int64) (*clients.Client, error) {
	if id == 0 {
		return nil, clients.ErrNotFound
	}
	return &clients.Client{ID: id, CompanyName: "Laboratorio Sur"}, nil
}

func (mockClientRepo) List(context.Context, clients.ListClientsRequest) ([]clients.Client, int, error) {
	return nil, 0, nil
}

func (mockClientRepo) Create(context.Context, clients.Client) (int64, error) { return 0, nil }
func (mockClientRepo) Update(context.Context, clients.Client) error          { return nil }

type mockNotifier struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (m *mockNotifier) NotifyWorkOrderFinalized(_ context.Context, workOrderID int64, note string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, note)
	if m.err != nil {
		return 0, m.err
	}
	return 1, nil
}

type mockEnqueuer struct {
	mu    sync.Mutex
	tasks []int64
}

func (m *mockEnqueuer) EnqueueIntakeSync(_ context.Context, workOrderID int64, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, workOrderID)
	return nil
}

func newTestService(t *testing.T) (*Service, *mockWorkOrderRepo, *mockNotifier, *mockEnqueuer) {
	t.Helper()
	repo := newMockWorkOrderRepo()
	notifier := &mockNotifier{}
	enqueuer := &mockEnqueuer{}
	svc := NewService(repo, mockClientRepo{}, notifier, enqueuer, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.now = func() time.Time { return time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC) }
	return svc, repo, notifier, enqueuer
}

func TestCreateNormalizesBudgetRefs(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	o, err := svc.Create(context.Background(), CreateWorkOrderRequest{
		ClientID:   1,
		BudgetRefs: []string{"  PRE-0001 ", "", "   ", "1234567890123456789"},
	})
	require.NoError(t, err)
	assert.Equal(t, "00001", o.OrderNumber)
	assert.Equal(t, []string{"PRE-0001", "123456789012345"}, o.BudgetRefs)
}

func TestFinalizeStampsAndNotifies(t *testing.T) {
	svc, repo, notifier, enqueuer := newTestService(t)
	created, err := svc.Create(context.Background(), CreateWorkOrderRequest{ClientID: 1})
	require.NoError(t, err)

	o, err := svc.Finalize(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, WorkOrderStatusFinalized, o.Status)
	require.NotNil(t, o.FinalizedAt)

	require.Len(t, notifier.calls, 1)
	assert.Equal(t, "OT 00001 finalizada", notifier.calls[0])
	require.Len(t, enqueuer.tasks, 1)
	assert.Equal(t, created.ID, enqueuer.tasks[0])
	assert.Equal(t, WorkOrderStatusFinalized, repo.stored(created.ID).Status)
}

func TestFinalizeSurvivesNotifierFailure(t *testing.T) {
	svc, _, notifier, enqueuer := newTestService(t)
	notifier.err = errors.New("intake store down")

	created, err := svc.Create(context.Background(), CreateWorkOrderRequest{ClientID: 1})
	require.NoError(t, err)

	o, err := svc.Finalize(context.Background(), created.ID)
	require.NoError(t, err, "notification failures must not unwind the finalize")
	assert.Equal(t, WorkOrderStatusFinalized, o.Status)
	assert.Len(t, enqueuer.tasks, 1, "reconciliation still queued")
}

func TestFinalizedOrderIsReadOnly(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	created, err := svc.Create(context.Background(), CreateWorkOrderRequest{ClientID: 1})
	require.NoError(t, err)
	_, err = svc.Finalize(context.Background(), created.ID)
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), created.ID, UpdateWorkOrderRequest{
		Observations: field.Set("tarde"),
	})
	assert.ErrorIs(t, err, ErrFinalized)

	_, err = svc.AddItem(context.Background(), created.ID, AddItemRequest{Description: "tarde"})
	assert.ErrorIs(t, err, ErrFinalized)

	_, err = svc.Finalize(context.Background(), created.ID)
	assert.ErrorIs(t, err, ErrFinalized)
}

func TestUpdateClearsFieldsWithExplicitNull(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	created, err := svc.Create(context.Background(), CreateWorkOrderRequest{
		ClientID:        1,
		ProblemReported: ptr("no enciende"),
	})
	require.NoError(t, err)

	o, err := svc.Update(context.Background(), created.ID, UpdateWorkOrderRequest{
		ProblemReported: field.Null[string](),
		WorkPerformed:   field.Set("cambio de fuente"),
	})
	require.NoError(t, err)
	assert.Nil(t, o.ProblemReported)
	require.NotNil(t, o.WorkPerformed)
	assert.Equal(t, "cambio de fuente", *o.WorkPerformed)

	stored := repo.stored(created.ID)
	assert.Nil(t, stored.ProblemReported)
}

func TestAddItemNumbersChildren(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	created, err := svc.Create(context.Background(), CreateWorkOrderRequest{ClientID: 1})
	require.NoError(t, err)

	o, err := svc.AddItem(context.Background(), created.ID, AddItemRequest{Description: "bomba"})
	require.NoError(t, err)
	require.Len(t, o.Items, 1)
	assert.Equal(t, "00001.01", o.Items[0].ItemNumber)

	o, err = svc.AddItem(context.Background(), created.ID, AddItemRequest{Description: "detector"})
	require.NoError(t, err)
	require.Len(t, o.Items, 2)
	assert.Equal(t, "00001.02", o.Items[1].ItemNumber)
}
