package catalog

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepository struct {
	mu         sync.Mutex
	categories map[int64]TaxCategory
	terms      []PaymentTerm
	types      []ServiceType
	nextID     int64
	listCalls  int
}

func newMockRepository() *mockRepository {
	return &mockRepository{categories: make(map[int64]TaxCategory), nextID: 1}
}

func (m *mockRepository) GetTaxCategory(_ context.Context, id int64) (*TaxCategory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.categories[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (m *mockRepository) ListTaxCategories(_ context.Context, includeInactive bool) ([]TaxCategory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	var out []TaxCategory
	for _, c := range m.categories {
		if c.Active || includeInactive {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockRepository) CreateTaxCategory(_ context.Context, c TaxCategory) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.categories {
		if existing.Name == c.Name {
			return 0, ErrDuplicate
		}
	}
	c.ID = m.nextID
	c.Active = true
	m.nextID++
	m.categories[c.ID] = c
	return c.ID, nil
}

func (m *mockRepository) UpdateTaxCategory(_ context.Context, c TaxCategory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.categories[c.ID]; !ok {
		return ErrNotFound
	}
	m.categories[c.ID] = c
	return nil
}

func (m *mockRepository) ListPaymentTerms(_ context.Context) ([]PaymentTerm, error) {
	return m.terms, nil
}

func (m *mockRepository) ListServiceTypes(_ context.Context) ([]ServiceType, error) {
	return m.types, nil
}

func newTestService(t *testing.T) (*Service, *mockRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	repo := newMockRepository()
	repo.terms = []PaymentTerm{{ID: 1, Name: "30 días", Days: 30, Active: true}}
	repo.types = []ServiceType{{ID: 1, Name: "Calibración", Active: true}}
	svc := NewService(repo, client, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return svc, repo, mr
}

func TestLookupCachesReference(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateTaxCategory(ctx, CreateTaxCategoryRequest{
		Name: "Servicios gravados", AppliesVAT: true, VATRate: 21,
	})
	require.NoError(t, err)

	ref, err := svc.Lookup(ctx)
	require.NoError(t, err)
	require.Len(t, ref.TaxCategories, 1)
	assert.Len(t, ref.PaymentTerms, 1)
	assert.Len(t, ref.ServiceTypes, 1)

	before := repo.listCalls
	for i := 0; i < 5; i++ {
		_, err := svc.Lookup(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, before, repo.listCalls, "repeated lookups must be served from cache")
}

func TestLookupRefreshesAfterExpiry(t *testing.T) {
	svc, repo, mr := newTestService(t)
	ctx := context.Background()

	_, err := svc.Lookup(ctx)
	require.NoError(t, err)
	before := repo.listCalls

	mr.FastForward(2 * time.Minute)

	_, err = svc.Lookup(ctx)
	require.NoError(t, err)
	assert.Greater(t, repo.listCalls, before)
}

func TestWriteInvalidatesCache(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	ref, err := svc.Lookup(ctx)
	require.NoError(t, err)
	assert.Empty(t, ref.TaxCategories)

	_, err = svc.CreateTaxCategory(ctx, CreateTaxCategoryRequest{
		Name: "Exento", AppliesVAT: false,
	})
	require.NoError(t, err)

	ref, err = svc.Lookup(ctx)
	require.NoError(t, err)
	assert.Len(t, ref.TaxCategories, 1)
}

func TestUpdateTaxCategoryPartial(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateTaxCategory(ctx, CreateTaxCategoryRequest{
		Name: "Insumos", AppliesVAT: true, VATRate: 21,
	})
	require.NoError(t, err)

	reduced := 10.5
	updated, err := svc.UpdateTaxCategory(ctx, created.ID, UpdateTaxCategoryRequest{
		ReducedVATRate: &reduced,
	})
	require.NoError(t, err)
	assert.Equal(t, "Insumos", updated.Name)
	assert.True(t, updated.AppliesVAT)
	require.NotNil(t, updated.ReducedVATRate)
	assert.Equal(t, 10.5, *updated.ReducedVATRate)
}

func TestCreateTaxCategoryValidation(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.CreateTaxCategory(context.Background(), CreateTaxCategoryRequest{
		Name: "", AppliesVAT: true, VATRate: 21,
	})
	assert.Error(t, err)
}

func TestLookupSurvivesCacheOutage(t *testing.T) {
	svc, _, mr := newTestService(t)
	mr.Close()

	ref, err := svc.Lookup(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, ref)
}
