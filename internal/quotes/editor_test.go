package quotes

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-lsm/meridian/internal/catalog"
	"github.com/meridian-lsm/meridian/internal/editor"
)

const quiet = 20 * time.Millisecond

// mockQuoteRepo implements the subset of Repository the editor touches.
type mockQuoteRepo struct {
	mu     sync.Mutex
	quotes map[int64]Quotation
	saves  int
}

func newMockQuoteRepo() *mockQuoteRepo {
	return &mockQuoteRepo{quotes: make(map[int64]Quotation)}
}

func (m *mockQuoteRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, m)
}

func (m *mockQuoteRepo) Get(_ context.Context, id int64) (*Quotation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quotes[id]
	if !ok {
		return nil, ErrNotFound
	}
	q.Items = q.CloneItems()
	return &q, nil
}

func (m *mockQuoteRepo) List(context.Context, ListQuotationsRequest) ([]QuotationSummary, int, error) {
	return nil, 0, nil
}

func (m *mockQuoteRepo) Create(_ context.Context, q Quotation) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q.ID = int64(len(m.quotes) + 1)
	q.Version = 1
	m.quotes[q.ID] = q
	return q.ID, nil
}

func (m *mockQuoteRepo) Save(_ context.Context, q Quotation, baseVersion int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	stored, ok := m.quotes[q.ID]
	if !ok {
		return 0, ErrNotFound
	}
	if stored.Version != baseVersion {
		return 0, editor.ErrVersionConflict
	}
	q.Version = baseVersion + 1
	m.quotes[q.ID] = q
	return q.Version, nil
}

func (m *mockQuoteRepo) UpdateStatus(_ context.Context, id int64, status QuotationStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quotes[id]
	if !ok {
		return ErrNotFound
	}
	q.Status = status
	if status == QuotationStatusSent && q.SentAt == nil {
		now := time.Now()
		q.SentAt = &now
	}
	q.Version++
	m.quotes[id] = q
	return nil
}

func (m *mockQuoteRepo) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.quotes, id)
	return nil
}

func (m *mockQuoteRepo) GenerateNumber(context.Context) (string, error) {
	return "PRE-0001", nil
}

func (m *mockQuoteRepo) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *mockQuoteRepo) stored(id int64) Quotation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.quotes[id]
}

type stubLookup struct {
	ref catalog.Reference
}

func (s stubLookup) Lookup(context.Context) (*catalog.Reference, error) {
	ref := s.ref
	return &ref, nil
}

func seedQuote(t *testing.T, repo *mockQuoteRepo) int64 {
	t.Helper()
	id, err := repo.Create(context.Background(), Quotation{
		DocNumber: "PRE-0001",
		ClientID:  1,
		Status:    QuotationStatusDraft,
	})
	require.NoError(t, err)
	return id
}

func openTestEditor(t *testing.T, repo *mockQuoteRepo, id int64) *Editor {
	t.Helper()
	e, err := OpenEditor(context.Background(), id, EditorDeps{
		Repo:        repo,
		Lookup:      stubLookup{ref: testReference()},
		QuietPeriod: quiet,
	})
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

func TestEditorCoalescesEditsAndPersistsTotals(t *testing.T) {
	repo := newMockQuoteRepo()
	id := seedQuote(t, repo)
	e := openTestEditor(t, repo, id)

	itemID, err := e.AddItem(QuoteItemRequest{
		Description: "Calibración espectrofotómetro", Quantity: 10, UnitPrice: 50,
		TaxCategoryID: ptr(int64(1)),
	})
	require.NoError(t, err)
	require.NoError(t, e.UpdateItem(itemID, QuoteItemRequest{
		Description: "Calibración espectrofotómetro", Quantity: 10, UnitPrice: 100,
		TaxCategoryID: ptr(int64(1)),
	}))
	require.NoError(t, e.SetTechnicalNotes(ptr("incluye certificado")))

	require.Eventually(t, func() bool {
		return repo.saveCount() == 1 && !e.Dirty()
	}, time.Second, time.Millisecond)

	stored := repo.stored(id)
	assert.Equal(t, 1, repo.saveCount(), "burst of edits must persist once")
	require.Len(t, stored.Items, 1)
	assert.InDelta(t, 1000, stored.Items[0].Subtotal, 1e-9)
	assert.InDelta(t, 1000, stored.Subtotal, 1e-9)
	assert.InDelta(t, 1318.9, stored.Total, 1e-9)
	assert.Equal(t, int64(2), stored.Version)
}

func TestEditorOpenDoesNotSave(t *testing.T) {
	repo := newMockQuoteRepo()
	id := seedQuote(t, repo)
	e := openTestEditor(t, repo, id)

	time.Sleep(4 * quiet)
	assert.Zero(t, repo.saveCount())
	assert.False(t, e.Dirty())
}

func TestEditorSentDateStampedOnceAtomically(t *testing.T) {
	repo := newMockQuoteRepo()
	id := seedQuote(t, repo)
	e := openTestEditor(t, repo, id)

	require.NoError(t, e.SetStatus(QuotationStatusSent))
	doc, _ := e.Document()
	require.NotNil(t, doc.SentAt, "sent date must be set in the same mutation as the status")

	require.NoError(t, e.Flush(context.Background()))
	stored := repo.stored(id)
	require.NotNil(t, stored.SentAt)
	firstSent := *stored.SentAt

	// Later transitions must not move the sent date.
	require.NoError(t, e.SetStatus(QuotationStatusFollowUp))
	require.NoError(t, e.SetStatus(QuotationStatusSent))
	require.NoError(t, e.Flush(context.Background()))

	stored = repo.stored(id)
	require.NotNil(t, stored.SentAt)
	assert.Equal(t, firstSent, *stored.SentAt)
}

func TestEditorRejectsUnknownStatus(t *testing.T) {
	repo := newMockQuoteRepo()
	id := seedQuote(t, repo)
	e := openTestEditor(t, repo, id)

	err := e.SetStatus("SHIPPED")
	assert.ErrorIs(t, err, ErrInvalidStatus)
	assert.False(t, e.Dirty())
}

func TestEditorCloseDiscardsPendingEdits(t *testing.T) {
	repo := newMockQuoteRepo()
	id := seedQuote(t, repo)
	e := openTestEditor(t, repo, id)

	_, err := e.AddItem(QuoteItemRequest{Description: "no persistir", Quantity: 1, UnitPrice: 10})
	require.NoError(t, err)
	e.Close()

	time.Sleep(4 * quiet)
	assert.Zero(t, repo.saveCount())
	stored := repo.stored(id)
	assert.Empty(t, stored.Items)
}

func TestEditorSurfacesVersionConflict(t *testing.T) {
	repo := newMockQuoteRepo()
	id := seedQuote(t, repo)

	errs := make(chan error, 1)
	e, err := OpenEditor(context.Background(), id, EditorDeps{
		Repo:        repo,
		Lookup:      stubLookup{ref: testReference()},
		QuietPeriod: quiet,
		OnError:     func(err error) { errs <- err },
	})
	require.NoError(t, err)
	t.Cleanup(e.Close)

	// Another writer moves the stored version.
	require.NoError(t, repo.UpdateStatus(context.Background(), id, QuotationStatusOnHold))

	require.NoError(t, e.SetTechnicalNotes(ptr("edición obsoleta")))
	select {
	case err := <-errs:
		assert.ErrorIs(t, err, editor.ErrVersionConflict)
	case <-time.After(time.Second):
		t.Fatal("conflict never reported")
	}
	assert.True(t, e.Dirty())
}

func TestEditorRemoveItemRecomputesTotals(t *testing.T) {
	repo := newMockQuoteRepo()
	id := seedQuote(t, repo)
	e := openTestEditor(t, repo, id)

	keep, err := e.AddItem(QuoteItemRequest{Description: "mantener", Quantity: 1, UnitPrice: 100})
	require.NoError(t, err)
	drop, err := e.AddItem(QuoteItemRequest{Description: "quitar", Quantity: 1, UnitPrice: 900})
	require.NoError(t, err)
	require.NoError(t, e.RemoveItem(drop))
	require.NoError(t, e.Flush(context.Background()))

	stored := repo.stored(id)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, keep, stored.Items[0].ID)
	assert.InDelta(t, 100, stored.Total, 1e-9)
}
