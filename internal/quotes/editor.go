package quotes

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-lsm/meridian/internal/catalog"
	"github.com/meridian-lsm/meridian/internal/editor"
	"github.com/meridian-lsm/meridian/internal/observability"
)

const editorKind = "quote"

// Editor is a debounced editing session over one quotation. Mutations applied
// through it are coalesced and persisted with compare-and-swap saves;
// totals are recomputed from the loaded tax categories before every write.
type Editor struct {
	session *editor.Session[Quotation]
	ref     catalog.Reference
	now     func() time.Time
}

// EditorDeps carries the collaborators an Editor needs.
type EditorDeps struct {
	Repo        Repository
	Lookup      ReferenceLookup
	Metrics     *observability.Metrics
	QuietPeriod time.Duration
	OnSaved     func(Quotation, int64)
	OnError     func(error)
}

// OpenEditor loads the quotation and the catalog reference in parallel and
// returns a seeded session. The load phase never arms the save timer.
func OpenEditor(ctx context.Context, id int64, deps EditorDeps) (*Editor, error) {
	var (
		q   *Quotation
		ref *catalog.Reference
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		q, err = deps.Repo.Get(gctx, id)
		if err != nil {
			return fmt.Errorf("load quotation: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		ref, err = deps.Lookup.Lookup(gctx)
		if err != nil {
			return fmt.Errorf("load catalog reference: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	e := &Editor{ref: *ref, now: time.Now}

	opts := []editor.Option[Quotation]{
		editor.WithClone[Quotation](func(q Quotation) Quotation {
			q.Items = q.CloneItems()
			return q
		}),
		editor.WithFinalize[Quotation](func(q *Quotation) {
			applyTotals(q, e.ref)
		}),
	}
	if deps.QuietPeriod > 0 {
		opts = append(opts, editor.WithQuietPeriod[Quotation](deps.QuietPeriod))
	}
	if deps.OnSaved != nil {
		opts = append(opts, editor.WithOnSaved[Quotation](deps.OnSaved))
	}
	if deps.OnError != nil {
		opts = append(opts, editor.WithOnError[Quotation](deps.OnError))
	}
	if deps.Metrics != nil {
		opts = append(opts, editor.WithObserver[Quotation](func(outcome string, mutations int) {
			deps.Metrics.ObserveEditorSave(editorKind, outcome)
			deps.Metrics.ObserveEditorCoalesced(editorKind, mutations-1)
		}))
	}

	e.session = editor.NewSession(func(ctx context.Context, snapshot Quotation, base int64) (int64, error) {
		return deps.Repo.Save(ctx, snapshot, base)
	}, opts...)

	if err := e.session.Seed(*q, q.Version); err != nil {
		return nil, err
	}
	return e, nil
}

// Reference exposes the catalog data loaded for this session.
func (e *Editor) Reference() catalog.Reference { return e.ref }

// Document returns the current in-memory quotation and its base version.
func (e *Editor) Document() (Quotation, int64) { return e.session.Snapshot() }

// Totals computes the tax totals of the current in-memory document.
func (e *Editor) Totals() QuoteTotals {
	q, _ := e.session.Snapshot()
	return Totals(q.Items, e.ref)
}

func (e *Editor) Dirty() bool { return e.session.Dirty() }

func (e *Editor) Flush(ctx context.Context) error { return e.session.Flush(ctx) }

func (e *Editor) Close() { e.session.Close() }

func (e *Editor) SetSystemRef(id *int64) error {
	return e.session.Mutate(editor.Mutation[Quotation]{
		Name: "set-system-ref",
		Apply: func(q *Quotation) { q.SystemID = id },
	})
}

func (e *Editor) SetExchangeRate(rate *float64) error {
	return e.session.Mutate(editor.Mutation[Quotation]{
		Name: "set-exchange-rate",
		Apply: func(q *Quotation) { q.ExchangeRate = rate },
	})
}

func (e *Editor) SetPaymentTerm(id *int64) error {
	return e.session.Mutate(editor.Mutation[Quotation]{
		Name: "set-payment-term",
		Apply: func(q *Quotation) { q.PaymentTermID = id },
	})
}

func (e *Editor) SetTechnicalNotes(notes *string) error {
	return e.session.Mutate(editor.Mutation[Quotation]{
		Name: "set-technical-notes",
		Apply: func(q *Quotation) { q.TechnicalNotes = notes },
	})
}

func (e *Editor) SetValidUntil(deadline *time.Time) error {
	return e.session.Mutate(editor.Mutation[Quotation]{
		Name: "set-valid-until",
		Apply: func(q *Quotation) { q.ValidUntil = deadline },
	})
}

// SetStatus changes the lifecycle status. The first transition to SENT stamps
// the sent date immediately, in the same mutation, so the date is persisted
// atomically with the status.
func (e *Editor) SetStatus(status QuotationStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return e.session.Mutate(editor.Mutation[Quotation]{
		Name: "set-status",
		Apply: func(q *Quotation) {
			q.Status = status
			if status == QuotationStatusSent && q.SentAt == nil {
				now := e.now()
				q.SentAt = &now
			}
		},
	})
}

// AddItem appends a new line and returns its generated id.
func (e *Editor) AddItem(req QuoteItemRequest) (uuid.UUID, error) {
	id := uuid.New()
	if req.ID != nil {
		id = *req.ID
	}
	err := e.session.Mutate(editor.Mutation[Quotation]{
		Name: "add-item",
		Apply: func(q *Quotation) {
			q.Items = append(q.Items, QuoteItem{
				ID:            id,
				Description:   req.Description,
				Quantity:      req.Quantity,
				Unit:          req.Unit,
				UnitPrice:     req.UnitPrice,
				TaxCategoryID: req.TaxCategoryID,
				Subtotal:      req.Quantity * req.UnitPrice,
				Position:      len(q.Items) + 1,
			})
		},
	})
	return id, err
}

// UpdateItem replaces the editable fields of one line; the subtotal is
// re-derived from quantity and unit price.
func (e *Editor) UpdateItem(id uuid.UUID, req QuoteItemRequest) error {
	return e.session.Mutate(editor.Mutation[Quotation]{
		Name: "update-item",
		Apply: func(q *Quotation) {
			for i := range q.Items {
				if q.Items[i].ID != id {
					continue
				}
				q.Items[i].Description = req.Description
				q.Items[i].Quantity = req.Quantity
				q.Items[i].Unit = req.Unit
				q.Items[i].UnitPrice = req.UnitPrice
				q.Items[i].TaxCategoryID = req.TaxCategoryID
				q.Items[i].Subtotal = req.Quantity * req.UnitPrice
				return
			}
		},
	})
}

func (e *Editor) RemoveItem(id uuid.UUID) error {
	return e.session.Mutate(editor.Mutation[Quotation]{
		Name: "remove-item",
		Apply: func(q *Quotation) {
			items := q.Items[:0]
			for _, it := range q.Items {
				if it.ID != id {
					items = append(items, it)
				}
			}
			q.Items = items
		},
	})
}
