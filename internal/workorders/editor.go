package workorders

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-lsm/meridian/internal/editor"
	"github.com/meridian-lsm/meridian/internal/observability"
)

const editorKind = "work-order"

// Editor is the debounced editing session over one work order. A FINALIZED
// order seeds a read-only session: every mutator reports ErrFinalized.
type Editor struct {
	session *editor.Session[WorkOrder]
}

type EditorDeps struct {
	Repo        Repository
	Metrics     *observability.Metrics
	QuietPeriod time.Duration
	OnSaved     func(WorkOrder, int64)
	OnError     func(error)
}

func OpenEditor(ctx context.Context, id int64, deps EditorDeps) (*Editor, error) {
	o, err := deps.Repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	e := &Editor{}

	opts := []editor.Option[WorkOrder]{
		editor.WithClone[WorkOrder](WorkOrder.Clone),
		editor.WithFinalize[WorkOrder](func(o *WorkOrder) {
			o.BudgetRefs = NormalizeBudgetRefs(o.BudgetRefs)
		}),
	}
	if deps.QuietPeriod > 0 {
		opts = append(opts, editor.WithQuietPeriod[WorkOrder](deps.QuietPeriod))
	}
	if deps.OnSaved != nil {
		opts = append(opts, editor.WithOnSaved[WorkOrder](deps.OnSaved))
	}
	if deps.OnError != nil {
		opts = append(opts, editor.WithOnError[WorkOrder](deps.OnError))
	}
	if deps.Metrics != nil {
		opts = append(opts, editor.WithObserver[WorkOrder](func(outcome string, mutations int) {
			deps.Metrics.ObserveEditorSave(editorKind, outcome)
			deps.Metrics.ObserveEditorCoalesced(editorKind, mutations-1)
		}))
	}

	e.session = editor.NewSession(func(ctx context.Context, snapshot WorkOrder, base int64) (int64, error) {
		return deps.Repo.Save(ctx, snapshot, base)
	}, opts...)

	if err := e.session.Seed(*o, o.Version); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Editor) Document() (WorkOrder, int64) { return e.session.Snapshot() }

func (e *Editor) Dirty() bool { return e.session.Dirty() }

func (e *Editor) Close() { e.session.Close() }

func (e *Editor) Flush(ctx context.Context) error { return e.session.Flush(ctx) }

// mutate guards every edit behind the terminal-status check.
func (e *Editor) mutate(name string, apply func(*WorkOrder)) error {
	doc, _ := e.session.Snapshot()
	if doc.Finalized() {
		return ErrFinalized
	}
	return e.session.Mutate(editor.Mutation[WorkOrder]{Name: name, Apply: apply})
}

func (e *Editor) SetSystemRef(id *int64) error {
	return e.mutate("set-system-ref", func(o *WorkOrder) { o.SystemID = id })
}

func (e *Editor) SetServiceType(id *int64) error {
	return e.mutate("set-service-type", func(o *WorkOrder) { o.ServiceTypeID = id })
}

func (e *Editor) SetFlags(billable, underContract, underWarranty bool) error {
	return e.mutate("set-flags", func(o *WorkOrder) {
		o.Billable = billable
		o.UnderContract = underContract
		o.UnderWarranty = underWarranty
	})
}

// Cleared text fields become nil and are persisted as NULLs.
func (e *Editor) SetProblemReported(v *string) error {
	return e.mutate("set-problem-reported", func(o *WorkOrder) { o.ProblemReported = cleanText(v) })
}

func (e *Editor) SetWorkPerformed(v *string) error {
	return e.mutate("set-work-performed", func(o *WorkOrder) { o.WorkPerformed = cleanText(v) })
}

func (e *Editor) SetObservations(v *string) error {
	return e.mutate("set-observations", func(o *WorkOrder) { o.Observations = cleanText(v) })
}

func (e *Editor) SetBudgetRefs(refs []string) error {
	return e.mutate("set-budget-refs", func(o *WorkOrder) { o.BudgetRefs = refs })
}

func (e *Editor) UpsertPart(req PartRequest) (uuid.UUID, error) {
	id := uuid.New()
	if req.ID != nil {
		id = *req.ID
	}
	err := e.mutate("upsert-part", func(o *WorkOrder) {
		for i := range o.Parts {
			if o.Parts[i].ID == id {
				o.Parts[i].Code = req.Code
				o.Parts[i].Description = req.Description
				o.Parts[i].Quantity = req.Quantity
				o.Parts[i].Origin = req.Origin
				return
			}
		}
		o.Parts = append(o.Parts, Part{
			ID:          id,
			Code:        req.Code,
			Description: req.Description,
			Quantity:    req.Quantity,
			Origin:      req.Origin,
		})
	})
	return id, err
}

func (e *Editor) RemovePart(id uuid.UUID) error {
	return e.mutate("remove-part", func(o *WorkOrder) {
		parts := make([]Part, 0, len(o.Parts))
		for _, p := range o.Parts {
			if p.ID != id {
				parts = append(parts, p)
			}
		}
		o.Parts = parts
	})
}

// cleanText maps empty strings to nil, the way the detail form clears fields.
func cleanText(v *string) *string {
	if v == nil || *v == "" {
		return nil
	}
	return v
}
