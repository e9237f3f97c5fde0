package quotes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/meridian-lsm/meridian/internal/catalog"
	"github.com/meridian-lsm/meridian/internal/clients"
)

var ErrInvalidStatus = errors.New("invalid quotation status")

// Service implements quotation operations. Totals are never trusted from the
// caller: every write recomputes item subtotals and the cached totals from
// the current tax categories.
type Service struct {
	repo       Repository
	clientRepo clients.Repository
	lookup     ReferenceLookup
	validate   *validator.Validate
	now        func() time.Time
}

// ReferenceLookup resolves the catalog reference data used for tax math.
type ReferenceLookup interface {
	Lookup(ctx context.Context) (*catalog.Reference, error)
}

func NewService(repo Repository, clientRepo clients.Repository, lookup ReferenceLookup) *Service {
	return &Service{
		repo:       repo,
		clientRepo: clientRepo,
		lookup:     lookup,
		validate:   validator.New(),
		now:        time.Now,
	}
}

func (s *Service) Create(ctx context.Context, req CreateQuotationRequest) (*Quotation, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	if _, err := s.clientRepo.Get(ctx, req.ClientID); err != nil {
		return nil, fmt.Errorf("verify client: %w", err)
	}

	ref, err := s.lookup.Lookup(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog reference: %w", err)
	}

	docNumber, err := s.repo.GenerateNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("generate doc number: %w", err)
	}

	q := Quotation{
		DocNumber:      docNumber,
		ClientID:       req.ClientID,
		SystemID:       req.SystemID,
		Status:         QuotationStatusDraft,
		ExchangeRate:   req.ExchangeRate,
		PaymentTermID:  req.PaymentTermID,
		TechnicalNotes: req.TechnicalNotes,
		ValidUntil:     req.ValidUntil,
		Items:          buildItems(req.Items),
	}
	applyTotals(&q, *ref)

	id, err := s.repo.Create(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("create quotation: %w", err)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Get(ctx context.Context, id int64) (*Quotation, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, req ListQuotationsRequest) ([]QuotationSummary, int, error) {
	if req.Limit <= 0 {
		req.Limit = 50
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, req)
}

// Update applies a partial header/items update through the same
// compare-and-swap save the editor uses.
func (s *Service) Update(ctx context.Context, id int64, req UpdateQuotationRequest) (*Quotation, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get quotation: %w", err)
	}

	ref, err := s.lookup.Lookup(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog reference: %w", err)
	}

	req.SystemID.Apply(&existing.SystemID)
	req.ExchangeRate.Apply(&existing.ExchangeRate)
	req.PaymentTermID.Apply(&existing.PaymentTermID)
	req.TechnicalNotes.Apply(&existing.TechnicalNotes)
	req.ValidUntil.Apply(&existing.ValidUntil)
	if req.Items != nil {
		existing.Items = buildItems(*req.Items)
	}
	applyTotals(existing, *ref)

	baseVersion := existing.Version
	if req.BaseVersion > 0 {
		baseVersion = req.BaseVersion
	}
	if _, err := s.repo.Save(ctx, *existing, baseVersion); err != nil {
		return nil, fmt.Errorf("save quotation: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// UpdateStatus transitions the quotation. The first transition to SENT stamps
// the sent date; later transitions never touch it.
func (s *Service) UpdateStatus(ctx context.Context, id int64, status QuotationStatus) (*Quotation, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, fmt.Errorf("get quotation: %w", err)
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, fmt.Errorf("update quotation status: %w", err)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// buildItems normalizes request items: stable uuids, sequential positions for
// unspecified ones, and subtotals derived from quantity and unit price.
func buildItems(reqs []QuoteItemRequest) []QuoteItem {
	items := make([]QuoteItem, 0, len(reqs))
	for i, req := range reqs {
		id := uuid.New()
		if req.ID != nil {
			id = *req.ID
		}
		position := req.Position
		if position == 0 {
			position = i + 1
		}
		items = append(items, QuoteItem{
			ID:            id,
			Description:   req.Description,
			Quantity:      req.Quantity,
			Unit:          req.Unit,
			UnitPrice:     req.UnitPrice,
			TaxCategoryID: req.TaxCategoryID,
			Subtotal:      req.Quantity * req.UnitPrice,
			Position:      position,
		})
	}
	return items
}

// applyTotals recomputes every item subtotal and the cached quotation totals.
func applyTotals(q *Quotation, ref catalog.Reference) {
	for i := range q.Items {
		q.Items[i].Subtotal = q.Items[i].Quantity * q.Items[i].UnitPrice
	}
	totals := Totals(q.Items, ref)
	q.Subtotal = totals.Subtotal
	q.Total = totals.Total
}
