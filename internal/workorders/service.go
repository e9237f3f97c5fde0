package workorders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/meridian-lsm/meridian/internal/clients"
)

var ErrFinalized = errors.New("work order is finalized and read-only")

// IntakeNotifier appends the finalize note to linked intake records.
type IntakeNotifier interface {
	NotifyWorkOrderFinalized(ctx context.Context, workOrderID int64, note string) (int, error)
}

// TaskEnqueuer schedules the background reconciliation that re-runs the
// intake notification in case the direct attempt failed.
type TaskEnqueuer interface {
	EnqueueIntakeSync(ctx context.Context, workOrderID int64, note string) error
}

type Service struct {
	repo       Repository
	clientRepo clients.Repository
	notifier   IntakeNotifier
	enqueuer   TaskEnqueuer
	logger     *slog.Logger
	validate   *validator.Validate
	now        func() time.Time
}

func NewService(repo Repository, clientRepo clients.Repository, notifier IntakeNotifier,
	enqueuer TaskEnqueuer, logger *slog.Logger) *Service {
	return &Service{
		repo:       repo,
		clientRepo: clientRepo,
		notifier:   notifier,
		enqueuer:   enqueuer,
		logger:     logger,
		validate:   validator.New(),
		now:        time.Now,
	}
}

func (s *Service) Create(ctx context.Context, req CreateWorkOrderRequest) (*WorkOrder, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	if _, err := s.clientRepo.Get(ctx, req.ClientID); err != nil {
		return nil, fmt.Errorf("verify client: %w", err)
	}

	number, err := s.repo.GenerateNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("generate order number: %w", err)
	}

	o := WorkOrder{
		OrderNumber:     number,
		ClientID:        req.ClientID,
		SystemID:        req.SystemID,
		ServiceTypeID:   req.ServiceTypeID,
		Status:          WorkOrderStatusDraft,
		Billable:        req.Billable,
		UnderContract:   req.UnderContract,
		UnderWarranty:   req.UnderWarranty,
		ProblemReported: req.ProblemReported,
		BudgetRefs:      NormalizeBudgetRefs(req.BudgetRefs),
	}
	id, err := s.repo.Create(ctx, o)
	if err != nil {
		return nil, fmt.Errorf("create work order: %w", err)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Get(ctx context.Context, id int64) (*WorkOrder, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, req ListWorkOrdersRequest) ([]WorkOrderSummary, int, error) {
	if req.Limit <= 0 {
		req.Limit = 50
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, req)
}

// Update applies a partial update through the compare-and-swap save. Cleared
// tri-state fields are written as NULLs; finalized orders reject every edit.
func (s *Service) Update(ctx context.Context, id int64, req UpdateWorkOrderRequest) (*WorkOrder, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get work order: %w", err)
	}
	if existing.Finalized() {
		return nil, ErrFinalized
	}

	req.SystemID.Apply(&existing.SystemID)
	req.ServiceTypeID.Apply(&existing.ServiceTypeID)
	if req.Billable != nil {
		existing.Billable = *req.Billable
	}
	if req.UnderContract != nil {
		existing.UnderContract = *req.UnderContract
	}
	if req.UnderWarranty != nil {
		existing.UnderWarranty = *req.UnderWarranty
	}
	req.ProblemReported.Apply(&existing.ProblemReported)
	req.WorkPerformed.Apply(&existing.WorkPerformed)
	req.Observations.Apply(&existing.Observations)
	if req.BudgetRefs != nil {
		existing.BudgetRefs = *req.BudgetRefs
	}
	if req.Parts != nil {
		existing.Parts = buildParts(*req.Parts)
	}
	existing.BudgetRefs = NormalizeBudgetRefs(existing.BudgetRefs)

	baseVersion := existing.Version
	if req.BaseVersion > 0 {
		baseVersion = req.BaseVersion
	}
	if _, err := s.repo.Save(ctx, *existing, baseVersion); err != nil {
		return nil, fmt.Errorf("save work order: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// AddItem appends a child line numbered after the existing ones.
func (s *Service) AddItem(ctx context.Context, orderID int64, req AddItemRequest) (*WorkOrder, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	existing, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get work order: %w", err)
	}
	if existing.Finalized() {
		return nil, ErrFinalized
	}

	item := WorkOrderItem{
		ItemNumber:  ChildItemNumber(existing.OrderNumber, len(existing.Items)+1),
		Description: req.Description,
	}
	if _, err := s.repo.AddItem(ctx, orderID, item); err != nil {
		return nil, fmt.Errorf("add work order item: %w", err)
	}
	return s.repo.Get(ctx, orderID)
}

// Finalize moves the order to its terminal state and notifies the linked
// intake records. The notification is best effort: a failure is logged and
// handed to the queued reconciliation task, never unwound into the save.
func (s *Service) Finalize(ctx context.Context, id int64) (*WorkOrder, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get work order: %w", err)
	}
	if existing.Finalized() {
		return nil, ErrFinalized
	}

	now := s.now()
	existing.Status = WorkOrderStatusFinalized
	existing.FinalizedAt = &now
	existing.BudgetRefs = NormalizeBudgetRefs(existing.BudgetRefs)
	if _, err := s.repo.Save(ctx, *existing, existing.Version); err != nil {
		return nil, fmt.Errorf("finalize work order: %w", err)
	}

	s.notifyFinalized(ctx, *existing)
	return s.repo.Get(ctx, id)
}

func (s *Service) notifyFinalized(ctx context.Context, o WorkOrder) {
	note := finalizeNote(o.OrderNumber)
	if s.notifier != nil {
		if _, err := s.notifier.NotifyWorkOrderFinalized(ctx, o.ID, note); err != nil {
			s.logger.Warn("intake notification failed, deferring to reconciliation",
				slog.Int64("work_order_id", o.ID), slog.Any("error", err))
		}
	}
	if s.enqueuer != nil {
		if err := s.enqueuer.EnqueueIntakeSync(ctx, o.ID, note); err != nil {
			s.logger.Warn("enqueue intake sync failed",
				slog.Int64("work_order_id", o.ID), slog.Any("error", err))
		}
	}
}

func finalizeNote(orderNumber string) string {
	return fmt.Sprintf("OT %s finalizada", orderNumber)
}

func buildParts(reqs []PartRequest) []Part {
	parts := make([]Part, 0, len(reqs))
	for _, req := range reqs {
		id := uuid.New()
		if req.ID != nil {
			id = *req.ID
		}
		parts = append(parts, Part{
			ID:          id,
			Code:        req.Code,
			Description: req.Description,
			Quantity:    req.Quantity,
			Origin:      req.Origin,
		})
	}
	return parts
}
