package intake

import (
	"context"
	"fmt"
	"log/slog"
)

// Service wraps the intake repository with the notification entry point the
// work-order finalize flow calls.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) Get(ctx context.Context, id int64) (*Record, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) ListByWorkOrder(ctx context.Context, workOrderID int64) ([]Record, error) {
	return s.repo.ListByWorkOrder(ctx, workOrderID)
}

func (s *Service) UpdateStatus(ctx context.Context, id int64, status Status) (*Record, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("unknown intake status %q", status)
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// NotifyWorkOrderFinalized appends a history note to every linked record that
// has not been delivered yet. The append is idempotent, so the direct attempt
// at finalize time and the queued reconciliation job can both run safely.
// Returns the number of records that received a new entry.
func (s *Service) NotifyWorkOrderFinalized(ctx context.Context, workOrderID int64, note string) (int, error) {
	records, err := s.repo.ListByWorkOrder(ctx, workOrderID)
	if err != nil {
		return 0, fmt.Errorf("list intake records: %w", err)
	}

	appended := 0
	for _, rec := range records {
		if rec.Status == StatusDelivered {
			continue
		}
		inserted, err := s.repo.AppendHistory(ctx, HistoryEntry{
			RecordID:    rec.ID,
			WorkOrderID: &workOrderID,
			Note:        note,
		})
		if err != nil {
			return appended, fmt.Errorf("append history to record %d: %w", rec.ID, err)
		}
		if inserted {
			appended++
		}
	}
	if appended > 0 {
		s.logger.Info("intake records notified of finalized work order",
			slog.Int64("work_order_id", workOrderID), slog.Int("records", appended))
	}
	return appended, nil
}
