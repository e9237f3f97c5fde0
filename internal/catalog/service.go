package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
)

const referenceCacheKey = "catalog:reference:v1"

// Service exposes catalog administration and the cached reference lookup the
// editors use during their load phase.
type Service struct {
	repo     Repository
	cache    *redis.Client
	cacheTTL time.Duration
	logger   *slog.Logger
	validate *validator.Validate
}

func NewService(repo Repository, cache *redis.Client, cacheTTL time.Duration, logger *slog.Logger) *Service {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &Service{
		repo:     repo,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
		validate: validator.New(),
	}
}

// Lookup returns the active reference data, served from redis when fresh.
// Cache failures fall through to the database and are logged, never fatal.
func (s *Service) Lookup(ctx context.Context) (*Reference, error) {
	if s.cache != nil {
		payload, err := s.cache.Get(ctx, referenceCacheKey).Bytes()
		if err == nil {
			var ref Reference
			if err := json.Unmarshal(payload, &ref); err == nil {
				return &ref, nil
			}
			s.logger.Warn("catalog cache payload corrupt, refreshing", slog.Any("error", err))
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn("catalog cache read failed", slog.Any("error", err))
		}
	}

	ref, err := s.loadReference(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		payload, err := json.Marshal(ref)
		if err == nil {
			if err := s.cache.Set(ctx, referenceCacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn("catalog cache write failed", slog.Any("error", err))
			}
		}
	}
	return ref, nil
}

func (s *Service) loadReference(ctx context.Context) (*Reference, error) {
	categories, err := s.repo.ListTaxCategories(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("list tax categories: %w", err)
	}
	terms, err := s.repo.ListPaymentTerms(ctx)
	if err != nil {
		return nil, fmt.Errorf("list payment terms: %w", err)
	}
	types, err := s.repo.ListServiceTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list service types: %w", err)
	}
	return &Reference{TaxCategories: categories, PaymentTerms: terms, ServiceTypes: types}, nil
}

// Invalidate drops the cached reference so the next Lookup reloads it.
func (s *Service) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, referenceCacheKey).Err(); err != nil {
		s.logger.Warn("catalog cache invalidation failed", slog.Any("error", err))
	}
}

func (s *Service) GetTaxCategory(ctx context.Context, id int64) (*TaxCategory, error) {
	return s.repo.GetTaxCategory(ctx, id)
}

func (s *Service) ListTaxCategories(ctx context.Context, includeInactive bool) ([]TaxCategory, error) {
	return s.repo.ListTaxCategories(ctx, includeInactive)
}

func (s *Service) CreateTaxCategory(ctx context.Context, req CreateTaxCategoryRequest) (*TaxCategory, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	category := TaxCategory{
		Name:                 req.Name,
		AppliesVAT:           req.AppliesVAT,
		VATRate:              req.VATRate,
		ReducedVATRate:       req.ReducedVATRate,
		AppliesIncomeTax:     req.AppliesIncomeTax,
		IncomeTaxRate:        req.IncomeTaxRate,
		AppliesGrossReceipts: req.AppliesGrossReceipts,
		GrossReceiptsRate:    req.GrossReceiptsRate,
	}
	id, err := s.repo.CreateTaxCategory(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("create tax category: %w", err)
	}
	s.Invalidate(ctx)
	return s.repo.GetTaxCategory(ctx, id)
}

func (s *Service) UpdateTaxCategory(ctx context.Context, id int64, req UpdateTaxCategoryRequest) (*TaxCategory, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	existing, err := s.repo.GetTaxCategory(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get tax category: %w", err)
	}

	if req.Name != nil {
		existing.Name = *req.Name
	}
	if req.AppliesVAT != nil {
		existing.AppliesVAT = *req.AppliesVAT
	}
	if req.VATRate != nil {
		existing.VATRate = *req.VATRate
	}
	if req.ReducedVATRate != nil {
		existing.ReducedVATRate = req.ReducedVATRate
	}
	if req.AppliesIncomeTax != nil {
		existing.AppliesIncomeTax = *req.AppliesIncomeTax
	}
	if req.IncomeTaxRate != nil {
		existing.IncomeTaxRate = *req.IncomeTaxRate
	}
	if req.AppliesGrossReceipts != nil {
		existing.AppliesGrossReceipts = *req.AppliesGrossReceipts
	}
	if req.GrossReceiptsRate != nil {
		existing.GrossReceiptsRate = *req.GrossReceiptsRate
	}
	if req.Active != nil {
		existing.Active = *req.Active
	}

	if err := s.repo.UpdateTaxCategory(ctx, *existing); err != nil {
		return nil, fmt.Errorf("update tax category: %w", err)
	}
	s.Invalidate(ctx)
	return s.repo.GetTaxCategory(ctx, id)
}
