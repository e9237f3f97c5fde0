package clients

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
)

type Service struct {
	repo     Repository
	validate *validator.Validate
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, validate: validator.New()}
}

func (s *Service) Get(ctx context.Context, id int64) (*Client, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, req ListClientsRequest) ([]Client, int, error) {
	if req.Limit <= 0 {
		req.Limit = 50
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, req)
}

func (s *Service) Create(ctx context.Context, req CreateClientRequest) (*Client, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	c := Client{
		CompanyName: req.CompanyName,
		TaxID:       req.TaxID,
		Address:     req.Address,
		City:        req.City,
		Notes:       req.Notes,
	}
	for _, ct := range req.Contacts {
		c.Contacts = append(c.Contacts, Contact{
			Name:  ct.Name,
			Email: ct.Email,
			Phone: ct.Phone,
			Role:  ct.Role,
		})
	}
	id, err := s.repo.Create(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Update(ctx context.Context, id int64, req UpdateClientRequest) (*Client, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}
	if req.CompanyName != nil {
		existing.CompanyName = *req.CompanyName
	}
	if req.TaxID != nil {
		existing.TaxID = req.TaxID
	}
	if req.Address != nil {
		existing.Address = req.Address
	}
	if req.City != nil {
		existing.City = req.City
	}
	if req.Notes != nil {
		existing.Notes = req.Notes
	}
	if req.Active != nil {
		existing.Active = *req.Active
	}
	if err := s.repo.Update(ctx, *existing); err != nil {
		return nil, fmt.Errorf("update client: %w", err)
	}
	return s.repo.Get(ctx, id)
}
