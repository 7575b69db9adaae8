package products

import (
	"context"
	"fmt"
	"time"

	"github.com/gapal/gapal/internal/platform/httpx"
)

// ExpiryWindow is how far ahead the expiration scan looks.
const ExpiryWindow = 7 * 24 * time.Hour

// Service coordinates catalog operations.
type Service struct {
	repo *Repository
}

// NewService builds Service.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		if err == ErrNotFound {
			return Product{}, fmt.Errorf("%w: product %d", httpx.ErrNotFound, id)
		}
		return Product{}, err
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]Product, error) {
	return s.repo.List(ctx, filter)
}

// ListExpiring returns active products whose expiration date falls within the
// expiry window. Used by the expiration scan job.
func (s *Service) ListExpiring(ctx context.Context) ([]Product, error) {
	return s.repo.List(ctx, ListFilter{ActiveOnly: true, ExpiringWithin: ExpiryWindow})
}

func (s *Service) Create(ctx context.Context, req CreateProductRequest) (Product, error) {
	unit := Unit(req.Unit)
	if !unit.Valid() {
		return Product{}, fmt.Errorf("%w: unknown unit %q", httpx.ErrValidation, req.Unit)
	}
	p := Product{
		Name:           req.Name,
		Description:    req.Description,
		UnitPrice:      req.UnitPrice,
		Unit:           unit,
		MinStockLevel:  req.MinStockLevel,
		ExpirationDate: req.ExpirationDate,
		Active:         true,
	}
	id, err := s.repo.Create(ctx, p)
	if err != nil {
		return Product{}, fmt.Errorf("create product: %w", err)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Update(ctx context.Context, id int64, req UpdateProductRequest) (Product, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		if err == ErrNotFound {
			return Product{}, fmt.Errorf("%w: product %d", httpx.ErrNotFound, id)
		}
		return Product{}, err
	}
	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.UnitPrice != nil {
		p.UnitPrice = *req.UnitPrice
	}
	if req.Unit != nil {
		unit := Unit(*req.Unit)
		if !unit.Valid() {
			return Product{}, fmt.Errorf("%w: unknown unit %q", httpx.ErrValidation, *req.Unit)
		}
		p.Unit = unit
	}
	if req.MinStockLevel != nil {
		p.MinStockLevel = *req.MinStockLevel
	}
	if req.ExpirationDate != nil {
		p.ExpirationDate = req.ExpirationDate
	}
	if req.Active != nil {
		p.Active = *req.Active
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return Product{}, fmt.Errorf("update product: %w", err)
	}
	return s.repo.Get(ctx, id)
}
