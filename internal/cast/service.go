package cast

import (
	"context"
	"errors"
)

// Common errors
var (
	ErrCastNotFound = errors.New("cast not found")
)

// Directory is the read surface consumed by group offer fan-out
type Directory interface {
	ListActive(ctx context.Context, minAge, maxAge *int) ([]*Cast, error)
}

// Service handles cast business logic
type Service struct {
	repo *Repository
}

// NewService creates a new cast service
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// Create registers a new cast, active by default
func (s *Service) Create(ctx context.Context, req *CreateCastRequest) (*Cast, error) {
	return s.repo.Create(ctx, req)
}

// GetByID retrieves a cast by its ID
func (s *Service) GetByID(ctx context.Context, id int64) (*Cast, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrCastNotFound
	}
	return c, nil
}

// List retrieves casts matching the filter, paginated
func (s *Service) List(ctx context.Context, filter ListFilter, page, perPage int) ([]*Cast, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	offset := (page - 1) * perPage
	return s.repo.List(ctx, filter, perPage, offset)
}

// Deactivate removes a cast from the active directory so it no longer
// receives group fan-out invitations
func (s *Service) Deactivate(ctx context.Context, id int64) (*Cast, error) {
	c, err := s.repo.Deactivate(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrCastNotFound
	}
	return c, nil
}
