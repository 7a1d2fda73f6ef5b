package billing

import (
	"context"

	"github.com/google/uuid"
)

type ServiceRepository interface {
	Create(ctx context.Context, s *AdditionalService) error
	GetByID(ctx context.Context, id uuid.UUID) (*AdditionalService, error)
	// GetMany returns the services among ids ordered by name.
	GetMany(ctx context.Context, ids []uuid.UUID) ([]*AdditionalService, error)
	Update(ctx context.Context, s *AdditionalService) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f Filter, limit, offset int) ([]*AdditionalService, int, error)
}

type CostRepository interface {
	// Create and Update write the cost and replace its services.
	Create(ctx context.Context, c *Cost) error
	GetByID(ctx context.Context, id uuid.UUID) (*Cost, error)
	Update(ctx context.Context, c *Cost) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f Filter, limit, offset int) ([]*CostSummary, int, error)
}
