package catalog

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, it *Item) error
	GetByID(ctx context.Context, kind Kind, id uuid.UUID) (*Item, error)
	// GetMany returns the items of kind among ids, in no particular order.
	// Unknown ids are simply missing from the result.
	GetMany(ctx context.Context, kind Kind, ids []uuid.UUID) ([]*Item, error)
	Update(ctx context.Context, it *Item) error
	Delete(ctx context.Context, kind Kind, id uuid.UUID) error
	List(ctx context.Context, f Filter, limit, offset int) ([]*Item, int, error)
}
