package medication

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, m *Medication) error
	GetByID(ctx context.Context, id uuid.UUID) (*Medication, error)
	GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Medication, error)
	Update(ctx context.Context, m *Medication) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f Filter, limit, offset int) ([]*Medication, int, error)

	// LockForUpdate locks the rows of ids, in ascending id order, for the
	// rest of the caller's transaction.
	LockForUpdate(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Medication, error)
	// AdjustStock adds delta to the stock of id. It fails with a conflict
	// instead of taking the stock below zero.
	AdjustStock(ctx context.Context, id uuid.UUID, delta int) error
}
