package exams

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, r *Request) error
	GetByID(ctx context.Context, id uuid.UUID) (*Request, error)
	// Update leaves the result key and the request date alone.
	Update(ctx context.Context, r *Request) error
	// SetResult stores the result key and marks the exam done.
	SetResult(ctx context.Context, id uuid.UUID, key string) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f Filter, limit, offset int) ([]*Summary, int, error)
}
