package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Append(ctx context.Context, e *Entry) error
	GetByID(ctx context.Context, id uuid.UUID) (*Entry, error)
	List(ctx context.Context, f Filter, limit, offset int) ([]*Entry, int, error)
	Unpublished(ctx context.Context, limit int) ([]*Entry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}
