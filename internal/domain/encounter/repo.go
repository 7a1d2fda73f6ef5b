package encounter

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Create and Update write the header and replace its diagnoses.
	Create(ctx context.Context, e *Encounter) error
	Update(ctx context.Context, e *Encounter) error
	GetByID(ctx context.Context, id uuid.UUID) (*Encounter, error)
	// GetForUpdate locks the header row for the caller's transaction.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Encounter, error)
	Delete(ctx context.Context, id uuid.UUID) error
	HasCosts(ctx context.Context, id uuid.UUID) (bool, error)
	List(ctx context.Context, f Filter, limit, offset int) ([]*Summary, int, error)
	Count(ctx context.Context) (int, error)

	// Lines returns the lines of an encounter in insertion order.
	Lines(ctx context.Context, encounterID uuid.UUID) ([]*Line, error)
	InsertLine(ctx context.Context, l *Line) error
	UpdateLine(ctx context.Context, l *Line) error
	DeleteLine(ctx context.Context, id uuid.UUID) error
}
