package scheduling

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrSlotTaken is returned by Create and Update when the unique (date, time)
// index rejects the row.
var ErrSlotTaken = errors.New("appointment slot taken")

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	Delete(ctx context.Context, id uuid.UUID) error
	// Taken reports whether another appointment than exclude holds the slot.
	Taken(ctx context.Context, date, time string, exclude *uuid.UUID) (bool, error)
	Summary(ctx context.Context, id uuid.UUID) (*Summary, error)
	List(ctx context.Context, f Filter, limit, offset int) ([]*Summary, int, error)
	CountOn(ctx context.Context, date string) (int, error)
	// Upcoming returns programmed appointments from date on, earliest first.
	Upcoming(ctx context.Context, date string, n int) ([]*Summary, error)
	// LastCompleted returns the latest completed appointment or nil.
	LastCompleted(ctx context.Context) (*Summary, error)
}
