package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ListByMother pages through a mother's appointments, newest date first.
	ListByMother(ctx context.Context, motherID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	// ListUpcoming returns upcoming-status appointments on or after from,
	// ordered by date then time.
	ListUpcoming(ctx context.Context, motherID uuid.UUID, from time.Time) ([]*Appointment, error)
}
