package mother

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/carenest/carenest/pkg/pregnancy"
)

var (
	ErrNotFound   = errors.New("mother not found")
	ErrPhoneTaken = errors.New("phone number already registered")
	ErrValidation = errors.New("validation failed")
)

type Repository interface {
	// Create inserts m including its dating snapshot. Returns ErrPhoneTaken
	// when the phone number is already registered.
	Create(ctx context.Context, m *Mother) error
	GetByID(ctx context.Context, id uuid.UUID) (*Mother, error)
	GetByPhone(ctx context.Context, phone string) (*Mother, error)
	// Update writes profile fields only; the dating snapshot is untouched.
	Update(ctx context.Context, m *Mother) error
	// UpdateDating writes LMP, week, due date and trimester in one statement.
	UpdateDating(ctx context.Context, id uuid.UUID, d pregnancy.Dating) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ListDated pages through mothers with a recorded LMP, oldest first.
	ListDated(ctx context.Context, limit, offset int) ([]*Mother, int, error)
}
