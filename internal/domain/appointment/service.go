package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carenest/carenest/internal/platform/telemetry"
	"github.com/carenest/carenest/pkg/pregnancy"
)

var (
	ErrNotFound   = errors.New("appointment not found")
	ErrForbidden  = errors.New("appointment belongs to another mother")
	ErrValidation = errors.New("validation failed")
	// ErrNotDated means the mother has no LMP, so no visit can be advised.
	ErrNotDated = errors.New("no last menstrual period recorded")
)

const clockLayout = "15:04"

// MotherLookup dates a mother's pregnancy as of now. The zero Dating means
// no LMP is recorded.
type MotherLookup interface {
	CurrentDating(ctx context.Context, motherID uuid.UUID) (pregnancy.Dating, error)
}

type Service struct {
	repo    Repository
	mothers MotherLookup
	metrics *telemetry.Provider
	now     func() time.Time
	loc     *time.Location
}

func NewService(repo Repository, mothers MotherLookup, metrics *telemetry.Provider) *Service {
	return &Service{repo: repo, mothers: mothers, metrics: metrics, now: time.Now, loc: time.UTC}
}

// WithLocation sets the zone appointment wall-clock times are read in.
func (s *Service) WithLocation(loc *time.Location) *Service {
	if loc != nil {
		s.loc = loc
	}
	return s
}

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrValidation)
}

// apply copies the non-nil fields of in onto a and validates the result.
func apply(a *Appointment, in Input) error {
	if in.Type != nil {
		a.Type = strings.TrimSpace(*in.Type)
	}
	if in.Date != nil {
		d, err := pregnancy.ParseDate(*in.Date)
		if err != nil {
			return validationError("date must be YYYY-MM-DD")
		}
		a.Date = d
	}
	if in.Time != nil {
		a.Time = strings.TrimSpace(*in.Time)
	}
	if in.Location != nil {
		a.Location = strings.TrimSpace(*in.Location)
	}
	if in.Doctor != nil {
		a.Doctor = in.Doctor
	}
	if in.Status != nil {
		a.Status = *in.Status
	}
	if in.Notes != nil {
		a.Notes = in.Notes
	}

	if a.Type == "" {
		return validationError("type is required")
	}
	if a.Date.IsZero() {
		return validationError("date is required")
	}
	if _, err := time.Parse(clockLayout, a.Time); err != nil || len(a.Time) != len(clockLayout) {
		return validationError("time must be HH:MM")
	}
	if a.Location == "" {
		return validationError("location is required")
	}
	if a.Status == "" {
		a.Status = StatusUpcoming
	}
	if !validStatuses[a.Status] {
		return validationError("invalid status: %s", a.Status)
	}
	return nil
}

func (s *Service) Create(ctx context.Context, motherID uuid.UUID, in Input) (*Appointment, error) {
	a := &Appointment{MotherID: motherID}
	if err := apply(a, in); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// owned loads an appointment and checks it belongs to motherID.
func (s *Service) owned(ctx context.Context, motherID, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.MotherID != motherID {
		return nil, ErrForbidden
	}
	return a, nil
}

func (s *Service) Get(ctx context.Context, motherID, id uuid.UUID) (*Appointment, error) {
	return s.owned(ctx, motherID, id)
}

func (s *Service) Update(ctx context.Context, motherID, id uuid.UUID, in Input) (*Appointment, error) {
	a, err := s.owned(ctx, motherID, id)
	if err != nil {
		return nil, err
	}
	if err := apply(a, in); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) Delete(ctx context.Context, motherID, id uuid.UUID) error {
	if _, err := s.owned(ctx, motherID, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, motherID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.repo.ListByMother(ctx, motherID, limit, offset)
}

// Upcoming lists appointments still to come, today included.
func (s *Service) Upcoming(ctx context.Context, motherID uuid.UUID) ([]*Appointment, error) {
	items, err := s.repo.ListUpcoming(ctx, motherID, pregnancy.DateOnly(s.now().In(s.loc)))
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*Appointment{}
	}
	return items, nil
}

// Recommend advises the mother's next antenatal visit from her stored LMP.
func (s *Service) Recommend(ctx context.Context, motherID uuid.UUID) (*Recommendation, error) {
	d, err := s.mothers.CurrentDating(ctx, motherID)
	if err != nil {
		return nil, err
	}
	if d.IsZero() {
		return nil, ErrNotDated
	}
	r, err := pregnancy.NextAppointment(d.Week, s.now().In(s.loc))
	if err != nil {
		return nil, err
	}
	s.metrics.Recommended(r.IntervalWeeks)
	return newRecommendation(d, r), nil
}
