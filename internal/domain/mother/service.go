package mother

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/carenest/carenest/internal/platform/auth"
	"github.com/carenest/carenest/internal/platform/db"
	"github.com/carenest/carenest/internal/platform/telemetry"
	"github.com/carenest/carenest/pkg/pregnancy"
)

// TokenIssuer signs bearer tokens for a mother's ID.
type TokenIssuer interface {
	Issue(subject uuid.UUID) (auth.Token, error)
}

const refreshPageSize = 100

type Service struct {
	repo    Repository
	tx      db.TxManager
	tokens  TokenIssuer
	metrics *telemetry.Provider
	now     func() time.Time
}

// NewService wires the mother workflows. tx and metrics may be nil.
func NewService(repo Repository, tx db.TxManager, tokens TokenIssuer, metrics *telemetry.Provider) *Service {
	return &Service{repo: repo, tx: tx, tokens: tokens, metrics: metrics, now: time.Now}
}

func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.tx == nil {
		return fn(ctx)
	}
	return s.tx.InTx(ctx, fn)
}

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrValidation)
}

func parseOptionalDate(field, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := pregnancy.ParseDate(value)
	if err != nil {
		return nil, validationError("%s must be YYYY-MM-DD", field)
	}
	return &t, nil
}

// newDating validates an LMP entered by a client and derives the snapshot.
func (s *Service) newDating(lmp string) (pregnancy.Dating, error) {
	return s.newDatingAt(lmp, s.now())
}

func (s *Service) newDatingAt(lmp string, now time.Time) (pregnancy.Dating, error) {
	if lmp == "" {
		s.metrics.Dated("undated")
		return pregnancy.Dating{}, nil
	}
	t, err := pregnancy.ParseDate(lmp)
	if err == nil {
		err = pregnancy.ValidateLMP(t, now)
	}
	if err != nil {
		s.metrics.Dated("invalid")
		return pregnancy.Dating{}, err
	}
	d, err := pregnancy.ComputeDating(t, now)
	if err != nil {
		s.metrics.Dated("invalid")
		return pregnancy.Dating{}, err
	}
	s.metrics.Dated("ok")
	return d, nil
}

// currentDating re-derives dating from the stored LMP as of now. A stored
// LMP that now lies in the future (clock skew) falls back to the snapshot.
func (s *Service) currentDating(m *Mother, now time.Time) pregnancy.Dating {
	d, err := pregnancy.ComputeDating(m.LMP(), now)
	if err != nil {
		log.Warn().Err(err).Str("mother_id", m.ID.String()).Msg("stored lmp cannot be dated, using snapshot")
		return m.Snapshot()
	}
	return d
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	req.FullName = strings.TrimSpace(req.FullName)
	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	if req.FullName == "" {
		return nil, validationError("full_name is required")
	}
	if req.PhoneNumber == "" {
		return nil, validationError("phone_number is required")
	}
	if req.Language == "" {
		req.Language = "english"
	}
	if !validLanguages[req.Language] {
		return nil, validationError("invalid language: %s", req.Language)
	}
	dob, err := parseOptionalDate("date_of_birth", req.DateOfBirth)
	if err != nil {
		return nil, err
	}
	dating, err := s.newDating(req.LastMenstrualPeriod)
	if err != nil {
		return nil, err
	}

	m := &Mother{
		FullName:             req.FullName,
		DateOfBirth:          dob,
		PhoneNumber:          req.PhoneNumber,
		BloodType:            req.BloodType,
		PreferredHospital:    req.PreferredHospital,
		Language:             req.Language,
		IsFirstPregnancy:     req.IsFirstPregnancy,
		PreviousPregnancies:  req.PreviousPregnancies,
		PreviousDeliveryType: req.PreviousDeliveryType,
		MedicalConditions:    req.MedicalConditions,
		Allergies:            req.Allergies,
		CurrentMedications:   req.CurrentMedications,
		KinName:              req.KinName,
		KinRelationship:      req.KinRelationship,
		KinPhone:             req.KinPhone,
		KinAddress:           req.KinAddress,
		EmergencyContact:     req.EmergencyContact,
	}
	m.SetDating(dating)
	if err := s.repo.Create(ctx, m); err != nil {
		return nil, err
	}
	s.metrics.Registered()
	log.Info().Str("mother_id", m.ID.String()).Bool("dated", !dating.IsZero()).Msg("mother registered")

	return s.authResponse(m, dating)
}

func (s *Service) authResponse(m *Mother, d pregnancy.Dating) (*AuthResponse, error) {
	tok, err := s.tokens.Issue(m.ID)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &AuthResponse{
		Token:     tok.Value,
		ExpiresAt: tok.ExpiresAt,
		Mother:    newProfile(m, d, s.now()),
	}, nil
}

// Login authenticates by phone number alone.
func (s *Service) Login(ctx context.Context, phone string) (*AuthResponse, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, validationError("phone_number is required")
	}
	m, err := s.repo.GetByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	return s.authResponse(m, s.currentDating(m, s.now()))
}

func (s *Service) GetProfile(ctx context.Context, id uuid.UUID) (*Profile, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	return newProfile(m, s.currentDating(m, now), now), nil
}

func applyProfile(m *Mother, req UpdateProfileRequest) error {
	if req.FullName != nil {
		name := strings.TrimSpace(*req.FullName)
		if name == "" {
			return validationError("full_name cannot be empty")
		}
		m.FullName = name
	}
	if req.DateOfBirth != nil {
		dob, err := parseOptionalDate("date_of_birth", *req.DateOfBirth)
		if err != nil {
			return err
		}
		m.DateOfBirth = dob
	}
	if req.Language != nil {
		if !validLanguages[*req.Language] {
			return validationError("invalid language: %s", *req.Language)
		}
		m.Language = *req.Language
	}
	if req.MedicalConditions != nil {
		m.MedicalConditions = *req.MedicalConditions
	}
	setIfPresent(&m.BloodType, req.BloodType)
	setIfPresent(&m.PreferredHospital, req.PreferredHospital)
	setIfPresent(&m.PreviousDeliveryType, req.PreviousDeliveryType)
	setIfPresent(&m.Allergies, req.Allergies)
	setIfPresent(&m.CurrentMedications, req.CurrentMedications)
	setIfPresent(&m.KinName, req.KinName)
	setIfPresent(&m.KinRelationship, req.KinRelationship)
	setIfPresent(&m.KinPhone, req.KinPhone)
	setIfPresent(&m.KinAddress, req.KinAddress)
	setIfPresent(&m.EmergencyContact, req.EmergencyContact)
	if req.IsFirstPregnancy != nil {
		m.IsFirstPregnancy = req.IsFirstPregnancy
	}
	if req.PreviousPregnancies != nil {
		if *req.PreviousPregnancies < 0 {
			return validationError("previous_pregnancies cannot be negative")
		}
		m.PreviousPregnancies = req.PreviousPregnancies
	}
	return nil
}

func setIfPresent(dst **string, v *string) {
	if v != nil {
		*dst = v
	}
}

// UpdateProfile applies a partial update. The dating snapshot is rewritten
// only when the LMP actually changes, and then all four columns together.
func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, req UpdateProfileRequest) (*Profile, error) {
	var m *Mother
	err := s.inTx(ctx, func(ctx context.Context) error {
		var err error
		m, err = s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := applyProfile(m, req); err != nil {
			return err
		}
		redate := req.LastMenstrualPeriod != nil && lmpChanged(m, *req.LastMenstrualPeriod)
		var d pregnancy.Dating
		if redate {
			if d, err = s.newDating(*req.LastMenstrualPeriod); err != nil {
				return err
			}
		}

		if err := s.repo.Update(ctx, m); err != nil {
			return err
		}
		if !redate {
			return nil
		}
		if err := s.repo.UpdateDating(ctx, id, d); err != nil {
			return err
		}
		m.SetDating(d)
		log.Info().Str("mother_id", id.String()).Bool("dated", !d.IsZero()).Msg("pregnancy dating updated")
		return nil
	})
	if err != nil {
		return nil, err
	}
	now := s.now()
	return newProfile(m, s.currentDating(m, now), now), nil
}

func lmpChanged(m *Mother, lmp string) bool {
	if m.LastMenstrualPeriod == nil {
		return lmp != ""
	}
	return lmp != pregnancy.FormatDate(*m.LastMenstrualPeriod)
}

// DeleteProfile removes the mother; her appointments cascade.
func (s *Service) DeleteProfile(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// CurrentDating dates a mother's pregnancy as of now from her stored LMP.
// The zero Dating means no LMP is recorded.
func (s *Service) CurrentDating(ctx context.Context, id uuid.UUID) (pregnancy.Dating, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return pregnancy.Dating{}, err
	}
	return s.currentDating(m, s.now()), nil
}

// DatingView is CurrentDating rendered for the API, with the next visit
// attached when the pregnancy is dated.
func (s *Service) DatingView(ctx context.Context, id uuid.UUID) (*DatingView, error) {
	d, err := s.CurrentDating(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	v := NewDatingView(d, now)
	if d.IsZero() {
		return v, nil
	}
	rec, err := pregnancy.NextAppointment(d.Week, now)
	if err != nil {
		return nil, err
	}
	return v.WithVisit(rec), nil
}

// Preview dates an unsaved LMP and advises the next visit. The same entry
// window as registration applies.
func (s *Service) Preview(lmp string) (*DatingView, error) {
	if lmp == "" {
		return nil, validationError("lmp is required")
	}
	now := s.now()
	d, err := s.newDatingAt(lmp, now)
	if err != nil {
		return nil, err
	}
	rec, err := pregnancy.NextAppointment(d.Week, now)
	if err != nil {
		return nil, err
	}
	s.metrics.Recommended(rec.IntervalWeeks)
	return NewDatingView(d, now).WithVisit(rec), nil
}

func sameSnapshot(a, b pregnancy.Dating) bool {
	if a.Week != b.Week || a.Trimester != b.Trimester {
		return false
	}
	if (a.DueDate == nil) != (b.DueDate == nil) {
		return false
	}
	return a.DueDate == nil || pregnancy.DateOnly(*a.DueDate).Equal(pregnancy.DateOnly(*b.DueDate))
}

// RefreshSnapshots rewrites stored dating snapshots that have drifted from
// their LMP. Rows that fail are counted and skipped.
func (s *Service) RefreshSnapshots(ctx context.Context) (updated, failed int, err error) {
	now := s.now()
	for offset := 0; ; offset += refreshPageSize {
		items, total, err := s.repo.ListDated(ctx, refreshPageSize, offset)
		if err != nil {
			s.metrics.SnapshotsRefreshed(updated, failed)
			return updated, failed, fmt.Errorf("list dated mothers: %w", err)
		}
		for _, m := range items {
			d, err := pregnancy.ComputeDating(m.LMP(), now)
			if err != nil {
				failed++
				log.Warn().Err(err).Str("mother_id", m.ID.String()).Msg("skip snapshot refresh")
				continue
			}
			if sameSnapshot(m.Snapshot(), d) {
				continue
			}
			if err := s.repo.UpdateDating(ctx, m.ID, d); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					s.metrics.SnapshotsRefreshed(updated, failed)
					return updated, failed, err
				}
				failed++
				log.Error().Err(err).Str("mother_id", m.ID.String()).Msg("refresh snapshot")
				continue
			}
			updated++
		}
		if len(items) == 0 || offset+len(items) >= total {
			break
		}
	}
	s.metrics.SnapshotsRefreshed(updated, failed)
	return updated, failed, nil
}
