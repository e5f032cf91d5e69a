package mother

import (
	"time"

	"github.com/google/uuid"

	"github.com/carenest/carenest/pkg/pregnancy"
)

var validLanguages = map[string]bool{
	"english": true, "kinyarwanda": true, "french": true,
}

// Mother maps to the mothers table. LastMenstrualPeriod, PregnancyWeek,
// DueDate and Trimester are the stored dating snapshot; they change only
// through SetDating.
type Mother struct {
	ID                   uuid.UUID  `db:"id" json:"id"`
	FullName             string     `db:"full_name" json:"full_name"`
	DateOfBirth          *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	PhoneNumber          string     `db:"phone_number" json:"phone_number"`
	BloodType            *string    `db:"blood_type" json:"blood_type,omitempty"`
	PreferredHospital    *string    `db:"preferred_hospital" json:"preferred_hospital,omitempty"`
	Language             string     `db:"language" json:"language"`
	LastMenstrualPeriod  *time.Time `db:"last_menstrual_period" json:"last_menstrual_period,omitempty"`
	PregnancyWeek        int        `db:"pregnancy_week" json:"pregnancy_week"`
	DueDate              *time.Time `db:"due_date" json:"due_date,omitempty"`
	Trimester            *string    `db:"trimester" json:"trimester,omitempty"`
	IsFirstPregnancy     *bool      `db:"is_first_pregnancy" json:"is_first_pregnancy,omitempty"`
	PreviousPregnancies  *int       `db:"previous_pregnancies" json:"previous_pregnancies,omitempty"`
	PreviousDeliveryType *string    `db:"previous_delivery_type" json:"previous_delivery_type,omitempty"`
	MedicalConditions    []string   `db:"medical_conditions" json:"medical_conditions"`
	Allergies            *string    `db:"allergies" json:"allergies,omitempty"`
	CurrentMedications   *string    `db:"current_medications" json:"current_medications,omitempty"`
	KinName              *string    `db:"kin_name" json:"kin_name,omitempty"`
	KinRelationship      *string    `db:"kin_relationship" json:"kin_relationship,omitempty"`
	KinPhone             *string    `db:"kin_phone" json:"kin_phone,omitempty"`
	KinAddress           *string    `db:"kin_address" json:"kin_address,omitempty"`
	EmergencyContact     *string    `db:"emergency_contact" json:"emergency_contact,omitempty"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updated_at"`
}

// SetDating overwrites the whole snapshot from d. The zero Dating clears it.
func (m *Mother) SetDating(d pregnancy.Dating) {
	m.LastMenstrualPeriod = d.LastMenstrualPeriod
	m.PregnancyWeek = d.Week
	m.DueDate = d.DueDate
	if d.Trimester == pregnancy.TrimesterNone {
		m.Trimester = nil
	} else {
		t := string(d.Trimester)
		m.Trimester = &t
	}
}

// Snapshot returns the stored dating as last written.
func (m *Mother) Snapshot() pregnancy.Dating {
	d := pregnancy.Dating{
		LastMenstrualPeriod: m.LastMenstrualPeriod,
		Week:                m.PregnancyWeek,
		DueDate:             m.DueDate,
	}
	if m.Trimester != nil {
		d.Trimester = pregnancy.Trimester(*m.Trimester)
	}
	return d
}

// LMP returns the stored last menstrual period, or the zero time.
func (m *Mother) LMP() time.Time {
	if m.LastMenstrualPeriod == nil {
		return time.Time{}
	}
	return *m.LastMenstrualPeriod
}

// RegisterRequest is the registration payload. Dates are YYYY-MM-DD.
type RegisterRequest struct {
	FullName             string   `json:"full_name"`
	DateOfBirth          string   `json:"date_of_birth"`
	PhoneNumber          string   `json:"phone_number"`
	BloodType            *string  `json:"blood_type"`
	PreferredHospital    *string  `json:"preferred_hospital"`
	Language             string   `json:"language"`
	LastMenstrualPeriod  string   `json:"last_menstrual_period"`
	IsFirstPregnancy     *bool    `json:"is_first_pregnancy"`
	PreviousPregnancies  *int     `json:"previous_pregnancies"`
	PreviousDeliveryType *string  `json:"previous_delivery_type"`
	MedicalConditions    []string `json:"medical_conditions"`
	Allergies            *string  `json:"allergies"`
	CurrentMedications   *string  `json:"current_medications"`
	KinName              *string  `json:"kin_name"`
	KinRelationship      *string  `json:"kin_relationship"`
	KinPhone             *string  `json:"kin_phone"`
	KinAddress           *string  `json:"kin_address"`
	EmergencyContact     *string  `json:"emergency_contact"`
}

// UpdateProfileRequest is a partial update: nil fields are left alone.
// LastMenstrualPeriod "" clears the pregnancy dating. Derived fields
// (week, trimester, due date) are not accepted from clients.
type UpdateProfileRequest struct {
	FullName             *string   `json:"full_name"`
	DateOfBirth          *string   `json:"date_of_birth"`
	BloodType            *string   `json:"blood_type"`
	PreferredHospital    *string   `json:"preferred_hospital"`
	Language             *string   `json:"language"`
	LastMenstrualPeriod  *string   `json:"last_menstrual_period"`
	IsFirstPregnancy     *bool     `json:"is_first_pregnancy"`
	PreviousPregnancies  *int      `json:"previous_pregnancies"`
	PreviousDeliveryType *string   `json:"previous_delivery_type"`
	MedicalConditions    *[]string `json:"medical_conditions"`
	Allergies            *string   `json:"allergies"`
	CurrentMedications   *string   `json:"current_medications"`
	KinName              *string   `json:"kin_name"`
	KinRelationship      *string   `json:"kin_relationship"`
	KinPhone             *string   `json:"kin_phone"`
	KinAddress           *string   `json:"kin_address"`
	EmergencyContact     *string   `json:"emergency_contact"`
}

// Profile is the API view of a mother with dating derived as of the
// request, not as last stored.
type Profile struct {
	ID                   uuid.UUID           `json:"id"`
	FullName             string              `json:"full_name"`
	DateOfBirth          string              `json:"date_of_birth,omitempty"`
	PhoneNumber          string              `json:"phone_number"`
	BloodType            *string             `json:"blood_type,omitempty"`
	PreferredHospital    *string             `json:"preferred_hospital,omitempty"`
	Language             string              `json:"language"`
	LastMenstrualPeriod  string              `json:"last_menstrual_period,omitempty"`
	PregnancyWeek        int                 `json:"pregnancy_week"`
	Trimester            pregnancy.Trimester `json:"trimester,omitempty"`
	DueDate              string              `json:"due_date,omitempty"`
	DueDateDisplay       string              `json:"due_date_display,omitempty"`
	WeeksRemaining       int                 `json:"weeks_remaining"`
	DaysUntilDue         int                 `json:"days_until_due"`
	PostTerm             bool                `json:"post_term,omitempty"`
	IsFirstPregnancy     *bool               `json:"is_first_pregnancy,omitempty"`
	PreviousPregnancies  *int                `json:"previous_pregnancies,omitempty"`
	PreviousDeliveryType *string             `json:"previous_delivery_type,omitempty"`
	MedicalConditions    []string            `json:"medical_conditions"`
	Allergies            *string             `json:"allergies,omitempty"`
	CurrentMedications   *string             `json:"current_medications,omitempty"`
	KinName              *string             `json:"kin_name,omitempty"`
	KinRelationship      *string             `json:"kin_relationship,omitempty"`
	KinPhone             *string             `json:"kin_phone,omitempty"`
	KinAddress           *string             `json:"kin_address,omitempty"`
	EmergencyContact     *string             `json:"emergency_contact,omitempty"`
	CreatedAt            time.Time           `json:"created_at"`
	UpdatedAt            time.Time           `json:"updated_at"`
}

func newProfile(m *Mother, d pregnancy.Dating, now time.Time) *Profile {
	p := &Profile{
		ID:                   m.ID,
		FullName:             m.FullName,
		PhoneNumber:          m.PhoneNumber,
		BloodType:            m.BloodType,
		PreferredHospital:    m.PreferredHospital,
		Language:             m.Language,
		PregnancyWeek:        d.Week,
		Trimester:            d.Trimester,
		DueDateDisplay:       d.DueDateDisplay(),
		WeeksRemaining:       d.WeeksRemaining(),
		DaysUntilDue:         d.DaysUntilDue(now),
		PostTerm:             d.PostTerm(),
		IsFirstPregnancy:     m.IsFirstPregnancy,
		PreviousPregnancies:  m.PreviousPregnancies,
		PreviousDeliveryType: m.PreviousDeliveryType,
		MedicalConditions:    m.MedicalConditions,
		Allergies:            m.Allergies,
		CurrentMedications:   m.CurrentMedications,
		KinName:              m.KinName,
		KinRelationship:      m.KinRelationship,
		KinPhone:             m.KinPhone,
		KinAddress:           m.KinAddress,
		EmergencyContact:     m.EmergencyContact,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}
	if p.MedicalConditions == nil {
		p.MedicalConditions = []string{}
	}
	if m.DateOfBirth != nil {
		p.DateOfBirth = pregnancy.FormatDate(*m.DateOfBirth)
	}
	if d.LastMenstrualPeriod != nil {
		p.LastMenstrualPeriod = pregnancy.FormatDate(*d.LastMenstrualPeriod)
	}
	if d.DueDate != nil {
		p.DueDate = pregnancy.FormatDate(*d.DueDate)
	}
	return p
}

// DatingView renders a Dating for API and CLI consumers with string dates.
type DatingView struct {
	LastMenstrualPeriod string              `json:"last_menstrual_period,omitempty"`
	Week                int                 `json:"week"`
	DayOfWeek           int                 `json:"day_of_week"`
	Trimester           pregnancy.Trimester `json:"trimester,omitempty"`
	DueDate             string              `json:"due_date,omitempty"`
	DueDateDisplay      string              `json:"due_date_display,omitempty"`
	WeeksRemaining      int                 `json:"weeks_remaining"`
	DaysUntilDue        int                 `json:"days_until_due"`
	PostTerm            bool                `json:"post_term,omitempty"`
	NextVisit           *VisitView          `json:"next_visit,omitempty"`
}

type VisitView struct {
	Date          string `json:"date"`
	CurrentWeek   int    `json:"current_week"`
	IntervalWeeks int    `json:"interval_weeks"`
	WeeksUntil    int    `json:"weeks_until"`
}

func NewDatingView(d pregnancy.Dating, now time.Time) *DatingView {
	v := &DatingView{
		Week:           d.Week,
		DayOfWeek:      d.DayOfWeek,
		Trimester:      d.Trimester,
		DueDateDisplay: d.DueDateDisplay(),
		WeeksRemaining: d.WeeksRemaining(),
		DaysUntilDue:   d.DaysUntilDue(now),
		PostTerm:       d.PostTerm(),
	}
	if d.LastMenstrualPeriod != nil {
		v.LastMenstrualPeriod = pregnancy.FormatDate(*d.LastMenstrualPeriod)
	}
	if d.DueDate != nil {
		v.DueDate = pregnancy.FormatDate(*d.DueDate)
	}
	return v
}

// WithVisit attaches a next-visit recommendation.
func (v *DatingView) WithVisit(r pregnancy.Recommendation) *DatingView {
	v.NextVisit = &VisitView{
		Date:          pregnancy.FormatDate(r.Date),
		CurrentWeek:   r.CurrentWeek,
		IntervalWeeks: r.IntervalWeeks,
		WeeksUntil:    r.WeeksUntil,
	}
	return v
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Mother    *Profile  `json:"mother"`
}
