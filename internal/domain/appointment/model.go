package appointment

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/carenest/carenest/pkg/pregnancy"
)

const (
	StatusUpcoming  = "upcoming"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

var validStatuses = map[string]bool{
	StatusUpcoming: true, StatusCompleted: true, StatusCancelled: true,
}

// Appointment maps to the appointments table. Date is a calendar day
// (midnight UTC) and Time a local "HH:MM" wall-clock time.
type Appointment struct {
	ID        uuid.UUID `db:"id" json:"id"`
	MotherID  uuid.UUID `db:"mother_id" json:"mother_id"`
	Type      string    `db:"type" json:"type"`
	Date      time.Time `db:"date" json:"date"`
	Time      string    `db:"time" json:"time"`
	Location  string    `db:"location" json:"location"`
	Doctor    *string   `db:"doctor" json:"doctor,omitempty"`
	Status    string    `db:"status" json:"status"`
	Notes     *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// MarshalJSON renders Date as YYYY-MM-DD.
func (a Appointment) MarshalJSON() ([]byte, error) {
	type alias Appointment
	return json.Marshal(struct {
		alias
		Date string `json:"date"`
	}{alias: alias(a), Date: pregnancy.FormatDate(a.Date)})
}

// Start combines Date and Time into a wall-clock instant in loc.
func (a *Appointment) Start(loc *time.Location) time.Time {
	clock, err := time.Parse(clockLayout, a.Time)
	if err != nil {
		clock = time.Time{}
	}
	y, m, d := a.Date.Date()
	return time.Date(y, m, d, clock.Hour(), clock.Minute(), 0, 0, loc)
}

// Input is the create/update payload. On update nil fields are left alone.
type Input struct {
	Type     *string `json:"type"`
	Date     *string `json:"date"`
	Time     *string `json:"time"`
	Location *string `json:"location"`
	Doctor   *string `json:"doctor"`
	Status   *string `json:"status"`
	Notes    *string `json:"notes"`
}

// Recommendation is the cadence advisor's answer for one mother.
type Recommendation struct {
	CurrentWeek    int                 `json:"current_week"`
	Trimester      pregnancy.Trimester `json:"trimester"`
	IntervalWeeks  int                 `json:"interval_weeks"`
	WeeksUntil     int                 `json:"weeks_until"`
	Date           string              `json:"date"`
	DueDate        string              `json:"due_date"`
	WeeksRemaining int                 `json:"weeks_remaining"`
}

func newRecommendation(d pregnancy.Dating, r pregnancy.Recommendation) *Recommendation {
	rec := &Recommendation{
		CurrentWeek:    r.CurrentWeek,
		Trimester:      d.Trimester,
		IntervalWeeks:  r.IntervalWeeks,
		WeeksUntil:     r.WeeksUntil,
		Date:           pregnancy.FormatDate(r.Date),
		WeeksRemaining: d.WeeksRemaining(),
	}
	if d.DueDate != nil {
		rec.DueDate = pregnancy.FormatDate(*d.DueDate)
	}
	return rec
}
