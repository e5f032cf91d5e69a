package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"
)

const (
	calendarProductID = "-//CareNest//Appointments//EN"
	icsLocalLayout    = "20060102T150405"
	visitDuration     = time.Hour
)

// Calendar renders the mother's upcoming appointments as an iCalendar feed.
// When her pregnancy is dated the recommended next visit is added as a
// tentative all-day event.
func (s *Service) Calendar(ctx context.Context, motherID uuid.UUID) (string, error) {
	items, err := s.Upcoming(ctx, motherID)
	if err != nil {
		return "", err
	}
	rec, err := s.Recommend(ctx, motherID)
	if err != nil && !errors.Is(err, ErrNotDated) {
		return "", err
	}

	stamp := s.now().UTC()
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(calendarProductID)
	cal.SetName("CareNest appointments")

	for _, a := range items {
		event := cal.AddEvent(a.ID.String() + "@carenest")
		event.SetDtStampTime(stamp)
		event.SetCreatedTime(a.CreatedAt)
		event.SetModifiedAt(a.UpdatedAt)
		// floating times: the clinic's wall clock, whatever the reader's zone
		start := a.Start(time.UTC)
		event.SetProperty(ics.ComponentPropertyDtStart, start.Format(icsLocalLayout))
		event.SetProperty(ics.ComponentPropertyDtEnd, start.Add(visitDuration).Format(icsLocalLayout))
		event.SetSummary(a.Type)
		event.SetLocation(a.Location)
		event.SetStatus(ics.ObjectStatusConfirmed)
		if desc := describe(a); desc != "" {
			event.SetDescription(desc)
		}
	}

	if rec != nil {
		day, err := time.Parse("2006-01-02", rec.Date)
		if err != nil {
			return "", fmt.Errorf("recommended date: %w", err)
		}
		event := cal.AddEvent(fmt.Sprintf("recommended-%s-%s@carenest", motherID, rec.Date))
		event.SetDtStampTime(stamp)
		event.SetAllDayStartAt(day)
		event.SetAllDayEndAt(day.AddDate(0, 0, 1))
		event.SetSummary(fmt.Sprintf("Recommended antenatal visit (week %d)", rec.CurrentWeek+rec.WeeksUntil))
		event.SetDescription(fmt.Sprintf("Suggested every %d week(s) at week %d. Book with your clinic.",
			rec.IntervalWeeks, rec.CurrentWeek))
		event.SetStatus(ics.ObjectStatusTentative)
	}
	return cal.Serialize(), nil
}

func describe(a *Appointment) string {
	var desc string
	if a.Doctor != nil && *a.Doctor != "" {
		desc = "Doctor: " + *a.Doctor
	}
	if a.Notes != nil && *a.Notes != "" {
		if desc != "" {
			desc += "\n"
		}
		desc += *a.Notes
	}
	return desc
}
