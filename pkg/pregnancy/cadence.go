package pregnancy

import (
	"fmt"
	"time"
)

// Recommendation is an advisory next antenatal visit. It is never stored.
type Recommendation struct {
	CurrentWeek   int       `json:"current_week"`
	IntervalWeeks int       `json:"interval_weeks"`
	WeeksUntil    int       `json:"weeks_until"`
	Date          time.Time `json:"date"`
}

// VisitInterval returns the standard antenatal spacing for a gestational
// week: every 4 weeks until 28, every 2 until 36, weekly after.
func VisitInterval(week int) int {
	switch {
	case week < 28:
		return 4
	case week < 36:
		return 2
	default:
		return 1
	}
}

// NextAppointment recommends when the next visit should fall. The result
// is aligned to the cadence grid and always at least one week ahead.
func NextAppointment(currentWeek int, now time.Time) (Recommendation, error) {
	if currentWeek < 0 {
		return Recommendation{}, fmt.Errorf("week %d: %w", currentWeek, ErrInvalidArgument)
	}
	interval := VisitInterval(currentWeek)
	until := interval - currentWeek%interval
	if until == 0 {
		until = interval
	}
	return Recommendation{
		CurrentWeek:   currentWeek,
		IntervalWeeks: interval,
		WeeksUntil:    until,
		Date:          DateOnly(now).AddDate(0, 0, 7*until),
	}, nil
}

// RecommendFromLMP dates the pregnancy and advises the next visit in one
// step. An undated pregnancy cannot be advised.
func RecommendFromLMP(lmp, now time.Time) (Dating, Recommendation, error) {
	d, err := ComputeDating(lmp, now)
	if err != nil {
		return Dating{}, Recommendation{}, err
	}
	if d.IsZero() {
		return Dating{}, Recommendation{}, fmt.Errorf("no last menstrual period recorded: %w", ErrInvalidDate)
	}
	rec, err := NextAppointment(d.Week, now)
	if err != nil {
		return Dating{}, Recommendation{}, err
	}
	return d, rec, nil
}
