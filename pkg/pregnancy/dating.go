// Package pregnancy derives gestational dating and antenatal visit cadence
// from a last menstrual period. All functions are pure: the reference
// instant is always passed in.
package pregnancy

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidDate reports an LMP that cannot be dated (unparseable, in
	// the future, or outside the accepted look-back window).
	ErrInvalidDate = errors.New("invalid date")
	// ErrInvalidArgument reports a caller bug such as a negative week.
	ErrInvalidArgument = errors.New("invalid argument")
)

const (
	// GestationDays is the Naegele's-rule offset from LMP to due date.
	GestationDays = 280
	// MaxLookbackDays bounds how far in the past a newly entered LMP may be.
	MaxLookbackDays = 300

	lastFirstTrimesterWeek  = 13
	lastSecondTrimesterWeek = 26
	postTermWeek            = 42
	termWeeks               = 40

	// DateLayout is the wire format for calendar dates.
	DateLayout = "2006-01-02"
	// DisplayLayout renders a due date for people, e.g. "15 January 2025".
	DisplayLayout = "2 January 2006"
)

type Trimester string

const (
	TrimesterNone   Trimester = ""
	TrimesterFirst  Trimester = "First Trimester"
	TrimesterSecond Trimester = "Second Trimester"
	TrimesterThird  Trimester = "Third Trimester"
)

// TrimesterForWeek maps a completed gestational week to its trimester.
func TrimesterForWeek(week int) Trimester {
	switch {
	case week <= lastFirstTrimesterWeek:
		return TrimesterFirst
	case week <= lastSecondTrimesterWeek:
		return TrimesterSecond
	default:
		return TrimesterThird
	}
}

// Dating is the derived state of a pregnancy as of some reference day.
// A nil DueDate with an empty Trimester is the "not dated" state.
type Dating struct {
	LastMenstrualPeriod *time.Time `json:"last_menstrual_period,omitempty"`
	Week                int        `json:"week"`
	DayOfWeek           int        `json:"day_of_week"`
	DueDate             *time.Time `json:"due_date,omitempty"`
	Trimester           Trimester  `json:"trimester"`
}

func (d Dating) IsZero() bool {
	return d.DueDate == nil && d.Trimester == TrimesterNone
}

// PostTerm reports a gestational age beyond 42 weeks. Such values are
// returned unclamped; callers decide whether to flag them.
func (d Dating) PostTerm() bool {
	return d.Week > postTermWeek
}

// WeeksRemaining counts whole weeks left until week 40, never negative.
func (d Dating) WeeksRemaining() int {
	if d.IsZero() || d.Week >= termWeeks {
		return 0
	}
	return termWeeks - d.Week
}

// DaysUntilDue is negative once the due date has passed.
func (d Dating) DaysUntilDue(now time.Time) int {
	if d.DueDate == nil {
		return 0
	}
	return DaysBetween(now, *d.DueDate)
}

func (d Dating) DueDateDisplay() string {
	if d.DueDate == nil {
		return ""
	}
	return FormatDisplay(*d.DueDate)
}

// DateOnly returns the calendar date of t, read in t's own location, as
// midnight UTC. Day arithmetic on these values is immune to DST shifts.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween counts whole calendar days from from to to.
func DaysBetween(from, to time.Time) int {
	return int(DateOnly(to).Sub(DateOnly(from)).Hours() / 24)
}

func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %q: %w", s, ErrInvalidDate)
	}
	return t, nil
}

func FormatDate(t time.Time) string {
	return DateOnly(t).Format(DateLayout)
}

func FormatDisplay(t time.Time) string {
	return DateOnly(t).Format(DisplayLayout)
}

// ComputeDating derives week, trimester and due date from lmp as of now.
// A zero lmp yields the zero Dating and no error; an lmp after now is
// rejected with ErrInvalidDate.
func ComputeDating(lmp, now time.Time) (Dating, error) {
	if lmp.IsZero() {
		return Dating{}, nil
	}
	diffDays := DaysBetween(lmp, now)
	if diffDays < 0 {
		return Dating{}, fmt.Errorf("last menstrual period %s is after %s: %w",
			FormatDate(lmp), FormatDate(now), ErrInvalidDate)
	}

	start := DateOnly(lmp)
	due := start.AddDate(0, 0, GestationDays)
	week := diffDays / 7
	return Dating{
		LastMenstrualPeriod: &start,
		Week:                week,
		DayOfWeek:           diffDays % 7,
		DueDate:             &due,
		Trimester:           TrimesterForWeek(week),
	}, nil
}

// ComputeDatingString is ComputeDating for an ISO "YYYY-MM-DD" value.
// The empty string means "no LMP recorded".
func ComputeDatingString(lmp string, now time.Time) (Dating, error) {
	if lmp == "" {
		return Dating{}, nil
	}
	t, err := ParseDate(lmp)
	if err != nil {
		return Dating{}, err
	}
	return ComputeDating(t, now)
}

// ValidateLMP applies the entry window: now-MaxLookbackDays <= lmp <= now.
// It is checked wherever a new LMP is accepted, not when re-deriving from
// one already stored.
func ValidateLMP(lmp, now time.Time) error {
	if lmp.IsZero() {
		return fmt.Errorf("last menstrual period is required: %w", ErrInvalidDate)
	}
	days := DaysBetween(lmp, now)
	if days < 0 {
		return fmt.Errorf("last menstrual period cannot be in the future: %w", ErrInvalidDate)
	}
	if days > MaxLookbackDays {
		return fmt.Errorf("last menstrual period more than %d days ago: %w", MaxLookbackDays, ErrInvalidDate)
	}
	return nil
}
