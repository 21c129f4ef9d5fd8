package model

import (
	"fmt"
	"time"
)

// DefaultTimezone is applied to business-hours rows created without one.
const DefaultTimezone = "America/Sao_Paulo"

// BusinessHours is the operating window of a company for one day of the week.
// DayOfWeek follows time.Weekday (0 = Sunday). StartTime and EndTime are
// "HH:MM" in Timezone.
type BusinessHours struct {
	CompanyID string
	DayOfWeek int
	IsEnabled bool
	StartTime string
	EndTime   string
	Timezone  string
}

// DefaultBusinessHours returns the row synthesised for a day with no stored
// configuration: Monday through Friday 09:00-18:00, weekends disabled.
func DefaultBusinessHours(companyID string, day int) BusinessHours {
	weekday := time.Weekday(day)
	return BusinessHours{
		CompanyID: companyID,
		DayOfWeek: day,
		IsEnabled: weekday != time.Saturday && weekday != time.Sunday,
		StartTime: "09:00",
		EndTime:   "18:00",
		Timezone:  DefaultTimezone,
	}
}

// ParseClock parses an "HH:MM" string into minutes since midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Contains reports whether t falls inside the [StartTime, EndTime) window of
// this row, evaluated in the row's timezone. Disabled rows contain nothing.
func (b BusinessHours) Contains(t time.Time) (bool, error) {
	if !b.IsEnabled {
		return false, nil
	}
	start, err := ParseClock(b.StartTime)
	if err != nil {
		return false, err
	}
	end, err := ParseClock(b.EndTime)
	if err != nil {
		return false, err
	}
	minute := t.Hour()*60 + t.Minute()
	return minute >= start && minute < end, nil
}
