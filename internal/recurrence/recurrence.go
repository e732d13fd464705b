// Package recurrence computes the next execution instant for recurring
// schedules and derives cron expressions for natively recurring dispatch jobs.
// All functions are pure; callers inject the current time.
package recurrence

import (
	"errors"
	"fmt"
	"time"
)

// Frequency is the closed set of supported recurrence classes
type Frequency string

const (
	// FreqHourly runs once an hour at the configured minute offset
	FreqHourly Frequency = "hourly"
	// Freq3Hours runs every third hour of the day at the configured minute offset
	Freq3Hours Frequency = "3hours"
	// Freq6Hours runs every sixth hour of the day at the configured minute offset
	Freq6Hours Frequency = "6hours"
	// FreqDaily runs once a day at the configured wall-clock time
	FreqDaily Frequency = "daily"
	// FreqWeekly runs every Monday at the configured wall-clock time
	FreqWeekly Frequency = "weekly"
	// FreqMonthly runs on the 1st of every month at the configured wall-clock time
	FreqMonthly Frequency = "monthly"
)

// ErrUnsupportedFrequency is returned for a frequency outside the closed set.
// It indicates a validation bug upstream and is never recovered locally.
var ErrUnsupportedFrequency = errors.New("unsupported frequency")

// ParseFrequency validates a raw frequency string
func ParseFrequency(s string) (Frequency, error) {
	switch Frequency(s) {
	case FreqHourly, Freq3Hours, Freq6Hours, FreqDaily, FreqWeekly, FreqMonthly:
		return Frequency(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFrequency, s)
	}
}

// TimeOfDay is a wall-clock hour and minute. For the hourly family only the
// minute offset is used; the hour component is ignored.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM" into a TimeOfDay
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var tod TimeOfDay
	if _, err := fmt.Sscanf(s, "%d:%d", &tod.Hour, &tod.Minute); err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	if tod.Hour < 0 || tod.Hour > 23 {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: hour out of range", s)
	}
	if tod.Minute < 0 || tod.Minute > 59 {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: minute out of range", s)
	}
	return tod, nil
}

// String formats the time of day as "HH:MM"
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// NextRun computes the next execution instant strictly after evaluation of
// the frequency rules. The timezone is consumed only to interpret the
// wall-clock time of day; the result is always returned in UTC with seconds
// and sub-second fields zeroed.
//
// A slot exactly equal to now counts as already passed and rolls to the next
// occurrence.
func NextRun(freq Frequency, tod TimeOfDay, loc *time.Location, now time.Time) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}

	switch freq {
	case FreqHourly:
		return nextInterval(tod.Minute, 1, now), nil
	case Freq3Hours:
		return nextInterval(tod.Minute, 3, now), nil
	case Freq6Hours:
		return nextInterval(tod.Minute, 6, now), nil
	case FreqDaily:
		return nextDaily(tod, loc, now), nil
	case FreqWeekly:
		return nextWeekly(tod, loc, now), nil
	case FreqMonthly:
		return nextMonthly(tod, loc, now), nil
	default:
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnsupportedFrequency, freq)
	}
}

// nextInterval handles the hourly family. Slots are anchored at UTC hour 0
// and stepped by the interval; the current hour of day is rounded up to the
// next multiple of the interval at the minute offset. A slot that is not
// strictly in the future advances by one full interval.
func nextInterval(minute, everyHours int, now time.Time) time.Time {
	utc := now.UTC()
	rounded := ((utc.Hour() + everyHours - 1) / everyHours) * everyHours

	// time.Date normalizes hour 24 into the next day
	slot := time.Date(utc.Year(), utc.Month(), utc.Day(), rounded, minute, 0, 0, time.UTC)
	if !slot.After(now) {
		slot = slot.Add(time.Duration(everyHours) * time.Hour)
	}
	return slot
}

// nextDaily returns today's slot at the wall-clock time in loc, rolling to
// the next calendar date when the slot has already passed.
func nextDaily(tod TimeOfDay, loc *time.Location, now time.Time) time.Time {
	local := now.In(loc)
	slot := time.Date(local.Year(), local.Month(), local.Day(), tod.Hour, tod.Minute, 0, 0, loc)
	if !slot.After(now) {
		// Re-derive from the calendar date so daylight-skipped wall times
		// normalize instead of drifting
		slot = time.Date(local.Year(), local.Month(), local.Day()+1, tod.Hour, tod.Minute, 0, 0, loc)
	}
	return slot.UTC()
}

// nextWeekly returns the slot on the next occurrence of Monday in loc.
// 0 days ahead when today is Monday; a passed Monday slot rolls 7 days.
func nextWeekly(tod TimeOfDay, loc *time.Location, now time.Time) time.Time {
	local := now.In(loc)
	days := (int(time.Monday) - int(local.Weekday()) + 7) % 7

	slot := time.Date(local.Year(), local.Month(), local.Day()+days, tod.Hour, tod.Minute, 0, 0, loc)
	if !slot.After(now) {
		slot = time.Date(local.Year(), local.Month(), local.Day()+days+7, tod.Hour, tod.Minute, 0, 0, loc)
	}
	return slot.UTC()
}

// nextMonthly returns the slot on the 1st of the following calendar month in
// loc, unconditionally; by construction it is always in the future.
func nextMonthly(tod TimeOfDay, loc *time.Location, now time.Time) time.Time {
	local := now.In(loc)
	slot := time.Date(local.Year(), local.Month()+1, 1, tod.Hour, tod.Minute, 0, 0, loc)
	return slot.UTC()
}
