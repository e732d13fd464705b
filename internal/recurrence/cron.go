package recurrence

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser validates derived expressions before they are handed to the
// dispatch service (standard 5-field: minute hour day month weekday)
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// CronExpression derives a UTC-anchored 5-field cron expression for the
// natively recurring registration path. Wall-clock hours and minutes for the
// daily/weekly/monthly classes are converted to UTC using loc's current
// offset from the zone database; the hourly family is zone-independent.
func CronExpression(freq Frequency, tod TimeOfDay, loc *time.Location) (string, error) {
	return cronExpressionAt(freq, tod, loc, time.Now())
}

// cronExpressionAt resolves the UTC offset at a specific instant, which keeps
// the derivation testable against fixed zones.
func cronExpressionAt(freq Frequency, tod TimeOfDay, loc *time.Location, at time.Time) (string, error) {
	if loc == nil {
		loc = time.UTC
	}

	var expr string
	switch freq {
	case FreqHourly:
		expr = fmt.Sprintf("%d * * * *", tod.Minute)
	case Freq3Hours:
		expr = fmt.Sprintf("%d */3 * * *", tod.Minute)
	case Freq6Hours:
		expr = fmt.Sprintf("%d */6 * * *", tod.Minute)
	case FreqDaily:
		h, m := toUTCClock(tod, loc, at)
		expr = fmt.Sprintf("%d %d * * *", m, h)
	case FreqWeekly:
		h, m := toUTCClock(tod, loc, at)
		expr = fmt.Sprintf("%d %d * * 1", m, h)
	case FreqMonthly:
		h, m := toUTCClock(tod, loc, at)
		expr = fmt.Sprintf("%d %d 1 * *", m, h)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFrequency, freq)
	}

	if _, err := cronParser.Parse(expr); err != nil {
		return "", fmt.Errorf("derived invalid cron expression %q: %w", expr, err)
	}
	return expr, nil
}

// toUTCClock converts a wall-clock time in loc to the equivalent UTC hour and
// minute, wrapping modulo 24h. The offset is taken in minutes so half-hour
// zones convert correctly.
func toUTCClock(tod TimeOfDay, loc *time.Location, at time.Time) (hour, minute int) {
	_, offsetSeconds := at.In(loc).Zone()

	total := tod.Hour*60 + tod.Minute - offsetSeconds/60
	total %= 24 * 60
	if total < 0 {
		total += 24 * 60
	}
	return total / 60, total % 60
}
