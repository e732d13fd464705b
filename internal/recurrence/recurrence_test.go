package recurrence

import (
	"errors"
	"testing"
	"time"
)

var tokyo = time.FixedZone("UTC+9", 9*3600)

// 2025-08-08 is a Friday; 10:00 in UTC+9
var friday = time.Date(2025, 8, 8, 1, 0, 0, 0, time.UTC)

func mustNextRun(t *testing.T, freq Frequency, tod TimeOfDay, loc *time.Location, now time.Time) time.Time {
	t.Helper()
	got, err := NextRun(freq, tod, loc, now)
	if err != nil {
		t.Fatalf("NextRun(%s) failed: %v", freq, err)
	}
	return got
}

func TestParseFrequency(t *testing.T) {
	valid := []string{"hourly", "3hours", "6hours", "daily", "weekly", "monthly"}
	for _, s := range valid {
		if _, err := ParseFrequency(s); err != nil {
			t.Errorf("ParseFrequency(%q) failed: %v", s, err)
		}
	}

	if _, err := ParseFrequency("fortnightly"); !errors.Is(err, ErrUnsupportedFrequency) {
		t.Errorf("Expected ErrUnsupportedFrequency, got %v", err)
	}
}

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{"14:00", TimeOfDay{14, 0}, false},
		{"00:00", TimeOfDay{0, 0}, false},
		{"23:59", TimeOfDay{23, 59}, false},
		{"9:05", TimeOfDay{9, 5}, false},
		{"24:00", TimeOfDay{}, true},
		{"12:60", TimeOfDay{}, true},
		{"noon", TimeOfDay{}, true},
	}

	for _, tt := range tests {
		got, err := ParseTimeOfDay(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseTimeOfDay(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTimeOfDay(%q) failed: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseTimeOfDay(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNextRun_Daily(t *testing.T) {
	tod := TimeOfDay{14, 0}

	// 14:00 local today has not yet passed at 10:00 local
	got := mustNextRun(t, FreqDaily, tod, tokyo, friday)
	want := time.Date(2025, 8, 8, 5, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Daily before slot: got %v, want %v", got, want)
	}

	// 15:00 local: slot passed, rolls to next day
	now2 := time.Date(2025, 8, 8, 6, 0, 0, 0, time.UTC)
	got = mustNextRun(t, FreqDaily, tod, tokyo, now2)
	want = time.Date(2025, 8, 9, 5, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Daily after slot: got %v, want %v", got, want)
	}
}

func TestNextRun_DailySlotEqualToNowRolls(t *testing.T) {
	// A slot exactly equal to now counts as passed
	now := time.Date(2025, 8, 8, 5, 0, 0, 0, time.UTC)
	got := mustNextRun(t, FreqDaily, TimeOfDay{14, 0}, tokyo, now)
	want := time.Date(2025, 8, 9, 5, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Daily slot == now: got %v, want %v", got, want)
	}
}

func TestNextRun_Weekly(t *testing.T) {
	// Friday local -> following Monday 2025-08-11 at 14:00 local
	got := mustNextRun(t, FreqWeekly, TimeOfDay{14, 0}, tokyo, friday)
	want := time.Date(2025, 8, 11, 5, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Weekly from Friday: got %v, want %v", got, want)
	}

	if got.In(tokyo).Weekday() != time.Monday {
		t.Errorf("Weekly result is not a Monday in zone: %v", got.In(tokyo).Weekday())
	}
}

func TestNextRun_WeeklyOnMonday(t *testing.T) {
	tod := TimeOfDay{14, 0}

	// Monday 2025-08-11, 10:00 local: today's slot still ahead
	monday := time.Date(2025, 8, 11, 1, 0, 0, 0, time.UTC)
	got := mustNextRun(t, FreqWeekly, tod, tokyo, monday)
	want := time.Date(2025, 8, 11, 5, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Weekly on Monday before slot: got %v, want %v", got, want)
	}

	// Monday 15:00 local: slot passed, rolls a full week
	mondayLate := time.Date(2025, 8, 11, 6, 0, 0, 0, time.UTC)
	got = mustNextRun(t, FreqWeekly, tod, tokyo, mondayLate)
	want = time.Date(2025, 8, 18, 5, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Weekly on Monday after slot: got %v, want %v", got, want)
	}
}

func TestNextRun_Monthly(t *testing.T) {
	got := mustNextRun(t, FreqMonthly, TimeOfDay{14, 0}, tokyo, friday)
	want := time.Date(2025, 9, 1, 5, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Monthly: got %v, want %v", got, want)
	}

	if got.In(tokyo).Day() != 1 {
		t.Errorf("Monthly result not on the 1st: day %d", got.In(tokyo).Day())
	}

	// December rolls into January of the next year
	december := time.Date(2025, 12, 15, 0, 0, 0, 0, time.UTC)
	got = mustNextRun(t, FreqMonthly, TimeOfDay{14, 0}, tokyo, december)
	want = time.Date(2026, 1, 1, 5, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Monthly year rollover: got %v, want %v", got, want)
	}
}

func TestNextRun_Hourly(t *testing.T) {
	// Next top-of-hour after 01:00Z
	got := mustNextRun(t, FreqHourly, TimeOfDay{0, 0}, tokyo, friday)
	want := time.Date(2025, 8, 8, 2, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Hourly at slot: got %v, want %v", got, want)
	}

	// Minute offset still ahead within the current hour
	now := time.Date(2025, 8, 8, 1, 10, 0, 0, time.UTC)
	got = mustNextRun(t, FreqHourly, TimeOfDay{0, 30}, tokyo, now)
	want = time.Date(2025, 8, 8, 1, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Hourly before offset: got %v, want %v", got, want)
	}

	// Minute offset already passed this hour
	now = time.Date(2025, 8, 8, 1, 45, 0, 0, time.UTC)
	got = mustNextRun(t, FreqHourly, TimeOfDay{0, 30}, tokyo, now)
	want = time.Date(2025, 8, 8, 2, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Hourly after offset: got %v, want %v", got, want)
	}
}

func TestNextRun_EveryThreeHours(t *testing.T) {
	// Hour 1 rounds up to the next multiple of 3
	got := mustNextRun(t, Freq3Hours, TimeOfDay{0, 0}, tokyo, friday)
	want := time.Date(2025, 8, 8, 3, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("3hours from hour 1: got %v, want %v", got, want)
	}

	// Slot exactly equal to now is not strictly future, adds the interval
	onSlot := time.Date(2025, 8, 8, 3, 0, 0, 0, time.UTC)
	got = mustNextRun(t, Freq3Hours, TimeOfDay{0, 0}, tokyo, onSlot)
	want = time.Date(2025, 8, 8, 6, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("3hours on slot: got %v, want %v", got, want)
	}
}

func TestNextRun_EverySixHours(t *testing.T) {
	// Hour 23 rounds to 24, normalizing into the next day
	late := time.Date(2025, 8, 8, 23, 10, 0, 0, time.UTC)
	got := mustNextRun(t, Freq6Hours, TimeOfDay{0, 15}, tokyo, late)
	want := time.Date(2025, 8, 9, 0, 15, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("6hours day rollover: got %v, want %v", got, want)
	}

	got = mustNextRun(t, Freq6Hours, TimeOfDay{0, 0}, tokyo, friday)
	want = time.Date(2025, 8, 8, 6, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("6hours from hour 1: got %v, want %v", got, want)
	}
}

func TestNextRun_SecondsAlwaysZeroed(t *testing.T) {
	now := time.Date(2025, 8, 8, 1, 12, 34, 567000000, time.UTC)

	for _, freq := range []Frequency{FreqHourly, Freq3Hours, Freq6Hours, FreqDaily, FreqWeekly, FreqMonthly} {
		got := mustNextRun(t, freq, TimeOfDay{14, 0}, tokyo, now)
		if got.Second() != 0 || got.Nanosecond() != 0 {
			t.Errorf("%s: expected zeroed seconds, got %v", freq, got)
		}
	}
}

func TestNextRun_StrictlyFutureForHourlyFamily(t *testing.T) {
	for _, freq := range []Frequency{FreqHourly, Freq3Hours, Freq6Hours} {
		got := mustNextRun(t, freq, TimeOfDay{0, 0}, tokyo, friday)
		if !got.After(friday) {
			t.Errorf("%s: result %v not strictly after now %v", freq, got, friday)
		}
	}
}

func TestNextRun_DailyForwardProgression(t *testing.T) {
	// Re-invoking with now set to the previous result advances exactly one
	// day under a fixed offset
	now := friday
	prev := mustNextRun(t, FreqDaily, TimeOfDay{14, 0}, tokyo, now)

	for i := 0; i < 5; i++ {
		next := mustNextRun(t, FreqDaily, TimeOfDay{14, 0}, tokyo, prev)
		if diff := next.Sub(prev); diff != 24*time.Hour {
			t.Fatalf("Step %d: expected 24h progression, got %v", i, diff)
		}
		prev = next
	}
}

func TestNextRun_WallClockRoundTrip(t *testing.T) {
	tod := TimeOfDay{14, 0}

	for _, freq := range []Frequency{FreqDaily, FreqWeekly, FreqMonthly} {
		got := mustNextRun(t, freq, tod, tokyo, friday)
		local := got.In(tokyo)
		if local.Hour() != tod.Hour || local.Minute() != tod.Minute {
			t.Errorf("%s: wall clock %02d:%02d, want %s", freq, local.Hour(), local.Minute(), tod)
		}
	}
}

func TestNextRun_UnsupportedFrequency(t *testing.T) {
	_, err := NextRun("fortnightly", TimeOfDay{14, 0}, tokyo, friday)
	if !errors.Is(err, ErrUnsupportedFrequency) {
		t.Errorf("Expected ErrUnsupportedFrequency, got %v", err)
	}
}

func TestNextRun_NilLocationDefaultsToUTC(t *testing.T) {
	got, err := NextRun(FreqDaily, TimeOfDay{14, 0}, nil, friday)
	if err != nil {
		t.Fatalf("NextRun failed: %v", err)
	}
	want := time.Date(2025, 8, 8, 14, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Nil location: got %v, want %v", got, want)
	}
}
