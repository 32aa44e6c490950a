package utils

import "time"

const (
	// DateLayout is used for daily bars and daily output rows.
	DateLayout = "2006-01-02"
	// DateTimeLayout is used whenever a replay carries intraday timestamps.
	DateTimeLayout = "2006-01-02 15:04:05"
	// ClockLayout is the "HH:MM" form scheduler triggers are matched against.
	ClockLayout = "15:04"
)

// SameSession reports whether a and b fall on the same calendar day.
func SameSession(a time.Time, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()

	return ay == by && am == bm && ad == bd
}

// HasTimeOfDay reports whether ts carries a clock component other than midnight.
func HasTimeOfDay(ts time.Time) bool {
	return ts.Hour() != 0 || ts.Minute() != 0 || ts.Second() != 0
}

// IsIntraday inspects the first sample timestamps and reports whether any of
// them carries a time of day. A replay over such a calendar is sub-daily.
func IsIntraday(timestamps []time.Time, sample int) bool {
	if sample > len(timestamps) {
		sample = len(timestamps)
	}

	for _, ts := range timestamps[:sample] {
		if HasTimeOfDay(ts) {
			return true
		}
	}

	return false
}

// FormatBarTime renders ts as a date, or as date and clock when withClock is set.
func FormatBarTime(ts time.Time, withClock bool) string {
	if withClock {
		return ts.Format(DateTimeLayout)
	}

	return ts.Format(DateLayout)
}

// ClockKey renders the "HH:MM" part of ts.
func ClockKey(ts time.Time) string {
	return ts.Format(ClockLayout)
}

// CalendarDaysBetween returns the whole number of 24h days from start to end.
func CalendarDaysBetween(start time.Time, end time.Time) int {
	return int(end.Sub(start).Hours() / 24)
}
