package caltime

import (
	"time"
)

const (
	dateLayout        = "2006-01-02"
	dateTimeLayout    = "2006-01-02T15:04:05"
	dateTimeLayoutUTC = "2006-01-02T15:04:05Z"
)

// Time is a calendar value as found in iCalendar feeds: either a pure date
// (VALUE=DATE, no time-of-day) or a date-time bound to a location.
//
// Time is a value type. Every operation returns a new Time, so holders of a
// Time never observe changes made through another copy.
type Time struct {
	t    time.Time
	date bool
}

// Date returns a pure-date value. Dates are stored as midnight in loc; loc is
// only used to anchor the date when it is compared against date-times.
func Date(year int, month time.Month, day int, loc *time.Location) Time {
	if loc == nil {
		loc = time.UTC
	}
	return Time{t: time.Date(year, month, day, 0, 0, 0, 0, loc), date: true}
}

// DateTime wraps a timestamp as a date-time value.
func DateTime(t time.Time) Time {
	return Time{t: t}
}

// DateOf returns the pure date of t as seen in loc.
func DateOf(t time.Time, loc *time.Location) Time {
	if loc == nil {
		loc = t.Location()
	}
	y, m, d := t.In(loc).Date()
	return Date(y, m, d, loc)
}

// IsDate reports whether v is a pure date.
func (v Time) IsDate() bool { return v.date }

// IsZero reports whether v is the zero value.
func (v Time) IsZero() bool { return v.t.IsZero() }

// Time returns the underlying timestamp. For dates this is midnight in the
// anchoring location.
func (v Time) Time() time.Time { return v.t }

// Location returns the location v is bound to.
func (v Time) Location() *time.Location { return v.t.Location() }

func (v Time) Year() int             { return v.t.Year() }
func (v Time) Month() time.Month     { return v.t.Month() }
func (v Time) Day() int              { return v.t.Day() }
func (v Time) Weekday() time.Weekday { return v.t.Weekday() }

// Clock returns the time-of-day of v. Dates report midnight.
func (v Time) Clock() (hour, min, sec int) {
	if v.date {
		return 0, 0, 0
	}
	return v.t.Clock()
}

// DateIn returns the calendar date of v as seen in loc. Pure dates are
// floating and keep their own year/month/day regardless of loc.
func (v Time) DateIn(loc *time.Location) (year int, month time.Month, day int) {
	if v.date || loc == nil {
		return v.t.Date()
	}
	return v.t.In(loc).Date()
}

// AddDays moves v by n calendar days, keeping the wall-clock time.
func (v Time) AddDays(n int) Time {
	return Time{t: v.t.AddDate(0, 0, n), date: v.date}
}

// Add applies a Delta. Dates only move by whole days.
func (v Time) Add(d Delta) Time {
	out := v.AddDays(d.Days)
	if !v.date && d.Clock != 0 {
		out.t = out.t.Add(d.Clock)
	}
	return out
}

// Equal reports whether a and b denote the same value of the same kind.
func (v Time) Equal(o Time) bool {
	return v.date == o.date && v.t.Equal(o.t)
}

// StartOfWeek returns the date of the first day of the week containing v,
// with weeks beginning on weekStart.
func (v Time) StartOfWeek(weekStart time.Weekday) Time {
	y, m, d := v.t.Date()
	day := Date(y, m, d, v.t.Location())
	off := (int(day.Weekday()) - int(weekStart) + 7) % 7
	return day.AddDays(-off)
}

// EndOfWeek returns the date of the last day of the week containing v.
func (v Time) EndOfWeek(weekStart time.Weekday) Time {
	return v.StartOfWeek(weekStart).AddDays(6)
}

// StartOfMonth returns the first date of v's month.
func (v Time) StartOfMonth() Time {
	return Date(v.t.Year(), v.t.Month(), 1, v.t.Location())
}

// EndOfMonth returns the last date of v's month.
func (v Time) EndOfMonth() Time {
	return Date(v.t.Year(), v.t.Month(), DaysInMonth(v.t.Year(), v.t.Month()), v.t.Location())
}

// String formats v the way iCalendar libraries print values:
// "2024-01-29" for dates, "2024-01-29T10:00:00" for zoned or floating
// date-times and a trailing "Z" for UTC.
func (v Time) String() string {
	switch {
	case v.date:
		return v.t.Format(dateLayout)
	case v.t.Location() == time.UTC:
		return v.t.Format(dateTimeLayoutUTC)
	default:
		return v.t.Format(dateTimeLayout)
	}
}

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// CompareDateOnly compares the calendar dates of a and b as seen in loc,
// ignoring time-of-day. It returns -1, 0 or 1.
func CompareDateOnly(a, b Time, loc *time.Location) int {
	ay, am, ad := a.DateIn(loc)
	by, bm, bd := b.DateIn(loc)
	switch {
	case ay != by:
		return cmpInt(ay, by)
	case am != bm:
		return cmpInt(int(am), int(bm))
	default:
		return cmpInt(ad, bd)
	}
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
