package caltime

import "time"

// Delta is the distance between two calendar values, split into whole
// calendar days and a time-of-day remainder. Adding the day part with
// AddDate keeps wall-clock times stable across DST transitions.
type Delta struct {
	Days  int
	Clock time.Duration
}

// Sub returns a - b.
//
// When exactly one side is a pure date, it borrows the time-of-day of the
// other side first, so comparing an all-day trigger against a timed template
// (or the reverse) yields whole days only.
func Sub(a, b Time) Delta {
	if a.date != b.date {
		if a.date {
			a = withClockOf(a, b)
		} else {
			b = withClockOf(b, a)
		}
	}

	at := a.t
	bt := b.t
	if !a.date {
		at = at.In(bt.Location())
	}

	ay, am, ad := at.Date()
	by, bm, bd := bt.Date()
	days := int(time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC).Sub(time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)) / (24 * time.Hour))

	return Delta{
		Days:  days,
		Clock: sinceMidnight(at) - sinceMidnight(bt),
	}
}

// withClockOf turns the date d into a date-time carrying src's time-of-day.
func withClockOf(d, src Time) Time {
	h, m, s := src.t.Clock()
	loc := src.t.Location()
	return Time{t: time.Date(d.t.Year(), d.t.Month(), d.t.Day(), h, m, s, src.t.Nanosecond(), loc)}
}

func sinceMidnight(t time.Time) time.Duration {
	h, m, s := t.Clock()
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second + time.Duration(t.Nanosecond())
}
