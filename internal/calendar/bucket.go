package calendar

import (
	"time"

	"monthcal/internal/caltime"
	"monthcal/internal/model"
)

// WeekStart is the first day of a calendar-grid row.
const WeekStart = time.Monday

// Window is the span of days a month's calendar page shows, including the
// leading and trailing days borrowed from adjacent months.
type Window struct {
	First    caltime.Time
	Last     caltime.Time
	Location *time.Location
}

// MonthWindow returns the visible window for a month: from the Monday on or
// before the 1st to the Sunday on or after the last day.
func MonthWindow(year int, month time.Month, loc *time.Location) Window {
	first := caltime.Date(year, month, 1, loc)
	return Window{
		First:    first.StartOfWeek(WeekStart),
		Last:     first.EndOfMonth().EndOfWeek(WeekStart),
		Location: loc,
	}
}

// Contains reports whether the date of t falls inside the window.
func (w Window) Contains(t caltime.Time) bool {
	return caltime.CompareDateOnly(t, w.First, w.Location) >= 0 &&
		caltime.CompareDateOnly(t, w.Last, w.Location) <= 0
}

// Bucket holds the single-event occurrences relevant to one calendar page.
//
// A Bucket is not safe for concurrent use on its own; Index serialises all
// access to it.
type Bucket struct {
	Year  int
	Month time.Month

	window Window

	events []*model.Occurrence
	seen   map[*model.Occurrence]struct{}
}

func newBucket(year int, month time.Month, loc *time.Location) *Bucket {
	return &Bucket{
		Year:   year,
		Month:  month,
		window: MonthWindow(year, month, loc),
		seen:   make(map[*model.Occurrence]struct{}),
	}
}

// Window returns the visible window of the bucket's month.
func (b *Bucket) Window() Window { return b.window }

// AddEvent adds occ unless this exact occurrence is already stored.
func (b *Bucket) AddEvent(occ *model.Occurrence) {
	if _, ok := b.seen[occ]; ok {
		return
	}
	b.seen[occ] = struct{}{}
	b.events = append(b.events, occ)
}

// Events returns a copy of the stored single-event occurrences in insertion
// order.
func (b *Bucket) Events() []*model.Occurrence {
	out := make([]*model.Occurrence, len(b.events))
	copy(out, b.events)
	return out
}

// Reset drops all single events and re-anchors the bucket to loc.
func (b *Bucket) Reset(loc *time.Location) {
	b.events = nil
	b.seen = make(map[*model.Occurrence]struct{})
	b.window = MonthWindow(b.Year, b.Month, loc)
}

// FilterDay keeps the occurrences that cover date, inclusively, comparing
// dates in loc.
func FilterDay(occ []*model.Occurrence, date caltime.Time, loc *time.Location) []*model.Occurrence {
	out := make([]*model.Occurrence, 0, len(occ))
	for _, o := range occ {
		if affectsDate(o, date, loc) {
			out = append(out, o)
		}
	}
	return out
}

func affectsDate(o *model.Occurrence, date caltime.Time, loc *time.Location) bool {
	return caltime.CompareDateOnly(o.Start, date, loc) <= 0 &&
		caltime.CompareDateOnly(o.End, date, loc) >= 0
}
