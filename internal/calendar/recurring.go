package calendar

import (
	"sort"

	"monthcal/internal/caltime"
	"monthcal/internal/model"
)

// Recurring is a recurring event kept in its unexpanded form. Expand turns it
// into concrete occurrences for one calendar page; nothing is cached between
// calls.
type Recurring struct {
	event model.Event
}

// NewRecurring wraps a recurring event. ev.Recurrence must be non-nil.
func NewRecurring(ev model.Event) *Recurring {
	return &Recurring{event: ev}
}

// Event returns the underlying event definition.
func (r *Recurring) Event() model.Event { return r.event }

// Expand returns the occurrences of r visible on the page w, ordered by
// start. Generated instances are kept when their trigger date falls inside
// w. An instance replaced by a RECURRENCE-ID override is dropped and the
// override is shown on every page its own dates overlap.
func (r *Recurring) Expand(w Window) []*model.Occurrence {
	ev := r.event
	out := make([]*model.Occurrence, 0)

	it := ev.Recurrence.Iterator(w.First)
	for {
		date, ok := it.Next()
		if !ok {
			break
		}
		if caltime.CompareDateOnly(w.Last, date, w.Location) < 0 {
			break
		}
		// Some rules generate an instance before DTSTART.
		if caltime.CompareDateOnly(date, ev.Start, w.Location) < 0 {
			continue
		}
		if r.replaced(date) {
			continue
		}

		delta := caltime.Sub(date, ev.Start)
		out = append(out, model.NewOccurrence(
			ev.Title,
			ev.Description,
			ev.Location,
			ev.Start.Add(delta),
			ev.End.Add(delta),
		))
	}

	overridden := false
	for _, ov := range ev.Overrides {
		if ov.RecurrenceID == nil {
			continue
		}
		occ := model.NewOccurrence(ov.Title, ov.Description, ov.Location, ov.Start, ov.End)
		if overlaps(occ, w) {
			out = append(out, occ)
			overridden = true
		}
	}
	if overridden {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Start.Time().Before(out[j].Start.Time())
		})
	}

	return out
}

// overlaps reports whether any day of occ lies inside w.
func overlaps(occ *model.Occurrence, w Window) bool {
	return caltime.CompareDateOnly(occ.Start, w.Last, w.Location) <= 0 &&
		caltime.CompareDateOnly(occ.End, w.First, w.Location) >= 0
}

// replaced reports whether a RECURRENCE-ID override stands in for the
// trigger at date. Date-valued ids match by day, date-time ids by instant.
func (r *Recurring) replaced(date caltime.Time) bool {
	for _, ov := range r.event.Overrides {
		if ov.RecurrenceID == nil {
			continue
		}
		rid := *ov.RecurrenceID
		if rid.IsDate() || date.IsDate() {
			if caltime.CompareDateOnly(rid, date, date.Location()) == 0 {
				return true
			}
			continue
		}
		if rid.Time().Equal(date.Time()) {
			return true
		}
	}
	return false
}

// Split separates parsed events into single-event occurrences and recurring
// definitions.
func Split(events []model.Event) ([]*model.Occurrence, []*Recurring) {
	singles := make([]*model.Occurrence, 0, len(events))
	recurring := make([]*Recurring, 0)

	for _, ev := range events {
		if ev.IsRecurring() {
			recurring = append(recurring, NewRecurring(ev))
			continue
		}
		singles = append(singles, model.NewOccurrence(ev.Title, ev.Description, ev.Location, ev.Start, ev.End))
	}

	return singles, recurring
}
