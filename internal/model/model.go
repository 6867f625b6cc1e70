package model

import (
	"time"

	"monthcal/internal/caltime"
)

// Event represents a logical calendar event before recurrence expansion,
// as produced by the ICS parser.
type Event struct {
	UID string // iCalendar UID

	Title       string
	Description string
	Location    string

	// Start / End as found in the feed. A pure-date End is the exclusive
	// boundary (the day after the last day of the event).
	Start caltime.Time
	End   caltime.Time

	// Recurrence is nil for single events.
	Recurrence Recurrence

	// RecurrenceID is set on VEVENTs that override one instance of a
	// recurring event.
	RecurrenceID *caltime.Time

	// Overrides holds the RECURRENCE-ID instances belonging to this
	// (recurring) event.
	Overrides []Event
}

// IsRecurring reports whether the event repeats.
func (e Event) IsRecurring() bool {
	return e.Recurrence != nil
}

// Recurrence produces the trigger dates of a recurring event.
type Recurrence interface {
	// Iterator returns an iterator positioned at the first trigger whose
	// date is on or after from.
	Iterator(from caltime.Time) Iterator
}

// Iterator yields successive trigger dates in increasing order.
type Iterator interface {
	// Next returns the next trigger, or false once the rule is exhausted.
	Next() (caltime.Time, bool)
}

// Feed is one parsed calendar: all VEVENTs plus the timezone the feed is
// expressed in.
type Feed struct {
	Events   []Event
	Location *time.Location
}
