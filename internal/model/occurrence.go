package model

import "monthcal/internal/caltime"

// Occurrence represents a single concrete instance of an event.
//
// Occurrences are built once by NewOccurrence and never modified afterwards.
type Occurrence struct {
	Title       string
	Description string
	Location    string

	Start caltime.Time
	// End is inclusive for pure dates: the last day the event covers.
	End caltime.Time
}

// NewOccurrence builds an Occurrence. A pure-date end is moved back one day,
// turning the exclusive iCalendar boundary into the last inclusive day.
func NewOccurrence(title, description, location string, start, end caltime.Time) *Occurrence {
	if end.IsDate() {
		end = end.AddDays(-1)
	}
	return &Occurrence{
		Title:       title,
		Description: description,
		Location:    location,
		Start:       start,
		End:         end,
	}
}

// AllDay reports whether both start and end are pure dates.
func (o *Occurrence) AllDay() bool {
	return o.Start.IsDate() && o.End.IsDate()
}

// Record is the JSON-friendly view of an Occurrence.
type Record struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Start       string `json:"start"`
	End         string `json:"end"`
}

// Record converts o into its exposed form.
func (o *Occurrence) Record() Record {
	return Record{
		Title:       o.Title,
		Description: o.Description,
		Location:    o.Location,
		Start:       o.Start.String(),
		End:         o.End.String(),
	}
}

// Records converts a list of occurrences. The result is never nil so it
// encodes as an empty JSON array.
func Records(occ []*Occurrence) []Record {
	out := make([]Record, 0, len(occ))
	for _, o := range occ {
		out = append(out, o.Record())
	}
	return out
}
