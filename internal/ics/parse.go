package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"monthcal/internal/caltime"
	appLog "monthcal/internal/log"
	"monthcal/internal/model"
)

// ErrEmptyBody is returned for an empty ICS payload.
var ErrEmptyBody = errors.New("empty ICS body")

// parsedEvent is a VEVENT with its recurrence properties still in raw form.
type parsedEvent struct {
	model.Event

	rawRule string
	rdates  []caltime.Time
	exdates []caltime.Time
}

// ParseICS parses a single ICS payload into a model.Feed.
//
//   - The feed timezone is the first VTIMEZONE whose TZID is a known IANA
//     zone, then X-WR-TIMEZONE, then fallback.
//   - DATE values are anchored to the feed timezone; floating DATE-TIMEs
//     are read in it as well.
//   - Recurring events get an rrule-backed model.Recurrence; RECURRENCE-ID
//     instances are attached to their master as overrides.
//
// Individual broken VEVENTs are logged and skipped.
func ParseICS(src Source, body []byte, fallback *time.Location) (model.Feed, error) {
	if len(body) == 0 {
		return model.Feed{}, ErrEmptyBody
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "id", src.ID, "url", redactURL(src.URL))
		return model.Feed{}, fmt.Errorf("parse calendar: %w", err)
	}

	loc := feedLocation(cal, fallback)

	parsed := make([]parsedEvent, 0)
	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(comp, loc)
		if perr != nil {
			appLog.Error("ics vevent parse failed", perr, "id", src.ID, "url", redactURL(src.URL))
			continue
		}
		parsed = append(parsed, ev)
	}

	events := assemble(parsed)

	appLog.Info("ics parse completed", "id", src.ID, "url", redactURL(src.URL), "event_count", len(events), "timezone", loc.String())
	return model.Feed{Events: events, Location: loc}, nil
}

func feedLocation(cal *ical.Calendar, fallback *time.Location) *time.Location {
	for _, tz := range cal.Timezones() {
		p := tz.GetProperty(ical.ComponentPropertyTzid)
		if p == nil || p.Value == "" {
			continue
		}
		if loc, err := time.LoadLocation(p.Value); err == nil {
			return loc
		}
		appLog.Warn("ics unknown VTIMEZONE", "tzid", p.Value)
	}

	for _, p := range cal.CalendarProperties {
		if p.IANAToken != string(ical.PropertyXWRTimezone) || p.Value == "" {
			continue
		}
		if loc, err := time.LoadLocation(p.Value); err == nil {
			return loc
		}
	}

	if fallback == nil {
		return time.UTC
	}
	return fallback
}

// assemble builds recurrences and attaches overrides to their masters.
// Overrides without a recurring master are kept as single events.
func assemble(parsed []parsedEvent) []model.Event {
	out := make([]model.Event, 0, len(parsed))
	masters := make(map[string]int)
	var overrides []model.Event

	for _, pe := range parsed {
		ev := pe.Event
		if ev.RecurrenceID != nil {
			overrides = append(overrides, ev)
			continue
		}
		if pe.rawRule != "" || len(pe.rdates) > 0 {
			rec, err := NewRecurrence(ev.Start, pe.rawRule, pe.rdates, pe.exdates)
			if err != nil {
				appLog.Error("ics recurrence ignored; using master instance only", err, "uid", ev.UID)
			} else {
				ev.Recurrence = rec
				if ev.UID != "" {
					masters[ev.UID] = len(out)
				}
			}
		}
		out = append(out, ev)
	}

	for _, ov := range overrides {
		if i, ok := masters[ov.UID]; ok {
			out[i].Overrides = append(out[i].Overrides, ov)
			continue
		}
		out = append(out, ov)
	}
	return out
}

func parseVEvent(ve *ical.VEvent, loc *time.Location) (parsedEvent, error) {
	var out parsedEvent

	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		out.UID = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Title = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = p.Value
	}

	startProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	if startProp == nil {
		return out, errors.New("missing DTSTART")
	}
	start, err := parseTimeProp(&startProp.BaseProperty, loc)
	if err != nil {
		return out, fmt.Errorf("DTSTART: %w", err)
	}
	out.Start = start[0]

	end, err := eventEnd(ve, out.Start, loc)
	if err != nil {
		return out, err
	}
	out.End = end

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.rawRule = strings.TrimSpace(p.Value)
	}
	for _, p := range ve.GetProperties(ical.ComponentPropertyRdate) {
		vals, err := parseTimeProp(&p.BaseProperty, loc)
		if err != nil {
			return out, fmt.Errorf("RDATE: %w", err)
		}
		out.rdates = append(out.rdates, vals...)
	}
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		vals, err := parseTimeProp(&p.BaseProperty, loc)
		if err != nil {
			return out, fmt.Errorf("EXDATE: %w", err)
		}
		out.exdates = append(out.exdates, vals...)
	}

	if p := ve.GetProperty(ical.ComponentPropertyRecurrenceId); p != nil {
		vals, err := parseTimeProp(&p.BaseProperty, loc)
		if err != nil {
			return out, fmt.Errorf("RECURRENCE-ID: %w", err)
		}
		rid := vals[0]
		out.RecurrenceID = &rid
	}

	return out, nil
}

// eventEnd resolves DTEND, then DURATION, then the RFC 5545 defaults: one
// day for DATE starts, zero length for DATE-TIME starts.
func eventEnd(ve *ical.VEvent, start caltime.Time, loc *time.Location) (caltime.Time, error) {
	if p := ve.GetProperty(ical.ComponentPropertyDtEnd); p != nil {
		vals, err := parseTimeProp(&p.BaseProperty, loc)
		if err != nil {
			return caltime.Time{}, fmt.Errorf("DTEND: %w", err)
		}
		end := vals[0]
		// A DATE end on or before the start would leave no inclusive day.
		if start.IsDate() && end.IsDate() && caltime.CompareDateOnly(end, start, loc) <= 0 {
			return start.AddDays(1), nil
		}
		return end, nil
	}

	if p := ve.GetProperty(ical.ComponentPropertyDuration); p != nil {
		d, err := parseDuration(p.Value)
		if err != nil {
			return caltime.Time{}, fmt.Errorf("DURATION: %w", err)
		}
		end := start.Add(d)
		if start.IsDate() && d.Days <= 0 {
			end = start.AddDays(1)
		}
		return end, nil
	}

	if start.IsDate() {
		return start.AddDays(1), nil
	}
	return start, nil
}
