package ics

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"monthcal/internal/caltime"
	appLog "monthcal/internal/log"
)

const (
	icalDate          = "20060102"
	icalDateTime      = "20060102T150405"
	icalDateTimeUTC   = "20060102T150405Z"
	icalDateLength    = len(icalDate)
	icalPeriodDivider = "/"
)

// parseTimeProp parses a DATE / DATE-TIME property, honouring VALUE=DATE and
// TZID. List-valued properties (EXDATE, RDATE) yield one value per item;
// PERIOD items contribute their start.
func parseTimeProp(p *ical.BaseProperty, loc *time.Location) ([]caltime.Time, error) {
	propLoc := loc
	if ids, ok := p.ICalParameters[string(ical.ParameterTzid)]; ok && len(ids) > 0 {
		id := strings.Trim(ids[0], `"`)
		if l, err := time.LoadLocation(id); err == nil {
			propLoc = l
		} else {
			appLog.Warn("ics unknown TZID; using feed timezone", "tzid", id, "property", p.IANAToken)
		}
	}

	isDate := false
	if vs, ok := p.ICalParameters[string(ical.ParameterValue)]; ok && len(vs) > 0 {
		isDate = strings.EqualFold(vs[0], string(ical.ValueDataTypeDate))
	}

	out := make([]caltime.Time, 0, 1)
	for _, part := range strings.Split(p.Value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if i := strings.Index(part, icalPeriodDivider); i >= 0 {
			part = part[:i]
		}
		v, err := parseTimeValue(part, isDate, propLoc, loc)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: empty value", p.IANAToken)
	}
	return out, nil
}

// parseTimeValue parses one iCalendar DATE or DATE-TIME. Dates are anchored
// to dateLoc, the feed timezone.
func parseTimeValue(v string, isDate bool, loc, dateLoc *time.Location) (caltime.Time, error) {
	if isDate || !strings.Contains(v, "T") {
		if len(v) < icalDateLength {
			return caltime.Time{}, fmt.Errorf("invalid date %q", v)
		}
		t, err := time.Parse(icalDate, v[:icalDateLength])
		if err != nil {
			return caltime.Time{}, err
		}
		return caltime.Date(t.Year(), t.Month(), t.Day(), dateLoc), nil
	}

	if strings.HasSuffix(v, "Z") {
		t, err := time.Parse(icalDateTimeUTC, v)
		if err != nil {
			return caltime.Time{}, err
		}
		return caltime.DateTime(t), nil
	}

	t, err := time.ParseInLocation(icalDateTime, v, loc)
	if err != nil {
		return caltime.Time{}, err
	}
	return caltime.DateTime(t), nil
}

// parseDuration parses an RFC 5545 DURATION such as "P1D", "PT1H30M",
// "-P2W" or "P1DT12H".
func parseDuration(s string) (caltime.Delta, error) {
	s = strings.TrimSpace(s)
	neg := false
	switch {
	case strings.HasPrefix(s, "-"):
		neg = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	if !strings.HasPrefix(s, "P") || len(s) < 3 {
		return caltime.Delta{}, fmt.Errorf("invalid duration %q", s)
	}
	s = s[1:]

	var d caltime.Delta
	inTime := false
	num := ""
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			num += string(r)
		case r == 'T':
			inTime = true
		default:
			if num == "" {
				return caltime.Delta{}, errors.New("invalid duration: missing number")
			}
			n, err := strconv.Atoi(num)
			if err != nil {
				return caltime.Delta{}, err
			}
			num = ""
			switch {
			case r == 'W' && !inTime:
				d.Days += 7 * n
			case r == 'D' && !inTime:
				d.Days += n
			case r == 'H' && inTime:
				d.Clock += time.Duration(n) * time.Hour
			case r == 'M' && inTime:
				d.Clock += time.Duration(n) * time.Minute
			case r == 'S' && inTime:
				d.Clock += time.Duration(n) * time.Second
			default:
				return caltime.Delta{}, fmt.Errorf("invalid duration designator %q", r)
			}
		}
	}
	if num != "" {
		return caltime.Delta{}, errors.New("invalid duration: trailing number")
	}

	if neg {
		d.Days, d.Clock = -d.Days, -d.Clock
	}
	return d, nil
}
