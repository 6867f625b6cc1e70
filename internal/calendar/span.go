package calendar

import (
	"time"

	"monthcal/internal/caltime"
	"monthcal/internal/model"
)

// MonthKey identifies a calendar page.
type MonthKey struct {
	Year  int
	Month time.Month
}

func (k MonthKey) prev() MonthKey {
	if k.Month == time.January {
		return MonthKey{Year: k.Year - 1, Month: time.December}
	}
	return MonthKey{Year: k.Year, Month: k.Month - 1}
}

func (k MonthKey) next() MonthKey {
	if k.Month == time.December {
		return MonthKey{Year: k.Year + 1, Month: time.January}
	}
	return MonthKey{Year: k.Year, Month: k.Month + 1}
}

func (k MonthKey) index() int {
	return k.Year*12 + int(k.Month) - 1
}

// monthSet is an insertion-ordered set of MonthKeys.
type monthSet struct {
	keys []MonthKey
	seen map[MonthKey]struct{}
}

func (s *monthSet) add(k MonthKey) {
	if s.seen == nil {
		s.seen = make(map[MonthKey]struct{})
	}
	if _, ok := s.seen[k]; ok {
		return
	}
	s.seen[k] = struct{}{}
	s.keys = append(s.keys, k)
}

// WhichMonths returns every month whose calendar page shows at least one day
// of occ, with dates taken in loc. The order of the result carries no
// meaning.
func WhichMonths(occ *model.Occurrence, loc *time.Location) []MonthKey {
	sy, sm, sd := occ.Start.DateIn(loc)
	ey, em, ed := occ.End.DateIn(loc)

	startKey := MonthKey{Year: sy, Month: sm}
	endKey := MonthKey{Year: ey, Month: em}
	if startKey == endKey {
		return []MonthKey{startKey}
	}

	var set monthSet
	set.add(startKey)
	set.add(endKey)

	for k := startKey.next(); k.index() < endKey.index(); k = k.next() {
		set.add(k)
	}

	// Leading grid row: days of the start month shown on the previous page.
	start := caltime.Date(sy, sm, sd, loc)
	first := start.StartOfMonth()
	if first.Weekday() != WeekStart && start.StartOfWeek(WeekStart).Equal(first.StartOfWeek(WeekStart)) {
		set.add(startKey.prev())
	}

	// Trailing grid row: days of the end month shown on the next page.
	end := caltime.Date(ey, em, ed, loc)
	last := end.EndOfMonth()
	if last.Weekday() != weekEnd() && end.StartOfWeek(WeekStart).Equal(last.StartOfWeek(WeekStart)) {
		set.add(endKey.next())
	}

	return set.keys
}

func weekEnd() time.Weekday {
	return (WeekStart + 6) % 7
}
