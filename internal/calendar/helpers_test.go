package calendar

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"monthcal/internal/caltime"
	"monthcal/internal/model"
)

func day(y int, m time.Month, d int) caltime.Time {
	return caltime.Date(y, m, d, time.UTC)
}

func at(y int, m time.Month, d, h, mi int) caltime.Time {
	return caltime.DateTime(time.Date(y, m, d, h, mi, 0, 0, time.UTC))
}

// allDay builds an all-day event covering first..last inclusive.
func allDay(title string, first, last caltime.Time) model.Event {
	return model.Event{UID: title, Title: title, Start: first, End: last.AddDays(1)}
}

// listRecurrence triggers on a fixed, sorted list of dates.
type listRecurrence []caltime.Time

func (l listRecurrence) Iterator(from caltime.Time) model.Iterator {
	return &listIterator{items: l, from: from}
}

type listIterator struct {
	items []caltime.Time
	from  caltime.Time
	pos   int
}

func (it *listIterator) Next() (caltime.Time, bool) {
	for it.pos < len(it.items) {
		v := it.items[it.pos]
		it.pos++
		if caltime.CompareDateOnly(v, it.from, it.from.Location()) < 0 {
			continue
		}
		return v, true
	}
	return caltime.Time{}, false
}

// weekly returns n weekly triggers starting at start.
func weekly(start caltime.Time, n int) listRecurrence {
	out := make(listRecurrence, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, start.AddDays(7*i))
	}
	return out
}

type mockSource struct {
	mock.Mock
}

func (m *mockSource) Pull(ctx context.Context) (model.Feed, error) {
	args := m.Called(ctx)
	return args.Get(0).(model.Feed), args.Error(1)
}

func titles(occ []*model.Occurrence) []string {
	out := make([]string, 0, len(occ))
	for _, o := range occ {
		out = append(out, o.Title)
	}
	return out
}
