package calendar

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"monthcal/internal/caltime"
	"monthcal/internal/model"
)

func occ(first, last caltime.Time) *model.Occurrence {
	ev := allDay("e", first, last)
	return model.NewOccurrence(ev.Title, "", "", ev.Start, ev.End)
}

func TestWhichMonths(t *testing.T) {
	tests := []struct {
		name string
		occ  *model.Occurrence
		want []MonthKey
	}{
		{
			name: "same month",
			occ:  occ(day(2024, 3, 10), day(2024, 3, 12)),
			want: []MonthKey{{2024, time.March}},
		},
		{
			name: "same month in leading row stays in its month",
			occ:  occ(day(2024, 3, 1), day(2024, 3, 2)),
			want: []MonthKey{{2024, time.March}},
		},
		{
			name: "two months without neighbours",
			occ:  occ(day(2024, 2, 28), day(2024, 3, 2)),
			want: []MonthKey{{2024, time.February}, {2024, time.March}},
		},
		{
			name: "start month begins on monday",
			occ:  occ(day(2024, 1, 30), day(2024, 2, 2)),
			want: []MonthKey{{2024, time.January}, {2024, time.February}},
		},
		{
			name: "both neighbours across the year",
			occ:  occ(day(2023, 11, 2), day(2024, 1, 30)),
			want: []MonthKey{
				{2023, time.October},
				{2023, time.November},
				{2023, time.December},
				{2024, time.January},
				{2024, time.February},
			},
		},
		{
			name: "timed event crossing month end",
			occ:  model.NewOccurrence("t", "", "", at(2024, 4, 30, 22, 0), at(2024, 5, 1, 2, 0)),
			want: []MonthKey{{2024, time.April}, {2024, time.May}},
		},
		{
			name: "trailing row of end month",
			occ:  model.NewOccurrence("t", "", "", at(2024, 5, 31, 22, 0), at(2024, 7, 30, 2, 0)),
			want: []MonthKey{{2024, time.May}, {2024, time.June}, {2024, time.July}, {2024, time.August}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ElementsMatch(t, tt.want, WhichMonths(tt.occ, time.UTC))
		})
	}
}

func TestWhichMonths_UsesLocation(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	assert.NoError(t, err)

	// 2024-03-31 20:00 UTC is already April 1st in Tokyo.
	o := model.NewOccurrence("t", "", "", at(2024, 3, 31, 20, 0), at(2024, 3, 31, 21, 0))
	assert.Equal(t, []MonthKey{{2024, time.March}}, WhichMonths(o, time.UTC))
	assert.Equal(t, []MonthKey{{2024, time.April}}, WhichMonths(o, tokyo))
}

// Every month whose page overlaps a multi-month event is returned, and no
// other.
func TestWhichMonths_MatchesWindowOverlap(t *testing.T) {
	start := day(2023, 11, 1)
	for i := 0; i < 500; i += 3 {
		first := start.AddDays(i)
		for length := 0; length < 80; length += 5 {
			last := first.AddDays(length)
			if first.Month() == last.Month() && first.Year() == last.Year() {
				continue
			}
			o := occ(first, last)

			var want []MonthKey
			k := MonthKey{first.Year(), first.Month()}.prev()
			end := MonthKey{last.Year(), last.Month()}.next()
			for ; k.index() <= end.index(); k = k.next() {
				w := MonthWindow(k.Year, k.Month, time.UTC)
				if caltime.CompareDateOnly(o.Start, w.Last, time.UTC) <= 0 &&
					caltime.CompareDateOnly(o.End, w.First, time.UTC) >= 0 {
					want = append(want, k)
				}
			}

			name := fmt.Sprintf("%s..%s", first, last)
			assert.ElementsMatch(t, want, WhichMonths(o, time.UTC), name)
		}
	}
}
