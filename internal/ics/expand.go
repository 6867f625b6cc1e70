package ics

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/teambition/rrule-go"

	"monthcal/internal/caltime"
	"monthcal/internal/model"
)

// memoLimit caps how many generated instances one recurrence remembers.
// Iterators positioned past it walk the rule from DTSTART again.
var memoLimit = 1 << 16

// ruleRecurrence is a model.Recurrence backed by an rrule.Set built from an
// event's RRULE, RDATE and EXDATE properties.
//
// rrule-go cannot seek, so generated instances are remembered and shared by
// all iterators. Reaching a window start is a binary search once the rule
// has been walked that far.
type ruleRecurrence struct {
	set  *rrule.Set
	date bool
	loc  *time.Location

	mu   sync.Mutex
	memo []time.Time
	gen  func() (time.Time, bool)
	done bool
}

// NewRecurrence builds the recurrence of an event starting at start.
//
// rawRule is the RRULE value (may be empty when only RDATEs are given).
// Local UNTIL values are read in start's location so date-valued rules end
// on the intended day.
func NewRecurrence(start caltime.Time, rawRule string, rdates, exdates []caltime.Time) (model.Recurrence, error) {
	if rawRule == "" && len(rdates) == 0 {
		return nil, fmt.Errorf("recurrence: neither RRULE nor RDATE given")
	}

	loc := start.Location()
	var set rrule.Set
	set.DTStart(start.Time())

	if rawRule != "" {
		opt, err := rrule.StrToROptionInLocation(rawRule, loc)
		if err != nil {
			return nil, fmt.Errorf("recurrence: parse RRULE %q: %w", rawRule, err)
		}
		opt.Dtstart = start.Time()
		r, err := rrule.NewRRule(*opt)
		if err != nil {
			return nil, fmt.Errorf("recurrence: build RRULE %q: %w", rawRule, err)
		}
		set.RRule(r)
	} else {
		// RDATE-only events still occur on DTSTART.
		set.RDate(start.Time())
	}

	for _, rd := range rdates {
		set.RDate(alignTo(rd, start))
	}
	for _, ex := range exdates {
		set.ExDate(alignTo(ex, start))
	}

	return &ruleRecurrence{set: &set, date: start.IsDate(), loc: loc}, nil
}

// alignTo turns v into the instant the rule generates for it. Date values
// become midnight in the start's location; date-times keep their instant.
func alignTo(v, start caltime.Time) time.Time {
	if v.IsDate() {
		y, m, d := v.DateIn(nil)
		if start.IsDate() {
			return time.Date(y, m, d, 0, 0, 0, 0, start.Location())
		}
		h, mi, s := start.Clock()
		return time.Date(y, m, d, h, mi, s, 0, start.Location())
	}
	return v.Time().Truncate(time.Second)
}

func (r *ruleRecurrence) wrap(t time.Time) caltime.Time {
	if r.date {
		y, m, d := t.In(r.loc).Date()
		return caltime.Date(y, m, d, r.loc)
	}
	return caltime.DateTime(t.In(r.loc))
}

// Iterator returns an iterator skipping every trigger dated before from.
func (r *ruleRecurrence) Iterator(from caltime.Time) model.Iterator {
	return &ruleIterator{
		rec:  r,
		from: from,
		pos:  r.seek(from),
	}
}

// before reports whether instance t falls on a day earlier than from.
func (r *ruleRecurrence) before(t time.Time, from caltime.Time) bool {
	return caltime.CompareDateOnly(r.wrap(t), from, from.Location()) < 0
}

// grow appends the next generated instance to the memo. r.mu must be held.
func (r *ruleRecurrence) grow() bool {
	if r.done || len(r.memo) >= memoLimit {
		return false
	}
	if r.gen == nil {
		r.gen = r.set.Iterator()
	}
	t, ok := r.gen()
	if !ok {
		r.done = true
		return false
	}
	r.memo = append(r.memo, t)
	return true
}

// seek returns the index of the first remembered instance on or after from,
// extending the memo as needed.
func (r *ruleRecurrence) seek(from caltime.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	for len(r.memo) == 0 || r.before(r.memo[len(r.memo)-1], from) {
		if !r.grow() {
			break
		}
	}
	return sort.Search(len(r.memo), func(i int) bool {
		return !r.before(r.memo[i], from)
	})
}

// walk starts a private iterator from DTSTART. Set.Iterator sorts the
// set's date lists in place, so it runs under r.mu.
func (r *ruleRecurrence) walk() func() (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.set.Iterator()
}

type memoState int

const (
	memoHit memoState = iota
	memoEnd
	memoFull
)

// at returns the i-th instance of the rule.
func (r *ruleRecurrence) at(i int) (time.Time, memoState) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for len(r.memo) <= i {
		if !r.grow() {
			break
		}
	}
	switch {
	case i < len(r.memo):
		return r.memo[i], memoHit
	case r.done:
		return time.Time{}, memoEnd
	default:
		return time.Time{}, memoFull
	}
}

type ruleIterator struct {
	rec  *ruleRecurrence
	from caltime.Time
	// pos is the memo index of the next instance.
	pos int
	// tail walks the rule privately once pos runs past a full memo.
	tail func() (time.Time, bool)
	// positioned is set once the iterator has reached from.
	positioned bool
}

func (it *ruleIterator) Next() (caltime.Time, bool) {
	for {
		t, ok := it.raw()
		if !ok {
			return caltime.Time{}, false
		}
		if !it.positioned {
			if it.rec.before(t, it.from) {
				continue
			}
			it.positioned = true
		}
		return it.rec.wrap(t), true
	}
}

func (it *ruleIterator) raw() (time.Time, bool) {
	if it.tail != nil {
		return it.tail()
	}

	t, state := it.rec.at(it.pos)
	switch state {
	case memoHit:
		it.pos++
		return t, true
	case memoEnd:
		return time.Time{}, false
	}

	it.tail = it.rec.walk()
	for i := 0; i < it.pos; i++ {
		if _, ok := it.tail(); !ok {
			return time.Time{}, false
		}
	}
	return it.tail()
}
