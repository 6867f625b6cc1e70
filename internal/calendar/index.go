package calendar

import (
	"context"
	"fmt"
	"sync"
	"time"

	"monthcal/internal/caltime"
	appLog "monthcal/internal/log"
	"monthcal/internal/model"
)

// Source delivers a freshly fetched and parsed calendar feed.
type Source interface {
	Pull(ctx context.Context) (model.Feed, error)
}

// Index maps (year, month) to calendar pages and answers month and day
// queries by merging stored single events with recurring events expanded on
// demand.
//
// Index is safe for concurrent use. Queries see either the state before or
// after a Refresh, never a mix.
type Index struct {
	source Source
	now    func() time.Time

	mu           sync.RWMutex
	months       map[int]map[time.Month]*Bucket
	recurring    []*Recurring
	loc          *time.Location
	lastModified time.Time
}

// NewIndex creates an empty index. loc is used until the first successful
// refresh supplies the feed's own timezone.
func NewIndex(src Source, loc *time.Location) *Index {
	if loc == nil {
		loc = time.UTC
	}
	return &Index{
		source: src,
		now:    time.Now,
		months: make(map[int]map[time.Month]*Bucket),
		loc:    loc,
	}
}

// LastModified is the time of the last successful refresh, or the zero time
// before the first one.
func (ix *Index) LastModified() time.Time {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.lastModified
}

// Location returns the timezone currently used for new buckets.
func (ix *Index) Location() *time.Location {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.loc
}

// Bucket returns the bucket for (year, month), creating an empty one on
// first use. The same *Bucket is returned for a key until the process ends.
func (ix *Index) Bucket(year int, month time.Month) *Bucket {
	ix.mu.RLock()
	b := ix.months[year][month]
	ix.mu.RUnlock()
	if b != nil {
		return b
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.bucketLocked(year, month)
}

// bucketLocked requires ix.mu to be held for writing.
func (ix *Index) bucketLocked(year int, month time.Month) *Bucket {
	byMonth, ok := ix.months[year]
	if !ok {
		byMonth = make(map[time.Month]*Bucket)
		ix.months[year] = byMonth
	}
	b, ok := byMonth[month]
	if !ok {
		b = newBucket(year, month, ix.loc)
		byMonth[month] = b
	}
	return b
}

// snapshot captures what a query needs so expansion can run unlocked.
type snapshot struct {
	window    Window
	singles   []*model.Occurrence
	recurring []*Recurring
}

func (ix *Index) snapshot(year int, month time.Month) snapshot {
	b := ix.Bucket(year, month)

	ix.mu.RLock()
	defer ix.mu.RUnlock()
	rec := make([]*Recurring, len(ix.recurring))
	copy(rec, ix.recurring)
	return snapshot{
		window:    b.Window(),
		singles:   b.Events(),
		recurring: rec,
	}
}

func (s snapshot) occurrences() []*model.Occurrence {
	out := s.singles
	for _, r := range s.recurring {
		out = append(out, r.Expand(s.window)...)
	}
	return out
}

// Month returns the single events stored for the month followed by every
// recurring occurrence visible on its page.
func (ix *Index) Month(year int, month time.Month) []*model.Occurrence {
	return ix.snapshot(year, month).occurrences()
}

// Day returns the subset of Month(year, month) covering the given day.
func (ix *Index) Day(year int, month time.Month, day int) []*model.Occurrence {
	s := ix.snapshot(year, month)
	date := caltime.Date(year, month, day, s.window.Location)
	return FilterDay(s.occurrences(), date, s.window.Location)
}

// GetMonth is Month in its exposed record form.
func (ix *Index) GetMonth(year int, month time.Month) []model.Record {
	return model.Records(ix.Month(year, month))
}

// GetDay is Day in its exposed record form.
func (ix *Index) GetDay(year int, month time.Month, day int) []model.Record {
	return model.Records(ix.Day(year, month, day))
}

// Refresh pulls a new feed and replaces the index contents. On failure the
// previous contents stay in place and the error is returned.
func (ix *Index) Refresh(ctx context.Context) error {
	started := ix.now()

	feed, err := ix.source.Pull(ctx)
	if err != nil {
		appLog.Error("refresh failed; keeping previous data", err)
		return fmt.Errorf("refresh: %w", err)
	}

	loc := feed.Location
	if loc == nil {
		loc = ix.Location()
	}

	singles, recurring := Split(feed.Events)

	// Resolve months before taking the lock.
	placement := make(map[MonthKey][]*model.Occurrence)
	for _, occ := range singles {
		for _, k := range WhichMonths(occ, loc) {
			placement[k] = append(placement[k], occ)
		}
	}

	ix.mu.Lock()
	ix.loc = loc
	for _, byMonth := range ix.months {
		for _, b := range byMonth {
			b.Reset(loc)
		}
	}
	for k, occs := range placement {
		b := ix.bucketLocked(k.Year, k.Month)
		for _, occ := range occs {
			b.AddEvent(occ)
		}
	}
	ix.recurring = recurring
	ix.lastModified = ix.now()
	lastModified := ix.lastModified
	ix.mu.Unlock()

	appLog.Info("data pulled",
		"events", len(singles),
		"recurring", len(recurring),
		"months", len(placement),
		"timezone", loc.String(),
		"last_modified", lastModified.UTC().Format(time.RFC1123),
		"duration", lastModified.Sub(started).String(),
	)
	return nil
}
