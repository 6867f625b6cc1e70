package ics

import (
	"context"
	"time"

	"monthcal/internal/model"
)

// Subscription pulls one ICS source and parses it into a feed.
type Subscription struct {
	fetcher  *Fetcher
	source   Source
	fallback *time.Location
}

// NewSubscription binds a source to a fetcher. fallback is the timezone used
// when the feed does not declare one.
func NewSubscription(f *Fetcher, src Source, fallback *time.Location) *Subscription {
	if fallback == nil {
		fallback = time.UTC
	}
	return &Subscription{fetcher: f, source: src, fallback: fallback}
}

// Pull fetches and parses the feed.
func (s *Subscription) Pull(ctx context.Context) (model.Feed, error) {
	res, err := s.fetcher.Fetch(ctx, s.source)
	if err != nil {
		return model.Feed{}, err
	}
	return ParseICS(s.source, res.Body, s.fallback)
}
