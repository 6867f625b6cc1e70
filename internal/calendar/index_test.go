package calendar

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"monthcal/internal/model"
)

func sampleFeed() model.Feed {
	weeklyEv := allDay("weekly", day(2024, 3, 4), day(2024, 3, 4))
	weeklyEv.Recurrence = weekly(weeklyEv.Start, 8)

	return model.Feed{
		Location: time.UTC,
		Events: []model.Event{
			allDay("dentist", day(2024, 3, 12), day(2024, 3, 12)),
			allDay("trip", day(2024, 2, 28), day(2024, 3, 2)),
			{Title: "call", Start: at(2024, 3, 12, 15, 0), End: at(2024, 3, 12, 16, 0)},
			weeklyEv,
		},
	}
}

func TestIndex_GetMonth(t *testing.T) {
	src := new(mockSource)
	src.On("Pull", mock.Anything).Return(sampleFeed(), nil).Once()

	ix := NewIndex(src, time.UTC)
	require.NoError(t, ix.Refresh(context.Background()))
	src.AssertExpectations(t)

	// Stored single events come first, then recurring occurrences.
	assert.Equal(t,
		[]string{"dentist", "trip", "call", "weekly", "weekly", "weekly", "weekly"},
		titles(ix.Month(2024, time.March)),
	)
	// The February page ends on 2024-03-03, before the first weekly trigger.
	assert.Equal(t, []string{"trip"}, titles(ix.Month(2024, time.February)))
	// 2024-04-01 is a Monday: the April page starts on it.
	assert.Equal(t,
		[]string{"weekly", "weekly", "weekly", "weekly"},
		titles(ix.Month(2024, time.April)),
	)

	recs := ix.GetMonth(2024, time.March)
	require.Len(t, recs, 7)
	assert.Equal(t, model.Record{Title: "dentist", Start: "2024-03-12", End: "2024-03-12"}, recs[0])
	assert.Equal(t, model.Record{Title: "call", Start: "2024-03-12T15:00:00Z", End: "2024-03-12T16:00:00Z"}, recs[2])
}

func TestIndex_GetMonthUnknownIsEmpty(t *testing.T) {
	ix := NewIndex(new(mockSource), time.UTC)

	recs := ix.GetMonth(1999, time.July)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
}

func TestIndex_GetDayIsSubsetOfMonth(t *testing.T) {
	src := new(mockSource)
	src.On("Pull", mock.Anything).Return(sampleFeed(), nil)

	ix := NewIndex(src, time.UTC)
	require.NoError(t, ix.Refresh(context.Background()))

	assert.Equal(t, []string{"dentist", "call"}, titles(ix.Day(2024, time.March, 12)))
	assert.Equal(t, []string{"trip"}, titles(ix.Day(2024, time.February, 29)))
	assert.Equal(t, []string{"trip"}, titles(ix.Day(2024, time.March, 1)))
	assert.Equal(t, []string{"weekly"}, titles(ix.Day(2024, time.March, 25)))
	assert.Empty(t, ix.GetDay(2024, time.March, 13))

	month := ix.Month(2024, time.March)
	for d := 1; d <= 31; d++ {
		for _, o := range ix.Day(2024, time.March, d) {
			assert.Contains(t, titles(month), o.Title)
		}
	}
}

func TestIndex_BucketReferenceStable(t *testing.T) {
	src := new(mockSource)
	src.On("Pull", mock.Anything).Return(sampleFeed(), nil)

	ix := NewIndex(src, time.UTC)
	before := ix.Bucket(2024, time.March)
	assert.Same(t, before, ix.Bucket(2024, time.March))

	require.NoError(t, ix.Refresh(context.Background()))
	assert.Same(t, before, ix.Bucket(2024, time.March))
	assert.Len(t, before.Events(), 3)
}

func TestIndex_RefreshIsIdempotent(t *testing.T) {
	src := new(mockSource)
	src.On("Pull", mock.Anything).Return(sampleFeed(), nil)

	ix := NewIndex(src, time.UTC)
	require.NoError(t, ix.Refresh(context.Background()))
	first := ix.GetMonth(2024, time.March)

	require.NoError(t, ix.Refresh(context.Background()))
	assert.Equal(t, first, ix.GetMonth(2024, time.March))
	src.AssertNumberOfCalls(t, "Pull", 2)
}

func TestIndex_RefreshResetsBuckets(t *testing.T) {
	src := new(mockSource)
	src.On("Pull", mock.Anything).Return(sampleFeed(), nil).Once()
	src.On("Pull", mock.Anything).Return(model.Feed{
		Location: time.UTC,
		Events:   []model.Event{allDay("new", day(2024, 3, 20), day(2024, 3, 20))},
	}, nil).Once()

	ix := NewIndex(src, time.UTC)
	require.NoError(t, ix.Refresh(context.Background()))
	require.NoError(t, ix.Refresh(context.Background()))

	assert.Equal(t, []string{"new"}, titles(ix.Month(2024, time.March)))
	assert.Empty(t, ix.Month(2024, time.February))
}

func TestIndex_RefreshFailureKeepsData(t *testing.T) {
	boom := errors.New("boom")
	src := new(mockSource)
	src.On("Pull", mock.Anything).Return(sampleFeed(), nil).Once()
	src.On("Pull", mock.Anything).Return(model.Feed{}, boom).Once()

	ix := NewIndex(src, time.UTC)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	ix.now = func() time.Time { return now }

	require.NoError(t, ix.Refresh(context.Background()))
	assert.Equal(t, now, ix.LastModified())
	before := ix.GetMonth(2024, time.March)

	now = now.Add(time.Hour)
	err := ix.Refresh(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, before, ix.GetMonth(2024, time.March))
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), ix.LastModified())
}

func TestIndex_LastModifiedZeroBeforeRefresh(t *testing.T) {
	ix := NewIndex(new(mockSource), nil)
	assert.True(t, ix.LastModified().IsZero())
	assert.Equal(t, time.UTC, ix.Location())
}

func TestIndex_UsesFeedLocation(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	// 2024-03-31 20:00 UTC is 2024-04-01 05:00 in Tokyo.
	src := new(mockSource)
	src.On("Pull", mock.Anything).Return(model.Feed{
		Location: tokyo,
		Events:   []model.Event{{Title: "late", Start: at(2024, 3, 31, 20, 0), End: at(2024, 3, 31, 21, 0)}},
	}, nil)

	ix := NewIndex(src, time.UTC)
	require.NoError(t, ix.Refresh(context.Background()))

	assert.Equal(t, tokyo, ix.Location())
	assert.Equal(t, tokyo, ix.Bucket(2024, time.March).Location())
	assert.Equal(t, []string{"late"}, titles(ix.Month(2024, time.April)))
	assert.Equal(t, []string{"late"}, titles(ix.Day(2024, time.April, 1)))
	assert.Empty(t, ix.Month(2024, time.March))
}

func TestIndex_ConcurrentQueriesDuringRefresh(t *testing.T) {
	src := new(mockSource)
	src.On("Pull", mock.Anything).Return(sampleFeed(), nil)

	ix := NewIndex(src, time.UTC)
	require.NoError(t, ix.Refresh(context.Background()))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, ix.Refresh(context.Background()))
		}()
		go func() {
			defer wg.Done()
			assert.Len(t, ix.Month(2024, time.March), 7)
		}()
	}
	wg.Wait()
}
