package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"monthcal/internal/model"
)

func TestPoller_TickRespectsMinInterval(t *testing.T) {
	src := new(mockSource)
	src.On("Pull", mock.Anything).Return(sampleFeed(), nil)

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	ix := NewIndex(src, time.UTC)
	ix.now = clock
	p := NewPoller(ix, "@every 1m", 10*time.Minute)
	p.now = clock

	require.NoError(t, p.Tick(context.Background()))
	src.AssertNumberOfCalls(t, "Pull", 1)

	now = now.Add(5 * time.Minute)
	assert.ErrorIs(t, p.Tick(context.Background()), ErrNotDue)
	src.AssertNumberOfCalls(t, "Pull", 1)

	now = now.Add(5 * time.Minute)
	require.NoError(t, p.Tick(context.Background()))
	src.AssertNumberOfCalls(t, "Pull", 2)
}

func TestPoller_TickRetriesAfterFailure(t *testing.T) {
	boom := errors.New("boom")
	src := new(mockSource)
	src.On("Pull", mock.Anything).Return(model.Feed{}, boom).Once()
	src.On("Pull", mock.Anything).Return(sampleFeed(), nil).Once()

	p := NewPoller(NewIndex(src, time.UTC), "@every 1m", time.Hour)

	assert.ErrorIs(t, p.Tick(context.Background()), boom)
	// No successful refresh yet, so the next tick pulls again.
	assert.NoError(t, p.Tick(context.Background()))
	src.AssertExpectations(t)
}

func TestPoller_TickSkipsWhileRunning(t *testing.T) {
	src := new(mockSource)
	p := NewPoller(NewIndex(src, time.UTC), "@every 1m", time.Minute)

	p.running.Store(true)
	assert.ErrorIs(t, p.Tick(context.Background()), ErrRefreshInFlight)
	src.AssertNotCalled(t, "Pull", mock.Anything)
}

func TestPoller_TickSkipsConcurrentRefresh(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})

	src := new(mockSource)
	src.On("Pull", mock.Anything).Run(func(mock.Arguments) {
		close(started)
		<-release
	}).Return(sampleFeed(), nil).Once()

	p := NewPoller(NewIndex(src, time.UTC), "@every 1m", time.Minute)

	done := make(chan error, 1)
	go func() { done <- p.Tick(context.Background()) }()

	<-started
	assert.ErrorIs(t, p.Tick(context.Background()), ErrRefreshInFlight)
	close(release)
	assert.NoError(t, <-done)
	src.AssertNumberOfCalls(t, "Pull", 1)
}

func TestPoller_StartPullsImmediately(t *testing.T) {
	src := new(mockSource)
	src.On("Pull", mock.Anything).Return(sampleFeed(), nil)

	ix := NewIndex(src, time.UTC)
	p := NewPoller(ix, "@every 1h", time.Hour)
	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	assert.Eventually(t, func() bool {
		return !ix.LastModified().IsZero()
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPoller_StartRejectsBadSchedule(t *testing.T) {
	p := NewPoller(NewIndex(new(mockSource), time.UTC), "every now and then", time.Minute)
	assert.Error(t, p.Start(context.Background()))
}

func TestPoller_StopWithoutStart(t *testing.T) {
	p := NewPoller(NewIndex(new(mockSource), time.UTC), "@every 1m", time.Minute)
	select {
	case <-p.Stop().Done():
	default:
		t.Fatal("stop context should be done")
	}
}
