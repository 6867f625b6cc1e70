package calendar

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	appLog "monthcal/internal/log"
)

var (
	// ErrRefreshInFlight is returned by Tick while another refresh runs.
	ErrRefreshInFlight = errors.New("refresh already in progress")
	// ErrNotDue is returned by Tick when the last successful refresh is
	// more recent than the minimum interval.
	ErrNotDue = errors.New("refresh not due yet")
)

// Poller refreshes an Index on a cron schedule. Each tick only pulls when
// MinInterval has passed since the last successful refresh, so a failing
// source is retried on every tick while a healthy one is pulled once per
// interval.
type Poller struct {
	index       *Index
	spec        string
	minInterval time.Duration
	now         func() time.Time

	running atomic.Bool
	cron    *cron.Cron
}

// NewPoller creates a poller. spec is a cron expression or descriptor such
// as "@every 1m".
func NewPoller(ix *Index, spec string, minInterval time.Duration) *Poller {
	return &Poller{
		index:       ix,
		spec:        spec,
		minInterval: minInterval,
		now:         time.Now,
	}
}

// Tick runs one refresh if one is due and none is running.
func (p *Poller) Tick(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrRefreshInFlight
	}
	defer p.running.Store(false)

	last := p.index.LastModified()
	if !last.IsZero() && p.now().Sub(last) < p.minInterval {
		return ErrNotDue
	}

	return p.index.Refresh(ctx)
}

// Start performs an initial refresh in the background and schedules the
// periodic tick. ctx bounds every refresh started by the poller.
func (p *Poller) Start(ctx context.Context) error {
	logger := appLog.Cron()
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	if _, err := c.AddFunc(p.spec, func() { p.tick(ctx) }); err != nil {
		return err
	}
	p.cron = c

	appLog.Info("refresh scheduled", "schedule", p.spec, "min_interval", p.minInterval.String())
	c.Start()
	go p.tick(ctx)
	return nil
}

// Stop halts the schedule. The returned context is done once a running
// refresh has finished.
func (p *Poller) Stop() context.Context {
	if p.cron == nil {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	return p.cron.Stop()
}

func (p *Poller) tick(ctx context.Context) {
	err := p.Tick(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotDue), errors.Is(err, ErrRefreshInFlight):
		appLog.Debug("refresh skipped", "reason", err.Error())
	default:
		// Index.Refresh already logged the failure; the next tick retries.
	}
}
