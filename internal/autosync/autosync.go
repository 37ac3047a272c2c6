// Package autosync runs the periodic backend probe and queue drain.
package autosync

import (
	"context"
	"log/slog"
	"time"

	"github.com/marcus/pinmap/internal/models"
	"github.com/marcus/pinmap/internal/store"
)

// DefaultInterval is how often the backend is probed.
const DefaultInterval = 30 * time.Second

// Syncer is the part of the location store the runner drives.
type Syncer interface {
	CheckBackendConnection(ctx context.Context) bool
	Pending() ([]models.PendingOperation, error)
	SyncPending(ctx context.Context) (*store.SyncReport, error)
}

// Tick is the outcome of one probe/drain cycle.
type Tick struct {
	At        time.Time
	Available bool
	Report    *store.SyncReport
	Err       error
}

// Runner probes the backend on a fixed interval and drains the pending
// queue whenever the backend is reachable and the queue is non-empty.
type Runner struct {
	Syncer   Syncer
	Interval time.Duration
	Logger   *slog.Logger
	// OnTick, if set, is called after every cycle.
	OnTick func(Tick)
}

// New returns a runner with the default interval.
func New(s Syncer) *Runner {
	return &Runner{Syncer: s, Interval: DefaultInterval}
}

// Run ticks once immediately, then every Interval until ctx is done.
// Cycles run on the calling goroutine, so Run returns only after the cycle
// in progress has finished and the store is no longer in use. Ticks that
// come due while a cycle is running are dropped.
func (r *Runner) Run(ctx context.Context) {
	interval := r.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger().Debug("autosync: started", "interval", interval)
	r.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			r.logger().Debug("autosync: stopped")
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

// Once runs a single probe/drain cycle synchronously.
func (r *Runner) Once(ctx context.Context) Tick {
	return r.cycle(ctx)
}

func (r *Runner) tick(ctx context.Context) {
	defer func() {
		if p := recover(); p != nil {
			r.logger().Error("autosync: panic", "panic", p)
		}
	}()
	t := r.cycle(ctx)
	if r.OnTick != nil {
		r.OnTick(t)
	}
}

func (r *Runner) cycle(ctx context.Context) Tick {
	t := Tick{At: time.Now()}
	if ctx.Err() != nil {
		t.Err = ctx.Err()
		return t
	}

	t.Available = r.Syncer.CheckBackendConnection(ctx)
	if !t.Available {
		return t
	}

	pending, err := r.Syncer.Pending()
	if err != nil {
		r.logger().Warn("autosync: read pending", "err", err)
		t.Err = err
		return t
	}
	if len(pending) == 0 {
		return t
	}

	report, err := r.Syncer.SyncPending(ctx)
	if err != nil {
		r.logger().Warn("autosync: sync", "err", err)
		t.Err = err
		return t
	}
	t.Report = report
	r.logger().Debug("autosync: drained", "replayed", report.Replayed, "remaining", report.Remaining)
	return t
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
