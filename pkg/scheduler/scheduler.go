// Package scheduler runs a named function on a fixed interval. Each task owns
// its own ticker and in-flight guard; a tick fires into a no-op while the
// previous run is still going, ticks are never queued.
package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/pawline/notify-api/pkg/logger"
)

type Task struct {
	name     string
	interval time.Duration
	fn       func(context.Context) error
	logger   *logger.Logger

	inFlight atomic.Bool
}

func New(name string, interval time.Duration, fn func(context.Context) error, logger *logger.Logger) (*Task, error) {
	if interval <= 0 {
		return nil, errors.New("interval must be > 0")
	}
	if fn == nil {
		return nil, errors.New("fn must not be nil")
	}
	return &Task{
		name:     name,
		interval: interval,
		fn:       fn,
		logger:   logger,
	}, nil
}

// Start blocks until ctx is cancelled, running the task every interval.
func (t *Task) Start(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.logger.Info("task started", "task", t.name, "interval", t.interval.String())

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("task stopping", "task", t.name)
			return
		case <-ticker.C:
			t.RunOnce(ctx)
		}
	}
}

// RunOnce runs the task immediately unless a previous run is still in flight,
// in which case it no-ops. Safe to call concurrently with Start; this is what
// the operator endpoints invoke.
func (t *Task) RunOnce(ctx context.Context) {
	if !t.inFlight.CompareAndSwap(false, true) {
		t.logger.Debug("task tick skipped, previous run in flight", "task", t.name)
		return
	}
	defer t.inFlight.Store(false)

	defer func() {
		if r := recover(); r != nil {
			t.logger.Error(nil, "task panic recovered", "task", t.name, "panic", r)
		}
	}()

	start := time.Now()
	if err := t.fn(ctx); err != nil {
		t.logger.Error(err, "task run failed", "task", t.name)
		return
	}
	t.logger.Debug("task run completed", "task", t.name, "duration_ms", time.Since(start).Milliseconds())
}
