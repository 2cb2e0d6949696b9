// Package reaper owns the periodic background sweeps: expiring stale
// PENDING bookings and refreshing demand factors.
package reaper

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sweep is one idempotent, re-entrant pass of a background job. It
// reports how many items it touched.
type Sweep func(ctx context.Context) (int, error)

// Task runs a Sweep on a fixed interval until stopped. Stop waits for
// an in-flight sweep to finish, so shutdown never abandons a booking
// half-released.
type Task struct {
	name     string
	interval time.Duration
	sweep    Sweep
	log      *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func NewTask(name string, interval time.Duration, sweep Sweep, log *zap.Logger) *Task {
	return &Task{
		name:     name,
		interval: interval,
		sweep:    sweep,
		log:      log,
		done:     make(chan struct{}),
	}
}

// Start launches the periodic loop. The first sweep runs after one
// interval, not immediately.
func (t *Task) Start(ctx context.Context) {
	ctx, t.cancel = context.WithCancel(ctx)

	go func() {
		defer close(t.done)
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.runOnce(ctx)
			}
		}
	}()
}

func (t *Task) runOnce(ctx context.Context) {
	start := time.Now()
	touched, err := t.sweep(ctx)
	if err != nil {
		t.log.Error("sweep failed", zap.String("task", t.name), zap.Error(err))
		return
	}
	if touched > 0 {
		t.log.Info("sweep finished",
			zap.String("task", t.name),
			zap.Int("touched", touched),
			zap.Duration("took", time.Since(start)))
	}
}

// Stop cancels the loop and blocks until the current sweep, if any,
// returns.
func (t *Task) Stop() {
	t.once.Do(func() {
		if t.cancel == nil {
			return
		}
		t.cancel()
		<-t.done
	})
}
