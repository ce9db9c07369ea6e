package registry

import (
	"context"
	"time"

	"assetlink/internal/domain"
	logx "assetlink/pkg/logx"
)

// executor is the handle for one task's interval loop.
type executor struct {
	task   domain.PersistentTask
	cancel context.CancelFunc
	done   chan struct{}
}

// runExecutor is one task's interval loop.
//
// Cadence rules:
//   - The first tick fires one full interval after scheduling, never
//     immediately.
//   - Ticks never overlap for the same task: the loop runs each tick to
//     completion before draining the next. A tick that overruns defers (and
//     collapses) missed fires instead of stacking them.
//   - A failed tick is a skipped cycle; the cadence is unchanged and only the
//     consecutive-failure count moves.
//   - The loop exits when the deadline context fires (expiry) or the task is
//     cancelled. The expiry re-check before each tick closes the race where a
//     fire and the deadline land on the same instant.
func (r *Registry) runExecutor(ctx context.Context, t domain.PersistentTask, done chan struct{}) {
	defer close(done)
	defer r.wg.Done()

	tick := time.NewTicker(t.Interval)
	defer tick.Stop()

	fails := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
		if t.Expired(time.Now()) {
			return
		}

		r.met.Tick()
		// The in-flight tick survives cancellation; only the fetch/publish
		// timeouts bound it.
		err := r.run.Run(context.WithoutCancel(ctx), t)
		if err == nil {
			if fails > 0 {
				r.log.Info("task recovered", logx.String("task", t.ID), logx.Int("after_failures", fails))
			}
			fails = 0
			r.clearDegraded(t.ID)
			continue
		}

		fails++
		r.met.TickFailed()
		r.log.Warn("relay tick failed; cycle skipped",
			logx.String("task", t.ID),
			logx.String("asset", t.AssetID),
			logx.Int("consecutive", fails),
			logx.Err(err))
		if fails == r.cfg.DegradedThreshold {
			r.markDegraded(t.ID, fails)
			r.log.Warn("task degraded",
				logx.String("task", t.ID),
				logx.String("binding", t.BindingID),
				logx.Int("consecutive_failures", fails))
		}
	}
}
