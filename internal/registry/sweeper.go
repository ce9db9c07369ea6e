package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"assetlink/internal/metrics"
	logx "assetlink/pkg/logx"
)

const defaultSweepInterval = 5 * time.Second

// Sweeper retires tasks whose expiry has passed, independent of executor
// timing. It is the sole authority that deletes a record purely because time
// elapsed; explicit deletes go through Registry.Unregister directly.
type Sweeper struct {
	mu       sync.Mutex
	interval time.Duration
	c        *cron.Cron

	reg *Registry
	log logx.Logger
	met *metrics.Metrics
}

func NewSweeper(reg *Registry, interval time.Duration, log logx.Logger, met *metrics.Metrics) *Sweeper {
	if log.IsZero() {
		log = logx.Nop()
	}
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &Sweeper{interval: interval, reg: reg, log: log, met: met}
}

func (s *Sweeper) Start(ctx context.Context) {
	_ = ctx // sweeps are individually bounded below

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	s.c = cron.New(cron.WithParser(cron.NewParser(
		cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)))
	s.addEntryLocked(s.interval)
	s.c.Start()
	s.log.Info("expiry sweep started", logx.Duration("interval", s.interval))
}

func (s *Sweeper) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		// best-effort
	}
	s.log.Info("expiry sweep stopped")
}

// Apply changes the sweep cadence at runtime.
func (s *Sweeper) Apply(interval time.Duration) {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if interval == s.interval {
		return
	}
	s.interval = interval
	if s.c == nil {
		return
	}
	for _, e := range s.c.Entries() {
		s.c.Remove(e.ID)
	}
	s.addEntryLocked(interval)
	s.log.Info("expiry sweep rescheduled", logx.Duration("interval", interval))
}

func (s *Sweeper) addEntryLocked(interval time.Duration) {
	_, _ = s.c.AddFunc(fmt.Sprintf("@every %s", interval), func() { s.Sweep() })
}

// Sweep runs one pass. A failed unregister (store delete error) leaves the
// task registered and is retried on the next pass.
func (s *Sweeper) Sweep() {
	now := time.Now()
	expired := s.reg.expiredActive(now)
	if len(expired) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, id := range expired {
		if err := s.reg.Unregister(ctx, id); err != nil {
			s.log.Error("expiry unregister failed; will retry next sweep",
				logx.String("task", id), logx.Err(err))
			continue
		}
		s.met.TaskExpired()
		s.log.Info("task expired", logx.String("task", id))
	}
}
