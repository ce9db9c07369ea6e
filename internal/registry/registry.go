package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"assetlink/internal/domain"
	"assetlink/internal/metrics"
	"assetlink/internal/store"
	logx "assetlink/pkg/logx"
)

const defaultDegradedThreshold = 3

// Runner executes one relay tick for a task.
type Runner interface {
	Run(ctx context.Context, t domain.PersistentTask) error
}

type Config struct {
	// DegradedThreshold is the number of consecutive tick failures after
	// which a task is flagged degraded. Zero means the default (3).
	DegradedThreshold int
}

type Registry struct {
	mu        sync.Mutex
	tasks     map[string]*executor
	byBinding map[string]string // binding key -> task id
	degraded  map[string]int    // task id -> consecutive failures at flag time

	runCtx    context.Context
	runCancel context.CancelFunc
	wg        sync.WaitGroup

	cfg   Config
	store store.Store
	run   Runner
	log   logx.Logger
	met   *metrics.Metrics
}

func New(cfg Config, st store.Store, run Runner, log logx.Logger, met *metrics.Metrics) *Registry {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.DegradedThreshold <= 0 {
		cfg.DegradedThreshold = defaultDegradedThreshold
	}
	return &Registry{
		tasks:     map[string]*executor{},
		byBinding: map[string]string{},
		degraded:  map[string]int{},
		cfg:       cfg,
		store:     st,
		run:       run,
		log:       log,
		met:       met,
	}
}

// Start makes the registry accept registrations. It schedules nothing by
// itself; call LoadAll for startup recovery.
func (r *Registry) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.runCtx != nil {
		return
	}
	r.runCtx, r.runCancel = context.WithCancel(ctx)
	r.log.Info("registry started")
}

// Stop cancels every executor and waits for in-flight ticks, bounded by ctx.
func (r *Registry) Stop(ctx context.Context) {
	start := time.Now()
	r.mu.Lock()
	cancel := r.runCancel
	r.runCtx = nil
	r.runCancel = nil
	r.tasks = map[string]*executor{}
	r.byBinding = map[string]string{}
	r.degraded = map[string]int{}
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		r.log.Info("registry stopped", logx.Duration("took", time.Since(start)))
	case <-ctx.Done():
		r.log.Warn("registry stop timed out; ticks finishing in background")
	}
}

// LoadAll restores the schedule from the store. Malformed records are logged
// and skipped; only an unreachable store is fatal. Records whose expiry has
// already passed are registered without a ticking loop so the next sweep
// retires them and removes their record.
func (r *Registry) LoadAll(ctx context.Context) error {
	tasks, err := r.store.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	now := time.Now()
	restored, skipped := 0, 0
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.runCtx == nil {
		return errors.New("registry not started")
	}
	for i := range tasks {
		t := tasks[i]
		if t.ID == "" || t.Interval <= 0 {
			skipped++
			r.log.Warn("skipping malformed task record",
				logx.String("task", t.ID),
				logx.Duration("interval", t.Interval))
			continue
		}
		if _, dup := r.tasks[t.ID]; dup {
			continue
		}
		r.startLocked(t)
		restored++
		if t.Expired(now) {
			r.log.Info("restored task already expired; sweep will retire it",
				logx.String("task", t.ID), logx.Time("expiry", t.Expiry))
		}
	}
	r.log.Info("schedule restored",
		logx.Int("tasks", restored), logx.Int("skipped", skipped))
	return nil
}

// Register validates, persists, and schedules a new task. All-or-nothing: on
// any failure nothing is persisted and nothing is scheduled.
func (r *Registry) Register(ctx context.Context, t *domain.PersistentTask) (string, error) {
	now := time.Now()
	if err := t.Validate(now); err != nil {
		return "", err
	}
	if t.ID == "" {
		t.ID = domain.NewTaskID()
	}

	key := t.BindingKey()
	r.mu.Lock()
	if r.runCtx == nil {
		r.mu.Unlock()
		return "", errors.New("registry not started")
	}
	if _, dup := r.byBinding[key]; dup {
		r.mu.Unlock()
		return "", domain.ErrDuplicateBinding
	}
	// Reserve the binding before the store round-trip so racing creates for
	// the same triple cannot both pass the check.
	r.byBinding[key] = t.ID
	r.mu.Unlock()

	if err := r.store.Insert(ctx, t); err != nil {
		r.mu.Lock()
		if r.byBinding[key] == t.ID {
			delete(r.byBinding, key)
		}
		r.mu.Unlock()
		return "", fmt.Errorf("persist task: %w", err)
	}

	r.mu.Lock()
	// Stop may have run during the store round-trip. The persisted record is
	// picked up by the next LoadAll; nothing may be scheduled here.
	if r.runCtx == nil {
		if r.byBinding[key] == t.ID {
			delete(r.byBinding, key)
		}
		r.mu.Unlock()
		return "", errors.New("registry stopped")
	}
	r.startLocked(*t)
	r.mu.Unlock()

	r.log.Info("task registered",
		logx.String("task", t.ID),
		logx.String("binding", t.BindingID),
		logx.String("asset", t.AssetID),
		logx.Duration("interval", t.Interval),
		logx.Time("expiry", t.Expiry))
	return t.ID, nil
}

// Unregister stops and removes a task. Idempotent: unknown ids succeed with
// no side effects.
//
// Delete-first: if the store delete fails the task stays registered (and
// ticking), so the next sweep retries instead of orphaning durable state.
func (r *Registry) Unregister(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete task %s record: %w", id, err)
	}

	r.mu.Lock()
	ex := r.tasks[id]
	if ex != nil {
		delete(r.tasks, id)
		if r.byBinding[ex.task.BindingKey()] == id {
			delete(r.byBinding, ex.task.BindingKey())
		}
		delete(r.degraded, id)
	}
	n := len(r.tasks)
	r.mu.Unlock()

	if ex != nil {
		// Stops future ticks; an in-flight tick finishes on its own.
		ex.cancel()
		r.log.Info("task unregistered", logx.String("task", id))
	}
	r.met.SetActiveTasks(n)
	return nil
}

// ListActive returns a point-in-time snapshot of scheduled task ids.
func (r *Registry) ListActive() []string {
	r.mu.Lock()
	ids := make([]string, 0, len(r.tasks))
	for id := range r.tasks {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// Tasks returns summaries of every scheduled task, for listings/diagnostics.
func (r *Registry) Tasks() []domain.TaskSummary {
	r.mu.Lock()
	out := make([]domain.TaskSummary, 0, len(r.tasks))
	for _, ex := range r.tasks {
		out = append(out, ex.task.Summary())
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Degraded returns ids of tasks currently failing consecutive ticks.
func (r *Registry) Degraded() []string {
	r.mu.Lock()
	ids := make([]string, 0, len(r.degraded))
	for id := range r.degraded {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// expiredActive returns scheduled task ids whose expiry has passed.
func (r *Registry) expiredActive(now time.Time) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, ex := range r.tasks {
		if ex.task.Expired(now) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) markDegraded(id string, fails int) {
	r.mu.Lock()
	_, already := r.degraded[id]
	r.degraded[id] = fails
	r.mu.Unlock()
	if !already {
		r.met.TaskDegraded()
	}
}

func (r *Registry) clearDegraded(id string) {
	r.mu.Lock()
	delete(r.degraded, id)
	r.mu.Unlock()
}

// startLocked spawns the executor goroutine. Caller holds r.mu.
func (r *Registry) startLocked(t domain.PersistentTask) {
	ctx, cancel := context.WithDeadline(r.runCtx, t.Expiry)
	ex := &executor{task: t, cancel: cancel, done: make(chan struct{})}
	r.tasks[t.ID] = ex
	r.byBinding[t.BindingKey()] = t.ID
	r.wg.Add(1)
	go r.runExecutor(ctx, t, ex.done)
	r.met.SetActiveTasks(len(r.tasks))
}
