package registry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"assetlink/internal/domain"
	logx "assetlink/pkg/logx"
)

// fakeStore is an in-memory store with switchable failure modes.
type fakeStore struct {
	mu         sync.Mutex
	tasks      map[string]domain.PersistentTask
	failInsert bool
	failDelete bool
	inserts    int
	deletes    int
	insertHook func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{tasks: map[string]domain.PersistentTask{}}
}

func (s *fakeStore) Insert(ctx context.Context, t *domain.PersistentTask) error {
	s.mu.Lock()
	s.inserts++
	if s.failInsert {
		s.mu.Unlock()
		return errors.New("insert refused")
	}
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	s.tasks[t.ID] = *t
	hook := s.insertHook
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

func (s *fakeStore) Get(ctx context.Context, id string) (*domain.PersistentTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	return &t, nil
}

func (s *fakeStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes++
	if s.failDelete {
		return errors.New("delete refused")
	}
	delete(s.tasks, id)
	return nil
}

func (s *fakeStore) ListAll(ctx context.Context) ([]domain.PersistentTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.PersistentTask, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	return out, nil
}

func (s *fakeStore) Close() error { return nil }

func (s *fakeStore) setFailDelete(v bool) {
	s.mu.Lock()
	s.failDelete = v
	s.mu.Unlock()
}

func (s *fakeStore) has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[id]
	return ok
}

// fakeRunner counts ticks and fails while failing is set.
type fakeRunner struct {
	runs    atomic.Int64
	failing atomic.Bool
}

func (r *fakeRunner) Run(ctx context.Context, t domain.PersistentTask) error {
	r.runs.Add(1)
	if r.failing.Load() {
		return &domain.FetchError{AssetID: t.AssetID, Err: errors.New("unreachable")}
	}
	return nil
}

func newTestRegistry(t *testing.T, st *fakeStore, run Runner) *Registry {
	t.Helper()
	if run == nil {
		run = &fakeRunner{}
	}
	r := New(Config{}, st, run, logx.Nop(), nil)
	r.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		r.Stop(ctx)
	})
	return r
}

func makeTask(binding string, interval time.Duration, expiry time.Time) *domain.PersistentTask {
	return &domain.PersistentTask{
		ProducerID:      "prod-1",
		BindingID:       binding,
		AssetID:         "asset-1",
		ContractID:      "contract-1",
		Interval:        interval,
		Expiry:          expiry,
		AssetProperties: []byte(`["temperature"]`),
	}
}

func TestRegisterPersistsAndSchedules(t *testing.T) {
	st := newFakeStore()
	r := newTestRegistry(t, st, nil)

	task := makeTask("bind-1", time.Minute, time.Now().Add(time.Hour))
	id, err := r.Register(context.Background(), task)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if id == "" {
		t.Fatal("empty task id")
	}
	if !st.has(id) {
		t.Fatal("task not persisted")
	}
	active := r.ListActive()
	if len(active) != 1 || active[0] != id {
		t.Fatalf("active = %v, want [%s]", active, id)
	}
}

func TestRegisterValidationFailureLeavesNothing(t *testing.T) {
	st := newFakeStore()
	r := newTestRegistry(t, st, nil)

	task := makeTask("bind-1", 0, time.Now().Add(time.Hour)) // bad interval
	if _, err := r.Register(context.Background(), task); err == nil {
		t.Fatal("expected validation error")
	}
	if st.inserts != 0 {
		t.Fatal("store must not be touched on validation failure")
	}
	if len(r.ListActive()) != 0 {
		t.Fatal("nothing may be scheduled on validation failure")
	}
}

func TestRegisterDuplicateBinding(t *testing.T) {
	st := newFakeStore()
	r := newTestRegistry(t, st, nil)
	ctx := context.Background()
	expiry := time.Now().Add(time.Hour)

	if _, err := r.Register(ctx, makeTask("bind-1", time.Minute, expiry)); err != nil {
		t.Fatalf("first register: %v", err)
	}
	_, err := r.Register(ctx, makeTask("bind-1", time.Minute, expiry))
	if !errors.Is(err, domain.ErrDuplicateBinding) {
		t.Fatalf("err = %v, want ErrDuplicateBinding", err)
	}

	// Different asset on the same binding id is a different triple.
	other := makeTask("bind-1", time.Minute, expiry)
	other.AssetID = "asset-2"
	if _, err := r.Register(ctx, other); err != nil {
		t.Fatalf("different triple: %v", err)
	}
}

func TestRegisterInsertFailureReleasesReservation(t *testing.T) {
	st := newFakeStore()
	st.failInsert = true
	r := newTestRegistry(t, st, nil)
	ctx := context.Background()
	expiry := time.Now().Add(time.Hour)

	if _, err := r.Register(ctx, makeTask("bind-1", time.Minute, expiry)); err == nil {
		t.Fatal("expected insert failure")
	}
	if len(r.ListActive()) != 0 {
		t.Fatal("failed register must not schedule")
	}

	st.failInsert = false
	if _, err := r.Register(ctx, makeTask("bind-1", time.Minute, expiry)); err != nil {
		t.Fatalf("retry after insert failure: %v", err)
	}
}

func TestRegisterRacingStopDoesNotSchedule(t *testing.T) {
	st := newFakeStore()
	r := New(Config{}, st, &fakeRunner{}, logx.Nop(), nil)
	r.Start(context.Background())

	// Stop lands between the store insert and the schedule step.
	st.insertHook = func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		r.Stop(ctx)
	}

	_, err := r.Register(context.Background(), makeTask("bind-1", time.Minute, time.Now().Add(time.Hour)))
	if err == nil {
		t.Fatal("register racing a stop must fail, not schedule")
	}
	if len(r.ListActive()) != 0 {
		t.Fatal("nothing may be scheduled on a stopped registry")
	}
	// The record survives for the next startup recovery.
	if st.inserts != 1 || len(st.tasks) != 1 {
		t.Fatalf("inserts = %d, records = %d, want 1 and 1", st.inserts, len(st.tasks))
	}
}

func TestUnregisterIdempotent(t *testing.T) {
	st := newFakeStore()
	r := newTestRegistry(t, st, nil)
	ctx := context.Background()

	id, err := r.Register(ctx, makeTask("bind-1", time.Minute, time.Now().Add(time.Hour)))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Unregister(ctx, id); err != nil {
		t.Fatalf("unregister: %v", err)
	}
	if st.has(id) {
		t.Fatal("record must be deleted")
	}
	if len(r.ListActive()) != 0 {
		t.Fatal("task must be descheduled")
	}
	if err := r.Unregister(ctx, id); err != nil {
		t.Fatalf("second unregister: %v", err)
	}
	if err := r.Unregister(ctx, "never-existed"); err != nil {
		t.Fatalf("unknown id: %v", err)
	}
}

func TestUnregisterDeleteFailureKeepsTask(t *testing.T) {
	st := newFakeStore()
	r := newTestRegistry(t, st, nil)
	ctx := context.Background()

	id, err := r.Register(ctx, makeTask("bind-1", time.Minute, time.Now().Add(time.Hour)))
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	st.setFailDelete(true)
	if err := r.Unregister(ctx, id); err == nil {
		t.Fatal("expected delete failure")
	}
	if len(r.ListActive()) != 1 {
		t.Fatal("task must stay registered while its record survives")
	}

	st.setFailDelete(false)
	if err := r.Unregister(ctx, id); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(r.ListActive()) != 0 {
		t.Fatal("retry must deschedule")
	}
}

func TestUnregisterFreesBinding(t *testing.T) {
	st := newFakeStore()
	r := newTestRegistry(t, st, nil)
	ctx := context.Background()
	expiry := time.Now().Add(time.Hour)

	id, err := r.Register(ctx, makeTask("bind-1", time.Minute, expiry))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Unregister(ctx, id); err != nil {
		t.Fatalf("unregister: %v", err)
	}
	if _, err := r.Register(ctx, makeTask("bind-1", time.Minute, expiry)); err != nil {
		t.Fatalf("re-register after unregister: %v", err)
	}
}

func TestLoadAllRestoresAndSkipsMalformed(t *testing.T) {
	st := newFakeStore()
	good := makeTask("bind-good", time.Minute, time.Now().Add(time.Hour))
	good.ID = domain.NewTaskID()
	bad := makeTask("bind-bad", 0, time.Now().Add(time.Hour)) // malformed interval
	bad.ID = domain.NewTaskID()
	st.tasks[good.ID] = *good
	st.tasks[bad.ID] = *bad

	r := newTestRegistry(t, st, nil)
	if err := r.LoadAll(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	active := r.ListActive()
	if len(active) != 1 || active[0] != good.ID {
		t.Fatalf("active = %v, want [%s]", active, good.ID)
	}
}

func TestTasksSnapshot(t *testing.T) {
	st := newFakeStore()
	r := newTestRegistry(t, st, nil)
	ctx := context.Background()

	if _, err := r.Register(ctx, makeTask("bind-1", time.Minute, time.Now().Add(time.Hour))); err != nil {
		t.Fatalf("register: %v", err)
	}
	got := r.Tasks()
	if len(got) != 1 {
		t.Fatalf("tasks = %d, want 1", len(got))
	}
	if got[0].BindingID != "bind-1" || got[0].Interval != time.Minute {
		t.Fatalf("summary mismatch: %+v", got[0])
	}
}
