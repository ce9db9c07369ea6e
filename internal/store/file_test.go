package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"assetlink/internal/domain"
	logx "assetlink/pkg/logx"
)

func newFileStore(t *testing.T) (Store, Config) {
	t.Helper()
	cfg := Config{Driver: "file", Path: filepath.Join(t.TempDir(), "tasks.db")}
	st, err := Open(context.Background(), cfg, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st, cfg
}

func sampleTask(binding string) *domain.PersistentTask {
	return &domain.PersistentTask{
		ID:              domain.NewTaskID(),
		ProducerID:      "prod-1",
		BindingID:       binding,
		AssetID:         "asset-1",
		ContractID:      "contract-1",
		Interval:        5 * time.Second,
		Expiry:          time.Now().Add(time.Hour),
		AssetProperties: []byte(`["temperature"]`),
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	st, _ := newFileStore(t)
	ctx := context.Background()

	in := sampleTask("bind-1")
	if err := st.Insert(ctx, in); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if in.CreatedAt.IsZero() || in.UpdatedAt.IsZero() {
		t.Fatal("insert must stamp created_at/updated_at")
	}

	got, err := st.Get(ctx, in.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.BindingID != in.BindingID || got.Interval != in.Interval {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if !got.Expiry.Equal(in.Expiry) {
		t.Fatalf("expiry = %v, want %v (exact round-trip)", got.Expiry, in.Expiry)
	}
	if string(got.AssetProperties) != `["temperature"]` {
		t.Fatalf("asset properties = %s", got.AssetProperties)
	}
}

func TestFileStoreGetUnknown(t *testing.T) {
	st, _ := newFileStore(t)
	if _, err := st.Get(context.Background(), "nope"); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Fatalf("err = %v, want ErrTaskNotFound", err)
	}
}

func TestFileStoreDeleteIdempotent(t *testing.T) {
	st, _ := newFileStore(t)
	ctx := context.Background()

	in := sampleTask("bind-del")
	if err := st.Insert(ctx, in); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := st.Delete(ctx, in.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := st.Delete(ctx, in.ID); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if _, err := st.Get(ctx, in.ID); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Fatalf("get after delete = %v, want ErrTaskNotFound", err)
	}
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	cfg := Config{Driver: "file", Path: filepath.Join(t.TempDir(), "tasks.db")}

	st, err := Open(ctx, cfg, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	keep := sampleTask("bind-keep")
	gone := sampleTask("bind-gone")
	if err := st.Insert(ctx, keep); err != nil {
		t.Fatalf("insert keep: %v", err)
	}
	if err := st.Insert(ctx, gone); err != nil {
		t.Fatalf("insert gone: %v", err)
	}
	if err := st.Delete(ctx, gone.ID); err != nil {
		t.Fatalf("delete gone: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	st2, err := Open(ctx, cfg, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st2.Close()

	all, err := st2.ListAll(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 || all[0].ID != keep.ID {
		t.Fatalf("after reopen got %d tasks, want only %s", len(all), keep.ID)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "bogus"}, logx.Nop())
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
