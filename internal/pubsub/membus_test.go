package pubsub

import (
	"context"
	"testing"
	"time"

	"assetlink/internal/domain"
)

func result(binding string) domain.RelayResult {
	return domain.RelayResult{
		TaskID:    domain.NewTaskID(),
		BindingID: binding,
		AssetID:   "asset-1",
		Values:    []byte(`{"temperature":21.5}`),
		RelayedAt: time.Now(),
	}
}

func TestMemBusDelivers(t *testing.T) {
	b := NewMemBus()
	ch, unsub := b.Subscribe("bindings.b1", 4)
	defer unsub()

	want := result("b1")
	if err := b.Publish(context.Background(), "bindings.b1", want); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case got := <-ch:
		if got.TaskID != want.TaskID {
			t.Fatalf("task id = %s, want %s", got.TaskID, want.TaskID)
		}
	case <-time.After(time.Second):
		t.Fatal("no delivery")
	}
}

func TestMemBusChannelIsolation(t *testing.T) {
	b := NewMemBus()
	ch, unsub := b.Subscribe("bindings.b1", 4)
	defer unsub()

	if err := b.Publish(context.Background(), "bindings.other", result("other")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	select {
	case got := <-ch:
		t.Fatalf("unexpected delivery: %+v", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemBusDropsWhenSubscriberFull(t *testing.T) {
	b := NewMemBus()
	ch, unsub := b.Subscribe("bindings.b1", 1)
	defer unsub()

	// Second publish must not block even though nobody drains.
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = b.Publish(context.Background(), "bindings.b1", result("b1"))
		_ = b.Publish(context.Background(), "bindings.b1", result("b1"))
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on full subscriber")
	}
	if len(ch) != 1 {
		t.Fatalf("buffered = %d, want 1 (overflow dropped)", len(ch))
	}
}

func TestMemBusPublishAfterUnsubscribe(t *testing.T) {
	b := NewMemBus()
	_, unsub := b.Subscribe("bindings.b1", 1)
	unsub()
	unsub() // safe to call twice

	if err := b.Publish(context.Background(), "bindings.b1", result("b1")); err != nil {
		t.Fatalf("publish after unsubscribe: %v", err)
	}
}

func TestChannelNaming(t *testing.T) {
	if got := (Config{}).Channel("b1"); got != "assetlink.relay.b1" {
		t.Fatalf("default channel = %q", got)
	}
	if got := (Config{ChannelPrefix: "iot.live"}).Channel("b2"); got != "iot.live.b2" {
		t.Fatalf("prefixed channel = %q", got)
	}
}
