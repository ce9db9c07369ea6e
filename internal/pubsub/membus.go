package pubsub

import (
	"context"
	"sync"
	"sync/atomic"

	"assetlink/internal/domain"
)

// MemBus is the in-process fan-out publisher.
//
// Contract:
//   - Publish MUST be non-blocking.
//   - Subscribers MUST use buffered channels.
//   - Slow subscribers may drop results (bounded backpressure).
//
// It intentionally does not own any background goroutines.
type MemBus struct {
	mu   sync.RWMutex
	subs map[string]map[uint64]chan domain.RelayResult
	seq  atomic.Uint64
}

func NewMemBus() *MemBus {
	return &MemBus{subs: map[string]map[uint64]chan domain.RelayResult{}}
}

func (b *MemBus) Publish(ctx context.Context, channel string, res domain.RelayResult) error {
	_ = ctx // delivery below never blocks

	// Snapshot subscribers so Publish doesn't hold locks while attempting sends.
	b.mu.RLock()
	chs := make([]chan domain.RelayResult, 0, len(b.subs[channel]))
	for _, ch := range b.subs[channel] {
		chs = append(chs, ch)
	}
	b.mu.RUnlock()

	for _, ch := range chs {
		// Non-blocking delivery. If subscriber is slow, we drop.
		// If a subscriber unsubscribes concurrently and the channel closes,
		// recover from a possible panic (send on closed channel).
		func() {
			defer func() { _ = recover() }()
			select {
			case ch <- res:
			default:
			}
		}()
	}
	return nil
}

// Subscribe registers a live consumer for one channel. The returned function
// unsubscribes; it is safe to call more than once.
func (b *MemBus) Subscribe(channel string, buffer int) (<-chan domain.RelayResult, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan domain.RelayResult, buffer)
	id := b.seq.Add(1)

	b.mu.Lock()
	if b.subs[channel] == nil {
		b.subs[channel] = map[uint64]chan domain.RelayResult{}
	}
	b.subs[channel][id] = ch
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[channel], id)
			if len(b.subs[channel]) == 0 {
				delete(b.subs, channel)
			}
			b.mu.Unlock()
			// Closing is safe because Publish recovers from send panics.
			close(ch)
		})
	}
	return ch, unsub
}

func (b *MemBus) Close() error { return nil }
