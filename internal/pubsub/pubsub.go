// Package pubsub delivers relay results to live subscribers.
//
// Delivery is best-effort and real-time only: subscribers that connect after a
// result was published never see it, and slow subscribers may drop results.
// Publishing must never block the scheduler beyond the caller's timeout.
package pubsub

import (
	"context"
	"strings"

	"assetlink/internal/domain"
	logx "assetlink/pkg/logx"
)

// Publisher fans a relay result out to the live channel for a binding.
type Publisher interface {
	Publish(ctx context.Context, channel string, res domain.RelayResult) error
	Close() error
}

// Config selects the live channel transport.
type Config struct {
	Driver        string
	Addr          string
	ChannelPrefix string
}

// Channel returns the live channel name for a binding.
func (c Config) Channel(bindingID string) string {
	prefix := strings.TrimSpace(c.ChannelPrefix)
	if prefix == "" {
		prefix = "assetlink.relay"
	}
	return prefix + "." + bindingID
}

// Open initializes the configured publisher.
func Open(cfg Config, log logx.Logger) (Publisher, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "memory":
		return NewMemBus(), nil
	case "redis":
		return newRedisPublisher(cfg, log)
	default:
		return nil, &domain.ValidationError{Field: "publisher.driver", Reason: "unknown driver " + cfg.Driver}
	}
}
