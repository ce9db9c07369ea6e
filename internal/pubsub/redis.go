package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"assetlink/internal/domain"
	logx "assetlink/pkg/logx"
)

// redisPublisher delivers relay results over redis pub/sub. Redis channels
// match the live-update contract exactly: only currently connected subscribers
// receive a message, with no backlog for late joiners.
type redisPublisher struct {
	client *redis.Client
	log    logx.Logger
}

func newRedisPublisher(cfg Config, log logx.Logger) (Publisher, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, errors.New("publisher.addr is required for redis driver")
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
		PoolSize:     10,
	})
	return &redisPublisher{client: client, log: log}, nil
}

func (p *redisPublisher) Publish(ctx context.Context, channel string, res domain.RelayResult) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal relay result: %w", err)
	}
	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		return &domain.TransportUnavailableError{Channel: channel, Err: err}
	}
	return nil
}

func (p *redisPublisher) Close() error { return p.client.Close() }
