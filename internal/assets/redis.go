package assets

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

// redisSource reads asset property values from a redis last-value cache.
//
// Keys: <prefix>:<assetID>:<property>. Values are stored as raw JSON by the
// ingestion pipeline; non-JSON values are passed through as JSON strings.
type redisSource struct {
	client *redis.Client
	prefix string
	log    logx.Logger
}

func newRedisSource(cfg Config, log logx.Logger) (Source, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, errors.New("assets.addr is required for redis driver")
	}
	prefix := strings.TrimSpace(cfg.KeyPrefix)
	if prefix == "" {
		prefix = "asset"
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
		PoolSize:     10,
	})
	return &redisSource{client: client, prefix: prefix, log: log}, nil
}

func (s *redisSource) key(assetID, prop string) string {
	return s.prefix + ":" + assetID + ":" + prop
}

func (s *redisSource) FetchProperties(ctx context.Context, assetID string, propertySpec json.RawMessage) (json.RawMessage, error) {
	names, err := propertyNames(propertySpec)
	if err != nil {
		return nil, &domain.FetchError{AssetID: assetID, Err: err}
	}

	keys := make([]string, len(names))
	for i, n := range names {
		keys[i] = s.key(assetID, n)
	}

	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, &domain.FetchError{AssetID: assetID, Err: err}
	}

	out := make(map[string]json.RawMessage, len(names))
	for i, v := range vals {
		if v == nil {
			return nil, &domain.FetchError{AssetID: assetID, Err: fmt.Errorf("property %q missing", names[i])}
		}
		str, ok := v.(string)
		if !ok {
			return nil, &domain.FetchError{AssetID: assetID, Err: fmt.Errorf("property %q has unexpected type %T", names[i], v)}
		}
		if json.Valid([]byte(str)) {
			out[names[i]] = json.RawMessage(str)
		} else {
			quoted, _ := json.Marshal(str)
			out[names[i]] = quoted
		}
	}

	doc, err := json.Marshal(out)
	if err != nil {
		return nil, &domain.FetchError{AssetID: assetID, Err: err}
	}
	return doc, nil
}

func (s *redisSource) Close() error { return s.client.Close() }
