// Package assets adapts the external asset/property data store.
//
// The scheduler treats the property spec as opaque; each source defines its
// own convention for interpreting it. The shipped sources expect a JSON array
// of property names.
package assets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	logx "assetlink/pkg/logx"
)

// Source fetches the current values of an asset's properties.
//
// The returned value is an opaque JSON document handed to the publisher
// unchanged. Failures must come back as *domain.FetchError so the executor
// can treat the tick as a skipped cycle.
type Source interface {
	FetchProperties(ctx context.Context, assetID string, propertySpec json.RawMessage) (json.RawMessage, error)
	Close() error
}

// Config selects the asset source driver.
type Config struct {
	Driver       string
	Addr         string
	KeyPrefix    string
	FetchTimeout time.Duration
}

// Open initializes the configured source.
func Open(cfg Config, log logx.Logger) (Source, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "static":
		return NewStatic(nil), nil
	case "redis":
		return newRedisSource(cfg, log)
	default:
		return nil, errors.New("unknown assets driver: " + cfg.Driver)
	}
}

// propertyNames decodes the opaque spec under the shipped sources' convention.
func propertyNames(spec json.RawMessage) ([]string, error) {
	if len(spec) == 0 {
		return nil, errors.New("empty property spec")
	}
	var names []string
	if err := json.Unmarshal(spec, &names); err != nil {
		return nil, fmt.Errorf("property spec must be a JSON array of names: %w", err)
	}
	if len(names) == 0 {
		return nil, errors.New("property spec names no properties")
	}
	return names, nil
}
