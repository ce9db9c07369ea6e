package assets

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"assetlink/internal/domain"
)

// Static is an in-memory source for standalone runs and tests.
type Static struct {
	mu     sync.RWMutex
	values map[string]map[string]json.RawMessage // assetID -> property -> value
}

func NewStatic(values map[string]map[string]json.RawMessage) *Static {
	if values == nil {
		values = map[string]map[string]json.RawMessage{}
	}
	return &Static{values: values}
}

// Set replaces one property value for an asset.
func (s *Static) Set(assetID, property string, value json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values[assetID] == nil {
		s.values[assetID] = map[string]json.RawMessage{}
	}
	s.values[assetID][property] = value
}

func (s *Static) FetchProperties(ctx context.Context, assetID string, propertySpec json.RawMessage) (json.RawMessage, error) {
	_ = ctx
	names, err := propertyNames(propertySpec)
	if err != nil {
		return nil, &domain.FetchError{AssetID: assetID, Err: err}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	props, ok := s.values[assetID]
	if !ok {
		return nil, &domain.FetchError{AssetID: assetID, Err: fmt.Errorf("asset %q unknown", assetID)}
	}
	out := make(map[string]json.RawMessage, len(names))
	for _, n := range names {
		v, ok := props[n]
		if !ok {
			return nil, &domain.FetchError{AssetID: assetID, Err: fmt.Errorf("property %q missing", n)}
		}
		out[n] = v
	}
	doc, err := json.Marshal(out)
	if err != nil {
		return nil, &domain.FetchError{AssetID: assetID, Err: err}
	}
	return doc, nil
}

func (s *Static) Close() error { return nil }
