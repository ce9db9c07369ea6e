package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrTaskNotFound is returned by store lookups for unknown ids.
	ErrTaskNotFound = errors.New("task not found")

	// ErrStoreUnavailable wraps store transport failures. Fatal at startup
	// load; retried with backoff at runtime.
	ErrStoreUnavailable = errors.New("task store unavailable")

	// ErrDuplicateBinding is returned when a second active task targets the
	// same (producer, binding, asset) triple.
	ErrDuplicateBinding = errors.New("active task already exists for binding")
)

// ValidationError rejects a task before anything is persisted or scheduled.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid task: %s %s", e.Field, e.Reason)
}

// FetchError is a per-tick, transient failure of the asset data source.
// The executor logs it and skips the cycle; it never stops the task.
type FetchError struct {
	AssetID string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch properties for asset %s: %v", e.AssetID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// TransportUnavailableError is a publish-side failure. The relay logs it,
// drops the result, and the tick still counts as successful.
type TransportUnavailableError struct {
	Channel string
	Err     error
}

func (e *TransportUnavailableError) Error() string {
	return fmt.Sprintf("publish to %s: %v", e.Channel, e.Err)
}

func (e *TransportUnavailableError) Unwrap() error { return e.Err }
