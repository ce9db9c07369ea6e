package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PersistentTask is one durable producer->consumer binding whose asset
// properties are relayed on a fixed cadence until the contract expires.
//
// DataType and AssetProperties are opaque to the scheduler: they are carried
// from fetch to publish unchanged and never inspected.
type PersistentTask struct {
	ID              string          `json:"id"`
	ProducerID      string          `json:"producer_id"`
	BindingID       string          `json:"binding_id"`
	AssetID         string          `json:"asset_id"`
	ContractID      string          `json:"contract_id"`
	Interval        time.Duration   `json:"interval"`
	Expiry          time.Time       `json:"expiry"`
	DataType        json.RawMessage `json:"data_type,omitempty"`
	AssetProperties json.RawMessage `json:"asset_properties,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// NewTaskID returns a fresh opaque task id.
func NewTaskID() string { return uuid.NewString() }

// Validate checks the creation invariants. The expiry check uses the supplied
// clock so callers (and tests) agree on "now".
func (t *PersistentTask) Validate(now time.Time) error {
	if t.ProducerID == "" {
		return &ValidationError{Field: "producer_id", Reason: "must not be empty"}
	}
	if t.BindingID == "" {
		return &ValidationError{Field: "binding_id", Reason: "must not be empty"}
	}
	if t.AssetID == "" {
		return &ValidationError{Field: "asset_id", Reason: "must not be empty"}
	}
	if t.Interval <= 0 {
		return &ValidationError{Field: "interval", Reason: "must be > 0"}
	}
	if !t.Expiry.After(now) {
		return &ValidationError{Field: "expiry", Reason: "must be in the future"}
	}
	return nil
}

// Expired reports whether the task must no longer execute.
func (t *PersistentTask) Expired(now time.Time) bool {
	return !now.Before(t.Expiry)
}

// BindingKey identifies the producer/binding/asset triple used for
// duplicate-registration checks.
func (t *PersistentTask) BindingKey() string {
	return t.ProducerID + "\x00" + t.BindingID + "\x00" + t.AssetID
}

// RelayResult is the payload handed to the publisher on every successful tick.
type RelayResult struct {
	TaskID     string          `json:"task_id"`
	BindingID  string          `json:"binding_id"`
	ContractID string          `json:"contract_id"`
	AssetID    string          `json:"asset_id"`
	DataType   json.RawMessage `json:"data_type,omitempty"`
	Values     json.RawMessage `json:"values"`
	RelayedAt  time.Time       `json:"relayed_at"`
}

// TaskSummary is the listing shape exposed to the CRUD layer.
type TaskSummary struct {
	ID         string        `json:"id"`
	ProducerID string        `json:"producer_id"`
	BindingID  string        `json:"binding_id"`
	AssetID    string        `json:"asset_id"`
	ContractID string        `json:"contract_id"`
	Interval   time.Duration `json:"interval"`
	Expiry     time.Time     `json:"expiry"`
	CreatedAt  time.Time     `json:"created_at"`
}

func (t *PersistentTask) Summary() TaskSummary {
	return TaskSummary{
		ID:         t.ID,
		ProducerID: t.ProducerID,
		BindingID:  t.BindingID,
		AssetID:    t.AssetID,
		ContractID: t.ContractID,
		Interval:   t.Interval,
		Expiry:     t.Expiry,
		CreatedAt:  t.CreatedAt,
	}
}
