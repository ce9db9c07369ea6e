package store

import (
	"encoding/json"
	"time"

	"assetlink/internal/domain"
)

// taskRecord is the on-disk shape shared by the file driver and the journal.
// Interval and expiry persist as integer nanoseconds so they round-trip exact.
type taskRecord struct {
	ID              string          `json:"id"`
	ProducerID      string          `json:"producer_id"`
	BindingID       string          `json:"binding_id"`
	AssetID         string          `json:"asset_id"`
	ContractID      string          `json:"contract_id"`
	IntervalNS      int64           `json:"interval_ns"`
	ExpiryNS        int64           `json:"expiry_ns"`
	DataType        json.RawMessage `json:"data_type,omitempty"`
	AssetProperties json.RawMessage `json:"asset_properties,omitempty"`
	CreatedAtMS     int64           `json:"created_at_ms"`
	UpdatedAtMS     int64           `json:"updated_at_ms"`
}

func recordFromTask(t *domain.PersistentTask) taskRecord {
	return taskRecord{
		ID:              t.ID,
		ProducerID:      t.ProducerID,
		BindingID:       t.BindingID,
		AssetID:         t.AssetID,
		ContractID:      t.ContractID,
		IntervalNS:      int64(t.Interval),
		ExpiryNS:        t.Expiry.UnixNano(),
		DataType:        t.DataType,
		AssetProperties: t.AssetProperties,
		CreatedAtMS:     t.CreatedAt.UnixMilli(),
		UpdatedAtMS:     t.UpdatedAt.UnixMilli(),
	}
}

func (r taskRecord) toTask() domain.PersistentTask {
	return domain.PersistentTask{
		ID:              r.ID,
		ProducerID:      r.ProducerID,
		BindingID:       r.BindingID,
		AssetID:         r.AssetID,
		ContractID:      r.ContractID,
		Interval:        time.Duration(r.IntervalNS),
		Expiry:          time.Unix(0, r.ExpiryNS),
		DataType:        r.DataType,
		AssetProperties: r.AssetProperties,
		CreatedAt:       time.UnixMilli(r.CreatedAtMS),
		UpdatedAt:       time.UnixMilli(r.UpdatedAtMS),
	}
}
