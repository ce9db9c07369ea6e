package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"assetlink/internal/domain"
)

// KafkaMirror produces every relay result to a kafka topic for downstream
// consumers (analytics, archival). It is a mirror of the live channel, never
// the live channel itself: mirror failures are reported to the caller for
// logging but must not fail a tick.
type KafkaMirror struct {
	client *kgo.Client
	topic  string
}

func NewKafkaMirror(brokers []string, topic string) (*KafkaMirror, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	return &KafkaMirror{client: client, topic: topic}, nil
}

// Mirror produces one relay result, keyed by binding so per-binding ordering
// is preserved across partitions.
func (m *KafkaMirror) Mirror(ctx context.Context, res domain.RelayResult) error {
	value, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal relay result: %w", err)
	}
	record := &kgo.Record{Topic: m.topic, Key: []byte(res.BindingID), Value: value}
	if err := m.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("mirror relay result: %w", err)
	}
	return nil
}

func (m *KafkaMirror) Close() error {
	m.client.Close()
	return nil
}
