// Package kafka fans audit events out to a Kafka topic for downstream
// consumers (SIEM ingestion, analytics). The primary audit record lives
// in Postgres; this sink is best-effort.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"tracker/internal/audit"
	"tracker/internal/platform/config"
)

// Producer publishes audit events as JSON records keyed by organization,
// so one org's trail stays ordered within a partition.
type Producer struct {
	client *kgo.Client
	topic  string
}

// NewProducer connects to the configured brokers. Returns nil when no
// brokers are configured (the sink is disabled).
func NewProducer(cfg config.Kafka) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Producer{client: client, topic: cfg.Topic}, nil
}

type wireEvent struct {
	Timestamp string `json:"timestamp"`
	OrgKey    string `json:"org_key"`
	ActorKey  string `json:"actor_key"`
	TargetKey string `json:"target_key,omitempty"`
	Action    string `json:"action"`
	Outcome   string `json:"outcome"`
	Reason    string `json:"reason,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Emit publishes one event synchronously.
func (p *Producer) Emit(ctx context.Context, event audit.Event) error {
	payload, err := json.Marshal(wireEvent{
		Timestamp: event.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		OrgKey:    event.OrgKey,
		ActorKey:  event.ActorKey,
		TargetKey: event.TargetKey,
		Action:    string(event.Action),
		Outcome:   string(event.Outcome),
		Reason:    event.Reason,
		RequestID: event.RequestID,
	})
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.OrgKey),
		Value: payload,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

// Close flushes and releases the client.
func (p *Producer) Close() {
	p.client.Close()
}
