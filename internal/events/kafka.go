package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaPublisher writes lifecycle events to a Kafka topic so other instances
// (and downstream consumers) observe transitions regardless of which process
// performed them.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewKafkaPublisher connects to the brokers and ensures the topic exists.
func NewKafkaPublisher(ctx context.Context, brokers []string, topic string, logger *slog.Logger) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}

	adm := kadm.NewClient(client)
	if _, err := adm.CreateTopic(ctx, 1, 1, nil, topic); err != nil {
		// Topic may already exist; only log.
		logger.InfoContext(ctx, "create topic", "topic", topic, "result", err.Error())
	}

	return &KafkaPublisher{client: client, topic: topic, logger: logger}, nil
}

// Publish produces the event keyed by entity ID so per-entity ordering holds.
func (p *KafkaPublisher) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	record := &kgo.Record{Topic: p.topic, Key: []byte(ev.ID), Value: payload}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce event: %w", err)
	}
	return nil
}

// Close flushes and releases the client.
func (p *KafkaPublisher) Close() {
	p.client.Close()
}

// Relay consumes the lifecycle topic and republishes into the in-process
// broadcaster. It runs until ctx is canceled. Consume errors are logged and
// retried by the client; a malformed record is skipped, never fatal.
type Relay struct {
	client      *kgo.Client
	broadcaster *Broadcaster
	logger      *slog.Logger
}

// NewRelay builds a consumer in a fresh group so every instance sees every
// event.
func NewRelay(brokers []string, topic, groupID string, b *Broadcaster, logger *slog.Logger) (*Relay, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumerGroup(groupID),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return &Relay{client: client, broadcaster: b, logger: logger}, nil
}

// Run polls until ctx is canceled.
func (r *Relay) Run(ctx context.Context) error {
	defer r.client.Close()

	for {
		fetches := r.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return ctx.Err()
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			r.logger.ErrorContext(ctx, "event fetch failed", "topic", topic, "partition", partition, "error", err)
		})
		fetches.EachRecord(func(rec *kgo.Record) {
			var ev Event
			if err := json.Unmarshal(rec.Value, &ev); err != nil {
				r.logger.WarnContext(ctx, "malformed lifecycle event skipped", "error", err)
				return
			}
			_ = r.broadcaster.Publish(ctx, ev)
		})
	}
}
