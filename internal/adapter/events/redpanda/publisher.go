// Package redpanda publishes session lifecycle events to a Redpanda/Kafka topic.
//
// Events are informational. The interview flow never waits on consumers and
// a failed publish is logged by the caller, not retried.
package redpanda

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kotel"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/ai-interview-coach/internal/domain"
)

// DefaultTopic receives all lifecycle events unless configured otherwise.
const DefaultTopic = "interview-events"

// Publisher implements domain.EventPublisher on a franz-go client.
type Publisher struct {
	client *kgo.Client
	topic  string
}

var _ domain.EventPublisher = (*Publisher)(nil)

// NewPublisher connects to brokers and makes sure topic exists.
func NewPublisher(ctx context.Context, brokers []string, topic string) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("op=redpanda.NewPublisher: no seed brokers provided: %w", domain.ErrInvalidArgument)
	}
	if topic == "" {
		topic = DefaultTopic
	}
	slog.Info("creating redpanda publisher", slog.Any("brokers", brokers), slog.String("topic", topic))

	kotelService := kotel.NewKotel(
		kotel.WithTracer(kotel.NewTracer(kotel.TracerProvider(otel.GetTracerProvider()))),
	)
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.WithHooks(kotelService.Hooks()...),
		kgo.RequestRetries(5),
		kgo.ProducerLinger(5*time.Millisecond),
		kgo.DialTimeout(10*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("op=redpanda.NewPublisher: %w", err)
	}
	if err := createTopicIfNotExists(ctx, client, topic, 1, 1); err != nil {
		slog.Warn("failed to create topic, it may already exist", slog.String("topic", topic), slog.Any("error", err))
	}
	return &Publisher{client: client, topic: topic}, nil
}

// Publish writes one event keyed by session id, so events of a session stay
// ordered within a partition.
func (p *Publisher) Publish(ctx context.Context, e domain.Event) error {
	rec, err := buildRecord(p.topic, e)
	if err != nil {
		return fmt.Errorf("op=redpanda.Publish: %w", err)
	}
	if err := p.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("op=redpanda.Publish: %w: %v", domain.ErrUpstream, err)
	}
	return nil
}

// Ping checks that at least one broker answers.
func (p *Publisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// Close flushes buffered records and closes the client.
func (p *Publisher) Close() error {
	if p.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.client.Flush(ctx); err != nil {
		slog.Warn("redpanda flush on close failed", slog.Any("error", err))
	}
	p.client.Close()
	return nil
}

func buildRecord(topic string, e domain.Event) (*kgo.Record, error) {
	if e.SessionID == "" || e.Type == "" {
		return nil, fmt.Errorf("event type and session id are required: %w", domain.ErrInvalidArgument)
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return &kgo.Record{
		Topic:     topic,
		Key:       []byte(e.SessionID),
		Value:     b,
		Timestamp: e.OccurredAt,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(e.Type)},
			{Key: "session_id", Value: []byte(e.SessionID)},
		},
	}, nil
}
