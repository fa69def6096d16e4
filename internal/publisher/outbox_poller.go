// Package publisher relays order events from the Postgres outbox to Kafka.
package publisher

import (
	"context"
	"log/slog"
	"time"

	"github.com/fjod/chaos-shop/internal/repository"
	"github.com/fjod/chaos-shop/pkg/circuitbreaker"
	"github.com/segmentio/kafka-go"
)

const DefaultTopic = "order-events"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type OutboxPoller struct {
	eventTick time.Duration
	batchSize int
	repo      repository.OutboxRepository
	writer    messageWriter
	breaker   *circuitbreaker.Breaker
}

func NewOutboxPoller(repo repository.OutboxRepository, topic string, brokers ...string) *OutboxPoller {
	if topic == "" {
		topic = DefaultTopic
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		WriteTimeout:           10 * time.Second,
	}
	return &OutboxPoller{
		eventTick: time.Second,
		batchSize: 100,
		repo:      repo,
		writer:    w,
		breaker:   circuitbreaker.New(circuitbreaker.DefaultSettings("outbox-kafka")),
	}
}

// Run polls until ctx is done, then closes the writer.
func (p *OutboxPoller) Run(ctx context.Context) error {
	eventTicker := time.NewTicker(p.eventTick)
	defer eventTicker.Stop()
	defer p.writer.Close()

	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) int {
	events, err := p.repo.GetUnprocessedEvents(ctx, p.batchSize)
	if err != nil {
		slog.ErrorContext(ctx, "failed to fetch outbox events", "error", err)
		return 0
	}

	published := 0
	for _, event := range events {
		errPublish := p.breaker.Do(func() error {
			return p.publishToKafka(ctx, event)
		})
		if errPublish != nil {
			if circuitbreaker.IsOpen(errPublish) {
				slog.WarnContext(ctx, "kafka breaker open, postponing outbox batch", "pending", len(events)-published)
				return published
			}
			slog.ErrorContext(ctx, "failed to publish event", "event_id", event.ID, "error", errPublish)
			continue
		}

		if errMark := p.repo.MarkEventAsProcessed(ctx, event.ID); errMark != nil {
			slog.ErrorContext(ctx, "failed to mark event as processed", "event_id", event.ID, "error", errMark)
			continue
		}
		published++
	}
	return published
}

func (p *OutboxPoller) publishToKafka(ctx context.Context, event *repository.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(event.AggregateId), // order id keeps one order's events ordered
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "event_id", Value: []byte(event.ID)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}
