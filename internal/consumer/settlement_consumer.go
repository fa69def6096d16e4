// Package consumer settles payments from payment_submitted events when the
// service runs with the event-driven settlement trigger.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/fjod/chaos-shop/internal/domain"
	"github.com/fjod/chaos-shop/internal/repository"
	"github.com/segmentio/kafka-go"
)

const GroupID = "settlement-worker"

type Settler interface {
	SettleIfPending(ctx context.Context, orderID int64) (*domain.Order, error)
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	settler    Settler
	reader     messageReader
	retryDelay time.Duration
}

func NewConsumer(settler Settler, topic string, brokers ...string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  GroupID,
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{settler: settler, reader: reader, retryDelay: time.Second}
}

// Run consumes until ctx is done. An offset is committed only once its event
// is handled; a failed settlement is retried on the same message, and a
// shutdown mid-retry leaves it uncommitted for the next reader. The settlement
// guard makes repeated attempts harmless.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.Close()
	for {
		if ctx.Err() != nil {
			return nil
		}
		err := c.processMessage(ctx)
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		select {
		case <-time.After(c.retryDelay):
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		slog.Error("error closing kafka reader", "error", err)
	}
}

func (c *Consumer) processMessage(ctx context.Context) error {
	m, err := c.reader.FetchMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
			return err
		}
		slog.ErrorContext(ctx, "error reading message", "error", err)
		return err
	}

	for {
		err := c.handle(ctx, m)
		if err == nil {
			break
		}
		slog.ErrorContext(ctx, "failed to settle order, retrying", "offset", m.Offset, "error", err)
		select {
		case <-time.After(c.retryDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := c.reader.CommitMessages(ctx, m); err != nil && !errors.Is(err, context.Canceled) {
		slog.ErrorContext(ctx, "error committing message", "offset", m.Offset, "error", err)
	}
	return nil
}

// handle returns an error only when the event should be attempted again.
func (c *Consumer) handle(ctx context.Context, m kafka.Message) error {
	var event domain.OrderEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		slog.WarnContext(ctx, "skipping unparseable order event", "offset", m.Offset, "error", err)
		return nil
	}
	if event.EventType != domain.EventPaymentSubmitted {
		return nil
	}

	order, err := c.settler.SettleIfPending(ctx, event.OrderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			slog.InfoContext(ctx, "order deleted before settlement, skipping", "order_id", event.OrderID)
			return nil
		}
		return fmt.Errorf("settle order %d: %w", event.OrderID, err)
	}
	slog.InfoContext(ctx, "settlement handled", "order_id", order.ID, "status", order.Status)
	return nil
}
