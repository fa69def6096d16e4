// Package audit keeps a MongoDB trail of every applied payment settlement so
// simulated outcomes can be told apart from real ones after the fact.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/fjod/chaos-shop/internal/domain"
	"github.com/fjod/chaos-shop/pkg/circuitbreaker"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const retention = 90 * 24 * time.Hour

type Recorder struct {
	collection *mongo.Collection
	breaker    *circuitbreaker.Breaker
}

func NewRecorder(db *mongo.Database, breaker *circuitbreaker.Breaker) *Recorder {
	if breaker == nil {
		breaker = circuitbreaker.New(circuitbreaker.DefaultSettings("settlement-audit"))
	}
	return &Recorder{
		collection: db.Collection("settlements"),
		breaker:    breaker,
	}
}

// RecordSettlement inserts one record. While MongoDB is failing the breaker
// opens and writes are dropped without waiting on the driver.
func (r *Recorder) RecordSettlement(ctx context.Context, rec domain.SettlementRecord) error {
	err := r.breaker.Do(func() error {
		_, err := r.collection.InsertOne(ctx, rec)
		return err
	})
	if err != nil {
		return fmt.Errorf("record settlement for order %d: %w", rec.OrderID, err)
	}
	return nil
}

// ListByOrder returns the order's settlements, oldest first.
func (r *Recorder) ListByOrder(ctx context.Context, orderID int64) ([]domain.SettlementRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "settled_at", Value: 1}})
	cur, err := r.collection.Find(ctx, bson.M{"order_id": orderID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find settlements: %w", err)
	}
	defer cur.Close(ctx)

	records := []domain.SettlementRecord{}
	if err := cur.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode settlements: %w", err)
	}
	return records, nil
}

func (r *Recorder) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "order_id", Value: 1}, {Key: "settled_at", Value: 1}},
		},
		{
			Keys:    bson.D{{Key: "settled_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(retention.Seconds())),
		},
	}

	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func (r *Recorder) Ping(ctx context.Context) error {
	return r.collection.Database().Client().Ping(ctx, nil)
}
