package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/chaos-shop/pkg/circuitbreaker"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Open connects to the audit database and prepares the settlements
// collection. Index creation failures are logged, not returned: the trail
// still accepts writes without them.
func Open(ctx context.Context, uri, database string, breaker *circuitbreaker.Breaker) (*Recorder, error) {
	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(uri).
		SetAppName("chaos-shop-audit").
		SetServerSelectionTimeout(5*time.Second).
		SetMaxPoolSize(10))
	if err != nil {
		return nil, fmt.Errorf("connect to audit store: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("ping audit store: %w", err)
	}

	rec := NewRecorder(client.Database(database), breaker)
	if err := rec.CreateIndexes(ctx); err != nil {
		slog.WarnContext(ctx, "failed to create settlement indexes", "database", database, "error", err)
	}
	return rec, nil
}

func (r *Recorder) Close(ctx context.Context) error {
	return r.collection.Database().Client().Disconnect(ctx)
}
