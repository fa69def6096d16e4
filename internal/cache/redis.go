package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/fjod/chaos-shop/internal/domain"
	"github.com/redis/go-redis/v9"
)

func NewRedisCartStore(client *redis.Client, baseTTL time.Duration) *RedisCartStore {
	if baseTTL <= 0 {
		baseTTL = 24 * time.Hour
	}
	return &RedisCartStore{
		client:  client,
		baseTTL: baseTTL,
	}
}

type RedisCartStore struct {
	client  *redis.Client
	baseTTL time.Duration
}

func (r *RedisCartStore) Get(ctx context.Context, sessionID string) (*domain.Cart, error) {
	key := cartKey(sessionID)

	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var cart domain.Cart
	if err2 := json.Unmarshal(data, &cart); err2 != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err2)
	}
	if cart.Lines == nil {
		cart.Lines = map[string]int{}
	}

	return &cart, nil
}

func (r *RedisCartStore) Set(ctx context.Context, sessionID string, cart *domain.Cart) error {
	key := cartKey(sessionID)
	jsonCart, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	// jitter spreads expirations of carts created in the same burst
	jitter := time.Duration(rand.Intn(5)) * time.Minute
	ttl := r.baseTTL + jitter
	if err := r.client.Set(ctx, key, jsonCart, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCartStore) Delete(ctx context.Context, sessionID string) error {
	key := cartKey(sessionID)
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}

	return nil
}

// Ping is used by the health checker.
func (r *RedisCartStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func cartKey(sessionID string) string {
	return fmt.Sprintf("cart:%s", sessionID)
}
