package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultSessionTTL = 30 * 24 * time.Hour

// RedisPersister keeps each session record under cart:<session> with a sliding TTL.
type RedisPersister struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisPersister(client redis.Cmdable, ttl time.Duration) *RedisPersister {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &RedisPersister{client: client, ttl: ttl}
}

func (r *RedisPersister) Load(ctx context.Context, sessionID string) ([]byte, error) {
	data, err := r.client.Get(ctx, recordKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoRecord
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return data, nil
}

func (r *RedisPersister) Save(ctx context.Context, sessionID string, record []byte) error {
	if err := r.client.Set(ctx, recordKey(sessionID), record, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisPersister) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, recordKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func recordKey(sessionID string) string {
	return fmt.Sprintf("cart:%s", sessionID)
}
