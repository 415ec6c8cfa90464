package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLedger implements Ledger with a SETNX per (transaction id, stage)
// pair, so multiple relay instances share one deduplication view.
type RedisLedger struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLedger connects to Redis at the given URL.
func NewRedisLedger(ctx context.Context, url string, ttl time.Duration) (*RedisLedger, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisLedger{client: client, ttl: ttl}, nil
}

// NewRedisLedgerWithClient wraps an existing client. Used by tests.
func NewRedisLedgerWithClient(client *redis.Client, ttl time.Duration) *RedisLedger {
	return &RedisLedger{client: client, ttl: ttl}
}

func (l *RedisLedger) MarkDispatched(ctx context.Context, transactionID, stage string) (bool, error) {
	key := fmt.Sprintf("dedup:%s:%s", transactionID, stage)
	first, err := l.client.SetNX(ctx, key, time.Now().Unix(), l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("mark dispatched: %w", err)
	}
	return first, nil
}

func (l *RedisLedger) Close() error {
	return l.client.Close()
}
