package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pixrelay/pixrelay/internal/models"
)

// watchRetries bounds the optimistic-locking loop when two writers race on
// the same external id.
const watchRetries = 5

// RedisStore keeps correlation entries in Redis. The entry lives under the
// external-id key; a secondary index maps the gateway transaction id back to
// the external id so webhook lookups can fall back to either key.
type RedisStore struct {
	client    *redis.Client
	retention time.Duration
}

// NewRedisStore connects to Redis at the given URL ("redis://host:port/db").
// retention bounds how long entries are kept; zero means no expiry.
func NewRedisStore(ctx context.Context, url string, retention time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisStore{client: client, retention: retention}, nil
}

// NewRedisStoreWithClient wraps an existing client. Used by tests.
func NewRedisStoreWithClient(client *redis.Client, retention time.Duration) *RedisStore {
	return &RedisStore{client: client, retention: retention}
}

func entryKey(externalID string) string {
	return "corr:ext:" + externalID
}

func txnKey(transactionID string) string {
	return "corr:txn:" + transactionID
}

func (s *RedisStore) Put(ctx context.Context, externalID string, tracking models.TrackingRecord, status string, buyer models.Buyer) error {
	return s.mutate(ctx, externalID, true, func(entry *models.CorrelationEntry) {
		entry.Tracking = tracking
		if status != "" {
			entry.Status = status
		}
		entry.Buyer = mergeBuyer(entry.Buyer, &buyer)
	})
}

func (s *RedisStore) AttachTransactionID(ctx context.Context, externalID, transactionID string) error {
	err := s.mutate(ctx, externalID, false, func(entry *models.CorrelationEntry) {
		entry.TransactionID = transactionID
	})
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, txnKey(transactionID), externalID, s.retention).Err(); err != nil {
		return fmt.Errorf("index transaction id: %w", err)
	}
	return nil
}

func (s *RedisStore) Lookup(ctx context.Context, externalID, transactionID string) (*models.CorrelationEntry, error) {
	if externalID != "" {
		entry, err := s.getEntry(ctx, externalID)
		if err == nil {
			return entry, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	if transactionID != "" {
		ext, err := s.client.Get(ctx, txnKey(transactionID)).Result()
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("resolve transaction index: %w", err)
		}
		return s.getEntry(ctx, ext)
	}
	return nil, ErrNotFound
}

func (s *RedisStore) UpdateStatus(ctx context.Context, externalID, status string, buyer *models.Buyer) error {
	return s.mutate(ctx, externalID, false, func(entry *models.CorrelationEntry) {
		if status != "" {
			entry.Status = status
		}
		entry.Buyer = mergeBuyer(entry.Buyer, buyer)
	})
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) getEntry(ctx context.Context, externalID string) (*models.CorrelationEntry, error) {
	data, err := s.client.Get(ctx, entryKey(externalID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}

	var entry models.CorrelationEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		return nil, fmt.Errorf("unmarshal entry: %w", err)
	}
	return &entry, nil
}

// mutate applies fn to the entry under a WATCH on its key, so concurrent
// writers on the same external id retry instead of clobbering each other.
// Writers on different keys never interact.
func (s *RedisStore) mutate(ctx context.Context, externalID string, createMissing bool, fn func(*models.CorrelationEntry)) error {
	key := entryKey(externalID)

	txn := func(tx *redis.Tx) error {
		var entry models.CorrelationEntry

		data, err := tx.Get(ctx, key).Result()
		switch {
		case errors.Is(err, redis.Nil):
			if !createMissing {
				return ErrNotFound
			}
			entry = models.CorrelationEntry{
				ExternalID: externalID,
				CreatedAt:  time.Now().UTC(),
			}
		case err != nil:
			return fmt.Errorf("get entry: %w", err)
		default:
			if err := json.Unmarshal([]byte(data), &entry); err != nil {
				return fmt.Errorf("unmarshal entry: %w", err)
			}
		}

		fn(&entry)
		entry.UpdatedAt = time.Now().UTC()

		buf, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshal entry: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, buf, s.retention)
			return nil
		})
		return err
	}

	for i := 0; i < watchRetries; i++ {
		err := s.client.Watch(ctx, txn, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("update entry %s: too many concurrent writers", externalID)
}
