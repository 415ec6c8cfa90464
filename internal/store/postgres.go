package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pixrelay/pixrelay/internal/models"
)

// PostgresStore implements Store using PostgreSQL. The per-key upsert
// semantics come from INSERT ... ON CONFLICT on the external_id primary key,
// so concurrent writers on different keys never block each other.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a connection pool and verifies connectivity.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 2
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Put(ctx context.Context, externalID string, tracking models.TrackingRecord, status string, buyer models.Buyer) error {
	trackingJSON, err := json.Marshal(tracking)
	if err != nil {
		return fmt.Errorf("marshal tracking: %w", err)
	}

	query := `
		INSERT INTO correlation_entries
			(external_id, tracking, status, buyer_name, buyer_email, buyer_phone, buyer_document, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		ON CONFLICT (external_id) DO UPDATE SET
			tracking       = EXCLUDED.tracking,
			status         = COALESCE(NULLIF(EXCLUDED.status, ''), correlation_entries.status),
			buyer_name     = COALESCE(NULLIF(EXCLUDED.buyer_name, ''), correlation_entries.buyer_name),
			buyer_email    = COALESCE(NULLIF(EXCLUDED.buyer_email, ''), correlation_entries.buyer_email),
			buyer_phone    = COALESCE(NULLIF(EXCLUDED.buyer_phone, ''), correlation_entries.buyer_phone),
			buyer_document = COALESCE(NULLIF(EXCLUDED.buyer_document, ''), correlation_entries.buyer_document),
			updated_at     = now()
	`

	_, err = s.pool.Exec(ctx, query,
		externalID, trackingJSON, status,
		buyer.Name, buyer.Email, buyer.Phone, buyer.Document,
	)
	if err != nil {
		return fmt.Errorf("upsert entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) AttachTransactionID(ctx context.Context, externalID, transactionID string) error {
	// Guarded update keeps the attachment one-time and idempotent.
	query := `
		UPDATE correlation_entries
		SET transaction_id = $2, updated_at = now()
		WHERE external_id = $1
		  AND (transaction_id IS NULL OR transaction_id = $2)
	`

	tag, err := s.pool.Exec(ctx, query, externalID, transactionID)
	if err != nil {
		return fmt.Errorf("attach transaction id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either the entry is missing or a different transaction id is
		// already attached; both are reported the same way.
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Lookup(ctx context.Context, externalID, transactionID string) (*models.CorrelationEntry, error) {
	if externalID != "" {
		entry, err := s.queryEntry(ctx, "external_id = $1", externalID)
		if err == nil {
			return entry, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	if transactionID != "" {
		return s.queryEntry(ctx, "transaction_id = $1", transactionID)
	}
	return nil, ErrNotFound
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, externalID, status string, buyer *models.Buyer) error {
	var b models.Buyer
	if buyer != nil {
		b = *buyer
	}

	query := `
		UPDATE correlation_entries SET
			status         = COALESCE(NULLIF($2, ''), status),
			buyer_name     = COALESCE(NULLIF($3, ''), buyer_name),
			buyer_email    = COALESCE(NULLIF($4, ''), buyer_email),
			buyer_phone    = COALESCE(NULLIF($5, ''), buyer_phone),
			buyer_document = COALESCE(NULLIF($6, ''), buyer_document),
			updated_at     = now()
		WHERE external_id = $1
	`

	tag, err := s.pool.Exec(ctx, query, externalID, status, b.Name, b.Email, b.Phone, b.Document)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) queryEntry(ctx context.Context, where string, arg string) (*models.CorrelationEntry, error) {
	query := `
		SELECT external_id, COALESCE(transaction_id, ''), tracking, COALESCE(status, ''),
		       COALESCE(buyer_name, ''), COALESCE(buyer_email, ''),
		       COALESCE(buyer_phone, ''), COALESCE(buyer_document, ''),
		       created_at, updated_at
		FROM correlation_entries
		WHERE ` + where

	entry := &models.CorrelationEntry{}
	var trackingJSON []byte
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&entry.ExternalID, &entry.TransactionID, &trackingJSON, &entry.Status,
		&entry.Buyer.Name, &entry.Buyer.Email, &entry.Buyer.Phone, &entry.Buyer.Document,
		&entry.CreatedAt, &entry.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query entry: %w", err)
	}

	if err := json.Unmarshal(trackingJSON, &entry.Tracking); err != nil {
		return nil, fmt.Errorf("unmarshal tracking: %w", err)
	}
	return entry, nil
}
