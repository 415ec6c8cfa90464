package store

import (
	"context"
	"errors"

	"github.com/pixrelay/pixrelay/internal/models"
)

var (
	// ErrNotFound is returned by Lookup when neither key resolves an entry.
	ErrNotFound = errors.New("correlation entry not found")
)

// Store persists the mapping between a client-supplied external id and/or a
// gateway-issued transaction id and the tracking record captured at checkout.
// Entries are never deleted; they are retained for later webhook
// reconciliation.
type Store interface {
	// Put upserts an entry keyed by external id. The tracking record is
	// stored as given; callers normalize before calling.
	Put(ctx context.Context, externalID string, tracking models.TrackingRecord, status string, buyer models.Buyer) error

	// AttachTransactionID records the gateway-issued id for an entry once the
	// gateway accepts the request. Calling twice with the same pair is a
	// no-op.
	AttachTransactionID(ctx context.Context, externalID, transactionID string) error

	// Lookup resolves an entry by external id first, falling back to
	// transaction id on a miss. ErrNotFound only when both attempts miss.
	Lookup(ctx context.Context, externalID, transactionID string) (*models.CorrelationEntry, error)

	// UpdateStatus merges a new status and optional buyer snapshot into the
	// entry keyed by external id, preserving fields the webhook did not
	// supply.
	UpdateStatus(ctx context.Context, externalID, status string, buyer *models.Buyer) error

	Close() error
}

// mergeBuyer fills only the buyer fields the webhook actually supplied.
func mergeBuyer(existing models.Buyer, update *models.Buyer) models.Buyer {
	if update == nil {
		return existing
	}
	if update.Name != "" {
		existing.Name = update.Name
	}
	if update.Email != "" {
		existing.Email = update.Email
	}
	if update.Phone != "" {
		existing.Phone = update.Phone
	}
	if update.Document != "" {
		existing.Document = update.Document
	}
	return existing
}
