package store

import (
	"context"
	"sync"
	"time"

	"github.com/pixrelay/pixrelay/internal/models"
)

// MemoryStore is an in-process Store used for tests and single-instance
// deployments. Each entry carries its own lock so concurrent writers on
// different keys never contend.
type MemoryStore struct {
	entries  sync.Map // external_id -> *entryHolder
	txnIndex sync.Map // transaction_id -> external_id
}

type entryHolder struct {
	mu    sync.Mutex
	entry models.CorrelationEntry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) holder(externalID string) *entryHolder {
	actual, _ := s.entries.LoadOrStore(externalID, &entryHolder{
		entry: models.CorrelationEntry{
			ExternalID: externalID,
			CreatedAt:  time.Now().UTC(),
		},
	})
	return actual.(*entryHolder)
}

func (s *MemoryStore) Put(ctx context.Context, externalID string, tracking models.TrackingRecord, status string, buyer models.Buyer) error {
	h := s.holder(externalID)
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entry.Tracking = tracking
	if status != "" {
		h.entry.Status = status
	}
	h.entry.Buyer = mergeBuyer(h.entry.Buyer, &buyer)
	h.entry.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) AttachTransactionID(ctx context.Context, externalID, transactionID string) error {
	h := s.holder(externalID)
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.entry.TransactionID == transactionID {
		return nil
	}
	h.entry.TransactionID = transactionID
	h.entry.UpdatedAt = time.Now().UTC()
	s.txnIndex.Store(transactionID, externalID)
	return nil
}

func (s *MemoryStore) Lookup(ctx context.Context, externalID, transactionID string) (*models.CorrelationEntry, error) {
	if externalID != "" {
		if actual, ok := s.entries.Load(externalID); ok {
			return snapshot(actual.(*entryHolder)), nil
		}
	}
	if transactionID != "" {
		if ext, ok := s.txnIndex.Load(transactionID); ok {
			if actual, ok := s.entries.Load(ext.(string)); ok {
				return snapshot(actual.(*entryHolder)), nil
			}
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, externalID, status string, buyer *models.Buyer) error {
	actual, ok := s.entries.Load(externalID)
	if !ok {
		return ErrNotFound
	}
	h := actual.(*entryHolder)
	h.mu.Lock()
	defer h.mu.Unlock()

	if status != "" {
		h.entry.Status = status
	}
	h.entry.Buyer = mergeBuyer(h.entry.Buyer, buyer)
	h.entry.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// snapshot copies the entry so callers never observe later mutations.
func snapshot(h *entryHolder) *models.CorrelationEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	entry := h.entry
	return &entry
}
