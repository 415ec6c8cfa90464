package dedup

import (
	"context"
	"sync"
	"time"
)

// Ledger guards against duplicate webhook deliveries re-triggering sink
// dispatch. Keys are (transaction id, lifecycle stage); an entry expires
// after the configured TTL since the gateway stops retrying long before
// then.
type Ledger interface {
	// MarkDispatched records the pair and reports whether this is the first
	// time it was seen.
	MarkDispatched(ctx context.Context, transactionID, stage string) (first bool, err error)
	Close() error
}

// MemoryLedger is an in-process ledger for tests and single-instance
// deployments.
type MemoryLedger struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
}

// NewMemoryLedger creates a ledger whose entries expire after ttl.
func NewMemoryLedger(ttl time.Duration) *MemoryLedger {
	return &MemoryLedger{
		seen: make(map[string]time.Time),
		ttl:  ttl,
	}
}

func (l *MemoryLedger) MarkDispatched(ctx context.Context, transactionID, stage string) (bool, error) {
	key := transactionID + ":" + stage
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if expiry, ok := l.seen[key]; ok && now.Before(expiry) {
		return false, nil
	}
	l.seen[key] = now.Add(l.ttl)
	return true, nil
}

func (l *MemoryLedger) Close() error {
	return nil
}
