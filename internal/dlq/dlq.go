package dlq

import (
	"context"

	"github.com/pixrelay/pixrelay/internal/models"
)

// Writer records sink deliveries that failed, for offline inspection. The
// dispatcher never retries in-process; the DLQ is the only trace a failed
// delivery leaves beyond logs and metrics.
type Writer interface {
	Write(ctx context.Context, sink string, event *models.PaymentEvent, cause error) error
	Close()
}

// Noop discards every entry. Used when no DLQ backend is configured.
type Noop struct{}

func (Noop) Write(ctx context.Context, sink string, event *models.PaymentEvent, cause error) error {
	return nil
}

func (Noop) Close() {}
