package dlq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/pixrelay/pixrelay/internal/models"
)

// FailedDelivery is the DLQ wire record for one failed sink call.
type FailedDelivery struct {
	Timestamp time.Time            `json:"timestamp"`
	Sink      string               `json:"sink"`
	Error     string               `json:"error"`
	Event     *models.PaymentEvent `json:"event"`
}

// NATSQueue publishes failed deliveries to a NATS subject per sink, so a
// consumer can inspect or replay them out of band.
type NATSQueue struct {
	conn    *nats.Conn
	written uint64
}

// NewNATSQueue connects to the NATS server at url.
func NewNATSQueue(url string) (*NATSQueue, error) {
	conn, err := nats.Connect(url,
		nats.Name("pixrelay-dlq"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NATSQueue{conn: conn}, nil
}

func (q *NATSQueue) Write(ctx context.Context, sink string, event *models.PaymentEvent, cause error) error {
	entry := FailedDelivery{
		Timestamp: time.Now().UTC(),
		Sink:      sink,
		Error:     cause.Error(),
		Event:     event,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal dlq entry: %w", err)
	}

	subject := "pixrelay.dlq." + sink
	if err := q.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish dlq entry: %w", err)
	}

	atomic.AddUint64(&q.written, 1)
	return nil
}

// Written reports how many entries this instance has published.
func (q *NATSQueue) Written() uint64 {
	return atomic.LoadUint64(&q.written)
}

func (q *NATSQueue) Close() {
	q.conn.Drain()
}
