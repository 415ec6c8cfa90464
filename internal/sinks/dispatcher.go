package sinks

import (
	"context"
	"sync"
	"time"

	"github.com/pixrelay/pixrelay/internal/dlq"
	"github.com/pixrelay/pixrelay/internal/lifecycle"
	"github.com/pixrelay/pixrelay/internal/logging"
	"github.com/pixrelay/pixrelay/internal/metrics"
	"github.com/pixrelay/pixrelay/internal/models"
)

// Dispatcher fans a classified payment event out to every configured sink.
// Sink calls run concurrently with a bounded per-sink timeout; one sink's
// failure never prevents the others from being attempted. There are no
// in-process retries: the gateway's own webhook retry policy is the only
// retry mechanism.
type Dispatcher struct {
	sinks       []Sink
	dlqWriter   dlq.Writer
	logger      *logging.Logger
	sinkTimeout time.Duration
}

// NewDispatcher wires the dispatcher. A nil dlqWriter disables dead-letter
// recording.
func NewDispatcher(sinkList []Sink, dlqWriter dlq.Writer, logger *logging.Logger, sinkTimeout time.Duration) *Dispatcher {
	if dlqWriter == nil {
		dlqWriter = dlq.Noop{}
	}
	return &Dispatcher{
		sinks:       sinkList,
		dlqWriter:   dlqWriter,
		logger:      logger,
		sinkTimeout: sinkTimeout,
	}
}

// Dispatch delivers the event to every enabled sink that handles the stage
// and waits for all of them. Disabled sinks are skipped silently.
func (d *Dispatcher) Dispatch(ctx context.Context, stage lifecycle.Stage, event *models.PaymentEvent) DispatchReport {
	report := DispatchReport{}
	if stage == lifecycle.StageUnhandled {
		return report
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	for _, sink := range d.sinks {
		if !sink.Enabled() || !sink.Handles(stage) {
			report.Skipped++
			continue
		}

		report.Attempted++
		wg.Add(1)

		go func(sink Sink) {
			defer wg.Done()

			sinkCtx, cancel := context.WithTimeout(ctx, d.sinkTimeout)
			defer cancel()

			start := time.Now()
			err := sink.Deliver(sinkCtx, stage, event)
			metrics.SinkDeliveryDuration.WithLabelValues(sink.Name()).Observe(time.Since(start).Seconds())

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				report.Failures = append(report.Failures, SinkFailure{Sink: sink.Name(), Err: err})
				metrics.SinkDeliveriesTotal.WithLabelValues(sink.Name(), "error").Inc()
				d.logger.WarnContext(ctx, "sink delivery failed",
					"sink", sink.Name(),
					"stage", string(stage),
					"transaction_id", event.TransactionID,
					"error", err.Error(),
				)
				if dlqErr := d.dlqWriter.Write(ctx, sink.Name(), event, err); dlqErr != nil {
					d.logger.ErrorContext(ctx, "dlq write failed",
						"sink", sink.Name(),
						"error", dlqErr.Error(),
					)
				}
				return
			}

			report.Delivered++
			metrics.SinkDeliveriesTotal.WithLabelValues(sink.Name(), "ok").Inc()
			d.logger.InfoContext(ctx, "sink delivered",
				"sink", sink.Name(),
				"stage", string(stage),
				"transaction_id", event.TransactionID,
			)
		}(sink)
	}

	wg.Wait()
	return report
}
