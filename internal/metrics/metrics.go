package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Payment creation metrics
	PaymentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pixrelay_payments_total",
			Help: "Total number of payment requests submitted to the gateway",
		},
		[]string{"status"},
	)

	GatewayDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pixrelay_gateway_request_duration_seconds",
			Help:    "Duration of gateway transaction requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Webhook metrics
	WebhooksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pixrelay_webhooks_total",
			Help: "Total number of gateway webhooks received",
		},
		[]string{"stage"},
	)

	TrackingLookupMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pixrelay_tracking_lookup_misses_total",
			Help: "Webhooks whose tracking could not be resolved by either key",
		},
	)

	DuplicateDispatches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pixrelay_duplicate_dispatches_total",
			Help: "Webhook deliveries suppressed by the deduplication ledger",
		},
	)

	// Storage metrics
	StorageErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pixrelay_storage_errors_total",
			Help: "Total number of correlation store errors",
		},
	)

	// Sink dispatch metrics
	SinkDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pixrelay_sink_deliveries_total",
			Help: "Sink delivery attempts by sink and outcome",
		},
		[]string{"sink", "status"},
	)

	SinkDeliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pixrelay_sink_delivery_duration_seconds",
			Help:    "Duration of sink deliveries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"sink"},
	)
)
