package service

import (
	"context"
	"errors"
	"time"

	"github.com/pixrelay/pixrelay/internal/dedup"
	"github.com/pixrelay/pixrelay/internal/gateway"
	"github.com/pixrelay/pixrelay/internal/lifecycle"
	"github.com/pixrelay/pixrelay/internal/logging"
	"github.com/pixrelay/pixrelay/internal/metrics"
	"github.com/pixrelay/pixrelay/internal/models"
	"github.com/pixrelay/pixrelay/internal/sinks"
	"github.com/pixrelay/pixrelay/internal/store"
	"github.com/pixrelay/pixrelay/internal/tracking"
)

// Gateway submits payment requests upstream.
type Gateway interface {
	SubmitPayment(ctx context.Context, req *models.PaymentRequest) (*models.TransactionResult, error)
}

// Dispatcher fans a classified event out to the configured sinks.
type Dispatcher interface {
	Dispatch(ctx context.Context, stage lifecycle.Stage, event *models.PaymentEvent) sinks.DispatchReport
}

// PaymentService orchestrates the two flows of the relay: payment creation
// (normalize, persist, forward to gateway) and webhook handling (reconcile
// tracking, classify, fan out).
type PaymentService struct {
	store      store.Store
	gateway    Gateway
	dispatcher Dispatcher
	ledger     dedup.Ledger
	logger     *logging.Logger
}

// NewPaymentService wires the service. A nil ledger disables webhook
// deduplication.
func NewPaymentService(st store.Store, gw Gateway, dispatcher Dispatcher, ledger dedup.Ledger, logger *logging.Logger) *PaymentService {
	return &PaymentService{
		store:      st,
		gateway:    gw,
		dispatcher: dispatcher,
		ledger:     ledger,
		logger:     logger,
	}
}

// CreatePayment normalizes and stores the checkout tracking, then submits
// the payment to the gateway and attaches the issued transaction id. A
// storage failure is logged and does not block the payment: the request
// proceeds without durability.
func (s *PaymentService) CreatePayment(ctx context.Context, req *models.PaymentRequest) (*models.TransactionResult, error) {
	normalized := tracking.Normalize(req.Tracking)

	if err := s.store.Put(ctx, req.ExternalID, normalized, "", req.Buyer); err != nil {
		metrics.StorageErrors.Inc()
		s.logger.ErrorContext(ctx, "correlation store write failed",
			"external_id", req.ExternalID,
			"error", err.Error(),
		)
	}

	start := time.Now()
	result, err := s.gateway.SubmitPayment(ctx, req)
	metrics.GatewayDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.PaymentsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.PaymentsTotal.WithLabelValues("ok").Inc()

	if result.ID != "" {
		if err := s.store.AttachTransactionID(ctx, req.ExternalID, result.ID); err != nil {
			metrics.StorageErrors.Inc()
			s.logger.ErrorContext(ctx, "transaction id attach failed",
				"external_id", req.ExternalID,
				"transaction_id", result.ID,
				"error", err.Error(),
			)
		}
	}

	s.logger.InfoContext(ctx, "payment created",
		"external_id", req.ExternalID,
		"transaction_id", result.ID,
		"status", result.Status,
	)
	return result, nil
}

// HandleWebhook reconciles the webhook with stored tracking, classifies it,
// and fans the enriched event out. It never fails once the payload is
// well-formed: every internal error degrades to a log line so the gateway
// does not retry and flood the sinks with duplicates.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload *models.WebhookPayload) (lifecycle.Stage, sinks.DispatchReport) {
	data := payload.Data

	record, buyer := s.reconcile(ctx, data)

	stage := lifecycle.Classify(payload.Event, data.Status)
	metrics.WebhooksTotal.WithLabelValues(string(stage)).Inc()

	if stage == lifecycle.StageUnhandled {
		s.logger.InfoContext(ctx, "webhook not handled",
			"event", payload.Event,
			"status", data.Status,
			"transaction_id", data.ID,
		)
		return stage, sinks.DispatchReport{}
	}

	if s.ledger != nil {
		first, err := s.ledger.MarkDispatched(ctx, data.ID, string(stage))
		if err != nil {
			// Dedup is advisory; on ledger failure the dispatch proceeds.
			s.logger.WarnContext(ctx, "dedup ledger unavailable",
				"transaction_id", data.ID,
				"error", err.Error(),
			)
		} else if !first {
			metrics.DuplicateDispatches.Inc()
			s.logger.InfoContext(ctx, "duplicate webhook delivery suppressed",
				"transaction_id", data.ID,
				"stage", string(stage),
			)
			return stage, sinks.DispatchReport{}
		}
	}

	event := &models.PaymentEvent{
		EventType:     payload.Event,
		Status:        data.Status,
		TransactionID: data.ID,
		Amount:        data.TotalAmount,
		Buyer:         buyer,
		Tracking:      record,
		CreatedAt:     data.CreatedAt,
	}
	if data.Offer != nil {
		event.Offer = *data.Offer
	}

	report := s.dispatcher.Dispatch(ctx, stage, event)
	s.logger.InfoContext(ctx, "webhook dispatched",
		"transaction_id", data.ID,
		"stage", string(stage),
		"attempted", report.Attempted,
		"delivered", report.Delivered,
		"failed", len(report.Failures),
	)
	return stage, report
}

// reconcile resolves the stored entry via the two-level lookup, merges the
// webhook's buyer snapshot over it, and re-sanitizes the tracking record. A
// miss on both keys yields a fully-defaulted record; that is a warning, not
// an error.
func (s *PaymentService) reconcile(ctx context.Context, data *models.WebhookData) (models.TrackingRecord, models.Buyer) {
	entry, err := s.store.Lookup(ctx, data.ExternalID, data.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			metrics.TrackingLookupMisses.Inc()
			s.logger.WarnContext(ctx, "tracking not found, using defaults",
				"external_id", data.ExternalID,
				"transaction_id", data.ID,
			)
		} else {
			metrics.StorageErrors.Inc()
			s.logger.ErrorContext(ctx, "correlation store lookup failed",
				"transaction_id", data.ID,
				"error", err.Error(),
			)
		}

		buyer := models.Buyer{}
		if data.Buyer != nil {
			buyer = *data.Buyer
		}
		return tracking.Normalize(nil), buyer
	}

	if err := s.store.UpdateStatus(ctx, entry.ExternalID, data.Status, data.Buyer); err != nil {
		metrics.StorageErrors.Inc()
		s.logger.ErrorContext(ctx, "status update failed",
			"external_id", entry.ExternalID,
			"error", err.Error(),
		)
	}

	return tracking.Normalize(&entry.Tracking), overlayBuyer(entry.Buyer, data.Buyer)
}

// IsGatewayError reports whether err is an upstream gateway response that
// the /pix handler should mirror.
func IsGatewayError(err error) (*gateway.GatewayError, bool) {
	var gwErr *gateway.GatewayError
	if errors.As(err, &gwErr) {
		return gwErr, true
	}
	return nil, false
}

func overlayBuyer(base models.Buyer, update *models.Buyer) models.Buyer {
	if update == nil {
		return base
	}
	if update.Name != "" {
		base.Name = update.Name
	}
	if update.Email != "" {
		base.Email = update.Email
	}
	if update.Phone != "" {
		base.Phone = update.Phone
	}
	if update.Document != "" {
		base.Document = update.Document
	}
	return base
}
