package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/pixrelay/pixrelay/internal/logging"
	"github.com/pixrelay/pixrelay/internal/models"
	"github.com/pixrelay/pixrelay/internal/service"
)

// PixHandler exposes the relay's two endpoints: payment creation and the
// gateway webhook.
type PixHandler struct {
	service *service.PaymentService
	logger  *logging.Logger
}

func NewPixHandler(svc *service.PaymentService, logger *logging.Logger) *PixHandler {
	return &PixHandler{
		service: svc,
		logger:  logger,
	}
}

// CreatePix accepts the checkout's payment request, forwards it to the
// gateway, and mirrors the gateway's status code and body back to the
// caller.
func (h *PixHandler) CreatePix(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.sendError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req models.PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	defer r.Body.Close()

	if req.ExternalID == "" || req.PaymentMethod == "" || req.Amount <= 0 {
		h.sendError(w, http.StatusBadRequest, "external_id, payment_method and a positive amount are required")
		return
	}

	result, err := h.service.CreatePayment(r.Context(), &req)
	if err != nil {
		if gwErr, ok := service.IsGatewayError(err); ok {
			// Mirror the upstream status so the client can retry or display
			// the gateway's own error.
			h.logger.WarnContext(r.Context(), "gateway rejected payment",
				"external_id", req.ExternalID,
				"status", gwErr.StatusCode,
			)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(gwErr.StatusCode)
			w.Write(gwErr.Body)
			return
		}

		h.logger.ErrorContext(r.Context(), "gateway unreachable",
			"external_id", req.ExternalID,
			"error", err.Error(),
		)
		h.sendError(w, http.StatusInternalServerError, "failed to reach payment gateway")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(result.StatusCode)
	w.Write(result.Raw)
}

// Webhook receives gateway lifecycle notifications. Once the payload is
// well-formed it always acknowledges with 200, even when individual sinks
// fail, so the gateway does not retry and storm the sinks.
func (h *PixHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.sendError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var payload models.WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	defer r.Body.Close()

	if payload.Data == nil || payload.Data.ID == "" {
		h.sendError(w, http.StatusBadRequest, "webhook data is required")
		return
	}

	stage, report := h.service.HandleWebhook(r.Context(), &payload)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"received":  true,
		"stage":     string(stage),
		"attempted": report.Attempted,
		"delivered": report.Delivered,
	})
}

func (h *PixHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
	})
}

func (h *PixHandler) Ready(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ready",
	})
}

func (h *PixHandler) sendError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": msg,
	})
}
