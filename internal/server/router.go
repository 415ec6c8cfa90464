package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pixrelay/pixrelay/internal/handlers"
	"github.com/pixrelay/pixrelay/internal/middleware"
)

// NewRouter constructs a ServeMux with the relay routes registered.
func NewRouter(h *handlers.PixHandler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/pix", h.CreatePix)
	mux.HandleFunc("/webhook", h.Webhook)

	// Health endpoints
	mux.HandleFunc("/healthz", h.Health)
	mux.HandleFunc("/readyz", h.Ready)

	// Prometheus metrics
	mux.Handle("/metrics", promhttp.Handler())

	return middleware.RequestID(mux)
}
