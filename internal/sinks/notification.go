package sinks

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pixrelay/pixrelay/internal/lifecycle"
	"github.com/pixrelay/pixrelay/internal/models"
)

// NotificationSink pushes a short human-readable message to a webhook-style
// push channel for every handled lifecycle stage.
type NotificationSink struct {
	url        string
	httpClient *http.Client
}

// NewNotificationSink builds the push-notification sink. An empty url leaves
// the sink disabled.
func NewNotificationSink(url string, timeout time.Duration) *NotificationSink {
	return &NotificationSink{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (s *NotificationSink) Name() string { return "notification" }

func (s *NotificationSink) Enabled() bool { return s.url != "" }

func (s *NotificationSink) Handles(stage lifecycle.Stage) bool {
	return stage == lifecycle.StageCreated || stage == lifecycle.StageConfirmed
}

type pushMessage struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

func (s *NotificationSink) Deliver(ctx context.Context, stage lifecycle.Stage, event *models.PaymentEvent) error {
	amount := fmt.Sprintf("R$ %.2f", float64(event.Amount)/100)

	msg := pushMessage{}
	switch stage {
	case lifecycle.StageConfirmed:
		msg.Title = "Payment confirmed"
		msg.Text = fmt.Sprintf("%s paid %s via Pix", buyerLabel(event.Buyer), amount)
	default:
		msg.Title = "Pix created"
		msg.Text = fmt.Sprintf("%s generated a Pix of %s", buyerLabel(event.Buyer), amount)
	}

	return postJSON(ctx, s.httpClient, s.url, nil, msg)
}

func buyerLabel(buyer models.Buyer) string {
	if buyer.Name != "" {
		return buyer.Name
	}
	if buyer.Email != "" {
		return buyer.Email
	}
	return "A customer"
}
