package sinks

import (
	"context"
	"net/http"
	"time"

	"github.com/pixrelay/pixrelay/internal/lifecycle"
	"github.com/pixrelay/pixrelay/internal/models"
)

const attributionTimeLayout = "2006-01-02 15:04:05"

// AttributionSink reports orders to the order-attribution service, keyed by
// the gateway transaction id. A Created webhook reports "waiting_payment";
// Confirmed reports "paid".
type AttributionSink struct {
	url        string
	apiToken   string
	httpClient *http.Client
}

// NewAttributionSink builds the attribution sink. Missing url or token
// leaves the sink disabled.
func NewAttributionSink(url, apiToken string, timeout time.Duration) *AttributionSink {
	return &AttributionSink{
		url:      url,
		apiToken: apiToken,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (s *AttributionSink) Name() string { return "attribution" }

func (s *AttributionSink) Enabled() bool { return s.url != "" && s.apiToken != "" }

func (s *AttributionSink) Handles(stage lifecycle.Stage) bool {
	return stage == lifecycle.StageCreated || stage == lifecycle.StageConfirmed
}

type attributionOrder struct {
	OrderID            string                `json:"orderId"`
	Platform           string                `json:"platform"`
	PaymentMethod      string                `json:"paymentMethod"`
	Status             string                `json:"status"`
	CreatedAt          string                `json:"createdAt"`
	ApprovedDate       string                `json:"approvedDate,omitempty"`
	Customer           attributionCustomer   `json:"customer"`
	Products           []attributionProduct  `json:"products"`
	TrackingParameters attributionTracking   `json:"trackingParameters"`
	Commission         attributionCommission `json:"commission"`
}

type attributionCustomer struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Document string `json:"document,omitempty"`
}

type attributionProduct struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Quantity     int    `json:"quantity"`
	PriceInCents int64  `json:"priceInCents"`
}

type attributionTracking struct {
	Src         string `json:"src"`
	Sck         string `json:"sck"`
	UTMSource   string `json:"utm_source"`
	UTMMedium   string `json:"utm_medium"`
	UTMCampaign string `json:"utm_campaign"`
	UTMTerm     string `json:"utm_term"`
	UTMContent  string `json:"utm_content"`
}

type attributionCommission struct {
	TotalPriceInCents     int64 `json:"totalPriceInCents"`
	GatewayFeeInCents     int64 `json:"gatewayFeeInCents"`
	UserCommissionInCents int64 `json:"userCommissionInCents"`
}

func (s *AttributionSink) Deliver(ctx context.Context, stage lifecycle.Stage, event *models.PaymentEvent) error {
	now := time.Now().UTC().Format(attributionTimeLayout)

	createdAt := event.CreatedAt
	if createdAt == "" {
		createdAt = now
	}

	order := attributionOrder{
		OrderID:       event.TransactionID,
		Platform:      "pixrelay",
		PaymentMethod: "pix",
		Status:        "waiting_payment",
		CreatedAt:     createdAt,
		Customer: attributionCustomer{
			Name:     event.Buyer.Name,
			Email:    event.Buyer.Email,
			Phone:    event.Buyer.Phone,
			Document: event.Buyer.Document,
		},
		Products: []attributionProduct{
			{
				ID:           orderProductID(event.Offer),
				Name:         orderProductName(event.Offer),
				Quantity:     1,
				PriceInCents: event.Amount,
			},
		},
		TrackingParameters: attributionTracking{
			Src:         event.Tracking.Src,
			Sck:         event.Tracking.Sck,
			UTMSource:   event.Tracking.UTM.Source,
			UTMMedium:   event.Tracking.UTM.Medium,
			UTMCampaign: event.Tracking.UTM.Campaign,
			UTMTerm:     event.Tracking.UTM.Term,
			UTMContent:  event.Tracking.UTM.Content,
		},
		Commission: attributionCommission{
			TotalPriceInCents:     event.Amount,
			GatewayFeeInCents:     0,
			UserCommissionInCents: event.Amount,
		},
	}

	if stage == lifecycle.StageConfirmed {
		order.Status = "paid"
		order.ApprovedDate = now
	}

	headers := map[string]string{"x-api-token": s.apiToken}
	return postJSON(ctx, s.httpClient, s.url, headers, order)
}

func orderProductID(offer models.Offer) string {
	if offer.ID != "" {
		return offer.ID
	}
	return "default-offer"
}

func orderProductName(offer models.Offer) string {
	if offer.Title != "" {
		return offer.Title
	}
	return "Pix checkout"
}
