package sinks

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pixrelay/pixrelay/internal/lifecycle"
	"github.com/pixrelay/pixrelay/internal/models"
)

// AdConversionSink reports confirmed purchases to the ad-platform conversion
// API. Identity fields are SHA-256 hashed before leaving the process, as the
// API requires.
type AdConversionSink struct {
	baseURL     string
	pixelID     string
	accessToken string
	httpClient  *http.Client
}

// NewAdConversionSink builds the conversion sink. Missing pixel id or access
// token leaves the sink disabled.
func NewAdConversionSink(baseURL, pixelID, accessToken string, timeout time.Duration) *AdConversionSink {
	return &AdConversionSink{
		baseURL:     baseURL,
		pixelID:     pixelID,
		accessToken: accessToken,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (s *AdConversionSink) Name() string { return "adconversion" }

func (s *AdConversionSink) Enabled() bool {
	return s.baseURL != "" && s.pixelID != "" && s.accessToken != ""
}

// Handles reports only confirmed payments; pending Pix codes are not
// conversions.
func (s *AdConversionSink) Handles(stage lifecycle.Stage) bool {
	return stage == lifecycle.StageConfirmed
}

type conversionEvent struct {
	EventName    string             `json:"event_name"`
	EventTime    int64              `json:"event_time"`
	ActionSource string             `json:"action_source"`
	UserData     conversionUserData `json:"user_data"`
	CustomData   conversionCustom   `json:"custom_data"`
}

type conversionUserData struct {
	Emails      []string `json:"em,omitempty"`
	Phones      []string `json:"ph,omitempty"`
	ExternalIDs []string `json:"external_id,omitempty"`
}

type conversionCustom struct {
	Currency    string  `json:"currency"`
	Value       float64 `json:"value"`
	UTMSource   string  `json:"utm_source,omitempty"`
	UTMMedium   string  `json:"utm_medium,omitempty"`
	UTMCampaign string  `json:"utm_campaign,omitempty"`
}

type conversionRequest struct {
	Data []conversionEvent `json:"data"`
}

func (s *AdConversionSink) Deliver(ctx context.Context, stage lifecycle.Stage, event *models.PaymentEvent) error {
	userData := conversionUserData{}
	if h := hashIdentity(event.Buyer.Email); h != "" {
		userData.Emails = []string{h}
	}
	if h := hashIdentity(event.Buyer.Phone); h != "" {
		userData.Phones = []string{h}
	}
	if h := hashIdentity(event.Buyer.Document); h != "" {
		userData.ExternalIDs = []string{h}
	}

	payload := conversionRequest{
		Data: []conversionEvent{
			{
				EventName:    "Purchase",
				EventTime:    time.Now().Unix(),
				ActionSource: "website",
				UserData:     userData,
				CustomData: conversionCustom{
					Currency:    "BRL",
					Value:       float64(event.Amount) / 100,
					UTMSource:   event.Tracking.UTM.Source,
					UTMMedium:   event.Tracking.UTM.Medium,
					UTMCampaign: event.Tracking.UTM.Campaign,
				},
			},
		},
	}

	url := fmt.Sprintf("%s/%s/events?access_token=%s", s.baseURL, s.pixelID, s.accessToken)
	return postJSON(ctx, s.httpClient, url, nil, payload)
}

// hashIdentity normalizes and SHA-256 hashes a PII value. Empty input hashes
// to the empty string so absent fields stay absent.
func hashIdentity(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
