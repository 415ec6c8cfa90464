package models

import (
	"encoding/json"
	"time"
)

// UTM carries the UTM parameter group of a tracking record.
type UTM struct {
	Source   string `json:"source"`
	Medium   string `json:"medium"`
	Campaign string `json:"campaign"`
	ID       string `json:"id"`
	Term     string `json:"term"`
	Content  string `json:"content"`
}

// TrackingRecord is the attribution snapshot captured at checkout time.
// After normalization every field is populated; a later webhook replaces the
// record, it never mutates one in place.
type TrackingRecord struct {
	Ref string `json:"ref"`
	Src string `json:"src"`
	Sck string `json:"sck"`
	UTM UTM    `json:"utm"`
}

// Buyer is the customer snapshot attached to a payment attempt.
type Buyer struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Document string `json:"document,omitempty"`
}

// Offer describes the product attached to a transaction.
type Offer struct {
	ID    string `json:"id,omitempty"`
	Title string `json:"title,omitempty"`
	Price int64  `json:"price,omitempty"`
}

// CorrelationEntry is one row of the correlation store: the bridge between a
// client-chosen external id and the gateway-issued transaction id.
type CorrelationEntry struct {
	ExternalID    string         `json:"external_id"`
	TransactionID string         `json:"transaction_id,omitempty"`
	Tracking      TrackingRecord `json:"tracking"`
	Status        string         `json:"status"`
	Buyer         Buyer          `json:"buyer"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// PaymentRequest is the body of POST /pix.
type PaymentRequest struct {
	ExternalID    string          `json:"external_id"`
	PaymentMethod string          `json:"payment_method"`
	Amount        int64           `json:"amount"`
	Buyer         Buyer           `json:"buyer"`
	Tracking      *TrackingRecord `json:"tracking,omitempty"`
}

// TransactionResult is the gateway's transaction descriptor.
type TransactionResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`

	// StatusCode and Raw preserve the upstream response so /pix can mirror it.
	StatusCode int             `json:"-"`
	Raw        json.RawMessage `json:"-"`
}

// WebhookData is the payload section of a gateway webhook.
type WebhookData struct {
	ID          string `json:"id"`
	ExternalID  string `json:"external_id,omitempty"`
	Status      string `json:"status"`
	TotalAmount int64  `json:"total_amount"`
	Buyer       *Buyer `json:"buyer,omitempty"`
	Offer       *Offer `json:"offer,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// WebhookPayload is the body of POST /webhook.
type WebhookPayload struct {
	Event string       `json:"event"`
	Data  *WebhookData `json:"data"`
}

// PaymentEvent is the transient union of a gateway webhook and its reconciled
// tracking, built per request and handed to the sink dispatcher. It is never
// persisted.
type PaymentEvent struct {
	EventType     string         `json:"event_type"`
	Status        string         `json:"status"`
	TransactionID string         `json:"transaction_id"`
	Amount        int64          `json:"amount"`
	Buyer         Buyer          `json:"buyer"`
	Offer         Offer          `json:"offer"`
	Tracking      TrackingRecord `json:"tracking"`
	CreatedAt     string         `json:"created_at,omitempty"`
}
