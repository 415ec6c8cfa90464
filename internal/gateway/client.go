package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pixrelay/pixrelay/internal/models"
)

// GatewayError carries a non-2xx or malformed upstream response so the /pix
// handler can mirror the gateway's status code to the original caller.
type GatewayError struct {
	StatusCode int
	Body       []byte
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway response status %d", e.StatusCode)
}

// Client submits payment requests to the Pix gateway.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New constructs a gateway client with a bounded request timeout.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// transactionRequest is the exact shape the gateway recognizes. Tracking is a
// local-only concept and is structurally absent here, so it can never leak
// upstream.
type transactionRequest struct {
	ExternalID    string       `json:"external_id"`
	PaymentMethod string       `json:"payment_method"`
	Amount        int64        `json:"amount"`
	Buyer         models.Buyer `json:"buyer"`
}

// SubmitPayment posts a transaction request and parses the gateway's
// descriptor. Non-2xx statuses and unparseable bodies surface as
// *GatewayError.
func (c *Client) SubmitPayment(ctx context.Context, req *models.PaymentRequest) (*models.TransactionResult, error) {
	payload := transactionRequest{
		ExternalID:    req.ExternalID,
		PaymentMethod: req.PaymentMethod,
		Amount:        req.Amount,
		Buyer:         req.Buyer,
	}

	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/transactions", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	request.Header.Set("Authorization", "Bearer "+c.apiKey)
	request.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &GatewayError{StatusCode: resp.StatusCode, Body: respBody}
	}

	var result models.TransactionResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &GatewayError{StatusCode: resp.StatusCode, Body: respBody}
	}

	result.StatusCode = resp.StatusCode
	result.Raw = respBody
	return &result, nil
}
