package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixrelay/pixrelay/internal/models"
)

func paymentRequest() *models.PaymentRequest {
	return &models.PaymentRequest{
		ExternalID:    "ext-1",
		PaymentMethod: "pix",
		Amount:        1000,
		Buyer:         models.Buyer{Name: "Ana", Email: "a@x.com"},
		Tracking: &models.TrackingRecord{
			UTM: models.UTM{Source: "fb"},
		},
	}
}

func TestSubmitPayment_Success(t *testing.T) {
	var captured map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/transactions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"tx-1","status":"pending"}`))
	}))
	defer srv.Close()

	client := New(srv.URL, "test-key", 5*time.Second)
	result, err := client.SubmitPayment(context.Background(), paymentRequest())
	require.NoError(t, err)

	assert.Equal(t, "tx-1", result.ID)
	assert.Equal(t, "pending", result.Status)
	assert.Equal(t, http.StatusCreated, result.StatusCode)
	assert.JSONEq(t, `{"id":"tx-1","status":"pending"}`, string(result.Raw))
}

func TestSubmitPayment_TrackingNeverForwarded(t *testing.T) {
	var captured map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(`{"id":"tx-1","status":"pending"}`))
	}))
	defer srv.Close()

	client := New(srv.URL, "test-key", 5*time.Second)
	_, err := client.SubmitPayment(context.Background(), paymentRequest())
	require.NoError(t, err)

	assert.NotContains(t, captured, "tracking")
	assert.Equal(t, "ext-1", captured["external_id"])
	assert.Equal(t, "pix", captured["payment_method"])
}

func TestSubmitPayment_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error":"invalid document"}`))
	}))
	defer srv.Close()

	client := New(srv.URL, "test-key", 5*time.Second)
	_, err := client.SubmitPayment(context.Background(), paymentRequest())
	require.Error(t, err)

	gwErr, ok := err.(*GatewayError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnprocessableEntity, gwErr.StatusCode)
	assert.JSONEq(t, `{"error":"invalid document"}`, string(gwErr.Body))
}

func TestSubmitPayment_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>not json</html>`))
	}))
	defer srv.Close()

	client := New(srv.URL, "test-key", 5*time.Second)
	_, err := client.SubmitPayment(context.Background(), paymentRequest())
	require.Error(t, err)

	gwErr, ok := err.(*GatewayError)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, gwErr.StatusCode)
}

func TestSubmitPayment_Unreachable(t *testing.T) {
	client := New("http://127.0.0.1:1", "test-key", 500*time.Millisecond)
	_, err := client.SubmitPayment(context.Background(), paymentRequest())
	require.Error(t, err)

	_, ok := err.(*GatewayError)
	assert.False(t, ok, "transport errors are not gateway responses")
}
