package sinks

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixrelay/pixrelay/internal/lifecycle"
	"github.com/pixrelay/pixrelay/internal/models"
)

func TestHashIdentity(t *testing.T) {
	expected := sha256.Sum256([]byte("a@x.com"))

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"lowercases and trims", "  A@X.Com ", hex.EncodeToString(expected[:])},
		{"already normalized", "a@x.com", hex.EncodeToString(expected[:])},
		{"empty stays empty", "", ""},
		{"whitespace only stays empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, hashIdentity(tt.input))
		})
	}
}

func TestAdConversionSink_Deliver(t *testing.T) {
	var captured conversionRequest
	var path, query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		query = r.URL.RawQuery
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := NewAdConversionSink(srv.URL, "pixel-1", "secret", 5*time.Second)
	event := testEvent()
	event.Buyer = models.Buyer{Email: "a@x.com", Phone: "+55 11 99999-9999"}

	require.NoError(t, sink.Deliver(context.Background(), lifecycle.StageConfirmed, event))

	assert.Equal(t, "/pixel-1/events", path)
	assert.Contains(t, query, "access_token=secret")

	require.Len(t, captured.Data, 1)
	conversion := captured.Data[0]
	assert.Equal(t, "Purchase", conversion.EventName)
	assert.Equal(t, "website", conversion.ActionSource)
	assert.Equal(t, "BRL", conversion.CustomData.Currency)
	assert.Equal(t, 10.0, conversion.CustomData.Value)
	assert.Equal(t, "fb", conversion.CustomData.UTMSource)

	// PII leaves the process hashed, never in the clear.
	require.Len(t, conversion.UserData.Emails, 1)
	assert.Equal(t, hashIdentity("a@x.com"), conversion.UserData.Emails[0])
	assert.NotContains(t, conversion.UserData.Emails[0], "@")
	require.Len(t, conversion.UserData.Phones, 1)
	assert.Empty(t, conversion.UserData.ExternalIDs, "no document supplied")
}

func TestAdConversionSink_HandlesConfirmedOnly(t *testing.T) {
	sink := NewAdConversionSink("http://x", "pixel", "token", time.Second)
	assert.True(t, sink.Handles(lifecycle.StageConfirmed))
	assert.False(t, sink.Handles(lifecycle.StageCreated))
	assert.False(t, sink.Handles(lifecycle.StageUnhandled))
}
