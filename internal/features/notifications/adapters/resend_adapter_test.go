package adapters

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront-orders/internal/core/config"
	"storefront-orders/internal/core/httpclient"
	"storefront-orders/internal/features/notifications/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResendTestAdapter(t *testing.T, handler http.HandlerFunc) *ResendAdapter {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	adapter, err := NewResendAdapter(config.EmailConfig{
		ResendAPIKey: "re_test",
		ResendAPIURL: ts.URL,
		From:         "orders@shop.test",
	}, httpclient.NewClient("resend", 5*time.Second))
	require.NoError(t, err)
	return adapter
}

func TestResendAdapter_Send(t *testing.T) {
	var got map[string]any
	adapter := newResendTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "Bearer re_test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"49a3999c-0ce1-4ea6-ab68-afcd6dc2e794"}`))
	})

	id, err := adapter.Send(context.Background(), domain.Email{
		To:      "jane@example.com",
		Subject: "Payment confirmed",
		HTML:    "<p>Thanks</p>",
	})
	require.NoError(t, err)

	assert.Equal(t, "49a3999c-0ce1-4ea6-ab68-afcd6dc2e794", id)
	assert.Equal(t, "orders@shop.test", got["from"])
	assert.Equal(t, []any{"jane@example.com"}, got["to"])
	assert.Equal(t, "Payment confirmed", got["subject"])
	assert.Equal(t, "<p>Thanks</p>", got["html"])
}

func TestResendAdapter_ProviderError(t *testing.T) {
	adapter := newResendTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"statusCode":429,"name":"rate_limit_exceeded","message":"Too many requests"}`))
	})

	_, err := adapter.Send(context.Background(), domain.Email{To: "jane@example.com", Subject: "s", HTML: "h"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resend send failed")
}

func TestNewResendAdapter_InvalidURL(t *testing.T) {
	_, err := NewResendAdapter(config.EmailConfig{ResendAPIURL: "://bad"}, http.DefaultClient)
	assert.Error(t, err)
}
