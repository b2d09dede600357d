package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCentrifugoClient_PublishesOnTenantChannel(t *testing.T) {
	tenantID := uuid.New()
	var got publishRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api", r.URL.Path)
		assert.Equal(t, "apikey secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewCentrifugoClient(srv.URL, "secret", zap.NewNop())
	err := c.PublishInvoiceEvent(context.Background(), tenantID, &InvoiceEvent{Type: InvoicePaid, Number: "FAC-2026-0001"})
	require.NoError(t, err)

	assert.Equal(t, "publish", got.Method)
	assert.Equal(t, "crm:tenant_"+tenantID.String(), got.Params.Channel)
}

func TestCentrifugoClient_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := NewCentrifugoClient(srv.URL, "bad", zap.NewNop()).
		PublishTreasuryEvent(context.Background(), uuid.New(), &TreasuryEvent{Type: TreasurySynced})
	assert.ErrorContains(t, err, "401")
}
