package gocardless

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, tokenCalls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/token/new/" {
			atomic.AddInt32(tokenCalls, 1)
			_, _ = w.Write([]byte(`{"access":"tok","access_expires":86400}`))
			return
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"summary":"Invalid token"}`))
			return
		}
		switch r.URL.Path {
		case "/accounts/acc-1/transactions/":
			assert.Equal(t, "2026-10-01", r.URL.Query().Get("date_from"))
			_, _ = w.Write([]byte(`{"transactions":{"booked":[
				{"transactionId":"t1","bookingDate":"2026-10-02","transactionAmount":{"amount":"960.00","currency":"EUR"},"debtorName":"DUPONT SARL","remittanceInformationUnstructured":"FAC-2026-0001"},
				{"internalTransactionId":"i2","bookingDate":"2026-10-03","transactionAmount":{"amount":"-42.10","currency":"EUR"},"creditorName":"OVH"}
			],"pending":[]}}`))
		case "/accounts/acc-1/balances/":
			_, _ = w.Write([]byte(`{"balances":[{"balanceAmount":{"amount":"10.00","currency":"EUR"},"balanceType":"interimAvailable"},{"balanceAmount":{"amount":"1530.25","currency":"EUR"},"balanceType":"closingBooked"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"summary":"Not found"}`))
		}
	}))
}

func TestClient_TransactionsAndBalance(t *testing.T) {
	var calls int32
	srv := newServer(t, &calls)
	defer srv.Close()

	c := New(srv.URL)
	creds := Credentials{SecretID: "id", SecretKey: "key"}
	ctx := context.Background()

	txs, err := c.BookedTransactions(ctx, creds, "acc-1", time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "t1", txs[0].ExternalID())
	assert.Equal(t, "DUPONT SARL", txs[0].Counterparty())
	assert.Equal(t, "i2", txs[1].ExternalID())
	assert.Equal(t, "OVH", txs[1].Counterparty())
	assert.Equal(t, 3, txs[1].BookedAt().Day())

	bal, err := c.Balance(ctx, creds, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, "1530.25", bal.BalanceAmount.Decimal().StringFixed(2))

	// token fetched once and reused
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_ErrorSummary(t *testing.T) {
	var calls int32
	srv := newServer(t, &calls)
	defer srv.Close()

	_, err := New(srv.URL).GetRequisition(context.Background(), Credentials{SecretID: "id"}, "missing")
	assert.ErrorContains(t, err, "Not found")
}
