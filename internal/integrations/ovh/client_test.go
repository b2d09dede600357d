package ovh

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"crm-gin/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignatureFormat(t *testing.T) {
	sig := Signature("secret", "consumer", "GET", "https://eu.api.ovh.com/1.0/me", "", 1700000000)
	assert.Len(t, sig, 3+40)
	assert.Equal(t, "$1$", sig[:3])
	assert.Equal(t, sig, Signature("secret", "consumer", "GET", "https://eu.api.ovh.com/1.0/me", "", 1700000000))
	assert.NotEqual(t, sig, Signature("secret", "consumer", "GET", "https://eu.api.ovh.com/1.0/me", "", 1700000001))
}

func TestClient_SignsRequestsAndDecodesDomains(t *testing.T) {
	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "app", r.Header.Get("X-Ovh-Application"))
		assert.Equal(t, "ck", r.Header.Get("X-Ovh-Consumer"))
		want := Signature("as", "ck", "GET", srvURL+r.URL.Path, "", 1700000000)
		assert.Equal(t, want, r.Header.Get("X-Ovh-Signature"))

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/domain":
			_, _ = w.Write([]byte(`["exemple.fr","dupont.com"]`))
		case "/domain/exemple.fr/serviceInfos":
			_, _ = w.Write([]byte(`{"domain":"exemple.fr","expiration":"2027-02-01","renew":{"automatic":true}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"not found"}`))
		}
	}))
	defer srv.Close()
	srvURL = srv.URL

	c := New(models.OVHSettings{ApplicationKey: "app", ApplicationSecret: "as", ConsumerKey: "ck"}, srv.URL)
	c.now = func() time.Time { return time.Unix(1700000000, 0) }

	domains, err := c.ListDomains(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"exemple.fr", "dupont.com"}, domains)

	info, err := c.DomainInfo(context.Background(), "exemple.fr")
	require.NoError(t, err)
	assert.True(t, info.Renew.Automatic)
	require.NotNil(t, info.ExpiresAt())
	assert.Equal(t, 2027, info.ExpiresAt().Year())

	_, err = c.Me(context.Background())
	assert.ErrorContains(t, err, "not found")
}
