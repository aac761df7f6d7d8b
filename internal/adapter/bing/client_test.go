package bing

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlcrowe/geocode-reconciler/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient("test-key", 5*time.Second, slog.New(slog.DiscardHandler))
	c.baseURL = srv.URL
	return c
}

func TestFetchRequestsISO2CountryCodes(t *testing.T) {
	var query, key, incl string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query().Get("q")
		key = r.URL.Query().Get("key")
		incl = r.URL.Query().Get("incl")
		w.Write([]byte(`{"statusCode": 200, "resourceSets": []}`))
	})

	body, err := c.Fetch(context.Background(), "Gilbert, Maricopa, AZ", domain.EntityCity)
	require.NoError(t, err)

	assert.Equal(t, "Gilbert, Maricopa, AZ", query)
	assert.Equal(t, "test-key", key)
	assert.Equal(t, "ciso2", incl)
	assert.JSONEq(t, `{"statusCode": 200, "resourceSets": []}`, string(body))
}

func TestFetchMapsTransportStatuses(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.Fetch(context.Background(), "anywhere", domain.EntityCity)
	var perr *domain.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, domain.ProviderQuotaError, perr.Kind)
	assert.True(t, perr.Retryable())
}

func TestFetchConnectionFailureIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c := NewClient("test-key", time.Second, slog.New(slog.DiscardHandler))
	c.baseURL = srv.URL

	_, err := c.Fetch(context.Background(), "anywhere", domain.EntityCity)
	var perr *domain.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, domain.ProviderUnavailableError, perr.Kind)
}
