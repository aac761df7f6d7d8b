// Package google is the HTTP client for the Google Geocoding API. It
// fetches raw payloads and classifies transport-level failures; all JSON
// interpretation happens in the broker layer so stored payloads can be
// re-parsed offline.
package google

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/mlcrowe/geocode-reconciler/internal/broker"
	"github.com/mlcrowe/geocode-reconciler/internal/domain"
)

const defaultBaseURL = "https://maps.googleapis.com/maps/api/geocode/json"

// Client fetches geocode payloads from Google.
type Client struct {
	key        string
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a Google geocoding client.
func NewClient(key string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		key: key,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: defaultBaseURL,
		logger:  logger,
	}
}

// Engine identifies payloads fetched by this client.
func (c *Client) Engine() string { return broker.EngineGoogle }

// Fetch runs one geocode query and returns the raw response body.
// Non-200 transport statuses map onto the provider error taxonomy; in-body
// statuses (OVER_QUERY_LIMIT and friends) are left for the broker.
func (c *Client) Fetch(ctx context.Context, query string, _ domain.EntityType) ([]byte, error) {
	params := url.Values{
		"address": {query},
		"key":     {c.key},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.ProviderError{Engine: c.Engine(), Kind: domain.ProviderUnavailableError, Detail: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, domain.ProviderErrorFromStatus(c.Engine(), resp.StatusCode, truncate(body, 200))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
