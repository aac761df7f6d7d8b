// Package bing is the HTTP client for the Bing Maps Locations API. Like
// the Google client it only fetches; the broker layer interprets.
package bing

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

const defaultBaseURL = "https://dev.virtualearth.net/REST/v1/Locations"

// Client fetches geocode payloads from Bing.
type Client struct {
	key        string
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a Bing geocoding client.
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
func (c *Client) Engine() string { return broker.EngineBing }

// Fetch runs one geocode query and returns the raw response body.
// incl=ciso2 asks Bing for the two-letter country code the broker prefers
// over the spelled-out region name.
func (c *Client) Fetch(ctx context.Context, query string, _ domain.EntityType) ([]byte, error) {
	params := url.Values{
		"q":    {query},
		"key":  {c.key},
		"incl": {"ciso2"},
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
