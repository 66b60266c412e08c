package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const userAgent = "Parley/1.0 (+https://github.com/i2y/parley)"

// WebOption configures the web-backed tools.
type WebOption func(*webConfig)

type webConfig struct {
	client   *http.Client
	endpoint string
}

// WithHTTPClient sets the HTTP client used by web tools.
func WithHTTPClient(c *http.Client) WebOption {
	return func(cfg *webConfig) {
		cfg.client = c
	}
}

// WithEndpoint overrides the service base URL. Used to point a tool at a
// mirror or a test server.
func WithEndpoint(url string) WebOption {
	return func(cfg *webConfig) {
		cfg.endpoint = url
	}
}

func newWebConfig(defaultEndpoint string, opts []WebOption) webConfig {
	cfg := webConfig{
		client:   &http.Client{Timeout: 30 * time.Second},
		endpoint: defaultEndpoint,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// get performs a GET and returns at most limit bytes of the body.
func (c webConfig) get(ctx context.Context, url string, limit int64) ([]byte, *http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, resp, fmt.Errorf("failed to read response: %w", err)
	}
	return body, resp, nil
}

func (c webConfig) getJSON(ctx context.Context, url string, v any) error {
	body, resp, err := c.get(ctx, url, 1<<20)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
