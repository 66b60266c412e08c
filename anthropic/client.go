package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/i2y/parley/provider/sse"
)

const (
	defaultBaseURL   = "https://api.anthropic.com"
	apiVersion       = "2023-06-01"
	defaultMaxTokens = 4096
)

type client struct {
	endpoint   string
	header     http.Header
	httpClient *http.Client
}

func newClient(apiKey, baseURL string, httpClient *http.Client) *client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &client{
		endpoint: strings.TrimRight(baseURL, "/") + "/v1/messages",
		header: http.Header{
			"X-Api-Key":         {apiKey},
			"Anthropic-Version": {apiVersion},
		},
		httpClient: httpClient,
	}
}

// openStream posts a Messages request. The API rejects a missing
// max_tokens, so a default is filled in.
func (c *client) openStream(ctx context.Context, req *messagesRequest) (*sse.Reader, error) {
	req.Stream = true
	if req.MaxTokens == 0 {
		req.MaxTokens = defaultMaxTokens
	}
	return sse.Post(ctx, c.httpClient, sse.Request{
		URL:     c.endpoint,
		Header:  c.header,
		Payload: req,
		Decode:  decodeError,
	})
}

func decodeError(status int, body []byte) error {
	apiErr := &APIError{StatusCode: status, Message: strings.TrimSpace(string(body))}
	var env errorResponse
	if json.Unmarshal(body, &env) == nil && env.Error.Message != "" {
		apiErr.Type = env.Error.Type
		apiErr.Message = env.Error.Message
	}
	return apiErr
}

// APIError is a failed Messages call.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	switch {
	case e.StatusCode == 0:
		return "anthropic: " + e.Message
	case e.Type != "":
		return fmt.Sprintf("anthropic: status %d (%s): %s", e.StatusCode, e.Type, e.Message)
	default:
		return fmt.Sprintf("anthropic: status %d: %s", e.StatusCode, e.Message)
	}
}
