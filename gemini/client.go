package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/i2y/parley/provider/sse"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com"
	apiVersion     = "v1beta"
)

type client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func newClient(apiKey, baseURL string, httpClient *http.Client) *client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// openStream calls streamGenerateContent with alt=sse so the response is
// framed as server-sent events rather than one JSON array.
func (c *client) openStream(ctx context.Context, model string, req *generateContentRequest) (*sse.Reader, error) {
	endpoint := fmt.Sprintf("%s/%s/models/%s:streamGenerateContent?alt=sse",
		c.baseURL, apiVersion, url.PathEscape(model))
	return sse.Post(ctx, c.httpClient, sse.Request{
		URL:     endpoint,
		Header:  http.Header{"X-Goog-Api-Key": {c.apiKey}},
		Payload: req,
		Decode:  decodeError,
	})
}

func decodeError(status int, body []byte) error {
	apiErr := &APIError{StatusCode: status, Message: strings.TrimSpace(string(body))}
	var env errorResponse
	if json.Unmarshal(body, &env) == nil && env.Error.Message != "" {
		apiErr.Code = env.Error.Code
		apiErr.Status = env.Error.Status
		apiErr.Message = env.Error.Message
	}
	return apiErr
}

// APIError is a failed Gemini call. Status is the canonical gRPC status
// name the API reports alongside the HTTP code.
type APIError struct {
	StatusCode int
	Code       int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	switch {
	case e.StatusCode == 0:
		return "gemini: " + e.Message
	case e.Status != "":
		return fmt.Sprintf("gemini: status %d (%s): %s", e.StatusCode, e.Status, e.Message)
	default:
		return fmt.Sprintf("gemini: status %d: %s", e.StatusCode, e.Message)
	}
}
