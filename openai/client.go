package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/i2y/parley/provider/sse"
)

const defaultBaseURL = "https://api.openai.com/v1"

type client struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

func newClient(apiKey, baseURL string, httpClient *http.Client) *client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &client{
		apiKey:     apiKey,
		endpoint:   strings.TrimRight(baseURL, "/") + "/chat/completions",
		httpClient: httpClient,
	}
}

// openStream posts req with streaming forced on.
func (c *client) openStream(ctx context.Context, req *chatCompletionRequest) (*sse.Reader, error) {
	streamed := *req
	streamed.Stream = true
	return sse.Post(ctx, c.httpClient, sse.Request{
		URL:     c.endpoint,
		Header:  http.Header{"Authorization": {"Bearer " + c.apiKey}},
		Payload: &streamed,
		Decode:  decodeError,
	})
}

func decodeError(status int, body []byte) error {
	apiErr := &APIError{StatusCode: status, Message: strings.TrimSpace(string(body))}
	var env errorResponse
	if json.Unmarshal(body, &env) == nil && env.Error.Message != "" {
		apiErr.Message = env.Error.Message
		apiErr.Type = env.Error.Type
		apiErr.Code = env.Error.Code
	}
	return apiErr
}

// APIError is a failed OpenAI call. StatusCode is zero when the call never
// reached the service.
type APIError struct {
	StatusCode int
	Message    string
	Type       string
	Code       string
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return "openai: " + e.Message
	}
	if e.Type == "" {
		return fmt.Sprintf("openai: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("openai: status %d (%s): %s", e.StatusCode, e.Type, e.Message)
}
