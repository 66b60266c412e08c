// Package anthropic streams responses from the Anthropic Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"github.com/i2y/parley/provider"
)

// Name is the registry identifier.
const Name = "anthropic"

var _ provider.Adapter = (*Adapter)(nil)

// Register adds the Anthropic factory to r.
func Register(r *provider.Registry) {
	r.Register(Name, func(s provider.Settings) (provider.Adapter, error) {
		return New(WithAPIKey(s.APIKey), WithBaseURL(s.BaseURL), WithHTTPClient(s.HTTPClient))
	})
}

// Adapter implements provider.Adapter for Claude models.
type Adapter struct {
	client *client
}

// Option configures the adapter.
type Option func(*adapterConfig)

type adapterConfig struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *adapterConfig) {
		c.apiKey = key
	}
}

// WithBaseURL sets a custom base URL.
func WithBaseURL(url string) Option {
	return func(c *adapterConfig) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *adapterConfig) {
		c.httpClient = client
	}
}

// New creates an adapter. The key falls back to ANTHROPIC_API_KEY.
func New(opts ...Option) (*Adapter, error) {
	cfg := &adapterConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.apiKey == "" {
		cfg.apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if cfg.apiKey == "" {
		return nil, &APIError{
			Message: "Anthropic API key required: set ANTHROPIC_API_KEY or use WithAPIKey",
		}
	}
	return &Adapter{
		client: newClient(cfg.apiKey, cfg.baseURL, cfg.httpClient),
	}, nil
}

func (a *Adapter) Name() string {
	return Name
}

func (a *Adapter) Capabilities() provider.Capabilities {
	return provider.Capabilities{Streaming: true, FunctionCalling: true, SystemPrompt: true}
}

func (a *Adapter) StartStream(ctx context.Context, req *provider.Request) (provider.FragmentStream, error) {
	reader, err := a.client.openStream(ctx, buildRequest(req))
	if err != nil {
		return nil, err
	}
	return &fragmentStream{reader: reader}, nil
}

func (a *Adapter) ProcessChunk(raw provider.Fragment) provider.ProcessedChunk {
	f, ok := raw.(*Fragment)
	if !ok || f == nil {
		return provider.SkipChunk()
	}
	switch {
	case f.Err != nil:
		return provider.ErrorChunk(f.Err)
	case f.Call != nil:
		return provider.CallChunk(f.Call)
	case f.Done:
		return provider.DoneChunk()
	case f.Text != "":
		return provider.TextChunk(f.Text)
	default:
		return provider.SkipChunk()
	}
}

func (a *Adapter) ExtractFunctionCall(raw provider.Fragment) *provider.FunctionCall {
	if f, ok := raw.(*Fragment); ok && f != nil {
		return f.Call
	}
	return nil
}

func (a *Adapter) HandleError(err error) *provider.Error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		e := provider.FromStatus(Name, apiErr.StatusCode, apiErr.Message, apiErr.Type, err)
		if apiErr.Type == "overloaded_error" {
			e.Retryable = true
		}
		return e
	}
	return provider.Classify(Name, err)
}

// streamError maps an in-band error event.
func streamError(e *apiError) *provider.Error {
	pe := &provider.Error{
		Type:     provider.ErrorAPI,
		Provider: Name,
		Message:  e.Message,
		Code:     e.Type,
	}
	switch e.Type {
	case "rate_limit_error":
		pe.Type = provider.ErrorRateLimit
		pe.Retryable = true
	case "overloaded_error", "api_error":
		pe.Retryable = true
	case "timeout_error":
		pe.Type = provider.ErrorTimeout
		pe.Retryable = true
	}
	return pe
}

func buildRequest(req *provider.Request) *messagesRequest {
	apiReq := &messagesRequest{
		Model:         req.Model,
		Messages:      make([]message, 0, len(req.Messages)),
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		TopK:          req.TopK,
		StopSequences: req.StopSequences,
	}
	if req.MaxTokens != nil {
		apiReq.MaxTokens = *req.MaxTokens
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case provider.RoleSystem:
			if apiReq.System != "" {
				apiReq.System += "\n\n"
			}
			apiReq.System += msg.Content
			continue
		case provider.RoleTool:
			apiReq.Messages = append(apiReq.Messages, message{
				Role: "user",
				Content: []contentPart{{
					Type:      "tool_result",
					ToolUseID: msg.ToolID,
					Content:   msg.Content,
				}},
			})
			continue
		}

		apiMsg := message{Role: string(msg.Role)}
		if msg.Content != "" {
			apiMsg.Content = append(apiMsg.Content, contentPart{Type: "text", Text: msg.Content})
		}
		for _, tc := range msg.ToolCalls {
			var input any = map[string]any{}
			if tc.Arguments != "" {
				if err := json.Unmarshal([]byte(tc.Arguments), &input); err != nil {
					input = map[string]any{}
				}
			}
			apiMsg.Content = append(apiMsg.Content, contentPart{
				Type:  "tool_use",
				ID:    tc.ID,
				Name:  tc.Name,
				Input: input,
			})
		}
		if len(apiMsg.Content) > 0 {
			apiReq.Messages = append(apiReq.Messages, apiMsg)
		}
	}

	for _, tool := range req.Tools {
		schema := tool.Parameters
		if len(schema) == 0 {
			schema = json.RawMessage(`{"type":"object"}`)
		}
		apiReq.Tools = append(apiReq.Tools, toolDef{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: schema,
		})
	}
	if len(apiReq.Tools) > 0 {
		apiReq.ToolChoice = &toolChoice{Type: "auto", DisableParallelToolUse: true}
	}

	return apiReq
}
