// Package openai streams chat completions from the OpenAI API.
package openai

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/i2y/parley/provider"
)

// Name is the registry identifier.
const Name = "openai"

var _ provider.Adapter = (*Adapter)(nil)

// Register adds the OpenAI factory to r.
func Register(r *provider.Registry) {
	r.Register(Name, func(s provider.Settings) (provider.Adapter, error) {
		return New(WithAPIKey(s.APIKey), WithBaseURL(s.BaseURL), WithHTTPClient(s.HTTPClient))
	})
}

// Adapter implements provider.Adapter for OpenAI-compatible APIs.
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

// New creates an adapter. The key falls back to OPENAI_API_KEY.
func New(opts ...Option) (*Adapter, error) {
	cfg := &adapterConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.apiKey == "" {
		cfg.apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.apiKey == "" {
		return nil, &APIError{
			Message: "OpenAI API key required: set OPENAI_API_KEY or use WithAPIKey",
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

// StartStream opens a streaming chat completion.
func (a *Adapter) StartStream(ctx context.Context, req *provider.Request) (provider.FragmentStream, error) {
	reader, err := a.client.openStream(ctx, buildRequest(req))
	if err != nil {
		return nil, err
	}
	return newFragmentStream(reader), nil
}

// ProcessChunk normalizes a *Fragment.
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

// HandleError maps transport and API errors to the shared taxonomy.
func (a *Adapter) HandleError(err error) *provider.Error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		e := provider.FromStatus(Name, apiErr.StatusCode, apiErr.Message, apiErr.Code, err)
		if apiErr.Code == "content_filter" || apiErr.Code == "content_policy_violation" {
			e.Type = provider.ErrorContentBlocked
			e.Retryable = false
		}
		return e
	}
	return provider.Classify(Name, err)
}

func buildRequest(req *provider.Request) *chatCompletionRequest {
	apiReq := &chatCompletionRequest{
		Model:       req.Model,
		Messages:    make([]message, 0, len(req.Messages)),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		TopP:        req.TopP,
		Seed:        req.Seed,
		Stop:        req.StopSequences,
	}

	for _, msg := range req.Messages {
		apiMsg := message{
			Role:       string(msg.Role),
			Content:    msg.Content,
			ToolCallID: msg.ToolID,
		}
		for _, tc := range msg.ToolCalls {
			apiMsg.ToolCalls = append(apiMsg.ToolCalls, toolCall{
				ID:   tc.ID,
				Type: "function",
				Function: functionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		apiReq.Messages = append(apiReq.Messages, apiMsg)
	}

	for _, tool := range req.Tools {
		apiReq.Tools = append(apiReq.Tools, toolDef{
			Type: "function",
			Function: functionDef{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}
	if len(apiReq.Tools) > 0 {
		// One call per turn; the caller restarts the stream after each.
		parallel := false
		apiReq.ParallelToolCalls = &parallel
	}

	return apiReq
}
