// Package gemini streams responses from the Gemini generateContent API.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"github.com/i2y/parley/provider"
)

// Name is the registry identifier.
const Name = "gemini"

var _ provider.Adapter = (*Adapter)(nil)

// Register adds the Gemini factory to r.
func Register(r *provider.Registry) {
	r.Register(Name, func(s provider.Settings) (provider.Adapter, error) {
		return New(WithAPIKey(s.APIKey), WithBaseURL(s.BaseURL), WithHTTPClient(s.HTTPClient))
	})
}

// Adapter implements provider.Adapter for Gemini models.
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

// New creates an adapter. The key falls back to GEMINI_API_KEY, then
// GOOGLE_API_KEY.
func New(opts ...Option) (*Adapter, error) {
	cfg := &adapterConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.apiKey == "" {
		cfg.apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.apiKey == "" {
		cfg.apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	if cfg.apiKey == "" {
		return nil, &APIError{
			Message: "Gemini API key required: set GEMINI_API_KEY or use WithAPIKey",
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
	reader, err := a.client.openStream(ctx, req.Model, buildRequest(req))
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
		return provider.FromStatus(Name, apiErr.StatusCode, apiErr.Message, apiErr.Status, err)
	}
	return provider.Classify(Name, err)
}

func buildRequest(req *provider.Request) *generateContentRequest {
	apiReq := &generateContentRequest{
		Contents: make([]content, 0, len(req.Messages)),
	}

	if req.Temperature != nil || req.MaxTokens != nil || req.TopP != nil || req.TopK != nil || len(req.StopSequences) > 0 {
		apiReq.GenerationConfig = &generationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxTokens,
			TopP:            req.TopP,
			TopK:            req.TopK,
			StopSequences:   req.StopSequences,
		}
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case provider.RoleSystem:
			if apiReq.SystemInstruction == nil {
				apiReq.SystemInstruction = &content{}
			}
			apiReq.SystemInstruction.Parts = append(apiReq.SystemInstruction.Parts, part{Text: msg.Content})
			continue
		case provider.RoleTool:
			apiReq.Contents = append(apiReq.Contents, content{
				Role: "user",
				Parts: []part{{
					FunctionResponse: &functionResponse{
						Name:     msg.ToolName,
						Response: toolResponse(msg.Content),
					},
				}},
			})
			continue
		}

		c := content{Role: "user"}
		if msg.Role == provider.RoleAssistant {
			c.Role = "model"
		}
		if msg.Content != "" {
			c.Parts = append(c.Parts, part{Text: msg.Content})
		}
		for _, tc := range msg.ToolCalls {
			args := map[string]any{}
			if tc.Arguments != "" {
				_ = json.Unmarshal([]byte(tc.Arguments), &args)
			}
			c.Parts = append(c.Parts, part{FunctionCall: &functionCall{Name: tc.Name, Args: args}})
		}
		if len(c.Parts) > 0 {
			apiReq.Contents = append(apiReq.Contents, c)
		}
	}

	if len(req.Tools) > 0 {
		decls := make([]functionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, functionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			})
		}
		apiReq.Tools = []tool{{FunctionDeclarations: decls}}
	}

	return apiReq
}

// toolResponse wraps a tool result; Gemini requires a JSON object.
func toolResponse(s string) any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err == nil {
		return obj
	}
	return map[string]any{"content": s}
}
