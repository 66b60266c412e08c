// Package mcp exposes tools served over the Model Context Protocol as
// assistant tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/i2y/parley/schema"
	"github.com/i2y/parley/tools"
)

// Client is a connected MCP session.
type Client struct {
	session *mcp.ClientSession
	timeout time.Duration
	prefix  string
}

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	timeout time.Duration
	prefix  string
	env     []string
}

// WithTimeout sets the timeout for a single tool call.
func WithTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		c.timeout = d
	}
}

// WithPrefix prepends prefix and an underscore to every tool name so tools
// from several servers do not collide.
func WithPrefix(prefix string) Option {
	return func(c *clientConfig) {
		c.prefix = prefix
	}
}

// WithEnv adds KEY=VALUE pairs to a stdio server's environment.
func WithEnv(env ...string) Option {
	return func(c *clientConfig) {
		c.env = append(c.env, env...)
	}
}

func newConfig(opts []Option) *clientConfig {
	cfg := &clientConfig{timeout: 30 * time.Second}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Connect opens a session over transport.
func Connect(ctx context.Context, transport mcp.Transport, opts ...Option) (*Client, error) {
	cfg := newConfig(opts)
	client := mcp.NewClient(&mcp.Implementation{
		Name:    "parley",
		Version: "0.1.0",
	}, nil)

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to MCP server: %w", err)
	}
	return &Client{
		session: session,
		timeout: cfg.timeout,
		prefix:  cfg.prefix,
	}, nil
}

// NewStdioClient starts command and talks MCP over its stdio.
//
//	client, err := mcp.NewStdioClient(ctx, "./my-mcp-server", nil)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
func NewStdioClient(ctx context.Context, command string, args []string, opts ...Option) (*Client, error) {
	cfg := newConfig(opts)
	cmd := exec.Command(command, args...)
	if len(cfg.env) > 0 {
		cmd.Env = append(os.Environ(), cfg.env...)
	}
	return Connect(ctx, &mcp.CommandTransport{Command: cmd}, opts...)
}

// Tools lists the server's tools.
func (c *Client) Tools(ctx context.Context) ([]tools.Tool, error) {
	result, err := c.session.ListTools(ctx, &mcp.ListToolsParams{})
	if err != nil {
		return nil, fmt.Errorf("listing MCP tools: %w", err)
	}

	out := make([]tools.Tool, 0, len(result.Tools))
	for _, t := range result.Tools {
		params, err := inputSchema(t.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("tool %q: %w", t.Name, err)
		}
		out = append(out, &remoteTool{client: c, tool: t, params: params})
	}
	return out, nil
}

// Close ends the session.
func (c *Client) Close() error {
	return c.session.Close()
}

func inputSchema(v any) (*jsonschema.Schema, error) {
	if v == nil {
		return schema.Parse(nil)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding input schema: %w", err)
	}
	return schema.Parse(raw)
}

// remoteTool calls a tool on the MCP server.
type remoteTool struct {
	client *Client
	tool   *mcp.Tool
	params *jsonschema.Schema
}

var _ tools.Tool = (*remoteTool)(nil)

func (t *remoteTool) Name() string {
	if t.client.prefix == "" {
		return t.tool.Name
	}
	return t.client.prefix + "_" + t.tool.Name
}

func (t *remoteTool) Description() string {
	return t.tool.Description
}

func (t *remoteTool) Parameters() *jsonschema.Schema {
	return t.params
}

func (t *remoteTool) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, t.client.timeout)
	defer cancel()

	arguments := map[string]any{}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &arguments); err != nil {
			return nil, fmt.Errorf("parsing arguments: %w", err)
		}
	}

	result, err := t.client.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      t.tool.Name,
		Arguments: arguments,
	})
	if err != nil {
		return nil, fmt.Errorf("calling MCP tool: %w", err)
	}

	text := contentText(result.Content)
	if result.IsError {
		return nil, fmt.Errorf("MCP tool error: %s", text)
	}
	return text, nil
}

// contentText flattens a tool result. Non-text content is described
// rather than inlined.
func contentText(content []mcp.Content) string {
	parts := make([]string, 0, len(content))
	for _, c := range content {
		switch item := c.(type) {
		case *mcp.TextContent:
			parts = append(parts, item.Text)
		case *mcp.ImageContent:
			parts = append(parts, fmt.Sprintf("[Image: %s, %d bytes]", item.MIMEType, len(item.Data)))
		case *mcp.AudioContent:
			parts = append(parts, fmt.Sprintf("[Audio: %s, %d bytes]", item.MIMEType, len(item.Data)))
		case *mcp.EmbeddedResource:
			if item.Resource != nil {
				parts = append(parts, fmt.Sprintf("[Resource: %s]", item.Resource.URI))
			} else {
				parts = append(parts, "[Resource: embedded]")
			}
		}
	}
	return strings.Join(parts, "\n")
}

// Server describes an MCP server to launch over stdio.
type Server struct {
	Name    string
	Command string
	Args    []string
	Env     []string
}

// Launch starts every server and collects their tools, prefixed with the
// server name. The returned close function stops all of them.
func Launch(ctx context.Context, servers []Server, opts ...Option) ([]tools.Tool, func() error, error) {
	var (
		clients []*Client
		all     []tools.Tool
	)
	closeAll := func() error {
		var first error
		for _, c := range clients {
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		}
		return first
	}

	for _, s := range servers {
		o := append([]Option{WithPrefix(s.Name), WithEnv(s.Env...)}, opts...)
		c, err := NewStdioClient(ctx, s.Command, s.Args, o...)
		if err != nil {
			_ = closeAll()
			return nil, nil, fmt.Errorf("MCP server %q: %w", s.Name, err)
		}
		clients = append(clients, c)

		ts, err := c.Tools(ctx)
		if err != nil {
			_ = closeAll()
			return nil, nil, fmt.Errorf("MCP server %q: %w", s.Name, err)
		}
		all = append(all, ts...)
	}
	return all, closeAll, nil
}
