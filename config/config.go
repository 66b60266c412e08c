// Package config loads parley settings from YAML, .env files and
// PARLEY_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/i2y/parley/mcp"
	"github.com/i2y/parley/pacing"
	"github.com/i2y/parley/segment"
	"github.com/i2y/parley/sink"
	"github.com/i2y/parley/stream"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PARLEY_"

// DefaultPath is where the CLI looks for a config file.
const DefaultPath = "parley.yaml"

// ValidProviders lists the supported providers.
var ValidProviders = []string{"openai", "anthropic", "gemini"}

// DefaultModels is the model used when none is configured.
var DefaultModels = map[string]string{
	"openai":    "gpt-4o-mini",
	"anthropic": "claude-3-5-haiku-latest",
	"gemini":    "gemini-2.0-flash",
}

// Config holds all parley settings.
type Config struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	// APIKeys maps provider name to key. Providers fall back to their
	// usual environment variables when absent.
	APIKeys     map[string]string `yaml:"api_keys,omitempty"`
	Temperature *float64          `yaml:"temperature,omitempty"`
	MaxTokens   *int              `yaml:"max_tokens,omitempty"`

	Persona    string `yaml:"persona"`
	PersonaDir string `yaml:"persona_dir"`

	Delivery Delivery `yaml:"delivery"`
	Pacing   Pacing   `yaml:"pacing"`
	History  History  `yaml:"history"`
	Tools    Tools    `yaml:"tools"`
	Log      Log      `yaml:"log"`
	Gateway  Gateway  `yaml:"gateway"`

	// Plugins lists plugin directories to load.
	Plugins []string `yaml:"plugins,omitempty"`
}

// Delivery controls segmentation and message output.
type Delivery struct {
	MaxMessageSize    int           `yaml:"max_message_size"`
	FlushSize         int           `yaml:"flush_size"`
	CodeBlockSize     int           `yaml:"code_block_size"`
	InactivityTimeout time.Duration `yaml:"inactivity_timeout"`
	RetryDelay        time.Duration `yaml:"retry_delay"`
	// ReplyToInput makes the first message of a turn a reply to the
	// user's message where the platform supports it.
	ReplyToInput bool `yaml:"reply_to_input"`
}

// Pacing controls the human-like delivery rhythm.
type Pacing struct {
	Level         string        `yaml:"level"`
	CharDelay     time.Duration `yaml:"char_delay"`
	MinTyping     time.Duration `yaml:"min_typing"`
	MaxTyping     time.Duration `yaml:"max_typing"`
	SentenceFlush bool          `yaml:"sentence_flush"`
}

// History controls conversation persistence.
type History struct {
	Dir      string `yaml:"dir"`
	InMemory bool   `yaml:"in_memory"`
	// Limit caps how many past messages are sent with each turn.
	Limit int `yaml:"limit"`
}

// Tools selects the tools offered to the model.
type Tools struct {
	Web bool        `yaml:"web"`
	MCP []MCPServer `yaml:"mcp,omitempty"`
}

// MCPServer is an MCP server launched over stdio.
type MCPServer struct {
	Name    string            `yaml:"name"`
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"`
}

// Log controls the process logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Gateway controls the websocket chat gateway.
type Gateway struct {
	Addr string `yaml:"addr"`
}

// Default returns the default configuration.
func Default() *Config {
	sc := stream.DefaultConfig()
	pc := pacing.DefaultConfig(pacing.Sentence)
	return &Config{
		Provider:   "openai",
		PersonaDir: "personas",
		Delivery: Delivery{
			MaxMessageSize:    sink.DefaultMaxMessageSize,
			FlushSize:         sc.Segment.FlushSize,
			CodeBlockSize:     sc.Segment.CodeBlockSize,
			InactivityTimeout: sc.InactivityTimeout,
			RetryDelay:        sc.RetryDelay,
			ReplyToInput:      true,
		},
		Pacing: Pacing{
			Level:     pc.Level.String(),
			CharDelay: pc.CharDelay,
			MinTyping: pc.MinTyping,
			MaxTyping: pc.MaxTyping,
		},
		History: History{
			Dir:   "data/history",
			Limit: 40,
		},
		Tools: Tools{Web: true},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
		Gateway: Gateway{Addr: "127.0.0.1:8080"},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// PARLEY_* environment overrides. envFiles are loaded into the process
// environment first without replacing variables already set; nil means
// ".env". A missing config file or env file is not an error.
func Load(path string, envFiles ...string) (*Config, error) {
	if envFiles == nil {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	str("PROVIDER", &c.Provider)
	str("MODEL", &c.Model)
	str("PERSONA", &c.Persona)
	str("PERSONA_DIR", &c.PersonaDir)
	str("PACING", &c.Pacing.Level)
	str("HISTORY_DIR", &c.History.Dir)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("GATEWAY_ADDR", &c.Gateway.Addr)

	if v := os.Getenv(EnvPrefix + "API_KEY"); v != "" && c.Provider != "" {
		if c.APIKeys == nil {
			c.APIKeys = make(map[string]string)
		}
		c.APIKeys[c.Provider] = v
	}
	if v := os.Getenv(EnvPrefix + "MAX_MESSAGE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sMAX_MESSAGE_SIZE: %w", EnvPrefix, err)
		}
		c.Delivery.MaxMessageSize = n
	}
	if v := os.Getenv(EnvPrefix + "INACTIVITY_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sINACTIVITY_TIMEOUT: %w", EnvPrefix, err)
		}
		c.Delivery.InactivityTimeout = d
	}
	if v := os.Getenv(EnvPrefix + "HISTORY_IN_MEMORY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sHISTORY_IN_MEMORY: %w", EnvPrefix, err)
		}
		c.History.InMemory = b
	}
	return nil
}

// Validate reports the first problem found in c.
func (c *Config) Validate() error {
	if !slices.Contains(ValidProviders, c.Provider) {
		return fmt.Errorf("invalid provider: %q (valid: %v)", c.Provider, ValidProviders)
	}

	d := c.Delivery
	switch {
	case d.MaxMessageSize < 100:
		return fmt.Errorf("delivery.max_message_size must be at least 100, got %d", d.MaxMessageSize)
	case d.FlushSize <= 0:
		return fmt.Errorf("delivery.flush_size must be positive, got %d", d.FlushSize)
	case d.CodeBlockSize < d.FlushSize:
		return fmt.Errorf("delivery.code_block_size (%d) must not be smaller than flush_size (%d)", d.CodeBlockSize, d.FlushSize)
	case d.InactivityTimeout < 0:
		return errors.New("delivery.inactivity_timeout must not be negative")
	case d.RetryDelay < 0:
		return errors.New("delivery.retry_delay must not be negative")
	}

	if _, err := pacing.ParseLevel(c.Pacing.Level); err != nil {
		return fmt.Errorf("pacing.level: %w", err)
	}
	if c.Pacing.MinTyping > c.Pacing.MaxTyping {
		return fmt.Errorf("pacing.min_typing (%s) exceeds max_typing (%s)", c.Pacing.MinTyping, c.Pacing.MaxTyping)
	}

	if c.History.Limit < 0 {
		return errors.New("history.limit must not be negative")
	}
	if !c.History.InMemory && c.History.Dir == "" {
		return errors.New("history.dir is required unless history.in_memory is set")
	}

	for i, p := range c.Plugins {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("plugins[%d]: empty path", i)
		}
	}

	seen := make(map[string]bool, len(c.Tools.MCP))
	for i, s := range c.Tools.MCP {
		if s.Name == "" || s.Command == "" {
			return fmt.Errorf("tools.mcp[%d]: name and command are required", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("tools.mcp[%d]: duplicate name %q", i, s.Name)
		}
		seen[s.Name] = true
	}

	if _, err := c.LogLevel(); err != nil {
		return err
	}
	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// ResolvedModel returns the configured model or the provider default.
func (c *Config) ResolvedModel() string {
	if c.Model != "" {
		return c.Model
	}
	return DefaultModels[c.Provider]
}

// APIKey returns the configured key for a provider, if any.
func (c *Config) APIKey(provider string) string {
	return c.APIKeys[provider]
}

// SegmentConfig returns the segmentation settings.
func (c *Config) SegmentConfig() segment.Config {
	return segment.Config{
		FlushSize:     c.Delivery.FlushSize,
		CodeBlockSize: c.Delivery.CodeBlockSize,
		SentenceFlush: c.Pacing.SentenceFlush,
	}
}

// StreamConfig returns the orchestrator settings.
func (c *Config) StreamConfig() stream.Config {
	return stream.Config{
		InactivityTimeout: c.Delivery.InactivityTimeout,
		RetryDelay:        c.Delivery.RetryDelay,
		Segment:           c.SegmentConfig(),
	}
}

// PacingConfig returns the pacing settings. override, when non-empty,
// replaces the configured level (a persona may ask for its own).
func (c *Config) PacingConfig(override string) (pacing.Config, error) {
	name := c.Pacing.Level
	if override != "" {
		name = override
	}
	level, err := pacing.ParseLevel(name)
	if err != nil {
		return pacing.Config{}, err
	}
	pc := pacing.DefaultConfig(level)
	if c.Pacing.CharDelay > 0 {
		pc.CharDelay = c.Pacing.CharDelay
	}
	if c.Pacing.MinTyping > 0 {
		pc.MinTyping = c.Pacing.MinTyping
	}
	if c.Pacing.MaxTyping > 0 {
		pc.MaxTyping = c.Pacing.MaxTyping
	}
	pc.SentenceFlush = c.Pacing.SentenceFlush
	return pc, nil
}

// MCPServers converts the configured servers for mcp.Launch.
func (c *Config) MCPServers() []mcp.Server {
	out := make([]mcp.Server, 0, len(c.Tools.MCP))
	for _, s := range c.Tools.MCP {
		env := make([]string, 0, len(s.Env))
		for k, v := range s.Env {
			env = append(env, k+"="+v)
		}
		slices.Sort(env)
		out = append(out, mcp.Server{Name: s.Name, Command: s.Command, Args: s.Args, Env: env})
	}
	return out
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return l, nil
}

// NewLogger builds a logger writing to w in the configured format.
func (c *Config) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := c.LogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// Save writes c as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
