package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i2y/parley/pacing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "gpt-4o-mini", cfg.ResolvedModel())

	sc := cfg.StreamConfig()
	assert.Equal(t, 60*time.Second, sc.InactivityTimeout)
	assert.Equal(t, 1500, sc.Segment.FlushSize)
	assert.Equal(t, 3800, sc.Segment.CodeBlockSize)
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), filepath.Join(t.TempDir(), "nope.env"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "parley.yaml", `
provider: anthropic
model: claude-test
persona: tutor
delivery:
  max_message_size: 500
  flush_size: 200
  code_block_size: 400
  inactivity_timeout: 30s
  retry_delay: 250ms
pacing:
  level: heavy
  char_delay: 10ms
  sentence_flush: true
history:
  in_memory: true
  limit: 10
tools:
  web: false
  mcp:
    - name: files
      command: mcp-files
      args: ["--root", "/tmp"]
      env:
        B: "2"
        A: "1"
log:
  level: debug
  format: json
plugins:
  - plugins/weather
`)

	cfg, err := Load(path, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "anthropic", cfg.Provider)
	assert.Equal(t, "claude-test", cfg.ResolvedModel())
	assert.Equal(t, "tutor", cfg.Persona)
	assert.Equal(t, 30*time.Second, cfg.Delivery.InactivityTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Delivery.RetryDelay)
	assert.True(t, cfg.Delivery.ReplyToInput, "unset fields keep defaults")
	assert.True(t, cfg.History.InMemory)
	assert.False(t, cfg.Tools.Web)
	assert.Equal(t, []string{"plugins/weather"}, cfg.Plugins)

	seg := cfg.SegmentConfig()
	assert.Equal(t, 200, seg.FlushSize)
	assert.Equal(t, 400, seg.CodeBlockSize)
	assert.True(t, seg.SentenceFlush)

	pc, err := cfg.PacingConfig("")
	require.NoError(t, err)
	assert.Equal(t, pacing.Heavy, pc.Level)
	assert.Equal(t, 10*time.Millisecond, pc.CharDelay)
	assert.Equal(t, 400*time.Millisecond, pc.MinTyping)
	assert.True(t, pc.SentenceFlush)

	pc, err = cfg.PacingConfig("off")
	require.NoError(t, err)
	assert.Equal(t, pacing.Off, pc.Level)

	servers := cfg.MCPServers()
	require.Len(t, servers, 1)
	assert.Equal(t, "files", servers[0].Name)
	assert.Equal(t, []string{"--root", "/tmp"}, servers[0].Args)
	assert.Equal(t, []string{"A=1", "B=2"}, servers[0].Env)
}

func TestLoad_BadYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "parley.yaml", "provider: [")
	_, err := Load(path, filepath.Join(t.TempDir(), "x.env"))
	assert.ErrorContains(t, err, "failed to parse config")
}

func TestLoad_DotEnvAndOverrides(t *testing.T) {
	dir := t.TempDir()
	envFile := writeFile(t, dir, ".env", "PARLEY_MODEL=from-dotenv\nPARLEY_PACING=off\n")

	t.Setenv("PARLEY_PROVIDER", "gemini")
	t.Setenv("PARLEY_API_KEY", "secret")
	t.Setenv("PARLEY_MAX_MESSAGE_SIZE", "900")
	t.Setenv("PARLEY_INACTIVITY_TIMEOUT", "5s")
	t.Setenv("PARLEY_HISTORY_IN_MEMORY", "true")
	// Variables already set win over the .env file.
	t.Setenv("PARLEY_PACING", "heavy")
	// godotenv sets PARLEY_MODEL for the rest of the process.
	t.Setenv("PARLEY_MODEL", "")
	require.NoError(t, os.Unsetenv("PARLEY_MODEL"))

	cfg, err := Load("", envFile)
	require.NoError(t, err)

	assert.Equal(t, "gemini", cfg.Provider)
	assert.Equal(t, "from-dotenv", cfg.Model)
	assert.Equal(t, "heavy", cfg.Pacing.Level)
	assert.Equal(t, "secret", cfg.APIKey("gemini"))
	assert.Equal(t, "", cfg.APIKey("openai"))
	assert.Equal(t, 900, cfg.Delivery.MaxMessageSize)
	assert.Equal(t, 5*time.Second, cfg.Delivery.InactivityTimeout)
	assert.True(t, cfg.History.InMemory)
}

func TestLoad_BadOverride(t *testing.T) {
	tests := []struct {
		env   string
		value string
	}{
		{env: "PARLEY_MAX_MESSAGE_SIZE", value: "big"},
		{env: "PARLEY_INACTIVITY_TIMEOUT", value: "soon"},
		{env: "PARLEY_HISTORY_IN_MEMORY", value: "maybe"},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Setenv(tt.env, tt.value)
			_, err := Load("", filepath.Join(t.TempDir(), "none.env"))
			assert.ErrorContains(t, err, tt.env)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "unknown provider", mutate: func(c *Config) { c.Provider = "acme" }, wantErr: "invalid provider"},
		{name: "tiny message size", mutate: func(c *Config) { c.Delivery.MaxMessageSize = 10 }, wantErr: "max_message_size"},
		{name: "zero flush size", mutate: func(c *Config) { c.Delivery.FlushSize = 0 }, wantErr: "flush_size"},
		{name: "code block smaller than flush", mutate: func(c *Config) { c.Delivery.CodeBlockSize = 100 }, wantErr: "code_block_size"},
		{name: "negative timeout", mutate: func(c *Config) { c.Delivery.InactivityTimeout = -time.Second }, wantErr: "inactivity_timeout"},
		{name: "bad pacing level", mutate: func(c *Config) { c.Pacing.Level = "frantic" }, wantErr: "pacing.level"},
		{name: "typing bounds inverted", mutate: func(c *Config) { c.Pacing.MinTyping = 10 * time.Second }, wantErr: "min_typing"},
		{name: "negative history limit", mutate: func(c *Config) { c.History.Limit = -1 }, wantErr: "history.limit"},
		{name: "history dir missing", mutate: func(c *Config) { c.History.Dir = "" }, wantErr: "history.dir"},
		{name: "mcp without command", mutate: func(c *Config) { c.Tools.MCP = []MCPServer{{Name: "x"}} }, wantErr: "name and command"},
		{
			name: "duplicate mcp name",
			mutate: func(c *Config) {
				c.Tools.MCP = []MCPServer{{Name: "x", Command: "a"}, {Name: "x", Command: "b"}}
			},
			wantErr: "duplicate name",
		},
		{name: "empty plugin path", mutate: func(c *Config) { c.Plugins = []string{"plugins/a", " "} }, wantErr: "plugins[1]"},
		{name: "bad log level", mutate: func(c *Config) { c.Log.Level = "chatty" }, wantErr: "log.level"},
		{name: "bad log format", mutate: func(c *Config) { c.Log.Format = "xml" }, wantErr: "log.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := Default()
	cfg.Log.Format = "json"
	cfg.Log.Level = "warn"

	logger, err := cfg.NewLogger(&buf)
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"k":"v"`)
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := Default()
	cfg.Provider = "gemini"
	cfg.Delivery.RetryDelay = 2 * time.Second
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path, filepath.Join(t.TempDir(), "none.env"))
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
