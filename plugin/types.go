// Package plugin loads parley plugins.
//
// A plugin is a directory bundling personas, prompt commands and MCP
// servers:
//
//	weather/
//	  plugin.yaml        name, description, version
//	  personas/*.md      personas, same format as the persona directory
//	  commands/*.md      prompt commands, invoked as /name in chat
//	  .mcp.json          MCP servers started alongside the assistant
//
// ${PLUGIN_ROOT} in .mcp.json is replaced with the plugin directory.
package plugin

import (
	"github.com/i2y/parley/mcp"
	"github.com/i2y/parley/persona"
)

// Plugin is a loaded plugin directory.
type Plugin struct {
	Name        string
	Description string
	Version     string
	Author      Author

	Personas   []*persona.Persona
	Commands   []Command
	MCPServers []mcp.Server

	// Root is the absolute plugin directory.
	Root string
}

// Author is the plugin author.
type Author struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email,omitempty"`
	URL   string `yaml:"url,omitempty"`
}

// Command is a prompt template invoked as /Name. $ARGUMENTS in Content is
// replaced with whatever follows the command name.
type Command struct {
	Name        string
	Description string
	Content     string
	Path        string
}

// manifest is plugin.yaml.
type manifest struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description,omitempty"`
	Version     string  `yaml:"version,omitempty"`
	Author      *Author `yaml:"author,omitempty"`

	// Directory overrides, relative to the plugin root.
	Personas string `yaml:"personas,omitempty"`
	Commands string `yaml:"commands,omitempty"`
}

type commandFrontmatter struct {
	Name        string `yaml:"name,omitempty"`
	Description string `yaml:"description"`
}

// mcpServerConfig is one entry of .mcp.json.
type mcpServerConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}
