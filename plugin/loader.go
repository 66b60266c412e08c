package plugin

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/i2y/parley/mcp"
	"github.com/i2y/parley/persona"
)

// ManifestFile is the manifest file name in a plugin directory.
const ManifestFile = "plugin.yaml"

// Load loads the plugin in the directory at path.
func Load(path string) (*Plugin, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("accessing plugin path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("plugin path must be a directory: %s", absPath)
	}

	m, err := loadManifest(filepath.Join(absPath, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("loading manifest: %w", err)
	}

	p := &Plugin{
		Name:        m.Name,
		Description: m.Description,
		Version:     m.Version,
		Root:        absPath,
	}
	if m.Author != nil {
		p.Author = *m.Author
	}

	if p.Personas, err = loadPersonas(subdir(absPath, m.Personas, "personas")); err != nil {
		return nil, fmt.Errorf("plugin %q: %w", p.Name, err)
	}
	if p.Commands, err = loadCommands(subdir(absPath, m.Commands, "commands")); err != nil {
		return nil, fmt.Errorf("plugin %q: %w", p.Name, err)
	}
	if p.MCPServers, err = loadMCPServers(filepath.Join(absPath, ".mcp.json"), absPath); err != nil {
		return nil, fmt.Errorf("plugin %q: %w", p.Name, err)
	}
	return p, nil
}

// LoadAll loads every plugin in paths.
func LoadAll(paths []string) ([]*Plugin, error) {
	out := make([]*Plugin, 0, len(paths))
	seen := make(map[string]string, len(paths))
	for _, path := range paths {
		p, err := Load(path)
		if err != nil {
			return nil, err
		}
		if prev, ok := seen[p.Name]; ok {
			return nil, fmt.Errorf("plugin %q loaded from both %s and %s", p.Name, prev, p.Root)
		}
		seen[p.Name] = p.Root
		out = append(out, p)
	}
	return out, nil
}

func subdir(root, override, def string) string {
	if override != "" {
		return filepath.Join(root, override)
	}
	return filepath.Join(root, def)
}

func loadManifest(path string) (*manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if m.Name == "" {
		return nil, errors.New("plugin name is required in manifest")
	}
	return &m, nil
}

// markdownFiles lists the *.md files directly in dir. A missing dir has
// none.
func markdownFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	return files, nil
}

func loadPersonas(dir string) ([]*persona.Persona, error) {
	files, err := markdownFiles(dir)
	if err != nil {
		return nil, err
	}
	personas := make([]*persona.Persona, 0, len(files))
	for _, f := range files {
		p, err := persona.ParseFile(f)
		if err != nil {
			return nil, err
		}
		personas = append(personas, p)
	}
	return personas, nil
}

func loadCommands(dir string) ([]Command, error) {
	files, err := markdownFiles(dir)
	if err != nil {
		return nil, err
	}
	commands := make([]Command, 0, len(files))
	for _, f := range files {
		cmd, err := ParseCommand(f)
		if err != nil {
			return nil, err
		}
		commands = append(commands, *cmd)
	}
	return commands, nil
}

// loadMCPServers reads .mcp.json. Servers are named after their key and
// returned sorted by name.
func loadMCPServers(path, pluginRoot string) ([]mcp.Server, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var raw struct {
		MCPServers map[string]mcpServerConfig `json:"mcpServers"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing MCP config: %w", err)
	}

	servers := make([]mcp.Server, 0, len(raw.MCPServers))
	for name, cfg := range raw.MCPServers {
		if cfg.Command == "" {
			return nil, fmt.Errorf("MCP server %q has no command", name)
		}
		s := mcp.Server{
			Name:    name,
			Command: expandPluginRoot(cfg.Command, pluginRoot),
		}
		for _, arg := range cfg.Args {
			s.Args = append(s.Args, expandPluginRoot(arg, pluginRoot))
		}
		for k, v := range cfg.Env {
			s.Env = append(s.Env, k+"="+expandPluginRoot(v, pluginRoot))
		}
		slices.Sort(s.Env)
		servers = append(servers, s)
	}
	slices.SortFunc(servers, func(a, b mcp.Server) int { return strings.Compare(a.Name, b.Name) })
	return servers, nil
}

// expandPluginRoot replaces ${PLUGIN_ROOT} with the plugin directory.
func expandPluginRoot(s, pluginRoot string) string {
	return strings.ReplaceAll(s, "${PLUGIN_ROOT}", pluginRoot)
}

// GetCommand returns a command by name, or nil if not found.
func (p *Plugin) GetCommand(name string) *Command {
	for i := range p.Commands {
		if p.Commands[i].Name == name {
			return &p.Commands[i]
		}
	}
	return nil
}
