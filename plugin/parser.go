package plugin

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/i2y/parley/persona"
)

// ParseCommand reads a command file. Commands share the persona file
// layout: optional YAML frontmatter, then the prompt template. The file
// name is the command name unless the frontmatter overrides it.
func ParseCommand(path string) (*Command, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading command: %w", err)
	}

	fm, body := persona.SplitFrontmatter(string(data))
	cmd := &Command{
		Name:    strings.TrimSuffix(filepath.Base(path), ".md"),
		Content: body,
		Path:    path,
	}
	if fm != "" {
		var meta commandFrontmatter
		if err := yaml.Unmarshal([]byte(fm), &meta); err != nil {
			return nil, fmt.Errorf("%s: parsing command frontmatter: %w", path, err)
		}
		if meta.Name != "" {
			cmd.Name = meta.Name
		}
		cmd.Description = meta.Description
	}

	switch {
	case cmd.Name == "" || strings.ContainsAny(cmd.Name, " \t/"):
		return nil, fmt.Errorf("%s: invalid command name %q", path, cmd.Name)
	case cmd.Content == "":
		return nil, fmt.Errorf("%s: command %q has no content", path, cmd.Name)
	}
	return cmd, nil
}
