// Package persona loads assistant personas from markdown files.
//
// A persona file is markdown with optional YAML frontmatter:
//
//	---
//	name: tutor
//	description: Patient programming tutor
//	tools: [web_search, current_time]
//	pacing: heavy
//	---
//	You are a patient tutor. Explain one idea at a time.
//
// The markdown body becomes the system prompt. Without a name field the
// file name (minus .md) is used.
package persona

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// DefaultName is the name of the built-in persona.
const DefaultName = "default"

// ErrNotFound is returned when a persona name is unknown.
var ErrNotFound = errors.New("persona not found")

// Persona shapes how the assistant talks.
type Persona struct {
	Name        string
	Description string
	// Tools limits which tools the persona may call. Empty allows all.
	Tools       []string
	Model       string
	Temperature *float64
	// Pacing overrides the configured pacing level when set.
	Pacing string
	Prompt string
	Path   string
}

type frontmatter struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Tools       []string `yaml:"tools,omitempty"`
	Model       string   `yaml:"model,omitempty"`
	Temperature *float64 `yaml:"temperature,omitempty"`
	Pacing      string   `yaml:"pacing,omitempty"`
}

// Default returns the built-in persona.
func Default() *Persona {
	return &Persona{
		Name:        DefaultName,
		Description: "Friendly general-purpose assistant",
		Prompt: "You are a friendly assistant chatting in a messaging app. " +
			"Keep replies conversational and use short paragraphs. " +
			"Use fenced code blocks for code.",
	}
}

// SystemMessage returns the system prompt for the persona.
func (p *Persona) SystemMessage() string {
	if p.Description == "" {
		return p.Prompt
	}
	return fmt.Sprintf("# %s\n%s\n\n%s", p.Name, p.Description, p.Prompt)
}

// Allows reports whether the persona may call tool.
func (p *Persona) Allows(tool string) bool {
	return len(p.Tools) == 0 || slices.Contains(p.Tools, tool)
}

// Parse builds a persona from file contents. fallbackName is used when
// the frontmatter carries no name.
func Parse(fallbackName string, data []byte) (*Persona, error) {
	fm, body := SplitFrontmatter(string(data))

	p := &Persona{Name: fallbackName, Prompt: body}
	if fm != "" {
		var meta frontmatter
		if err := yaml.Unmarshal([]byte(fm), &meta); err != nil {
			return nil, fmt.Errorf("parsing frontmatter: %w", err)
		}
		if meta.Name != "" {
			p.Name = meta.Name
		}
		p.Description = meta.Description
		p.Tools = meta.Tools
		p.Model = meta.Model
		p.Temperature = meta.Temperature
		p.Pacing = meta.Pacing
	}
	if p.Name == "" {
		return nil, errors.New("persona has no name")
	}
	if strings.TrimSpace(p.Prompt) == "" {
		return nil, fmt.Errorf("persona %q has an empty prompt", p.Name)
	}
	return p, nil
}

// ParseFile reads and parses a persona file.
func ParseFile(filename string) (*Persona, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading persona: %w", err)
	}
	p, err := Parse(strings.TrimSuffix(path.Base(filename), ".md"), data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	p.Path = filename
	return p, nil
}

// SplitFrontmatter separates a leading "---" delimited block from the
// body. Input without a closing delimiter is all body.
func SplitFrontmatter(s string) (fm, body string) {
	s = strings.TrimPrefix(s, "\ufeff")
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return "", strings.TrimSpace(s)
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			return strings.Join(lines[1:i], "\n"), strings.TrimSpace(strings.Join(lines[i+1:], "\n"))
		}
	}
	return "", strings.TrimSpace(s)
}

// Library is a set of personas keyed by name.
type Library struct {
	byName map[string]*Persona
}

// NewLibrary creates a library holding the default persona and ps.
// Later personas replace earlier ones with the same name.
func NewLibrary(ps ...*Persona) *Library {
	l := &Library{byName: map[string]*Persona{DefaultName: Default()}}
	for _, p := range ps {
		l.byName[p.Name] = p
	}
	return l
}

// LoadDir loads every *.md file below dir. A missing dir yields a library
// with only the default persona.
func LoadDir(dir string) (*Library, error) {
	if dir == "" {
		return NewLibrary(), nil
	}
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return NewLibrary(), nil
	}
	return LoadFS(os.DirFS(dir), dir)
}

// LoadFS loads every *.md file in fsys. root is only used to report paths.
func LoadFS(fsys fs.FS, root string) (*Library, error) {
	matches, err := doublestar.Glob(fsys, "**/*.md")
	if err != nil {
		return nil, fmt.Errorf("listing personas: %w", err)
	}
	slices.Sort(matches)

	seen := make(map[string]string, len(matches))
	ps := make([]*Persona, 0, len(matches))
	for _, m := range matches {
		data, err := fs.ReadFile(fsys, m)
		if err != nil {
			return nil, fmt.Errorf("reading persona %s: %w", m, err)
		}
		p, err := Parse(strings.TrimSuffix(path.Base(m), ".md"), data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m, err)
		}
		p.Path = path.Join(root, m)
		if prev, ok := seen[p.Name]; ok {
			return nil, fmt.Errorf("persona %q defined in both %s and %s", p.Name, prev, m)
		}
		seen[p.Name] = m
		ps = append(ps, p)
	}
	return NewLibrary(ps...), nil
}

// Get returns the named persona. An empty name means the default.
func (l *Library) Get(name string) (*Persona, error) {
	if name == "" {
		name = DefaultName
	}
	p, ok := l.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return p, nil
}

// Names returns persona names in sorted order.
func (l *Library) Names() []string {
	names := make([]string, 0, len(l.byName))
	for n := range l.byName {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// All returns the personas sorted by name.
func (l *Library) All() []*Persona {
	out := make([]*Persona, 0, len(l.byName))
	for _, n := range l.Names() {
		out = append(out, l.byName[n])
	}
	return out
}
