package plugin

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	// ErrNotACommand is returned when input doesn't start with a slash command.
	ErrNotACommand = errors.New("input is not a slash command")
	// ErrCommandNotFound is returned when no plugin defines the command.
	ErrCommandNotFound = errors.New("command not found")
)

// ArgumentsPlaceholder is replaced with the command arguments on expansion.
const ArgumentsPlaceholder = "$ARGUMENTS"

// IsCommand reports whether input starts with a slash command.
func IsCommand(input string) bool {
	return strings.HasPrefix(strings.TrimSpace(input), "/")
}

// ParseCommandInput splits "/name args" into its parts. Both are empty
// when input is not a command.
func ParseCommandInput(input string) (cmdName, arguments string) {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		return "", ""
	}
	cmdName, arguments, _ = strings.Cut(strings.TrimPrefix(input, "/"), " ")
	return cmdName, strings.TrimSpace(arguments)
}

// Expand renders the command for arguments. Without a placeholder in the
// template, non-empty arguments are appended after a blank line.
func (c *Command) Expand(arguments string) string {
	if strings.Contains(c.Content, ArgumentsPlaceholder) {
		return strings.ReplaceAll(c.Content, ArgumentsPlaceholder, arguments)
	}
	if arguments == "" {
		return c.Content
	}
	return c.Content + "\n\n" + arguments
}

// Commands is the prompt commands of a set of plugins, keyed by name.
type Commands struct {
	byName map[string]*Command
}

// NewCommands collects the commands of plugins. A name defined by two
// plugins is an error.
func NewCommands(plugins ...*Plugin) (*Commands, error) {
	c := &Commands{byName: make(map[string]*Command)}
	owner := make(map[string]string)
	for _, p := range plugins {
		for i := range p.Commands {
			cmd := &p.Commands[i]
			if prev, ok := owner[cmd.Name]; ok {
				return nil, fmt.Errorf("command /%s defined by plugins %q and %q", cmd.Name, prev, p.Name)
			}
			owner[cmd.Name] = p.Name
			c.byName[cmd.Name] = cmd
		}
	}
	return c, nil
}

// Get returns the named command.
func (c *Commands) Get(name string) (*Command, bool) {
	if c == nil {
		return nil, false
	}
	cmd, ok := c.byName[name]
	return cmd, ok
}

// All returns the commands sorted by name.
func (c *Commands) All() []*Command {
	if c == nil {
		return nil
	}
	out := make([]*Command, 0, len(c.byName))
	for _, cmd := range c.byName {
		out = append(out, cmd)
	}
	slices.SortFunc(out, func(a, b *Command) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Expand turns "/name args" into the text of a turn.
func (c *Commands) Expand(input string) (string, error) {
	name, args := ParseCommandInput(input)
	if name == "" {
		return "", ErrNotACommand
	}
	cmd, ok := c.Get(name)
	if !ok {
		return "", fmt.Errorf("%w: /%s", ErrCommandNotFound, name)
	}
	return cmd.Expand(args), nil
}
