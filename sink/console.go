package sink

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
)

var _ Platform = (*Console)(nil)

// ConsoleStyles controls how Console renders messages.
type ConsoleStyles struct {
	Name   lipgloss.Style
	Reply  lipgloss.Style
	Body   lipgloss.Style
	Typing lipgloss.Style
}

// DefaultConsoleStyles returns the default terminal styles.
func DefaultConsoleStyles() ConsoleStyles {
	accent := lipgloss.Color("#00ff9f")
	dim := lipgloss.Color("#6e7681")
	return ConsoleStyles{
		Name:   lipgloss.NewStyle().Bold(true).Foreground(accent),
		Reply:  lipgloss.NewStyle().Foreground(dim),
		Body:   lipgloss.NewStyle(),
		Typing: lipgloss.NewStyle().Italic(true).Foreground(dim),
	}
}

// Console is a Platform that writes messages to a terminal.
type Console struct {
	mu         sync.Mutex
	w          io.Writer
	name       string
	styles     ConsoleStyles
	ShowTyping bool
}

// NewConsole creates a console platform writing to w. The name labels
// every message.
func NewConsole(w io.Writer, name string) *Console {
	return &Console{w: w, name: name, styles: DefaultConsoleStyles()}
}

// SetStyles replaces the rendering styles.
func (c *Console) SetStyles(s ConsoleStyles) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.styles = s
}

func (c *Console) Send(ctx context.Context, text string) (string, error) {
	return c.write(ctx, "", text)
}

func (c *Console) Reply(ctx context.Context, messageID, text string) (string, error) {
	return c.write(ctx, messageID, text)
}

func (c *Console) Typing(ctx context.Context) error {
	if !c.ShowTyping {
		return ctx.Err()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintln(c.w, c.styles.Typing.Render(c.name+" is typing…"))
	return err
}

func (c *Console) write(ctx context.Context, replyTo, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	header := c.styles.Name.Render(c.name)
	if replyTo != "" {
		header += " " + c.styles.Reply.Render("↳ "+replyTo)
	}
	if _, err := fmt.Fprintf(c.w, "%s\n%s\n", header, c.styles.Body.Render(text)); err != nil {
		return "", err
	}
	return uuid.NewString(), nil
}
