package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/i2y/parley/assistant"
	"github.com/i2y/parley/plugin"
	"github.com/i2y/parley/provider"
	"github.com/i2y/parley/sink"
)

var (
	promptStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	noticeStyle = lipgloss.NewStyle().Faint(true)
)

const chatHelp = `commands:
  /persona [name]  show or switch the persona
  /personas        list personas
  /commands        list plugin prompt commands
  /reset           forget this conversation
  /quit            leave`

func newChatCmd(flags *globalFlags, providers *provider.Registry) *cobra.Command {
	var (
		conversation string
		typing       bool
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant in the terminal",
		Long: `Start an interactive chat. Each line you type is one turn; the answer
arrives as one or more messages, paced like a person typing.

` + chatHelp,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			a, err := newApp(ctx, cfg, providers, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			s := &chatSession{
				app:          a,
				conversation: conversation,
				persona:      cfg.Persona,
				typing:       typing,
				out:          cmd.OutOrStdout(),
			}
			return s.run(ctx, cmd.InOrStdin())
		},
	}
	cmd.Flags().StringVar(&conversation, "conversation", "cli", "conversation id; history is kept per id")
	cmd.Flags().BoolVar(&typing, "typing", false, "show typing indicators")
	return cmd
}

type chatSession struct {
	app          *app
	conversation string
	persona      string
	typing       bool
	out          io.Writer
}

func (s *chatSession) console() *sink.Console {
	name := s.persona
	if name == "" {
		name = "parley"
	}
	c := sink.NewConsole(s.out, name)
	c.ShowTyping = s.typing
	return c
}

func (s *chatSession) notice(format string, args ...any) {
	fmt.Fprintln(s.out, noticeStyle.Render(fmt.Sprintf(format, args...)))
}

func (s *chatSession) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for {
		fmt.Fprint(s.out, promptStyle.Render("you> "))
		if !scanner.Scan() {
			fmt.Fprintln(s.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			text, quit, err := s.command(ctx, line)
			if err != nil {
				s.notice("%v", err)
				continue
			}
			if quit {
				return nil
			}
			if text == "" {
				continue
			}
			line = text
		}

		reply, err := s.app.assistant.Respond(ctx, s.console(), assistant.Turn{
			Conversation: s.conversation,
			Text:         line,
			Persona:      s.persona,
		})
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
		s.app.logger.Debug("turn finished",
			"status", reply.Status,
			"sessions", reply.Sessions,
			"tool_calls", len(reply.Calls),
		)
	}
}

// command runs a slash command. It returns the text of a turn to send
// when line is a plugin prompt command, and whether the chat should end.
func (s *chatSession) command(ctx context.Context, line string) (string, bool, error) {
	name, arg := plugin.ParseCommandInput(line)
	switch name {
	case "quit", "exit":
		return "", true, nil
	case "reset":
		if err := s.app.history.Clear(ctx, s.conversation); err != nil {
			return "", false, err
		}
		s.notice("conversation %q cleared", s.conversation)
	case "persona":
		if arg == "" {
			p, err := s.app.personas.Get(s.persona)
			if err != nil {
				return "", false, err
			}
			s.notice("persona: %s", p.Name)
			return "", false, nil
		}
		if _, err := s.app.personas.Get(arg); err != nil {
			return "", false, err
		}
		s.persona = arg
		s.notice("persona: %s", arg)
	case "personas":
		for _, n := range s.app.personas.Names() {
			s.notice("  %s", n)
		}
	case "commands":
		for _, c := range s.app.commands.All() {
			s.notice("  /%s  %s", c.Name, c.Description)
		}
	case "help":
		s.notice("%s", chatHelp)
	default:
		text, err := s.app.commands.Expand(line)
		if errors.Is(err, plugin.ErrCommandNotFound) {
			return "", false, fmt.Errorf("unknown command /%s (try /help)", name)
		}
		return text, false, err
	}
	return "", false, nil
}
