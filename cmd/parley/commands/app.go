package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/i2y/parley/assistant"
	"github.com/i2y/parley/config"
	"github.com/i2y/parley/history"
	"github.com/i2y/parley/mcp"
	"github.com/i2y/parley/persona"
	"github.com/i2y/parley/plugin"
	"github.com/i2y/parley/provider"
	"github.com/i2y/parley/tools"
)

// app is the assembled assistant and the resources it owns.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	personas  *persona.Library
	commands  *plugin.Commands
	plugins   []*plugin.Plugin
	history   history.Store
	assistant *assistant.Assistant

	closers []func() error
}

// newApp builds the assistant described by cfg. logs receives the
// process log.
func newApp(ctx context.Context, cfg *config.Config, providers *provider.Registry, logs io.Writer) (_ *app, err error) {
	logger, err := cfg.NewLogger(logs)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	adapter, err := providers.New(cfg.Provider, provider.Settings{APIKey: cfg.APIKey(cfg.Provider)})
	if err != nil {
		return nil, err
	}

	if a.plugins, err = plugin.LoadAll(cfg.Plugins); err != nil {
		return nil, err
	}
	if a.commands, err = plugin.NewCommands(a.plugins...); err != nil {
		return nil, err
	}
	if a.personas, err = loadPersonas(cfg.PersonaDir, a.plugins); err != nil {
		return nil, err
	}
	if cfg.Persona != "" {
		if _, err := a.personas.Get(cfg.Persona); err != nil {
			return nil, err
		}
	}

	registry, err := a.tools(ctx)
	if err != nil {
		return nil, err
	}

	if err := a.openHistory(); err != nil {
		return nil, err
	}

	pc, err := cfg.PacingConfig("")
	if err != nil {
		return nil, err
	}

	opts := []assistant.Option{
		assistant.WithModel(cfg.ResolvedModel()),
		assistant.WithPersonas(a.personas, cfg.Persona),
		assistant.WithTools(registry),
		assistant.WithHistory(a.history, cfg.History.Limit),
		assistant.WithStreamConfig(cfg.StreamConfig()),
		assistant.WithPacing(pc),
		assistant.WithMaxMessageSize(cfg.Delivery.MaxMessageSize),
		assistant.WithReplyToInput(cfg.Delivery.ReplyToInput),
		assistant.WithLogger(logger),
	}
	if cfg.Temperature != nil {
		opts = append(opts, assistant.WithTemperature(*cfg.Temperature))
	}
	if cfg.MaxTokens != nil {
		opts = append(opts, assistant.WithMaxTokens(*cfg.MaxTokens))
	}
	a.assistant = assistant.New(adapter, opts...)

	logger.Info("assistant ready",
		"provider", cfg.Provider,
		"model", cfg.ResolvedModel(),
		"personas", len(a.personas.Names()),
		"tools", registry.Len(),
		"plugins", len(a.plugins),
	)
	return a, nil
}

// loadPersonas merges the persona directory with plugin personas. Plugin
// personas replace directory personas of the same name.
func loadPersonas(dir string, plugins []*plugin.Plugin) (*persona.Library, error) {
	lib, err := persona.LoadDir(dir)
	if err != nil {
		return nil, err
	}
	if len(plugins) == 0 {
		return lib, nil
	}
	ps := lib.All()
	for _, p := range plugins {
		ps = append(ps, p.Personas...)
	}
	return persona.NewLibrary(ps...), nil
}

func (a *app) tools(ctx context.Context) (*tools.Registry, error) {
	registry := tools.NewRegistry(tools.Builtin(a.cfg.Tools.Web)...)

	servers := a.cfg.MCPServers()
	for _, p := range a.plugins {
		servers = append(servers, p.MCPServers...)
	}
	if len(servers) == 0 {
		return registry, nil
	}
	remote, closeMCP, err := mcp.Launch(ctx, servers)
	if err != nil {
		return nil, fmt.Errorf("starting MCP servers: %w", err)
	}
	a.closers = append(a.closers, closeMCP)
	registry.Register(remote...)
	return registry, nil
}

func (a *app) openHistory() error {
	if a.cfg.History.InMemory {
		a.history = history.NewMemory()
	} else {
		b, err := history.OpenBadger(history.BadgerOptions{Dir: a.cfg.History.Dir, Logger: a.logger})
		if err != nil {
			return err
		}
		a.history = b
	}
	a.closers = append(a.closers, a.history.Close)
	return nil
}

// Close releases the history store and stops MCP servers.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
