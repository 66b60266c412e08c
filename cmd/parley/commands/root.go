// Package commands implements the parley subcommands.
package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/i2y/parley/anthropic"
	"github.com/i2y/parley/config"
	"github.com/i2y/parley/gemini"
	"github.com/i2y/parley/openai"
	"github.com/i2y/parley/provider"
)

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	configPath string
	envFiles   []string
	provider   string
	model      string
	persona    string
}

// Execute runs the root command with the built-in providers.
func Execute() error {
	return newRootCmd(defaultProviders()).Execute()
}

func defaultProviders() *provider.Registry {
	r := provider.NewRegistry()
	openai.Register(r)
	anthropic.Register(r)
	gemini.Register(r)
	return r
}

func newRootCmd(providers *provider.Registry) *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:   "parley",
		Short: "A streaming chat assistant with human-like delivery",
		Long: `parley - chat with an LLM that answers the way people type.

Replies stream from the provider, are split at natural boundaries and
delivered as separate paced messages.

Configuration is read from parley.yaml in the working directory (or the
--config path), then .env, then PARLEY_* environment variables.

Examples:
  # Chat in the terminal
  parley chat

  # Chat as a specific persona with another provider
  parley chat --persona pirate --provider anthropic

  # Serve websocket clients
  parley serve --addr 0.0.0.0:8080`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", config.DefaultPath, "config file")
	pf.StringSliceVar(&flags.envFiles, "env-file", nil, "env files to load (default .env)")
	pf.StringVar(&flags.provider, "provider", "", "provider override ("+strings.Join(config.ValidProviders, ", ")+")")
	pf.StringVar(&flags.model, "model", "", "model override")
	pf.StringVar(&flags.persona, "persona", "", "persona override")

	root.AddCommand(
		newChatCmd(flags, providers),
		newServeCmd(flags, providers),
		newPersonasCmd(flags),
	)
	return root
}

// loadConfig reads the configuration and applies the command line
// overrides.
func (f *globalFlags) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(f.configPath, f.envFiles...)
	if err != nil {
		return nil, err
	}
	if f.provider != "" {
		cfg.Provider = f.provider
		if f.model == "" && cfg.Model != "" {
			// The configured model belongs to the configured provider.
			cfg.Model = ""
		}
	}
	if f.model != "" {
		cfg.Model = f.model
	}
	if f.persona != "" {
		cfg.Persona = f.persona
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
