package commands

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/i2y/parley/persona"
	"github.com/i2y/parley/plugin"
)

var (
	nameStyle   = lipgloss.NewStyle().Bold(true)
	detailStyle = lipgloss.NewStyle().Faint(true)
)

func newPersonasCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "personas",
		Aliases: []string{"persona"},
		Short:   "List the available personas",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			plugins, err := plugin.LoadAll(cfg.Plugins)
			if err != nil {
				return err
			}
			lib, err := loadPersonas(cfg.PersonaDir, plugins)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, p := range lib.All() {
				name := p.Name
				if p.Name == cfg.Persona || (cfg.Persona == "" && p.Name == persona.DefaultName) {
					name += " *"
				}
				fmt.Fprintln(out, nameStyle.Render(name))
				if p.Description != "" {
					fmt.Fprintln(out, "  "+p.Description)
				}
				var details []string
				if p.Model != "" {
					details = append(details, "model="+p.Model)
				}
				if p.Pacing != "" {
					details = append(details, "pacing="+p.Pacing)
				}
				if len(p.Tools) > 0 {
					details = append(details, "tools="+strings.Join(p.Tools, ","))
				}
				if p.Path != "" {
					details = append(details, p.Path)
				}
				if len(details) > 0 {
					fmt.Fprintln(out, "  "+detailStyle.Render(strings.Join(details, " ")))
				}
			}
			return nil
		},
	}
}
