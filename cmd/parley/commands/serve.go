package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/i2y/parley/gateway"
	"github.com/i2y/parley/provider"
)

func newServeCmd(flags *globalFlags, providers *provider.Registry) *cobra.Command {
	var (
		addr string
		path string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the assistant over a websocket gateway",
		Long: `Serve websocket chat clients. Each connection is a conversation; clients
send {"type":"message","id":"...","text":"..."} frames and receive
typing, message and done frames.

Examples:
  parley serve
  parley serve --addr 0.0.0.0:9000 --path /chat`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Gateway.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, providers, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			srv := gateway.NewServer(a.assistant,
				gateway.WithLogger(a.logger),
				gateway.WithCommands(a.commands),
			)
			a.logger.Info("gateway listening", "addr", cfg.Gateway.Addr, "path", path)
			return gateway.ListenAndServe(ctx, cfg.Gateway.Addr, path, srv)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringVar(&path, "path", "/ws", "websocket endpoint path")
	return cmd
}
