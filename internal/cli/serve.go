package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/ercanvas/internal/server"
	"github.com/matzehuels/ercanvas/pkg/storage"
)

// serveCommand creates the "serve" command.
func (c *CLI) serveCommand() *cobra.Command {
	var addr string
	var noMetrics bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the canvas HTTP API",
		Long: `Serve the canvas HTTP API.

Workspaces live under /api/workspaces/{id} and are saved to the configured
storage backend after every change. Prometheus metrics are served on /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			st, err := storage.Open(ctx, cfg.StorageConfig())
			if err != nil {
				return err
			}
			defer st.Close()

			ch, err := c.newCache(ctx, cfg)
			if err != nil {
				return err
			}
			defer ch.Close()

			opts := []server.Option{
				server.WithAddr(cfg.Server.Addr),
				server.WithLogger(c.Logger),
				server.WithStorage(st),
				server.WithLayout(cfg.Layout),
				server.WithExportCache(ch, cfg.Cache.TTL.Duration),
				server.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
				server.WithShutdownTimeout(cfg.Server.ShutdownTimeout.Duration),
			}
			if cfg.Tutor.APIKey != "" {
				opts = append(opts, server.WithTutor(c.newTutor(cfg, ch)))
			} else {
				printWarning("No API key configured; tutor endpoints are disabled")
				printNextStep("Set one with", "export GEMINI_API_KEY=...")
			}
			if !noMetrics {
				m := server.NewMetrics()
				m.Install()
				opts = append(opts, server.WithMetrics(m))
			}

			printInfo("Storage: %s", cfg.Storage.Backend)
			printInfo("Listening on %s", StyleLink.Render(cfg.Server.Addr))
			return server.New(opts...).Run(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().BoolVar(&noMetrics, "no-metrics", false, "disable the /metrics endpoint")
	return cmd
}
