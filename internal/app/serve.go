package app

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/hitoshi/campuslink/internal/devserver"
	"github.com/hitoshi/campuslink/internal/metrics"
	"github.com/hitoshi/campuslink/internal/security"
	"github.com/hitoshi/campuslink/internal/technews"
)

func (c *cli) importNewsCmd() *cobra.Command {
	var opts technews.Options
	cmd := &cobra.Command{
		Use:   "import-news <feed-url>",
		Short: "Import an RSS/Atom feed into tech news (admin only)",
		Args:  cobra.ExactArgs(1),
		RunE: c.withClient(func(ctx context.Context, cmd *cobra.Command, cl *Client, args []string) error {
			if err := requireLogin(cl); err != nil {
				return err
			}

			guard := c.env.FeedGuard
			feedClient := c.env.FeedClient
			if guard == nil || feedClient == nil {
				g := security.NewGuard()
				if guard == nil {
					guard = g
				}
				if feedClient == nil {
					feedClient = g.NewSafeClient(cl.Config.FeedFetchTimeout)
				}
			}

			importer := technews.NewImporter(guard, feedClient, cl.Portal, cl.Collector, cl.Logger, cl.Config.FeedMaxSize)
			res, err := importer.Import(ctx, args[0], opts)
			if res != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d of %d items (%d skipped)\n", res.Created, res.Parsed, res.Skipped)
			}
			return err
		}),
	}
	cmd.Flags().StringVar(&opts.Type, "type", technews.DefaultType, "tech news type for imported items")
	cmd.Flags().IntVar(&opts.Limit, "limit", 10, "maximum number of items to import")
	cmd.Flags().IntVar(&opts.Priority, "priority", 1, "priority for imported items")
	return cmd
}

func (c *cli) devserverCmd() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Run the in-memory development backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := Init(c.env)
			if err != nil {
				return err
			}
			if port == "" {
				port = cfg.DevServerPort
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

			srv, err := devserver.New(devserver.Config{
				JWTSecret:         cfg.DevServerJWTSecret,
				TokenTTL:          cfg.DevServerTokenTTL,
				IdentityAPIKey:    cfg.IdentityAPIKey,
				RateLimitPerMin:   cfg.RateLimitGeneral,
				CORSAllowedOrigin: cfg.CORSAllowedOrigin,
			}, metrics.NewCollector(reg), reg, log)
			if err != nil {
				return fmt.Errorf("failed to start devserver (set DEVSERVER_JWT_SECRET): %w", err)
			}
			defer srv.Close()

			addr := net.JoinHostPort("", port)
			log.Info("devserver configured",
				slog.String("addr", addr),
				slog.String("identity_base_url", "http://localhost"+addr+"/identity/v1"),
			)
			return srv.ListenAndServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (default DEVSERVER_PORT)")
	return cmd
}
