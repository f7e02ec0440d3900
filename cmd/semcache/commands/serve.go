package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/semcache/internal/api"
)

// NewServeCmd creates the serve command
func NewServeCmd(opts *globalOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP search API",
		Long: `Serve the search API over HTTP.

Routes:
  POST /api/v1/search   {"query": "...", "k": 5, "alpha": 0.5, "rerank": true}
  GET  /api/v1/health
  GET  /metrics

Examples:
  semcache serve
  semcache serve --addr 127.0.0.1:9000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			eng, logger, err := opts.openEngine(ctx, cmd)
			if err != nil {
				return err
			}
			defer eng.Close()

			if addr == "" {
				addr = eng.Config().HTTPAddr
			}

			srv := api.NewServer(eng, api.WithLogger(logger), api.WithMetrics(eng.Metrics()))
			if err := srv.ListenAndServe(ctx, addr); err != nil {
				return err
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides http_addr)")
	return cmd
}
