package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/semcache/internal/mcp"
)

// NewMCPCmd creates the mcp command
func NewMCPCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Run the MCP server on stdio",
		Long: `Run the Model Context Protocol server on stdio.

Exposes the search_documents, get_status and ingest_documents tools.
stdout carries protocol messages only; logs are written to stderr.

Example client configuration:
  {"command": "semcache", "args": ["mcp"]}`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			eng, logger, err := opts.openEngine(ctx, cmd)
			if err != nil {
				return err
			}
			defer eng.Close()

			return mcp.NewServer(eng, logger).Serve(ctx)
		},
	}
}
