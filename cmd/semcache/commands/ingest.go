package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// NewIngestCmd creates the ingest command
func NewIngestCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest [dir]",
		Short: "Index a directory of .txt documents",
		Long: `Chunk, embed and index every .txt file in a directory, replacing the
current corpus. Chunks whose content is unchanged since the last ingest
reuse their cached embeddings.

Examples:
  semcache ingest
  semcache ingest ./corpus
  semcache ingest --format json ./corpus`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, _, err := opts.openEngine(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer eng.Close()

			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}

			stats, err := eng.Ingest(cmd.Context(), dir)
			if err != nil {
				return fmt.Errorf("ingesting documents: %w", err)
			}

			if opts.format == "json" {
				return printJSON(cmd, map[string]interface{}{
					"files_loaded":    stats.FilesLoaded,
					"chunks_total":    stats.ChunksTotal,
					"chunks_embedded": stats.ChunksEmbedded,
					"chunks_reused":   stats.ChunksReused,
					"duration_ms":     stats.Duration.Milliseconds(),
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Files loaded:    %d\n", stats.FilesLoaded)
			fmt.Fprintf(out, "Chunks:          %d\n", stats.ChunksTotal)
			fmt.Fprintf(out, "Embedded:        %d\n", stats.ChunksEmbedded)
			fmt.Fprintf(out, "Reused (cached): %d\n", stats.ChunksReused)
			fmt.Fprintf(out, "Duration:        %s\n", stats.Duration.Round(time.Millisecond))
			return nil
		},
	}
}
