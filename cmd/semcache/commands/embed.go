package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewEmbedCmd creates the embed command
func NewEmbedCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "embed <text>",
		Short: "Embed text with the configured provider",
		Long: `Embed a piece of text with the configured embedding provider and print
the vector. Useful for checking provider credentials and dimensions.

Examples:
  semcache embed "hello world"
  SEMCACHE_EMBEDDING_PROVIDER=ollama semcache embed --format json "hello"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, _, err := opts.openEngine(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer eng.Close()

			emb, err := eng.Embed(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("embedding: %w", err)
			}

			if opts.format == "json" {
				return printJSON(cmd, map[string]interface{}{
					"provider":  emb.Provider,
					"model":     emb.Model,
					"dimension": emb.Dimension,
					"hash":      emb.Hash,
					"vector":    emb.Vector,
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Provider:  %s\n", emb.Provider)
			fmt.Fprintf(out, "Model:     %s\n", emb.Model)
			fmt.Fprintf(out, "Dimension: %d\n", emb.Dimension)
			preview := emb.Vector
			if len(preview) > 8 {
				preview = preview[:8]
			}
			fmt.Fprintf(out, "Vector:    %v...\n", preview)
			return nil
		},
	}
}
