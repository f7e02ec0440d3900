package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/semcache/pkg/types"
)

// NewSearchCmd creates the search command
func NewSearchCmd(opts *globalOptions) *cobra.Command {
	var (
		k      int
		alpha  float64
		rerank bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed corpus",
		Long: `Run one hybrid search against the indexed corpus.

alpha weights vector similarity against BM25: 1 is vector only, 0 is
keyword only.

Examples:
  semcache search "how do cats sleep"
  semcache search --k 10 --alpha 0.7 "python syntax"
  semcache search --rerank=false --format json "loyal pets"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validatePositiveInt(k, "k"); err != nil {
				return err
			}

			eng, _, err := opts.openEngine(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer eng.Close()

			results, err := eng.Search(cmd.Context(), types.SearchRequest{
				Query:  args[0],
				K:      k,
				Alpha:  alpha,
				Rerank: rerank,
			})
			if err != nil {
				return fmt.Errorf("searching: %w", err)
			}

			if opts.format == "json" {
				return printJSON(cmd, map[string]interface{}{"results": results})
			}

			if len(results) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No results for query: %s\n", args[0])
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "RANK\tSCORE\tVECTOR\tBM25\tCHUNK\tPREVIEW\n")
			for i, r := range results {
				fmt.Fprintf(w, "%d\t%.3f\t%.3f\t%.3f\t%s\t%s\n",
					i+1, r.FusedScore, r.VectorScore, r.LexicalScore, r.ChunkID, truncate(r.Content, 60))
			}
			if err := w.Flush(); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout())
			for i, r := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "%d. %s\n", i+1, r.Explanation)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&k, "k", types.DefaultK, "Maximum results to return")
	cmd.Flags().Float64Var(&alpha, "alpha", types.DefaultAlpha, "Vector weight between 0 and 1")
	cmd.Flags().BoolVar(&rerank, "rerank", true, "Rescore top candidates with the reranker")
	return cmd
}
