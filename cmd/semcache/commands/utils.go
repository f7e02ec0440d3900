package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func validatePositiveInt(value int, name string) error {
	if value <= 0 {
		return fmt.Errorf("--%s must be positive, got %d", name, value)
	}
	return nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\n", data)
	return nil
}

// truncate shortens s to at most n runes, appending "..." when cut
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
