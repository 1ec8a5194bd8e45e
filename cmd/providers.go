package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"vidframe/internal/provider"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List embed providers",
	Args:  cobra.NoArgs,
	RunE:  providersRun,
}

func providersRun(cmd *cobra.Command, args []string) error {
	list := provider.Default().List()
	out := cmd.OutOrStdout()

	if flagJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, d := range list {
		marker := " "
		if d.ID == cfg.Provider {
			marker = "*"
		}
		fmt.Fprintf(tw, "%s %s\t%s\n", marker, d.ID, d.Label())
	}
	return tw.Flush()
}
