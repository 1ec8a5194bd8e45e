package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"vidframe/internal/history"
	"vidframe/internal/media"
	"vidframe/internal/provider"
	"vidframe/internal/ui"
)

var (
	flagClear bool
	flagLimit int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Resume from watch history",
	Args:  cobra.NoArgs,
	RunE:  historyRun,
}

func init() {
	historyCmd.Flags().BoolVar(&flagClear, "clear", false, "Delete all history entries")
	historyCmd.Flags().IntVarP(&flagLimit, "limit", "n", 50, "Number of entries to show")
}

func historyRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	h := history.New(st.DB())

	if flagClear {
		ok, err := ui.Confirm("Clear all watch history?")
		if err != nil || !ok {
			return err
		}
		return h.Clear(ctx)
	}

	entries, err := h.List(ctx, flagLimit)
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}

	if flagJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No history entries found.")
		return nil
	}

	items := history.FormatForDisplay(entries)
	idx, err := ui.Select("History", items)
	if err != nil {
		return err
	}

	selected := entries[idx]
	debugf("resuming: %s (%s %s)", selected.Title, selected.Kind, selected.CatalogID)

	// Resume exactly where the entry points: the series opens at the
	// stored progress, and the entry's provider becomes the preference.
	if selected.Kind == media.Series {
		rec := media.ProgressRecord{SeriesID: selected.CatalogID, Season: selected.Season, Episode: selected.Episode}
		if err := st.SaveProgress(ctx, rec); err != nil {
			return fmt.Errorf("restoring progress: %w", err)
		}
	}
	if flagProvider == "" && provider.Default().Has(selected.Provider) {
		if err := st.SaveProvider(ctx, selected.Provider); err != nil {
			debugf("restoring provider: %v", err)
		}
	}

	return watch(ctx, cmd, st, selected.Kind, selected.CatalogID, selected.Title)
}
