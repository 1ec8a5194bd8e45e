package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"vidframe/internal/media"
	"vidframe/internal/provider"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <movie|tv> <id> [season] [episode]",
	Short: "Print the embed URL of a movie or episode",
	Example: `  vidframe resolve movie 603
  vidframe resolve tv 1399 1 3 -p vidsrc`,
	Args: cobra.RangeArgs(2, 4),
	RunE: resolveRun,
}

func resolveRun(cmd *cobra.Command, args []string) error {
	ref, err := parseRef(args)
	if err != nil {
		return err
	}
	url, err := provider.Resolve(ref, cfg.Provider)
	if err != nil {
		return err
	}

	if flagJSON {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{
			"provider": cfg.Provider,
			"url":      url,
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), url)
	return nil
}

// parseRef builds a MediaRef from positional args: kind, id, season, episode.
func parseRef(args []string) (media.MediaRef, error) {
	kind, err := media.ParseKind(args[0])
	if err != nil {
		return media.MediaRef{}, err
	}
	if kind == media.Movie {
		if len(args) > 2 {
			return media.MediaRef{}, fmt.Errorf("%w: movies take no season or episode", media.ErrInvalidRef)
		}
		ref := media.MovieRef(args[1])
		return ref, ref.Validate()
	}

	season, episode := "", ""
	if len(args) > 2 {
		season = args[2]
	}
	if len(args) > 3 {
		episode = args[3]
	}
	ref := media.EpisodeRef(args[1], season, episode)
	if !ref.Complete() {
		return ref, nil
	}
	return ref, ref.Validate()
}
