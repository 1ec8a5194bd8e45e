package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"vidframe/internal/browser"
	"vidframe/internal/media"
	"vidframe/internal/playback"
	"vidframe/internal/provider"
	"vidframe/internal/store"
	"vidframe/internal/ui"
)

var (
	flagTitle  string
	flagNoOpen bool
)

var watchCmd = &cobra.Command{
	Use:   "watch <movie|tv> <id>",
	Short: "Watch a movie or series",
	Long: `Opens a movie, or a series at the last watched episode, and hands the
embed URL to the browser. In a terminal an interactive screen steps through
episodes, seasons and providers.`,
	Example: `  vidframe watch movie 603
  vidframe watch tv 1399 -p vidsrc`,
	Args: cobra.ExactArgs(2),
	RunE: watchRun,
}

func init() {
	watchCmd.Flags().StringVar(&flagTitle, "title", "", "Title recorded in history (looked up when empty)")
	watchCmd.Flags().BoolVar(&flagNoOpen, "no-open", false, "Do not open the browser")
}

func watchRun(cmd *cobra.Command, args []string) error {
	kind, err := media.ParseKind(args[0])
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	return watch(ctx, cmd, st, kind, args[1], flagTitle)
}

// watch opens a title and drives it until the user quits.
func watch(ctx context.Context, cmd *cobra.Command, st *store.Store, kind media.Kind, id, title string) error {
	// The configured provider is the starting point for new users; a
	// stored choice from an earlier session takes precedence.
	if _, ok, err := st.Provider(ctx); err == nil && !ok {
		if err := st.SaveProvider(ctx, cfg.Provider); err != nil {
			debugf("seeding provider preference: %v", err)
		}
	}
	if flagProvider != "" {
		if err := st.SaveProvider(ctx, cfg.Provider); err != nil {
			debugf("saving provider preference: %v", err)
		}
	}

	catalog := newCatalog()
	if kind == media.Series && catalog == nil {
		return errNoAPIKey
	}
	if title == "" {
		title = lookupTitle(ctx, catalog, kind, id)
	}

	var prog atomic.Pointer[tea.Program]
	opts := playback.Options{
		Registry:    provider.Default(),
		Progress:    st,
		Preferences: st,
		History:     recorder(st),
		ReloadDelay: cfg.ReloadDelay,
		OnChange: func(s playback.Snapshot) {
			if p := prog.Load(); p != nil {
				p.Send(ui.SnapshotMsg(s))
			}
		},
	}
	if catalog != nil {
		opts.Catalog = catalog
	}
	m := playback.New(ctx, opts)
	defer m.Close()

	m.SetTitle(title)
	if kind == media.Series {
		err := m.OpenSeries(ctx, id)
		if playback.IsRetryable(err) {
			debugf("retrying season list for %s", id)
			err = m.OpenSeries(ctx, id)
		}
		if err != nil {
			return err
		}
	} else if err := m.OpenMovie(ctx, id); err != nil {
		return err
	}

	opener := browser.New(cfg.Browser)
	interactive := !flagJSON && term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
	if !interactive {
		return watchOnce(ctx, cmd, m, opener)
	}

	model := ui.NewWatchModel(ctx, m, provider.Default(), opener, !flagNoOpen)
	p := tea.NewProgram(model, tea.WithContext(ctx))
	prog.Store(p)
	_, err := p.Run()
	prog.Store(nil)
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("watch screen: %w", err)
	}
	return nil
}

// watchOnce is the non-interactive path: record the play, print the URL,
// open it unless told not to.
func watchOnce(ctx context.Context, cmd *cobra.Command, m *playback.Machine, opener browser.Opener) error {
	if err := m.Submit(ctx); err != nil {
		return err
	}
	snap := m.Snapshot()

	out := cmd.OutOrStdout()
	if flagJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snap); err != nil {
			return err
		}
	} else if snap.URL == "" {
		fmt.Fprintf(out, "no playable URL for provider %q\n", snap.Provider)
	} else {
		fmt.Fprintln(out, snap.URL)
	}

	if flagNoOpen || !snap.Playable() {
		return nil
	}
	// The launcher must outlive this command.
	return opener.Open(context.WithoutCancel(ctx), snap.URL)
}
