package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"vidframe/internal/log"
	"vidframe/internal/provider"
	"vidframe/internal/server"
)

const shutdownTimeout = 5 * time.Second

var flagListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the provider API, playback sessions and the sandboxed embed proxy",
	Args:  cobra.NoArgs,
	RunE:  serveRun,
}

func init() {
	serveCmd.Flags().StringVar(&flagListen, "listen", "", "Listen address (default from config)")
}

func serveRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger := log.WithComponent("serve")

	addr := cfg.Listen
	if flagListen != "" {
		addr = flagListen
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	opts := server.Options{
		Registry:    provider.Default(),
		Progress:    st,
		Preferences: st,
		History:     recorder(st),
		ReloadDelay: cfg.ReloadDelay,
	}
	if catalog := newCatalog(); catalog != nil {
		opts.Catalog = catalog
		opts.Titles = catalog
	} else {
		logger.Warn().Msg("no TMDB API key configured, series sessions are disabled")
	}

	srv := server.New(opts)
	defer srv.Close()

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", addr).Msg("listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info().Msg("shutting down")
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
