package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dvloznov/bank-sync/internal/api"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the sync trigger API with an embedded worker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, ctx, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			w, err := startWorker(ctx, a)
			if err != nil {
				return err
			}

			srv := &http.Server{
				Addr: a.cfg.Server.Addr,
				Handler: api.NewRouter(api.Deps{
					Publisher: w.queue,
					JobStore:  w.store,
					Log:       a.log,
					AuthToken: a.cfg.Server.AuthToken,
				}),
				ReadHeaderTimeout: 10 * time.Second,
			}

			serveErr := make(chan error, 1)
			go func() {
				a.log.Info().Str("addr", srv.Addr).Msg("Starting HTTP server")
				serveErr <- srv.ListenAndServe()
			}()

			select {
			case err := <-serveErr:
				stop()
				_ = w.stop(a)
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return fmt.Errorf("serving: %w", err)
			case <-ctx.Done():
			}

			a.log.Info().Msg("Shutting down HTTP server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.log.Error().Err(err).Msg("HTTP server shutdown failed")
			}
			return w.stop(a)
		},
	}
}
