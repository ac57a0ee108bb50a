package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/panshare/quarkshare/internal/config"
	"github.com/panshare/quarkshare/internal/session"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if flagListenAddr != "" {
				cfg.ListenAddr = flagListenAddr
			}

			logger := newLogger(cfg)
			slog.SetDefault(logger)

			return runServer(cmd.Context(), cfg, logger)
		},
	}

	cmd.Flags().StringVar(&flagListenAddr, "listen", "", "listen address (overrides config)")

	return cmd
}

// runServer wires the session store and HTTP server together and runs
// until SIGINT/SIGTERM, then shuts down gracefully. The session reaper
// runs for the server lifetime and stops with it.
func runServer(parent context.Context, cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := session.NewStore(cfg.TokenTTL(), logger)

	go store.Run(ctx, cfg.SweepInterval())

	srv := newServer(cfg, store, logger)

	httpSrv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.routes(),
	}

	errCh := make(chan error, 1)

	go func() {
		logger.Info("server listening", slog.String("addr", cfg.ListenAddr))
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving: %w", err)
		}

		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return nil
}
