package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hyperengineering/grantscan/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the questionnaire, scan and report API over HTTP",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	// 1. Signal handling
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// 2. Load configuration, logger and components
	a, err := newApp(ctx, os.Stdout, "")
	if err != nil {
		return err
	}
	slog.SetDefault(a.logger)
	slog.Info("configuration loaded",
		"scope", a.cfg.Store.Scope,
		"service_url", a.cfg.Service.BaseURL,
		"overlap_policy", a.scans.Policy(),
	)
	slog.Info("store initialized", "path", a.cfg.Store.Path)
	slog.Info("narrative initialized", "model_enabled", a.narrative.Enabled())

	// 3. Initialize HTTP router
	handler := api.NewHandler(api.Deps{
		Wizard:    a.wizard,
		Scans:     a.scans,
		Grants:    a.service,
		Narrative: a.narrative,
		Exporter:  a.exporter,
		APIKey:    a.cfg.Server.APIKey,
		Version:   Version,
	})
	if a.cfg.Server.APIKey == "" {
		slog.Warn("no API key configured, API is unauthenticated")
	}

	// 4. Configure HTTP server
	addr := fmt.Sprintf(":%d", a.cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      api.NewRouter(handler),
		ReadTimeout:  time.Duration(a.cfg.Server.ReadTimeout),
		WriteTimeout: time.Duration(a.cfg.Server.WriteTimeout),
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		a.Close()
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	// 5. Serve until a signal arrives, then drain
	serveErr := serve(ctx, srv, ln, time.Duration(a.cfg.Server.ShutdownTimeout))

	// 6. Close store
	if err := a.Close(); err != nil {
		slog.Error("store close error", "error", err)
	}

	slog.Info("shutdown complete")
	return serveErr
}

// serve runs srv on ln until ctx is done or the server fails, then shuts
// it down, letting in-flight requests finish within shutdownTimeout.
func serve(ctx context.Context, srv *http.Server, ln net.Listener, shutdownTimeout time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("server starting", "address", ln.Addr().String())
		// ErrServerClosed is the expected error when Shutdown() is called gracefully.
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown initiated")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
