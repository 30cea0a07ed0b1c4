package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"investment-chat/internal/api"
	"investment-chat/internal/common/config"

	"github.com/spf13/cobra"
)

func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat API, health and metrics endpoints",
		Long: `Serve POST /api/chat, /health, /ready and /metrics.

When camunda.enabled is set, every pipeline step is also registered as a
Zeebe job worker.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), rootOpts, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default server.address)")
	return cmd
}

func runServe(ctx context.Context, rootOpts *RootOptions, addr string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx, rootOpts, false)
	if err != nil {
		return err
	}
	defer a.Close()
	log := a.Logger

	workers, err := a.StartWorkers(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := workers.Stop(); err != nil {
			log.Error("Error closing Zeebe client", map[string]interface{}{"error": err.Error()})
		}
	}()

	opts := make([]api.Option, 0, len(a.Checks()))
	for name, check := range a.Checks() {
		opts = append(opts, api.WithCheck(name, check))
	}

	if addr == "" {
		addr = a.Config.Server.Address
	}
	srv := &http.Server{
		Addr:         addr,
		Handler:      api.NewServer(a.Chat, log, opts...).Routes(),
		ReadTimeout:  config.GetDuration(a.Config.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(a.Config.Server.WriteTimeout),
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", map[string]interface{}{"addr": addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutdown signal received, stopping server...", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("Server stopped gracefully", nil)
	return nil
}
