package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/knoguchi/kbsearch/internal/auth"
	"github.com/knoguchi/kbsearch/internal/server"
)

func newServeCmd(c *cli) *cobra.Command {
	var noAuth bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the search HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.serve(cmd.Context(), noAuth)
		},
	}

	cmd.Flags().BoolVar(&noAuth, "no-auth", false, "serve /v1 routes without bearer tokens")
	return cmd
}

func (c *cli) serve(ctx context.Context, noAuth bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg := c.cfg
	c.logger.Info("starting kbsearch",
		"version", version,
		"http_port", cfg.HTTPPort,
		"environment", cfg.Environment,
		"rerank_provider", cfg.RerankProvider,
	)

	comp, err := c.build(ctx)
	if err != nil {
		return err
	}
	defer comp.close()

	authMiddleware := auth.Middleware(auth.NewJWTManager(&auth.JWTConfig{
		Secret: cfg.JWTSecret,
		Expiry: cfg.JWTExpiry,
	}), c.logger)
	if noAuth {
		c.logger.Warn("authentication disabled")
		authMiddleware = nil
	}

	httpServer, err := server.NewHTTPServer(server.HTTPServerConfig{
		Port:               cfg.HTTPPort,
		Logger:             c.logger,
		AllowedOrigins:     []string{"*"}, // Configure in production
		Auth:               authMiddleware,
		DefaultRerankLimit: cfg.RerankLimit,
	}, server.Services{
		Search:   comp.search,
		Datasets: comp.catalog,
		Ready:    comp.ready,
	})
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil {
			errCh <- err
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		c.logger.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		c.logger.Error("failed to shutdown HTTP server", "error", err)
	}

	c.logger.Info("server stopped")
	return nil
}
