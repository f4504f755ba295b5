// Package main is the entry point for the birthday bot admin API.
//
// It loads the configuration, builds the application graph, mounts the admin
// router and serves it over HTTP until SIGINT or SIGTERM, then shuts down
// gracefully.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"birthdaybot/internal/api"
	"birthdaybot/internal/app"
	"birthdaybot/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig(config.ProviderFromEnv())
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := app.NewLogger(cfg)
	logger.Info("birthday bot admin API starting",
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Admin.Port,
	)
	if cfg.Admin.TokenHash.IsZero() {
		logger.Warn("ADMIN_TOKEN_HASH is not set; every protected endpoint will answer 401")
	}

	ctx := context.Background()
	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}

	srv, err := newServer(a)
	if err != nil {
		a.Close(ctx)
		return fmt.Errorf("creating server: %w", err)
	}

	return runHTTPServer(srv, a, logger)
}

func newServer(a *app.App) (*api.Server, error) {
	return api.NewServer(api.ServerDeps{
		Celebrations: a.Pipeline,
		Birthdays:    a.Repos.Birthdays,
		Immediate:    a.Immediate,
		Races:        a.Races,
		Probes: []api.HealthProbe{
			api.DatabaseProbe{DB: a.Pool},
			api.SlackProbe{Slack: a.Slack},
		},
		TokenHash:      a.Config.Admin.TokenHash.Unmask(),
		DefaultChannel: a.Config.Slack.BirthdayChannel,
		Generation:     a.GenerationDefaults(),
		Version:        a.Config.Build.Version,
		Logger:         a.Logger.With("component", "api"),
	})
}

// runHTTPServer serves srv with graceful shutdown.
func runHTTPServer(srv *api.Server, a *app.App, logger *slog.Logger) error {
	addr := ":" + a.Config.Admin.Port

	// WriteTimeout sits above the request context timeout so that slow test
	// celebrations still get their error envelope written.
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      4 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			a.Close(context.Background())
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	a.Close(ctx)

	logger.Info("server stopped cleanly")
	return nil
}
