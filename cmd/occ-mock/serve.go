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

	"github.com/objectedge/occ-tools-sub002/pkg/config"
	"github.com/objectedge/occ-tools-sub002/pkg/controller"
	"github.com/objectedge/occ-tools-sub002/pkg/engine"
	"github.com/objectedge/occ-tools-sub002/pkg/matcher"
	"github.com/objectedge/occ-tools-sub002/pkg/proxy"
	"github.com/objectedge/occ-tools-sub002/pkg/store"
	"github.com/objectedge/occ-tools-sub002/pkg/toggles"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the virtualization server",
	Example: `  # Serve on :9000 with ./occ-mock.db
  OCC_MOCK_ENV=dev OCC_MOCK_REMOTE_URL=https://store.example.com occ-mock serve

  # Serve with a config file
  occ-mock serve --config occ-mock.yaml`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// newHandler wires the store, engine and admin routes for the configured
// environment
func newHandler(ctx context.Context, cfg *config.Config, s *store.Store) (http.Handler, error) {
	env := &store.Environment{
		Name:          cfg.Environment.Name,
		RemoteBaseURL: cfg.Environment.RemoteBaseURL,
		LocalBaseURL:  cfg.Environment.LocalBaseURL,
	}
	if err := s.UpsertEnvironment(ctx, env); err != nil {
		return nil, fmt.Errorf("failed to register environment: %w", err)
	}

	filter := &proxy.Filter{
		Include: cfg.Recording.Include,
		Exclude: cfg.Recording.Exclude,
	}
	if err := filter.Validate(); err != nil {
		return nil, fmt.Errorf("invalid recording filter: %w", err)
	}

	reg := toggles.New(cfg.Toggles.ProxyAllApis, cfg.Toggles.SyncAllApis)
	coordinator := proxy.New(s, proxy.Options{
		Timeout:        cfg.Proxy.Timeout,
		MaxRecordBytes: cfg.Proxy.MaxRecordBytes,
		SchemaPath:     cfg.Recording.SchemaPath,
		Filter:         filter,
	})
	eng := engine.New(env, matcher.New(s), coordinator, reg)

	slog.Info("environment ready", "environment", env.Name, "remote", env.RemoteBaseURL,
		"proxyAllApis", reg.ForceProxy(), "syncAllApis", reg.Sync())
	return controller.NewController(s, eng, reg, cfg.Mock.Dir).SetupRouter(), nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	if config.InContainer() {
		remote := config.ContainerRemote(cfg.Environment.RemoteBaseURL)
		if remote != cfg.Environment.RemoteBaseURL {
			slog.Info("running in a container, rewriting remote base URL", "from", cfg.Environment.RemoteBaseURL, "to", remote)
			cfg.Environment.RemoteBaseURL = remote
		}
	}

	s, err := store.Open(ctx, cfg.Database.Path)
	if err != nil {
		return err
	}
	defer func() {
		slog.Info("closing database store")
		s.Close()
	}()

	handler, err := newHandler(ctx, cfg, s)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		slog.Info("server starting", "address", cfg.Listen, "database", cfg.Database.Path, "mockDir", cfg.Mock.Dir)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		slog.Error("server error, shutting down", "error", err)
		return err
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)

		slog.Info("initiating graceful server shutdown", "timeout", "5s")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
			return err
		}

		slog.Info("server shutdown complete")
		return nil
	}
}
