package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	syncapp "github.com/stitchflow-website/dirsync/internal/app"
	"github.com/stitchflow-website/dirsync/internal/config"
	"github.com/stitchflow-website/dirsync/internal/telemetry"
	"github.com/stitchflow-website/dirsync/internal/versions"
)

const (
	defaultGracefulTimeout = 30 * time.Second // Kubernetes-friendly shutdown time
	telemetryFlushTimeout  = 10 * time.Second
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the sync API server and its stage workers",
		Long: `Start the sync API server together with the stage workers.

The server requires a configuration file (--config) that specifies:
- Storage backend (memory or database)
- Directory provider endpoints and OAuth2 client
- Stage timeouts, staleness thresholds and the dispatch mode
- Telemetry exporters`,
		RunE: runServe,
	}

	cmd.Flags().String("address", ":8080", "Address to listen on (env DIRSYNC_ADDRESS)")
	cmd.Flags().String("config", "", "Path to configuration file (YAML format, required; env DIRSYNC_CONFIG)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	v, err := bindFlags(cmd, "address", "config")
	if err != nil {
		return err
	}
	address := v.GetString("address")
	path, err := configPath(v)
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfig(config.WithConfigPath(path))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	slog.Info("Loaded configuration",
		"path", path,
		"storage", cfg.GetStorageType(),
		"dispatch_mode", cfg.Pipeline.GetDispatchMode())

	tel, err := telemetry.New(ctx, withServiceVersion(cfg.Telemetry))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), telemetryFlushTimeout)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shut down telemetry", "error", err)
		}
	}()

	syncApp, err := syncapp.NewSyncApp(ctx,
		syncapp.WithConfig(cfg),
		syncapp.WithAddress(address),
		syncapp.WithTelemetry(tel),
	)
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- syncApp.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		slog.Info("Received shutdown signal", "signal", sig.String())
	case err := <-errChan:
		if stopErr := syncApp.Stop(defaultGracefulTimeout); stopErr != nil {
			slog.Error("Failed to stop application", "error", stopErr)
		}
		return err
	}

	return syncApp.Stop(defaultGracefulTimeout)
}

// withServiceVersion fills in the binary version when the config does not name one
func withServiceVersion(cfg *telemetry.Config) *telemetry.Config {
	if cfg == nil || cfg.ServiceVersion != "" {
		return cfg
	}
	withVersion := *cfg
	withVersion.ServiceVersion = versions.GetVersionInfo().Version
	return &withVersion
}
