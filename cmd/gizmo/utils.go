package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gizmoapp/gizmo/src/app"
	"github.com/gizmoapp/gizmo/src/config"
	"github.com/gizmoapp/gizmo/src/events"
)

// loadConfig loads the configuration from the specified path or default
// locations and applies global flags
func loadConfig(cli *CLI) (*config.Config, error) {
	precedence := config.GetConfigPaths()
	if cli.ConfigFile != "" {
		precedence.UserConfig = cli.ConfigFile
	}
	precedence.EnvFile = cli.EnvFile

	cfg, err := config.NewLoader(precedence).Load()
	if err != nil {
		return nil, err
	}
	if cli.LogLevel != "" {
		cfg.Logging.Level = cli.LogLevel
	}
	return cfg, nil
}

// openApp loads configuration and builds the app with a stderr logger
func openApp(ctx context.Context, cli *CLI, processors ...events.Processor) (*app.App, *slog.Logger, error) {
	cfg, err := loadConfig(cli)
	if err != nil {
		return nil, nil, err
	}
	logger := createCLILogger(cfg.Logging.Level)
	a, err := app.New(ctx, app.Options{
		Config:     cfg,
		Logger:     logger,
		Processors: processors,
	})
	if err != nil {
		return nil, nil, err
	}
	return a, logger, nil
}

// signalContext is cancelled on interrupt or termination
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// maskSecret masks a token for display
func maskSecret(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
