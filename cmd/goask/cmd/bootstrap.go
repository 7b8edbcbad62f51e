package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/gookit/color"
	"github.com/spf13/cobra"

	"github.com/dbsmedya/goask/internal/config"
	"github.com/dbsmedya/goask/internal/database"
	"github.com/dbsmedya/goask/internal/logger"
	"github.com/dbsmedya/goask/internal/orchestrator"
)

// loadConfig reads the config file, applies flag overrides and validates
// the result.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	o := GetCLIOverrides()
	cfg.ApplyOverrides(o.LogLevel, o.LogFormat, o.TopK, o.NoCache)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if noColor {
		color.Enable = false
	}
	return cfg, nil
}

// setup loads the configuration and creates the logger.
func setup() (*config.Config, *logger.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, log, nil
}

// contextOf returns the command's context, or Background when the command
// is run outside Execute.
func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// commandContext is canceled on SIGINT or SIGTERM.
func commandContext(cmd *cobra.Command, log *logger.Logger) (context.Context, context.CancelFunc) {
	return database.SignalContext(contextOf(cmd), func(sig os.Signal) {
		log.Warnw("Received shutdown signal, stopping", "signal", sig.String())
	})
}

// buildApp wires every component from cfg.
func buildApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (*orchestrator.App, error) {
	app, err := orchestrator.Build(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize goask: %w", err)
	}
	return app, nil
}
