package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/garyjia/purchase-approval/internal/config"
	"github.com/garyjia/purchase-approval/internal/container"
	"github.com/garyjia/purchase-approval/pkg/utils"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config; empty uses defaults and environment only")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting purchase approval service",
		zap.String("version", "1.0.0"),
		zap.String("addr", cfg.Server.Addr()),
		zap.Bool("lark_enabled", cfg.Lark.Enabled))

	if err := run(cfg, logger); err != nil {
		logger.Error("Service stopped with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Info("Server exited successfully")
}

// run blocks until SIGINT or SIGTERM, then shuts the server and container down
func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := container.NewContainer(cfg, logger)
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		_ = c.Close()
		return fmt.Errorf("start container: %w", err)
	}

	server, err := c.HTTPServer()
	if err != nil {
		_ = c.Close()
		return err
	}

	// Start returns once ctx is cancelled and the listener has drained
	serveErr := server.Start(ctx)
	logger.Info("Shutting down")

	return errors.Join(serveErr, c.Close())
}
