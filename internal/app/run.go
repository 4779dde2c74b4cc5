package app

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"dexanalytics/internal/config"
)

const (
	buildTimeout           = 30 * time.Second
	defaultShutdownTimeout = 10 * time.Second
)

// Run builds the container, starts it, waits for a signal or a fatal error and stops
func Run(cfg *config.Config) error {
	ctxBuild, cancelBuild := context.WithTimeout(context.Background(), buildTimeout)
	defer cancelBuild()

	container, cleanup, err := Build(ctxBuild, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	if err = container.app.Start(ctxBuild); err != nil {
		return fmt.Errorf("app start: %w", err)
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var runErr error
	select {
	case <-sigCtx.Done():
		container.log.Info("Shutdown signal received")
	case runErr = <-container.app.Errors():
		container.log.Errorf("App failed: %v", runErr)
	}

	timeout := cfg.App.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err = container.app.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("app shutdown: %w", err)
	}
	return runErr
}
