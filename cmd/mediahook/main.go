// Command mediahook receives media-server webhooks and relays them to a chat
// platform.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bissquit/mediahook/internal/app"
	"github.com/bissquit/mediahook/internal/config"
	"github.com/bissquit/mediahook/internal/version"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	application, err := app.New(cfg)
	if err != nil {
		return err
	}

	slog.Info("mediahook starting", "version", version.Get().String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- application.Run()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			_ = shutdown(application, cfg)
			return err
		}
	case sig := <-quit:
		slog.Info("received signal", "signal", sig.String())
	}

	return shutdown(application, cfg)
}

func shutdown(application *app.App, cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return application.Shutdown(ctx)
}
