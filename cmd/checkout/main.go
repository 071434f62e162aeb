package main

import (
	"log/slog"
	"os"

	"github.com/avelora/storefront/internal/app"
	"github.com/avelora/storefront/internal/config"
	"github.com/avelora/storefront/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.New("checkout-coordinator", cfg.LogLevel)
	slog.SetDefault(log)

	application, err := app.NewApp(cfg, log)
	if err != nil {
		log.Error("failed to initialize app", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		log.Error("app exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
