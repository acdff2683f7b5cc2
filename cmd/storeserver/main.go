// Command storeserver runs the road-state store API: batch ingestion,
// record CRUD, and the live websocket stream.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"roadwatch/internal/app"
	"roadwatch/internal/config"
	"roadwatch/internal/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server, err := app.NewStoreServer(ctx, cfg, logger)
	if err != nil {
		logger.Error("store server failed to start", "error", err)
		os.Exit(1)
	}

	if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("store server exited", "error", err)
		os.Exit(1)
	}
}
