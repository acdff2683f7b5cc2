// Command hub runs the edge hub: it consumes raw samples from the MQTT
// broker, classifies them, and forwards batches to the store API.
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

	hub, err := app.NewEdgeHub(cfg, logger)
	if err != nil {
		logger.Error("edge hub failed to start", "error", err)
		os.Exit(1)
	}

	if err := hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("edge hub exited", "error", err)
		os.Exit(1)
	}
}
