// Command agent replays recorded accelerometer and GPS data as a
// simulated vehicle, publishing raw samples to the MQTT broker.
package main

import (
	"context"
	"errors"
	"flag"
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

	flag.IntVar(&cfg.Agent.UserID, "user", cfg.Agent.UserID, "user id stamped on every sample")
	flag.StringVar(&cfg.Agent.AccelerometerCSV, "accel", cfg.Agent.AccelerometerCSV, "accelerometer recording (x,y,z)")
	flag.StringVar(&cfg.Agent.GpsCSV, "gps", cfg.Agent.GpsCSV, "gps recording (latitude,longitude)")
	flag.BoolVar(&cfg.Agent.Loop, "loop", cfg.Agent.Loop, "rewind the recordings instead of stopping at EOF")
	flag.Parse()

	logger := logging.New(cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	agent, err := app.NewAgent(cfg, logger)
	if err != nil {
		logger.Error("agent failed to start", "error", err)
		os.Exit(1)
	}

	if err := agent.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("agent exited", "error", err)
		os.Exit(1)
	}
}
