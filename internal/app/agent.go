package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"roadwatch/internal/config"
	"roadwatch/internal/infrastructure/datasource"
	"roadwatch/internal/infrastructure/mqttio"
	"roadwatch/internal/logging"
	"roadwatch/internal/ports"
)

// Agent is the assembled simulator process: it replays recorded sensor
// data and publishes one raw sample per tick.
type Agent struct {
	cfg        config.AgentConfig
	logger     *slog.Logger
	source     ports.Datasource
	publisher  ports.SamplePublisher
	disconnect func()
}

// NewAgent connects to the broker and opens the recordings.
func NewAgent(cfg config.Config, logger *slog.Logger) (*Agent, error) {
	client, err := mqttio.Connect(cfg.MQTT.BrokerURL, "roadwatch-agent-"+uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("connect broker: %w", err)
	}

	source := datasource.NewFile(cfg.Agent.AccelerometerCSV, cfg.Agent.GpsCSV, cfg.Agent.UserID)
	if err := source.StartReading(); err != nil {
		client.Disconnect(250)
		return nil, err
	}

	return &Agent{
		cfg:        cfg.Agent,
		logger:     logging.Component(logger, "agent"),
		source:     source,
		publisher:  mqttio.NewPublisher(client, cfg.MQTT.Topic),
		disconnect: func() { client.Disconnect(250) },
	}, nil
}

// Run publishes one sample per interval. Without loop mode it stops
// once the recordings are exhausted; with it, the files rewind.
func (a *Agent) Run(ctx context.Context) error {
	defer a.disconnect()
	defer a.source.StopReading()

	ticker := time.NewTicker(a.cfg.Interval())
	defer ticker.Stop()

	published := 0
	for {
		select {
		case <-ctx.Done():
			a.logger.Info("agent stopping", "published", published)
			return ctx.Err()
		case <-ticker.C:
			sample, err := a.source.Read()
			if errors.Is(err, datasource.ErrExhausted) {
				if !a.cfg.Loop {
					a.logger.Info("recordings exhausted", "published", published)
					return nil
				}
				if err := a.source.StartReading(); err != nil {
					return fmt.Errorf("rewind recordings: %w", err)
				}
				continue
			}
			if err != nil {
				return fmt.Errorf("read sample: %w", err)
			}

			if err := a.publisher.Publish(ctx, sample); err != nil {
				a.logger.Warn("publish failed", "error", err)
				continue
			}
			published++
			a.logger.Debug("sample published",
				"user_id", sample.UserID, "z", sample.Accelerometer.Z)
		}
	}
}
