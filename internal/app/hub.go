package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"roadwatch/internal/config"
	"roadwatch/internal/infrastructure/mqttio"
	"roadwatch/internal/infrastructure/storeapi"
	"roadwatch/internal/logging"
	"roadwatch/internal/usecase"
)

// EdgeHub is the assembled hub process: MQTT intake, classification,
// and batched forwarding to the store API.
type EdgeHub struct {
	cfg        config.Config
	logger     *slog.Logger
	hub        *usecase.Hub
	subscriber *mqttio.Subscriber
}

// NewEdgeHub connects to the broker and wires the hub pipeline.
func NewEdgeHub(cfg config.Config, logger *slog.Logger) (*EdgeHub, error) {
	client, err := mqttio.Connect(cfg.MQTT.BrokerURL, "roadwatch-hub-"+uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("connect broker: %w", err)
	}

	forwarder := storeapi.NewClient(cfg.Hub.StoreAPIURL, logging.Component(logger, "storeapi"))
	hub := usecase.NewHub(usecase.HubDeps{
		Forwarder:     forwarder,
		Logger:        logging.Component(logger, "hub"),
		BatchSize:     cfg.Hub.BatchSize,
		FlushInterval: cfg.Hub.FlushInterval(),
	})

	return &EdgeHub{
		cfg:        cfg,
		logger:     logger,
		hub:        hub,
		subscriber: mqttio.NewSubscriber(client, cfg.MQTT.Topic, logging.Component(logger, "mqtt")),
	}, nil
}

// Run consumes samples until the context is canceled, then drains the
// pending batch.
func (e *EdgeHub) Run(ctx context.Context) error {
	defer e.subscriber.Close()

	if err := e.subscriber.Subscribe(ctx, e.hub.HandleSample); err != nil {
		return err
	}
	e.logger.Info("edge hub running",
		"broker", e.cfg.MQTT.BrokerURL,
		"store_api", e.cfg.Hub.StoreAPIURL,
		"batch_size", e.cfg.Hub.BatchSize)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return e.hub.Run(ctx) })
	return group.Wait()
}
