// Package mqttio carries raw agent samples between the vehicle agents
// and the edge hub over an MQTT broker.
package mqttio

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"roadwatch/internal/domain"
	"roadwatch/internal/ports"
)

const connectTimeout = 10 * time.Second

// Connect dials the broker and waits for the session to come up.
func Connect(brokerURL, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetOrderMatters(false).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connect to %s: timeout", brokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", brokerURL, err)
	}
	return client, nil
}

// Publisher pushes raw samples onto the agent topic as JSON, QoS 0.
type Publisher struct {
	client mqtt.Client
	topic  string
}

var _ ports.SamplePublisher = (*Publisher)(nil)

// NewPublisher wires a connected client to a topic.
func NewPublisher(client mqtt.Client, topic string) *Publisher {
	return &Publisher{client: client, topic: topic}
}

// Publish sends one sample and waits for the client to hand it off.
func (p *Publisher) Publish(ctx context.Context, sample domain.AgentData) error {
	payload, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("encode sample: %w", err)
	}

	token := p.client.Publish(p.topic, 0, false, payload)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("publish sample: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SampleHandler receives each decoded raw sample from the topic.
type SampleHandler func(ctx context.Context, sample domain.AgentData)

// Subscriber feeds raw samples from the agent topic into a handler.
type Subscriber struct {
	client mqtt.Client
	topic  string
	logger *slog.Logger
}

// NewSubscriber wires a connected client to a topic.
func NewSubscriber(client mqtt.Client, topic string, logger *slog.Logger) *Subscriber {
	return &Subscriber{client: client, topic: topic, logger: logger}
}

// Subscribe installs the handler. Malformed payloads are logged and
// skipped; they never tear down the subscription.
func (s *Subscriber) Subscribe(ctx context.Context, handler SampleHandler) error {
	token := s.client.Subscribe(s.topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var sample domain.AgentData
		if err := json.Unmarshal(msg.Payload(), &sample); err != nil {
			s.logger.Warn("discarding undecodable sample", "topic", msg.Topic(), "error", err)
			return
		}
		handler(ctx, sample)
	})

	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("subscribe to %s: timeout", s.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe to %s: %w", s.topic, err)
	}

	s.logger.Info("subscribed to agent topic", "topic", s.topic)
	return nil
}

// Close unsubscribes and disconnects, letting in-flight work settle.
func (s *Subscriber) Close() {
	if token := s.client.Unsubscribe(s.topic); token.WaitTimeout(time.Second) {
		if err := token.Error(); err != nil {
			s.logger.Warn("unsubscribe failed", "topic", s.topic, "error", err)
		}
	}
	s.client.Disconnect(250)
}
