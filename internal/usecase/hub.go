package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"roadwatch/internal/domain"
	"roadwatch/internal/ports"
	"roadwatch/internal/processing"
)

// HubDeps wires the edge hub's pipeline.
type HubDeps struct {
	Forwarder     ports.RecordForwarder
	Logger        *slog.Logger
	BatchSize     int
	FlushInterval time.Duration
}

// Hub classifies raw samples arriving from agents and forwards them to
// the store API in batches. Forwarding is fire-and-log: a rejected batch
// is dropped, never retried, and never stops the intake.
type Hub struct {
	forwarder     ports.RecordForwarder
	logger        *slog.Logger
	batchSize     int
	flushInterval time.Duration

	mu      sync.Mutex
	pending []domain.ProcessedAgentData
}

// NewHub constructs the hub pipeline.
func NewHub(deps HubDeps) *Hub {
	batchSize := deps.BatchSize
	if batchSize <= 0 {
		batchSize = 10
	}
	flushInterval := deps.FlushInterval
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}

	return &Hub{
		forwarder:     deps.Forwarder,
		logger:        deps.Logger,
		batchSize:     batchSize,
		flushInterval: flushInterval,
	}
}

// HandleSample classifies one raw sample and queues it for forwarding.
// Malformed samples are logged and dropped before classification.
func (h *Hub) HandleSample(ctx context.Context, raw domain.AgentData) {
	if err := raw.Validate(); err != nil {
		h.logger.Warn("dropping malformed sample", "user_id", raw.UserID, "error", err)
		return
	}

	record := processing.Process(raw)

	h.mu.Lock()
	h.pending = append(h.pending, record)
	full := len(h.pending) >= h.batchSize
	h.mu.Unlock()

	if full {
		h.Flush(ctx)
	}
}

// Flush forwards everything queued so far as one batch.
func (h *Hub) Flush(ctx context.Context) {
	h.mu.Lock()
	batch := h.pending
	h.pending = nil
	h.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	if !h.forwarder.Send(ctx, batch) {
		h.logger.Error("store API rejected batch", "size", len(batch))
		return
	}
	h.logger.Debug("batch forwarded", "size", len(batch))
}

// Pending reports how many classified records await the next flush.
func (h *Hub) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pending)
}

// Run flushes on a timer until the context ends, then drains once more.
func (h *Hub) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.Flush(ctx)
		case <-ctx.Done():
			h.Flush(context.WithoutCancel(ctx))
			return ctx.Err()
		}
	}
}
