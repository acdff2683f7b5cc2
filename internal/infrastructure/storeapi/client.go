// Package storeapi is the HTTP client adapter producers use to post
// classified batches to the store server.
package storeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"roadwatch/internal/domain"
	"roadwatch/internal/ports"
)

const batchPath = "/processed_agent_data/"

// Client posts processed-record batches to the store API. Failures are
// logged and reported as false; they never propagate as errors.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

var _ ports.RecordForwarder = (*Client)(nil)

// NewClient creates a reusable client for the given store API base URL.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
	}
}

// Send serializes the batch and posts it to the create-batch endpoint.
// Returns true iff the store answered with a 2xx status.
func (c *Client) Send(ctx context.Context, batch []domain.ProcessedAgentData) bool {
	if len(batch) == 0 {
		return true
	}

	body, err := json.Marshal(batch)
	if err != nil {
		c.logger.Error("marshal batch", "error", err)
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+batchPath, bytes.NewReader(body))
	if err != nil {
		c.logger.Error("build request", "error", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("post batch", "error", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		c.logger.Error("store API refused batch", "status", resp.Status, "size", len(batch))
		return false
	}

	c.logger.Info("batch saved to store API", "size", len(batch))
	return true
}
