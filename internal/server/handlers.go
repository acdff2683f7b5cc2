// Package server exposes the store over HTTP: record CRUD, the live
// stream endpoint, metrics, and health.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"roadwatch/internal/domain"
	"roadwatch/internal/metrics"
	"roadwatch/internal/ports"
	"roadwatch/internal/processing"
	"roadwatch/internal/stream"
	"roadwatch/internal/usecase"
)

// Handler holds the driven services behind the HTTP surface.
type Handler struct {
	ingestion *usecase.Ingestion
	registry  *stream.Registry
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewHandler wires the HTTP surface. metrics may be nil, which leaves
// the /metrics endpoint unmounted.
func NewHandler(ingestion *usecase.Ingestion, registry *stream.Registry, m *metrics.Metrics, logger *slog.Logger) *Handler {
	return &Handler{ingestion: ingestion, registry: registry, metrics: m, logger: logger}
}

// Mux builds the route table.
func (h *Handler) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /processed_agent_data/", h.createBatch)
	mux.HandleFunc("GET /processed_agent_data/", h.list)
	mux.HandleFunc("GET /processed_agent_data/{id}", h.get)
	mux.HandleFunc("PUT /processed_agent_data/{id}", h.update)
	mux.HandleFunc("DELETE /processed_agent_data/{id}", h.remove)
	mux.HandleFunc("/ws/", h.subscribe)
	mux.HandleFunc("GET /healthz", h.health)
	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics.Handler())
	}
	return mux
}

// createBatch accepts a JSON array of processed records. The road_state
// supplied by the caller is ignored: every sample is reclassified from
// its accelerometer reading before persisting.
func (h *Handler) createBatch(w http.ResponseWriter, r *http.Request) {
	var batch []domain.ProcessedAgentData
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		h.writeError(w, http.StatusBadRequest, "malformed batch: "+err.Error())
		return
	}

	samples := make([]domain.AgentData, len(batch))
	for i, item := range batch {
		samples[i] = item.AgentData
	}

	stored, err := h.ingestion.SubmitBatch(r.Context(), samples)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, stored)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	records, err := h.ingestion.ListAll(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if records == nil {
		records = []domain.StoredAgentData{}
	}
	h.writeJSON(w, http.StatusOK, records)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.recordID(w, r)
	if !ok {
		return
	}

	record, err := h.ingestion.GetByID(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, record)
}

// update replaces a stored record. As with createBatch, the label is
// rederived from the sample rather than trusted from the request.
func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.recordID(w, r)
	if !ok {
		return
	}

	var item domain.ProcessedAgentData
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		h.writeError(w, http.StatusBadRequest, "malformed record: "+err.Error())
		return
	}

	updated, err := h.ingestion.UpdateByID(r.Context(), id, processing.Process(item.AgentData))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := h.recordID(w, r)
	if !ok {
		return
	}

	record, err := h.ingestion.DeleteByID(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, record)
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) recordID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "record id must be an integer")
		return 0, false
	}
	return id, true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ports.ErrInvalidSample):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ports.ErrNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	default:
		h.logger.Error("request failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "store unavailable")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response", "error", err)
	}
}
