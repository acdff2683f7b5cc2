package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"roadwatch/internal/domain"
	"roadwatch/internal/metrics"
	"roadwatch/internal/ports"
	"roadwatch/internal/processing"
)

// IngestionDeps wires the driven adapters into the ingestion service.
type IngestionDeps struct {
	Store       ports.RecordStore
	Broadcaster ports.Broadcaster
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
}

// Ingestion classifies incoming raw samples, persists them, and fans the
// stored records out to stream subscribers.
type Ingestion struct {
	store       ports.RecordStore
	broadcaster ports.Broadcaster
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// NewIngestion constructs the ingestion service.
func NewIngestion(deps IngestionDeps) *Ingestion {
	return &Ingestion{
		store:       deps.Store,
		broadcaster: deps.Broadcaster,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
	}
}

// SubmitBatch classifies and persists each sample in order. Inserts are
// independent commits: the first failure aborts the request, but records
// already inserted stay persisted and later samples are never attempted.
// On full success the stored batch is broadcast once, as one payload.
func (s *Ingestion) SubmitBatch(ctx context.Context, samples []domain.AgentData) ([]domain.StoredAgentData, error) {
	for i, sample := range samples {
		if err := sample.Validate(); err != nil {
			return nil, fmt.Errorf("sample %d: %w: %v", i, ports.ErrInvalidSample, err)
		}
	}

	stored := make([]domain.StoredAgentData, 0, len(samples))
	for i, sample := range samples {
		record := processing.Process(sample)

		id, err := s.store.Insert(ctx, record)
		if err != nil {
			s.logger.Error("batch insert failed", "index", i, "inserted", len(stored), "error", err)
			if s.metrics != nil {
				s.metrics.IngestFailures.Inc()
			}
			return nil, fmt.Errorf("insert sample %d: %w", i, err)
		}

		stored = append(stored, domain.NewStored(id, record))
	}

	if s.metrics != nil {
		s.metrics.RecordsIngested.Add(float64(len(stored)))
	}

	if len(stored) > 0 {
		s.broadcaster.Broadcast(stored)
	}

	return stored, nil
}

// GetByID returns one stored record.
func (s *Ingestion) GetByID(ctx context.Context, id int64) (domain.StoredAgentData, error) {
	return s.store.Get(ctx, id)
}

// ListAll returns every stored record.
func (s *Ingestion) ListAll(ctx context.Context) ([]domain.StoredAgentData, error) {
	return s.store.List(ctx)
}

// UpdateByID replaces a stored record and broadcasts the new version, so
// stream subscribers see updates with the same semantics as creates.
func (s *Ingestion) UpdateByID(ctx context.Context, id int64, record domain.ProcessedAgentData) (domain.StoredAgentData, error) {
	if err := record.AgentData.Validate(); err != nil {
		return domain.StoredAgentData{}, fmt.Errorf("%w: %v", ports.ErrInvalidSample, err)
	}

	updated, err := s.store.Update(ctx, id, record)
	if err != nil {
		return domain.StoredAgentData{}, err
	}

	s.broadcaster.Broadcast([]domain.StoredAgentData{updated})
	return updated, nil
}

// DeleteByID removes a record and returns the state it had just before
// deletion. A concurrent delete between the read and the delete surfaces
// as not-found.
func (s *Ingestion) DeleteByID(ctx context.Context, id int64) (domain.StoredAgentData, error) {
	record, err := s.store.Get(ctx, id)
	if err != nil {
		return domain.StoredAgentData{}, err
	}

	existed, err := s.store.Delete(ctx, id)
	if err != nil {
		return domain.StoredAgentData{}, err
	}
	if !existed {
		return domain.StoredAgentData{}, ports.ErrNotFound
	}

	return record, nil
}
