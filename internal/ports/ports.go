package ports

import (
	"context"
	"errors"

	"roadwatch/internal/domain"
)

// ErrNotFound signals that a record id does not exist in the store.
// Surfaced to clients as a not-found, never logged as a failure.
var ErrNotFound = errors.New("record not found")

// ErrStoreUnavailable signals that the underlying persistence call failed.
// Storage adapters wrap driver errors into this before returning.
var ErrStoreUnavailable = errors.New("store unavailable")

// ErrInvalidSample signals a malformed raw sample, rejected before it
// reaches the classifier.
var ErrInvalidSample = errors.New("invalid sample")

// RecordStore persists classified records. Every call runs in its own
// transaction; a batch of inserts is a sequence of independent commits.
type RecordStore interface {
	Insert(ctx context.Context, record domain.ProcessedAgentData) (int64, error)
	Get(ctx context.Context, id int64) (domain.StoredAgentData, error)
	List(ctx context.Context) ([]domain.StoredAgentData, error)
	Update(ctx context.Context, id int64, record domain.ProcessedAgentData) (domain.StoredAgentData, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

// Broadcaster fans a payload out to every live streaming subscriber.
// Delivery is best-effort; a failing subscriber never fails the caller.
type Broadcaster interface {
	Broadcast(payload any)
}

// RecordForwarder ships classified batches to the store API. Send reports
// success only; failures are logged by the implementation and never
// escalate to the caller.
type RecordForwarder interface {
	Send(ctx context.Context, batch []domain.ProcessedAgentData) bool
}

// Datasource yields raw samples for the agent simulator, one per call,
// until the source is exhausted.
type Datasource interface {
	StartReading() error
	Read() (domain.AgentData, error)
	StopReading() error
}

// SamplePublisher pushes raw samples onto the agent-to-hub transport.
type SamplePublisher interface {
	Publish(ctx context.Context, sample domain.AgentData) error
}
