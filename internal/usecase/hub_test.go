package usecase

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadwatch/internal/domain"
	"roadwatch/internal/logging"
)

type recordingForwarder struct {
	mu      sync.Mutex
	batches [][]domain.ProcessedAgentData
	accept  bool
}

func (f *recordingForwarder) Send(_ context.Context, batch []domain.ProcessedAgentData) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, batch)
	return f.accept
}

func (f *recordingForwarder) sent() [][]domain.ProcessedAgentData {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]domain.ProcessedAgentData(nil), f.batches...)
}

func newTestHub(forwarder *recordingForwarder, batchSize int) *Hub {
	return NewHub(HubDeps{
		Forwarder:     forwarder,
		Logger:        logging.New("error"),
		BatchSize:     batchSize,
		FlushInterval: time.Hour, // timer never fires in tests
	})
}

func TestHubFlushesWhenBatchFills(t *testing.T) {
	t.Parallel()

	forwarder := &recordingForwarder{accept: true}
	hub := newTestHub(forwarder, 2)
	ctx := context.Background()

	hub.HandleSample(ctx, rawSample(-2500))
	require.Empty(t, forwarder.sent())
	require.Equal(t, 1, hub.Pending())

	hub.HandleSample(ctx, rawSample(2500))

	batches := forwarder.sent()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 2)
	assert.Equal(t, domain.RoadStateDeepPits, batches[0][0].RoadState)
	assert.Equal(t, domain.RoadStateLargeBumps, batches[0][1].RoadState)
	assert.Equal(t, 0, hub.Pending())
}

func TestHubDropsMalformedSamples(t *testing.T) {
	t.Parallel()

	forwarder := &recordingForwarder{accept: true}
	hub := newTestHub(forwarder, 1)

	bad := rawSample(0)
	bad.Gps.Latitude = math.Inf(1)
	hub.HandleSample(context.Background(), bad)

	assert.Empty(t, forwarder.sent())
	assert.Equal(t, 0, hub.Pending())
}

func TestHubDropsRejectedBatchWithoutRetry(t *testing.T) {
	t.Parallel()

	forwarder := &recordingForwarder{accept: false}
	hub := newTestHub(forwarder, 1)
	ctx := context.Background()

	hub.HandleSample(ctx, rawSample(0))
	require.Len(t, forwarder.sent(), 1)
	assert.Equal(t, 0, hub.Pending())

	// the next sample goes out on its own; the rejected one is gone
	hub.HandleSample(ctx, rawSample(1500))
	batches := forwarder.sent()
	require.Len(t, batches, 2)
	assert.Equal(t, domain.RoadStateSmallBumps, batches[1][0].RoadState)
}

func TestHubFlushOnEmptyQueueIsNoop(t *testing.T) {
	t.Parallel()

	forwarder := &recordingForwarder{accept: true}
	hub := newTestHub(forwarder, 10)

	hub.Flush(context.Background())
	assert.Empty(t, forwarder.sent())
}
