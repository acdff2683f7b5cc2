// Package stream owns the set of live streaming subscribers and the
// fan-out of newly stored records to them.
package stream

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"roadwatch/internal/metrics"
	"roadwatch/internal/ports"
)

const defaultWriteTimeout = 10 * time.Second

// Conn is the slice of a websocket connection the registry needs.
// *websocket.Conn from gorilla satisfies it directly.
type Conn interface {
	SetWriteDeadline(t time.Time) error
	WriteJSON(v any) error
	Close() error
}

type subscriber struct {
	id      string
	conn    Conn
	writeMu sync.Mutex
}

// write serializes payload writes per connection; gorilla panics on
// concurrent writes to the same conn.
func (s *subscriber) write(payload any, timeout time.Duration) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(timeout))
	return s.conn.WriteJSON(payload)
}

// Registry tracks live subscriber connections. Add/Remove run from each
// connection's own receive loop; Broadcast runs from every ingestion
// request. All access to the set is mutex-guarded.
type Registry struct {
	logger       *slog.Logger
	metrics      *metrics.Metrics
	writeTimeout time.Duration

	mu   sync.RWMutex
	subs map[string]*subscriber
}

var _ ports.Broadcaster = (*Registry)(nil)

// NewRegistry builds an empty registry. metrics may be nil.
func NewRegistry(logger *slog.Logger, m *metrics.Metrics) *Registry {
	return &Registry{
		logger:       logger,
		metrics:      m,
		writeTimeout: defaultWriteTimeout,
		subs:         make(map[string]*subscriber),
	}
}

// Add registers a connection and returns its registry id.
func (r *Registry) Add(conn Conn) string {
	sub := &subscriber{id: uuid.NewString(), conn: conn}

	r.mu.Lock()
	r.subs[sub.id] = sub
	count := len(r.subs)
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.SubscribersConnected.Set(float64(count))
	}
	r.logger.Info("subscriber connected", "subscriber", sub.id, "connected", count)
	return sub.id
}

// Remove deregisters and closes a connection. Safe to call twice.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	sub, ok := r.subs[id]
	if ok {
		delete(r.subs, id)
	}
	count := len(r.subs)
	r.mu.Unlock()

	if !ok {
		return
	}

	_ = sub.conn.Close()
	if r.metrics != nil {
		r.metrics.SubscribersConnected.Set(float64(count))
	}
	r.logger.Info("subscriber disconnected", "subscriber", id, "connected", count)
}

// Len reports the number of live subscribers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

// Broadcast pushes the payload to every currently registered connection.
// A failed write drops only that connection; the rest still receive the
// payload.
func (r *Registry) Broadcast(payload any) {
	r.mu.RLock()
	snapshot := make([]*subscriber, 0, len(r.subs))
	for _, sub := range r.subs {
		snapshot = append(snapshot, sub)
	}
	r.mu.RUnlock()

	if r.metrics != nil {
		r.metrics.BroadcastsTotal.Inc()
	}

	for _, sub := range snapshot {
		if err := sub.write(payload, r.writeTimeout); err != nil {
			r.logger.Warn("subscriber write failed", "subscriber", sub.id, "error", err)
			if r.metrics != nil {
				r.metrics.SubscriberSendFailures.Inc()
			}
			r.Remove(sub.id)
		}
	}
}
