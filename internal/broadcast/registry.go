// Package broadcast tracks live observer connections and fans mutation
// events out to all of them.
//
// Membership is advisory: a failed send never aborts delivery to the
// remaining members, it only drops that recipient. There is no backlog or
// replay — an observer registered after an event committed simply never sees
// it.
package broadcast

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/disaster-coordination-service/internal/domain"
	"github.com/couchcryptid/disaster-coordination-service/internal/observability"
)

// Observer is one live connection receiving broadcast events. Send must be
// safe to call from multiple goroutines and should return an error once the
// connection is dead.
type Observer interface {
	Send(event domain.BroadcastEvent) error
	Close() error
}

// Registry owns the set of live observers. All mutation of the set goes
// through Register/Unregister; Publish works on a snapshot and never holds
// the lock across a send.
type Registry struct {
	clock        clockwork.Clock
	logger       *slog.Logger
	metrics      *observability.Metrics
	pingInterval time.Duration

	mu        sync.Mutex
	observers map[Observer]struct{}
}

// NewRegistry creates an empty registry probing liveness every pingInterval.
func NewRegistry(pingInterval time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Registry {
	return &Registry{
		clock:        clock,
		logger:       logger,
		metrics:      metrics,
		pingInterval: pingInterval,
		observers:    make(map[Observer]struct{}),
	}
}

// Register adds an observer and acknowledges the connection. The ack is sent
// before the observer joins the set, so it always precedes any published
// event the observer can see. A failed ack means the connection is already
// dead and it is never admitted.
func (r *Registry) Register(o Observer) {
	ack := domain.BroadcastEvent{Kind: domain.EventConnected, OccurredAt: r.clock.Now().UTC()}
	if err := o.Send(ack); err != nil {
		r.logger.Debug("observer rejected before registration", "error", err)
		_ = o.Close()
		return
	}

	r.mu.Lock()
	r.observers[o] = struct{}{}
	size := len(r.observers)
	r.mu.Unlock()

	r.metrics.ObserversConnected.Set(float64(size))
	r.logger.Debug("observer registered", "observers", size)
}

// Unregister removes and closes an observer. Unknown observers are ignored.
func (r *Registry) Unregister(o Observer) {
	r.mu.Lock()
	_, present := r.observers[o]
	delete(r.observers, o)
	size := len(r.observers)
	r.mu.Unlock()

	if !present {
		return
	}
	_ = o.Close()
	r.metrics.ObserversConnected.Set(float64(size))
	r.logger.Debug("observer unregistered", "observers", size)
}

// Publish delivers the event to every observer registered at call time.
// Failed recipients are dropped; delivery to the rest continues.
func (r *Registry) Publish(event domain.BroadcastEvent) {
	r.metrics.BroadcastEvents.WithLabelValues(string(event.Kind)).Inc()

	for _, o := range r.snapshot() {
		if err := o.Send(event); err != nil {
			r.logger.Debug("dropping dead observer", "kind", event.Kind, "error", err)
			r.metrics.ObserversDropped.Inc()
			r.Unregister(o)
		}
	}
}

// Size returns the current number of registered observers.
func (r *Registry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.observers)
}

// Run pings all members on the configured interval so dead connections are
// reaped between publishes. Blocks until the context is cancelled.
func (r *Registry) Run(ctx context.Context) error {
	ticker := r.clock.NewTicker(r.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("broadcast registry stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			r.Publish(domain.BroadcastEvent{Kind: domain.EventPing, OccurredAt: r.clock.Now().UTC()})
		}
	}
}

func (r *Registry) snapshot() []Observer {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Observer, 0, len(r.observers))
	for o := range r.observers {
		out = append(out, o)
	}
	return out
}
