package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"

	"github.com/couchcryptid/disaster-coordination-service/internal/broadcast"
	"github.com/couchcryptid/disaster-coordination-service/internal/domain"
)

// Registry is the slice of the broadcast registry the subscribe handler needs.
type Registry interface {
	Register(o broadcast.Observer)
	Unregister(o broadcast.Observer)
}

// sseObserver adapts one Server-Sent Events connection to the broadcast
// Observer contract. Writes are serialized; a failed write marks the
// connection dead so the registry drops it.
type sseObserver struct {
	mu        sync.Mutex
	w         *echo.Response
	done      chan struct{}
	closeOnce sync.Once
}

func newSSEObserver(w *echo.Response) *sseObserver {
	return &sseObserver{w: w, done: make(chan struct{})}
}

// Send writes one SSE frame. Returns an error once the connection is dead.
func (o *sseObserver) Send(event domain.BroadcastEvent) error {
	select {
	case <-o.done:
		return fmt.Errorf("sse connection closed")
	default:
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode sse event: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if _, err := fmt.Fprintf(o.w, "event: %s\ndata: %s\n\n", event.Kind, payload); err != nil {
		return fmt.Errorf("write sse frame: %w", err)
	}
	o.w.Flush()
	return nil
}

// Close releases the handler goroutine. Safe to call more than once.
func (o *sseObserver) Close() error {
	o.closeOnce.Do(func() { close(o.done) })
	return nil
}

// subscribe upgrades the request to an SSE stream and keeps it open until the
// client disconnects or the registry drops the observer.
func (h *Handlers) subscribe(c echo.Context) error {
	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	obs := newSSEObserver(w)
	h.registry.Register(obs)

	select {
	case <-c.Request().Context().Done():
		h.registry.Unregister(obs)
	case <-obs.done:
	}
	return nil
}
