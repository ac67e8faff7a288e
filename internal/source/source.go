// Package source provides the tracker's external collaborators: activity
// sources that report what is in the foreground, and input sources that
// push user-input events.
package source

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/blackwell-systems/worktrack/internal/activity"
)

// ErrNoActiveWindow is returned when no foreground window can be determined.
var ErrNoActiveWindow = errors.New("no active window")

// ActivitySource reports the user's current foreground activity.
type ActivitySource interface {
	Current(ctx context.Context) (activity.Observation, error)
}

// ActivityFunc adapts a function to ActivitySource.
type ActivityFunc func(ctx context.Context) (activity.Observation, error)

// Current calls f.
func (f ActivityFunc) Current(ctx context.Context) (activity.Observation, error) {
	return f(ctx)
}

// Static always reports the same observation.
func Static(obs activity.Observation) ActivitySource {
	return ActivityFunc(func(context.Context) (activity.Observation, error) {
		return obs, nil
	})
}

// InputSource pushes user-input events to subscribers. Subscribe returns a
// function that removes the subscription; calling it more than once is safe.
type InputSource interface {
	Subscribe(fn func(at time.Time)) (unsubscribe func())
}

// Hub is an in-process InputSource. Host integrations call Emit from their
// own event handlers.
type Hub struct {
	mu        sync.Mutex
	next      int
	listeners map[int]func(time.Time)
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{listeners: make(map[int]func(time.Time))}
}

// Subscribe registers fn for every subsequent Emit.
func (h *Hub) Subscribe(fn func(time.Time)) func() {
	h.mu.Lock()
	id := h.next
	h.next++
	h.listeners[id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.listeners, id)
			h.mu.Unlock()
		})
	}
}

// Emit delivers an input event to all current listeners.
func (h *Hub) Emit(at time.Time) {
	h.mu.Lock()
	fns := make([]func(time.Time), 0, len(h.listeners))
	for _, fn := range h.listeners {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(at)
	}
}

// Listeners returns the number of registered listeners.
func (h *Hub) Listeners() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners)
}
