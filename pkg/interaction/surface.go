package interaction

import (
	"sync"

	"github.com/offlinefirst/eventtracker/pkg/telemetry"
)

// Surface is a top-level UI surface that reports taps in its own coordinate
// space. A tap already being dispatched when remove is called may still reach
// the listener.
type Surface interface {
	Name() string
	AddTapListener(listener func(telemetry.Point)) (remove func())
}

// Host exposes the UI dispatch system the tracker attaches to.
type Host interface {
	// ForegroundSurface returns the first available foreground surface.
	ForegroundSurface() (Surface, bool)
}

// StaticHost always reports the same surface. A nil Surface means no
// foreground surface is available.
type StaticHost struct {
	Surface Surface
}

// ForegroundSurface implements Host.
func (h StaticHost) ForegroundSurface() (Surface, bool) {
	if h.Surface == nil {
		return nil, false
	}
	return h.Surface, true
}

// Window is an in-process Surface. Tap dispatches synchronously to every
// registered listener on the caller's goroutine.
type Window struct {
	name string

	mu        sync.Mutex
	nextID    int
	listeners map[int]func(telemetry.Point)
}

// NewWindow returns an empty window.
func NewWindow(name string) *Window {
	return &Window{name: name, listeners: make(map[int]func(telemetry.Point))}
}

// Name implements Surface.
func (w *Window) Name() string { return w.name }

// AddTapListener implements Surface.
func (w *Window) AddTapListener(listener func(telemetry.Point)) func() {
	w.mu.Lock()
	id := w.nextID
	w.nextID++
	w.listeners[id] = listener
	w.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.listeners, id)
			w.mu.Unlock()
		})
	}
}

// Listeners reports how many listeners are registered.
func (w *Window) Listeners() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.listeners)
}

// Tap delivers a tap at location to the current listeners.
func (w *Window) Tap(location telemetry.Point) {
	w.mu.Lock()
	targets := make([]func(telemetry.Point), 0, len(w.listeners))
	for _, listener := range w.listeners {
		targets = append(targets, listener)
	}
	w.mu.Unlock()

	for _, listener := range targets {
		listener(location)
	}
}
