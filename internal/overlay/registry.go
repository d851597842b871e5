package overlay

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"dashsync/internal/logging"
)

// Registry owns the overlays of a page, keyed by outlier id, and tracks
// where the pointer is so it can act as their Probe.
type Registry struct {
	toolkit Toolkit
	delay   time.Duration

	mu         sync.Mutex
	overlays   map[string]*Overlay
	suppressed map[string]bool
	onTrigger  map[string]bool
	onPanel    map[string]bool
}

func NewRegistry(toolkit Toolkit, delay time.Duration) *Registry {
	return &Registry{
		toolkit:    toolkit,
		delay:      delay,
		overlays:   make(map[string]*Overlay),
		suppressed: make(map[string]bool),
		onTrigger:  make(map[string]bool),
		onPanel:    make(map[string]bool),
	}
}

// Register returns the overlay for id, creating it on first use.
func (r *Registry) Register(id string) *Overlay {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.overlays[id]; ok {
		return o
	}
	o := New(id, r.toolkit, r, r.delay, func() bool { return r.isSuppressed(id) })
	r.overlays[id] = o
	return o
}

// Get returns the overlay for id if one is registered.
func (r *Registry) Get(id string) (*Overlay, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.overlays[id]
	return o, ok
}

// PointerInside implements Probe.
func (r *Registry) PointerInside(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.onTrigger[id] || r.onPanel[id]
}

func (r *Registry) EnterTrigger(id string) bool {
	r.setPointer(r.onTrigger, id, true)
	return r.Register(id).PointerEnter()
}

func (r *Registry) LeaveTrigger(id string) {
	r.setPointer(r.onTrigger, id, false)
	if o, ok := r.Get(id); ok {
		o.PointerLeave()
	}
}

// EnterPanel cancels a pending hide while the pointer rests on the panel.
func (r *Registry) EnterPanel(id string) {
	r.setPointer(r.onPanel, id, true)
	if o, ok := r.Get(id); ok && o.State() == Shown {
		o.PointerEnter()
	}
}

func (r *Registry) LeavePanel(id string) {
	r.setPointer(r.onPanel, id, false)
	if o, ok := r.Get(id); ok {
		o.PointerLeave()
	}
}

// Hide closes the overlay for id without disposing it.
func (r *Registry) Hide(id string) {
	if o, ok := r.Get(id); ok {
		o.Hide()
	}
}

// Dispose tears down and forgets the overlay for id.
func (r *Registry) Dispose(id string) {
	r.mu.Lock()
	o, ok := r.overlays[id]
	delete(r.overlays, id)
	delete(r.onTrigger, id)
	delete(r.onPanel, id)
	r.mu.Unlock()
	if ok {
		o.Dispose()
	}
}

// Suppress marks the warning for id as hidden; its overlay will not show.
func (r *Registry) Suppress(id string) {
	r.mu.Lock()
	r.suppressed[id] = true
	r.mu.Unlock()
}

func (r *Registry) isSuppressed(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.suppressed[id]
}

// Suppressed reports whether the warning for id has been hidden.
func (r *Registry) Suppressed(id string) bool { return r.isSuppressed(id) }

// Elements adapts the registry to a view that hides warning elements.
func (r *Registry) Elements() Elements { return Elements{r} }

// Close disposes every overlay.
func (r *Registry) Close() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.overlays))
	for id := range r.overlays {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	for _, id := range ids {
		r.Dispose(id)
	}
}

func (r *Registry) setPointer(m map[string]bool, id string, inside bool) {
	r.mu.Lock()
	if inside {
		m[id] = true
	} else {
		delete(m, id)
	}
	r.mu.Unlock()
}

// Elements hides warning elements by suppressing them in the registry.
type Elements struct{ r *Registry }

func (e Elements) Hide(id string) { e.r.Suppress(id) }

// LogToolkit reports overlay changes to a logger. The CLI uses it where
// there is no real panel to draw.
type LogToolkit struct {
	Logger *zap.Logger
}

func (t LogToolkit) Show(id string)    { logging.OrNop(t.Logger).Debug("overlay shown", zap.String("outlier_id", id)) }
func (t LogToolkit) Hide(id string)    { logging.OrNop(t.Logger).Debug("overlay hidden", zap.String("outlier_id", id)) }
func (t LogToolkit) Dispose(id string) { logging.OrNop(t.Logger).Debug("overlay disposed", zap.String("outlier_id", id)) }
