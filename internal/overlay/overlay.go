// Package overlay runs the hover detail panel of outlier warnings.
//
// Each overlay is a two-state machine (hidden, shown) plus a terminal
// disposed state. Leaving the trigger or the panel arms a short hide timer;
// when it fires the overlay hides only if the pointer is over neither.
package overlay

import (
	"sync"
	"time"
)

// DefaultHideDelay is the debounce between pointer-leave and the hide check.
const DefaultHideDelay = 100 * time.Millisecond

type State int

const (
	Hidden State = iota
	Shown
	Disposed
)

func (s State) String() string {
	switch s {
	case Hidden:
		return "hidden"
	case Shown:
		return "shown"
	case Disposed:
		return "disposed"
	}
	return "unknown"
}

// Toolkit draws and removes overlay panels.
type Toolkit interface {
	Show(id string)
	Hide(id string)
	Dispose(id string)
}

// Probe reports whether the pointer is over the trigger or the panel of id.
type Probe interface {
	PointerInside(id string) bool
}

// Overlay is one hover panel anchored to a trigger. Toolkit and probe calls
// are made with the overlay lock held and must not call back into it.
type Overlay struct {
	id         string
	toolkit    Toolkit
	probe      Probe
	delay      time.Duration
	suppressed func() bool

	mu    sync.Mutex
	state State
	timer *time.Timer
	gen   uint64
}

// New builds a hidden overlay. suppressed may be nil; when it reports true
// the overlay refuses to show.
func New(id string, toolkit Toolkit, probe Probe, delay time.Duration, suppressed func() bool) *Overlay {
	if delay <= 0 {
		delay = DefaultHideDelay
	}
	return &Overlay{
		id:         id,
		toolkit:    toolkit,
		probe:      probe,
		delay:      delay,
		suppressed: suppressed,
	}
}

func (o *Overlay) ID() string { return o.id }

func (o *Overlay) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// PointerEnter shows the overlay unless its warning is suppressed. A pending
// hide is cancelled either way. It reports whether the overlay is shown.
func (o *Overlay) PointerEnter() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == Disposed {
		return false
	}
	o.cancelLocked()
	if o.state == Shown {
		return true
	}
	if o.suppressed != nil && o.suppressed() {
		return false
	}
	o.state = Shown
	o.toolkit.Show(o.id)
	return true
}

// PointerLeave arms the debounced hide check.
func (o *Overlay) PointerLeave() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != Shown {
		return
	}
	o.cancelLocked()
	gen := o.gen
	o.timer = time.AfterFunc(o.delay, func() { o.expire(gen) })
}

func (o *Overlay) expire(gen uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.gen || o.state != Shown {
		return
	}
	o.timer = nil
	if o.probe != nil && o.probe.PointerInside(o.id) {
		return
	}
	o.state = Hidden
	o.toolkit.Hide(o.id)
}

// Hide hides the overlay immediately.
func (o *Overlay) Hide() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cancelLocked()
	if o.state != Shown {
		return
	}
	o.state = Hidden
	o.toolkit.Hide(o.id)
}

// Dispose tears the overlay down for good; no panel remains afterwards.
func (o *Overlay) Dispose() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == Disposed {
		return
	}
	o.cancelLocked()
	if o.state == Shown {
		o.toolkit.Hide(o.id)
	}
	o.state = Disposed
	o.toolkit.Dispose(o.id)
}

// cancelLocked stops any armed timer. Bumping gen makes a timer that already
// fired a no-op.
func (o *Overlay) cancelLocked() {
	o.gen++
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
}
