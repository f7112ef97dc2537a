// Package viewport tracks the map camera and exposes the last settled
// viewport bounds. Intermediate movement frames never reach the synchronizer;
// only the moving→settled transition does (trailing-edge debounce).
package viewport

import (
	"log/slog"
	"sync"

	"github.com/mapmarks/engine/internal/channel"
	"github.com/mapmarks/engine/internal/dispatcher"
	"github.com/mapmarks/engine/internal/geo"
)

// CameraEvent is one observation from the map widget's camera callback.
// Bounds is nil while the map has not completed its first layout pass.
type CameraEvent struct {
	IsMoving bool
	Bounds   *geo.Bounds
}

// Events is the subset of the dispatcher the tracker needs.
type Events interface {
	Dispatch(e dispatcher.Event) (any, error)
}

// Dependencies holds everything the tracker needs.
type Dependencies struct {
	Events Events
	Logger *slog.Logger

	// BufferSize for the camera stream; the widget callback must never block.
	BufferSize int
}

// Tracker consumes camera events and keeps the last settled bounds.
type Tracker struct {
	deps   Dependencies
	stream channel.Channel[CameraEvent]

	mu        sync.RWMutex
	current   geo.Bounds
	hasBounds bool
	moving    bool

	done chan struct{}
}

// New creates a tracker and starts consuming its camera stream. Call Close
// when the session ends.
func New(deps Dependencies) *Tracker {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.BufferSize <= 0 {
		deps.BufferSize = 64
	}
	t := &Tracker{
		deps:   deps,
		stream: channel.New[CameraEvent](deps.BufferSize),
		done:   make(chan struct{}),
	}
	go t.run()
	return t
}

// Feed returns the producer side of the camera stream for the map widget
// bridge.
func (t *Tracker) Feed() channel.Sender[CameraEvent] {
	return t.stream
}

// Close stops the tracker goroutine.
func (t *Tracker) Close() {
	t.stream.Close()
	<-t.done
}

// Current returns the last settled bounds. ok is false before the first
// settle with computable bounds; the synchronizer treats that as an
// unconstrained viewport.
func (t *Tracker) Current() (geo.Bounds, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current, t.hasBounds
}

// Observe processes one camera event. Exposed for callers that drive the
// tracker synchronously; the stream goroutine funnels through here too.
func (t *Tracker) Observe(e CameraEvent) {
	t.mu.Lock()
	wasMoving := t.moving
	t.moving = e.IsMoving
	if !e.IsMoving && e.Bounds != nil {
		t.current = *e.Bounds
		t.hasBounds = true
	}
	settled := wasMoving && !e.IsMoving && e.Bounds != nil
	bounds := t.current
	t.mu.Unlock()

	if !settled {
		return
	}

	t.deps.Logger.Debug("viewport settled",
		"swLat", bounds.SouthWest.Lat, "swLon", bounds.SouthWest.Lon,
		"neLat", bounds.NorthEast.Lat, "neLon", bounds.NorthEast.Lon)

	if t.deps.Events != nil {
		_, _ = t.deps.Events.Dispatch(dispatcher.NewEvent(dispatcher.TopicViewportSettled, bounds))
	}
}

func (t *Tracker) run() {
	defer close(t.done)
	for e := range t.stream.Receive() {
		t.Observe(e)
	}
}
