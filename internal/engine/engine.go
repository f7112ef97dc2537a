// Package engine recomputes the visible marker set whenever the marker list,
// the settled viewport, or the filter criteria change. It is the sole writer
// of the visible set; rendering only reads snapshots.
package engine

import (
	"log/slog"
	"sync"
	"time"

	"github.com/mapmarks/engine/internal/channel"
	"github.com/mapmarks/engine/internal/dispatcher"
	"github.com/mapmarks/engine/internal/filter"
	"github.com/mapmarks/engine/internal/geo"
	"github.com/mapmarks/engine/internal/model"
	"github.com/mapmarks/engine/internal/similarity"
)

// MarkerSource provides an order-stable snapshot of the authoritative list.
type MarkerSource interface {
	Current() []model.Marker
}

// BoundsSource provides the last settled viewport bounds. ok=false means the
// viewport is unknown and containment is unconstrained.
type BoundsSource interface {
	Current() (geo.Bounds, bool)
}

// SimilaritySource provides the latest similarity resolution.
type SimilaritySource interface {
	Snapshot() similarity.Snapshot
}

// Metrics receives recompute measurements. Optional.
type Metrics interface {
	RecordRecompute(duration time.Duration, total, visible int)
}

// Dependencies holds everything the synchronizer needs.
type Dependencies struct {
	Store      MarkerSource
	Viewport   BoundsSource
	Similarity SimilaritySource
	Dispatcher *dispatcher.Dispatcher
	Logger     *slog.Logger
	Metrics    Metrics

	// UpdatesBuffer sizes the published-snapshot feed.
	UpdatesBuffer int
}

// Synchronizer owns the visible set.
type Synchronizer struct {
	deps Dependencies

	mu       sync.RWMutex
	criteria filter.Criteria // text and date part; similarity ids merge in per recompute
	visible  []model.Marker

	// triggers coalesces recompute requests: a single buffered slot means
	// any burst of events collapses into one pending recompute.
	triggers chan struct{}
	updates  *channel.Buffered[[]model.Marker]
	stop     chan struct{}
	done     chan struct{}
}

// New creates the synchronizer, registers its dispatcher handlers, and starts
// the recompute loop. Call Close when the session ends.
func New(deps Dependencies) *Synchronizer {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.UpdatesBuffer <= 0 {
		deps.UpdatesBuffer = 4
	}
	s := &Synchronizer{
		deps:     deps,
		triggers: make(chan struct{}, 1),
		updates:  channel.NewBuffered[[]model.Marker](deps.UpdatesBuffer),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	if deps.Dispatcher != nil {
		invalidate := func(e dispatcher.Event) (any, error) {
			s.Invalidate()
			return nil, nil
		}
		deps.Dispatcher.Register(dispatcher.TopicMarkersChanged, invalidate)
		deps.Dispatcher.Register(dispatcher.TopicViewportSettled, invalidate)
		deps.Dispatcher.Register(dispatcher.TopicCriteriaChanged, invalidate)
		deps.Dispatcher.Register(dispatcher.TopicSimilarityResolved, invalidate, dispatcher.Logged())
	}

	go s.run()
	return s
}

// Close stops the recompute loop.
func (s *Synchronizer) Close() {
	close(s.stop)
	<-s.done
	s.updates.Close()
}

// SetFilters replaces the text and date filter portion of the criteria. The
// similarity constraint is merged in from the resolver on each recompute.
func (s *Synchronizer) SetFilters(title, memo string, start, end *time.Time) {
	s.mu.Lock()
	s.criteria.TitleSubstring = title
	s.criteria.MemoSubstring = memo
	s.criteria.StartDate = start
	s.criteria.EndDate = end
	s.mu.Unlock()

	if s.deps.Dispatcher != nil && s.deps.Dispatcher.HasHandler(dispatcher.TopicCriteriaChanged) {
		_, _ = s.deps.Dispatcher.Dispatch(dispatcher.NewEvent(dispatcher.TopicCriteriaChanged, nil))
		return
	}
	s.Invalidate()
}

// Invalidate requests a recompute. Never blocks; requests coalesce.
func (s *Synchronizer) Invalidate() {
	select {
	case s.triggers <- struct{}{}:
	default:
	}
}

// Snapshot returns a copy of the current visible set.
func (s *Synchronizer) Snapshot() []model.Marker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Marker, len(s.visible))
	copy(out, s.visible)
	return out
}

// Updates returns the feed of published visible sets. Slow consumers miss
// intermediate sets; the latest is always available through Snapshot.
func (s *Synchronizer) Updates() channel.Receiver[[]model.Marker] {
	return s.updates
}

// Recompute rebuilds the visible set synchronously from the current inputs.
// It is idempotent: unchanged inputs yield identical ordered output.
func (s *Synchronizer) Recompute() []model.Marker {
	start := time.Now()

	markers := s.deps.Store.Current()

	var bounds geo.Bounds
	hasBounds := false
	if s.deps.Viewport != nil {
		bounds, hasBounds = s.deps.Viewport.Current()
	}

	criteria := s.currentCriteria()

	// Set semantics on id: even if an upstream snapshot carried a duplicate,
	// the published set holds each marker exactly once.
	seen := make(map[string]struct{}, len(markers))
	visible := make([]model.Marker, 0, len(markers))
	for _, m := range markers {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		if hasBounds && !bounds.Contains(m.Position) {
			continue
		}
		if !filter.Matches(m, criteria) {
			continue
		}
		seen[m.ID] = struct{}{}
		visible = append(visible, m)
	}

	s.mu.Lock()
	s.visible = visible
	s.mu.Unlock()

	published := make([]model.Marker, len(visible))
	copy(published, visible)
	if !s.updates.TrySend(published) {
		s.deps.Logger.Debug("visible set feed full, consumer will catch up via snapshot")
	}

	elapsed := time.Since(start)
	s.deps.Logger.Debug("visible set recomputed",
		"total", len(markers), "visible", len(visible), "duration", elapsed)
	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordRecompute(elapsed, len(markers), len(visible))
	}

	return s.Snapshot()
}

func (s *Synchronizer) currentCriteria() filter.Criteria {
	s.mu.RLock()
	criteria := s.criteria
	s.mu.RUnlock()

	if s.deps.Similarity != nil {
		criteria.SimilarityIDs = s.deps.Similarity.Snapshot().ConstraintIDs()
	}
	return criteria
}

func (s *Synchronizer) run() {
	defer close(s.done)
	for {
		select {
		case <-s.triggers:
			s.Recompute()
		case <-s.stop:
			return
		}
	}
}
