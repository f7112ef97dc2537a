// Package store owns the authoritative marker list. It is the only writer of
// the canonical list; every other component reads snapshots. Latency on
// mutations matters for UI responsiveness, so persistence happens off the
// mutation path, fire-and-forget.
package store

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mapmarks/engine/internal/dispatcher"
	"github.com/mapmarks/engine/internal/model"
	"github.com/mapmarks/engine/internal/queue"
	"github.com/mapmarks/engine/internal/storage"
)

// Persister is the persistence collaborator. Implemented by the storage
// backends.
type Persister interface {
	LoadAll(ctx context.Context) ([]model.Marker, error)
	SaveAll(ctx context.Context, markers []model.Marker) error
}

// Events is the subset of the dispatcher the store needs to announce
// mutations.
type Events interface {
	Dispatch(e dispatcher.Event) (any, error)
}

// Metrics records persistence timings. Optional.
type Metrics interface {
	RecordPersist(duration time.Duration, markers int, failed bool)
}

// Dependencies holds everything the store needs.
type Dependencies struct {
	Persister Persister
	Events    Events
	Logger    *slog.Logger
	Metrics   Metrics
}

// Store holds the authoritative, ordered marker list. Ids are unique within
// the list at all times.
type Store struct {
	mu      sync.RWMutex
	markers []model.Marker
	index   map[string]int

	deps      Dependencies
	corrupted bool

	// Pending full-list snapshots awaiting persistence. Saves coalesce to the
	// latest snapshot; intermediate states are superseded anyway.
	saves      *queue.Queue[[]model.Marker]
	saveSignal chan struct{}
	stop       chan struct{}
	done       chan struct{}
}

// New creates a store and starts its persistence goroutine. Call Close when
// the session ends.
func New(deps Dependencies) *Store {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	s := &Store{
		index:      make(map[string]int),
		deps:       deps,
		saves:      queue.New[[]model.Marker](),
		saveSignal: make(chan struct{}, 1),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	go s.persistLoop()
	return s
}

// Close stops the persistence goroutine after draining pending saves.
func (s *Store) Close() {
	close(s.stop)
	<-s.done
}

// Load pulls the full marker set from the persistence collaborator and
// replaces the in-memory list. Failures never propagate: a corrupted payload
// recovers as an empty list with the corruption flagged for advisory display,
// any other failure recovers as an empty list.
func (s *Store) Load(ctx context.Context) []model.Marker {
	markers, err := s.deps.Persister.LoadAll(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrDataCorruption) {
			s.deps.Logger.Warn("marker data corrupted, starting with empty list", "error", err)
			s.setCorrupted(true)
		} else {
			s.deps.Logger.Error("failed to load markers, starting with empty list", "error", err)
		}
		markers = nil
	} else {
		s.setCorrupted(false)
	}

	s.mu.Lock()
	s.replaceLocked(markers)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.notify()
	return snapshot
}

// Corrupted reports whether the last Load hit a corrupted payload. Advisory
// only.
func (s *Store) Corrupted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.corrupted
}

// Add inserts a marker. A duplicate id replaces the existing entry in place so
// the uniqueness invariant holds unconditionally.
func (s *Store) Add(m model.Marker) {
	s.mu.Lock()
	if i, ok := s.index[m.ID]; ok {
		s.markers[i] = m
	} else {
		s.index[m.ID] = len(s.markers)
		s.markers = append(s.markers, m)
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.persistAsync(snapshot)
	s.notify()
}

// Update replaces the marker carrying the same id, keeping its position in the
// list. Unknown ids are a silent no-op.
func (s *Store) Update(m model.Marker) {
	s.mu.Lock()
	i, ok := s.index[m.ID]
	if !ok {
		s.mu.Unlock()
		return
	}
	s.markers[i] = m
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.persistAsync(snapshot)
	s.notify()
}

// Remove deletes the marker with the given id, preserving the order of the
// remaining entries. Unknown ids are a silent no-op.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	i, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	s.markers = append(s.markers[:i], s.markers[i+1:]...)
	delete(s.index, id)
	for j := i; j < len(s.markers); j++ {
		s.index[s.markers[j].ID] = j
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.persistAsync(snapshot)
	s.notify()
}

// Replace swaps the whole list, used by cloud sync (replace-wholesale merge
// policy). Duplicate ids in the incoming list keep the first occurrence.
func (s *Store) Replace(markers []model.Marker) {
	s.mu.Lock()
	s.replaceLocked(markers)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.persistAsync(snapshot)
	s.notify()
}

// Current returns an order-stable snapshot copy of the list.
func (s *Store) Current() []model.Marker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Get returns the marker with the given id.
func (s *Store) Get(id string) (model.Marker, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i, ok := s.index[id]; ok {
		return s.markers[i], true
	}
	return model.Marker{}, false
}

// Count returns the number of markers.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.markers)
}

func (s *Store) replaceLocked(markers []model.Marker) {
	s.markers = s.markers[:0]
	s.index = make(map[string]int, len(markers))
	for _, m := range markers {
		if _, ok := s.index[m.ID]; ok {
			continue
		}
		s.index[m.ID] = len(s.markers)
		s.markers = append(s.markers, m)
	}
}

func (s *Store) snapshotLocked() []model.Marker {
	out := make([]model.Marker, len(s.markers))
	copy(out, s.markers)
	return out
}

func (s *Store) setCorrupted(v bool) {
	s.mu.Lock()
	s.corrupted = v
	s.mu.Unlock()
}

func (s *Store) notify() {
	if s.deps.Events == nil {
		return
	}
	// No handler wired yet is fine during startup.
	_, _ = s.deps.Events.Dispatch(dispatcher.NewEvent(dispatcher.TopicMarkersChanged, nil))
}

func (s *Store) persistAsync(snapshot []model.Marker) {
	s.saves.Push(snapshot)
	select {
	case s.saveSignal <- struct{}{}:
	default:
	}
}

// persistLoop writes the latest pending snapshot. Save failure is logged and
// never rolls back the in-memory state.
func (s *Store) persistLoop() {
	defer close(s.done)
	for {
		select {
		case <-s.saveSignal:
			s.flushPending()
		case <-s.stop:
			s.flushPending()
			return
		}
	}
}

func (s *Store) flushPending() {
	latest, ok := s.saves.TakeLatest()
	if !ok {
		return
	}
	start := time.Now()
	err := s.deps.Persister.SaveAll(context.Background(), latest)
	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordPersist(time.Since(start), len(latest), err != nil)
	}
	if err != nil {
		s.deps.Logger.Error("failed to persist markers", "count", len(latest), "error", err)
	}
}
