// Package similarity turns free text into a set of semantically related
// marker ids through a two-stage pipeline: embed the text, then query a
// similarity search service with the vector. Failures are absorbed as "no
// constraint" so a broken search service can never blank the map.
package similarity

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mapmarks/engine/internal/dispatcher"
)

// State of the resolver for the current query.
type State int

const (
	// StateIdle means no similarity query is active; no constraint applies.
	StateIdle State = iota
	// StatePending means the two-stage fetch is in flight.
	StatePending
	// StateResolved means ids are available.
	StateResolved
	// StateFailed means a stage failed; filtering treats this as no
	// constraint (fail-open) and the UI may surface the error.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateResolved:
		return "resolved"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Match is one scored candidate from the similarity search.
type Match struct {
	MarkerID string  `json:"markerId"`
	Score    float64 `json:"score"`
}

// Embedder obtains an embedding vector for free text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher finds markers similar to a vector within a user's scope.
type Searcher interface {
	FindSimilar(ctx context.Context, vector []float32, userScope string, limit int) ([]Match, error)
}

// Events is the subset of the dispatcher the resolver needs.
type Events interface {
	Dispatch(e dispatcher.Event) (any, error)
}

// Metrics records how each resolution ended and how long it took. Optional.
type Metrics interface {
	RecordSimilarity(duration time.Duration, state string, matches int)
}

// Snapshot is the resolver's externally visible state.
type Snapshot struct {
	State State
	Query string
	IDs   []string
	Err   error
}

// ConstraintIDs returns the ids to constrain filtering with, or nil when no
// constraint applies (idle, pending, or failed).
func (s Snapshot) ConstraintIDs() []string {
	if s.State != StateResolved {
		return nil
	}
	return s.IDs
}

// Dependencies holds everything the resolver needs.
type Dependencies struct {
	Embedder Embedder
	Searcher Searcher
	Events   Events
	Logger   *slog.Logger
	Metrics  Metrics

	// UserScope restricts search results to the current user's markers.
	UserScope string
	// Limit caps the number of candidate ids requested.
	Limit int
	// Timeout bounds one whole two-stage fetch so a hung request cannot
	// freeze the constraint at pending.
	Timeout time.Duration
}

// Resolver runs the similarity pipeline with last-query-wins semantics: a new
// Resolve cancels the relevance of any in-flight request, and a completion
// for a superseded query is discarded.
type Resolver struct {
	deps Dependencies

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	snap   Snapshot
}

// New creates a resolver.
func New(deps Dependencies) *Resolver {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Limit <= 0 {
		deps.Limit = 20
	}
	if deps.Timeout <= 0 {
		deps.Timeout = 15 * time.Second
	}
	return &Resolver{deps: deps, snap: Snapshot{State: StateIdle}}
}

// Close cancels any in-flight resolution.
func (r *Resolver) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

// Snapshot returns the current resolver state.
func (r *Resolver) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap
}

// Resolve starts resolution for the given query text. Blank text clears the
// constraint immediately. The call never blocks on the network.
func (r *Resolver) Resolve(text string) {
	text = strings.TrimSpace(text)

	r.mu.Lock()
	r.gen++
	gen := r.gen
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}

	if text == "" {
		r.snap = Snapshot{State: StateIdle}
		r.mu.Unlock()
		r.notify()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.deps.Timeout)
	r.cancel = cancel
	r.snap = Snapshot{State: StatePending, Query: text}
	r.mu.Unlock()
	r.notify()

	go r.run(ctx, cancel, gen, text)
}

func (r *Resolver) run(ctx context.Context, cancel context.CancelFunc, gen uint64, text string) {
	defer cancel()
	start := time.Now()

	vector, err := r.deps.Embedder.Embed(ctx, text)
	if err != nil {
		r.deps.Logger.Warn("embedding fetch failed", "query", text, "error", err)
		r.record(start, StateFailed, 0)
		r.complete(gen, Snapshot{State: StateFailed, Query: text, Err: err})
		return
	}

	matches, err := r.deps.Searcher.FindSimilar(ctx, vector, r.deps.UserScope, r.deps.Limit)
	if err != nil {
		r.deps.Logger.Warn("similarity search failed", "query", text, "error", err)
		r.record(start, StateFailed, 0)
		r.complete(gen, Snapshot{State: StateFailed, Query: text, Err: err})
		return
	}

	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.MarkerID)
	}
	r.record(start, StateResolved, len(ids))
	r.complete(gen, Snapshot{State: StateResolved, Query: text, IDs: ids})
}

func (r *Resolver) record(start time.Time, state State, matches int) {
	if r.deps.Metrics == nil {
		return
	}
	r.deps.Metrics.RecordSimilarity(time.Since(start), state.String(), matches)
}

// complete applies a result unless a newer query superseded it.
func (r *Resolver) complete(gen uint64, snap Snapshot) {
	r.mu.Lock()
	if gen != r.gen {
		r.mu.Unlock()
		r.deps.Logger.Debug("discarding superseded similarity result", "query", snap.Query)
		return
	}
	r.snap = snap
	r.cancel = nil
	r.mu.Unlock()
	r.notify()
}

func (r *Resolver) notify() {
	if r.deps.Events == nil {
		return
	}
	_, _ = r.deps.Events.Dispatch(dispatcher.NewEvent(dispatcher.TopicSimilarityResolved, r.Snapshot()))
}
