package indexer

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mapmarks/engine/internal/logging"
	"github.com/mapmarks/engine/internal/model"
	"github.com/mapmarks/engine/internal/queue"
	"github.com/mapmarks/engine/internal/similarity"
)

// ErrNoEmbedder is returned when a reindex is requested without an embedder configured.
var ErrNoEmbedder = fmt.Errorf("no embedder configured")

// MarkerSource provides the markers whose embeddings the indexer maintains.
type MarkerSource interface {
	Current() []model.Marker
	Get(id string) (model.Marker, bool)
}

// EmbeddingSink persists computed embeddings keyed by marker id.
type EmbeddingSink interface {
	UpsertEmbedding(ctx context.Context, markerID string, embedding []float32) error
}

// Dependencies holds all dependencies for the indexer manager
type Dependencies struct {
	Store      MarkerSource
	Embedder   similarity.Embedder
	Sink       EmbeddingSink
	LogManager *logging.SlogManager
}

// Manager keeps the embedding index in step with the marker store. It tracks
// the text last embedded per marker so unchanged markers are not re-embedded.
type Manager struct {
	deps Dependencies

	mu      sync.Mutex
	indexed map[string]string
	pending *queue.Queue[string]
}

// NewManager creates a new indexer manager
func NewManager(deps Dependencies) *Manager {
	return &Manager{
		deps:    deps,
		indexed: make(map[string]string),
		pending: queue.New[string](),
	}
}

// Pending returns the number of markers queued for embedding.
func (m *Manager) Pending() int {
	return m.pending.Len()
}

// Reindex embeds every marker whose document text changed since the last run
// and upserts the result. Individual marker failures are logged and skipped so
// one bad embed call does not starve the rest of the batch. Returns the number
// of markers embedded and the first error encountered.
func (m *Manager) Reindex(ctx context.Context) (int, error) {
	if m.deps.Embedder == nil || m.deps.Sink == nil {
		return 0, ErrNoEmbedder
	}

	m.enqueueChanged()
	return m.drain(ctx)
}

// enqueueChanged pushes the ids of markers whose text is new or changed.
func (m *Manager) enqueueChanged() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, marker := range m.deps.Store.Current() {
		text := docText(marker)
		if text == "" {
			continue
		}
		if m.indexed[marker.ID] == text {
			continue
		}
		m.pending.Push(marker.ID)
	}
}

func (m *Manager) drain(ctx context.Context) (int, error) {
	logger := m.deps.LogManager.Logger()

	var firstErr error
	count := 0
	for _, id := range m.pending.GetAndEmpty() {
		if err := ctx.Err(); err != nil {
			return count, err
		}

		marker, ok := m.deps.Store.Get(id)
		if !ok {
			// Removed between enqueue and drain.
			continue
		}
		text := docText(marker)

		vector, err := m.deps.Embedder.Embed(ctx, text)
		if err != nil {
			logger.Warn("Failed to embed marker", "markerId", id, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("embed marker %s: %w", id, err)
			}
			continue
		}

		if err := m.deps.Sink.UpsertEmbedding(ctx, id, vector); err != nil {
			logger.Warn("Failed to upsert embedding", "markerId", id, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("upsert embedding %s: %w", id, err)
			}
			continue
		}

		m.mu.Lock()
		m.indexed[id] = text
		m.mu.Unlock()
		count++
	}

	if count > 0 {
		logger.Info("Embedding index updated", "markers", count)
	}
	return count, firstErr
}

// docText builds the text embedded for a marker. Title and memo are joined so
// a search query can match either.
func docText(m model.Marker) string {
	parts := make([]string, 0, 2)
	if t := strings.TrimSpace(m.Title); t != "" {
		parts = append(parts, t)
	}
	if t := strings.TrimSpace(m.Memo); t != "" {
		parts = append(parts, t)
	}
	return strings.Join(parts, "\n")
}
