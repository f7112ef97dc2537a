package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapmarks/engine/internal/dispatcher"
	"github.com/mapmarks/engine/internal/model"
	"github.com/mapmarks/engine/internal/storage"
)

type fakePersister struct {
	mu      sync.Mutex
	loaded  []model.Marker
	loadErr error
	saved   [][]model.Marker
	saveErr error
}

func (p *fakePersister) LoadAll(ctx context.Context) ([]model.Marker, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loaded, p.loadErr
}

func (p *fakePersister) SaveAll(ctx context.Context, markers []model.Marker) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saved = append(p.saved, markers)
	return p.saveErr
}

func (p *fakePersister) lastSaved() ([]model.Marker, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.saved) == 0 {
		return nil, false
	}
	return p.saved[len(p.saved)-1], true
}

type fakeEvents struct {
	mu     sync.Mutex
	topics []string
}

func (e *fakeEvents) Dispatch(ev dispatcher.Event) (any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.topics = append(e.topics, ev.Topic)
	return nil, nil
}

func (e *fakeEvents) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.topics)
}

func marker(id, title string) model.Marker {
	return model.Marker{
		ID:        id,
		Position:  model.Position{Lat: 35.0, Lon: 139.0},
		Title:     title,
		CreatedAt: "2024/04/01 00:00:00",
	}
}

func newTestStore(t *testing.T, p *fakePersister) (*Store, *fakeEvents) {
	t.Helper()
	events := &fakeEvents{}
	s := New(Dependencies{Persister: p, Events: events})
	t.Cleanup(s.Close)
	return s, events
}

func TestStore_AddAndCurrent(t *testing.T) {
	s, events := newTestStore(t, &fakePersister{})

	s.Add(marker("1", "Tower"))
	s.Add(marker("2", "Bridge"))

	current := s.Current()
	require.Len(t, current, 2)
	assert.Equal(t, "Tower", current[0].Title)
	assert.Equal(t, "Bridge", current[1].Title)
	assert.GreaterOrEqual(t, events.count(), 2)
}

func TestStore_Add_DuplicateIDReplaces(t *testing.T) {
	s, _ := newTestStore(t, &fakePersister{})

	s.Add(marker("1", "Tower"))
	s.Add(marker("1", "Tower v2"))

	current := s.Current()
	require.Len(t, current, 1, "duplicate id must not create a second entry")
	assert.Equal(t, "Tower v2", current[0].Title)
}

func TestStore_Update(t *testing.T) {
	s, _ := newTestStore(t, &fakePersister{})

	s.Add(marker("1", "Tower"))
	s.Add(marker("2", "Bridge"))

	edited := marker("1", "Tower (edited)")
	s.Update(edited)

	current := s.Current()
	require.Len(t, current, 2)
	assert.Equal(t, "Tower (edited)", current[0].Title, "update must keep list position")
}

func TestStore_Update_UnknownIDIsNoOp(t *testing.T) {
	s, events := newTestStore(t, &fakePersister{})
	s.Add(marker("1", "Tower"))
	before := events.count()

	s.Update(marker("ghost", "Nothing"))

	assert.Len(t, s.Current(), 1)
	assert.Equal(t, before, events.count(), "no-op update must not dispatch")
}

func TestStore_Remove(t *testing.T) {
	s, _ := newTestStore(t, &fakePersister{})

	s.Add(marker("1", "Tower"))
	s.Add(marker("2", "Bridge"))
	s.Add(marker("3", "Park"))

	s.Remove("2")

	current := s.Current()
	require.Len(t, current, 2)
	assert.Equal(t, "1", current[0].ID)
	assert.Equal(t, "3", current[1].ID)

	// Index must stay consistent after the splice.
	got, ok := s.Get("3")
	require.True(t, ok)
	assert.Equal(t, "Park", got.Title)
}

func TestStore_Remove_UnknownIDIsNoOp(t *testing.T) {
	s, _ := newTestStore(t, &fakePersister{})
	s.Add(marker("1", "Tower"))

	s.Remove("ghost")

	assert.Len(t, s.Current(), 1)
}

func TestStore_Replace(t *testing.T) {
	s, _ := newTestStore(t, &fakePersister{})
	s.Add(marker("1", "Tower"))

	s.Replace([]model.Marker{
		marker("a", "Alpha"),
		marker("b", "Beta"),
		marker("a", "Alpha duplicate"),
	})

	current := s.Current()
	require.Len(t, current, 2, "replace must drop duplicate ids, keeping the first")
	assert.Equal(t, "Alpha", current[0].Title)
	assert.Equal(t, "Beta", current[1].Title)
}

func TestStore_Load(t *testing.T) {
	p := &fakePersister{loaded: []model.Marker{marker("1", "Tower")}}
	s, _ := newTestStore(t, p)

	got := s.Load(context.Background())

	require.Len(t, got, 1)
	assert.Equal(t, "Tower", got[0].Title)
	assert.False(t, s.Corrupted())
}

func TestStore_Load_CorruptionRecoversEmpty(t *testing.T) {
	p := &fakePersister{loadErr: storage.ErrDataCorruption}
	s, _ := newTestStore(t, p)

	got := s.Load(context.Background())

	assert.Empty(t, got)
	assert.True(t, s.Corrupted(), "corruption must be flagged for advisory display")
}

func TestStore_Load_HardFailureRecoversEmpty(t *testing.T) {
	p := &fakePersister{loadErr: errors.New("disk on fire")}
	s, _ := newTestStore(t, p)

	got := s.Load(context.Background())

	assert.Empty(t, got)
	assert.False(t, s.Corrupted())
}

func TestStore_MutationVisibleBeforePersistence(t *testing.T) {
	block := make(chan struct{})
	p := &blockingPersister{release: block}
	events := &fakeEvents{}
	s := New(Dependencies{Persister: p, Events: events})
	defer func() {
		close(block)
		s.Close()
	}()

	s.Add(marker("1", "Tower"))

	// The in-memory list reflects the mutation immediately even though the
	// save is still blocked.
	assert.Len(t, s.Current(), 1)
}

func TestStore_PersistsLatestSnapshot(t *testing.T) {
	p := &fakePersister{}
	s, _ := newTestStore(t, p)

	s.Add(marker("1", "Tower"))
	s.Add(marker("2", "Bridge"))
	s.Remove("1")
	s.Close()

	last, ok := p.lastSaved()
	require.True(t, ok, "expected at least one save")
	require.Len(t, last, 1)
	assert.Equal(t, "2", last[0].ID)
}

func TestStore_SaveFailureDoesNotRollBack(t *testing.T) {
	p := &fakePersister{saveErr: errors.New("save failed")}
	s, _ := newTestStore(t, p)

	s.Add(marker("1", "Tower"))

	assert.Eventually(t, func() bool {
		_, ok := p.lastSaved()
		return ok
	}, time.Second, 10*time.Millisecond)
	assert.Len(t, s.Current(), 1, "failed save must not roll back in-memory state")
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	s, _ := newTestStore(t, &fakePersister{})
	s.Add(marker("1", "Tower"))

	snap := s.Current()
	snap[0].Title = "mutated"

	got, ok := s.Get("1")
	require.True(t, ok)
	assert.Equal(t, "Tower", got.Title, "callers must not be able to mutate the store through a snapshot")
}

type fakeMetrics struct {
	mu       sync.Mutex
	persists []persistRecord
}

type persistRecord struct {
	markers int
	failed  bool
}

func (m *fakeMetrics) RecordPersist(duration time.Duration, markers int, failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.persists = append(m.persists, persistRecord{markers: markers, failed: failed})
}

func (m *fakeMetrics) last() (persistRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.persists) == 0 {
		return persistRecord{}, false
	}
	return m.persists[len(m.persists)-1], true
}

func TestStore_RecordsPersistMetrics(t *testing.T) {
	metrics := &fakeMetrics{}
	s := New(Dependencies{Persister: &fakePersister{}, Metrics: metrics})

	s.Add(marker("1", "Tower"))
	s.Add(marker("2", "Bridge"))
	s.Close()

	rec, ok := metrics.last()
	require.True(t, ok, "expected at least one persist measurement")
	assert.Equal(t, 2, rec.markers)
	assert.False(t, rec.failed)
}

func TestStore_RecordsPersistMetrics_Failure(t *testing.T) {
	metrics := &fakeMetrics{}
	s := New(Dependencies{
		Persister: &fakePersister{saveErr: errors.New("save failed")},
		Metrics:   metrics,
	})

	s.Add(marker("1", "Tower"))
	s.Close()

	rec, ok := metrics.last()
	require.True(t, ok)
	assert.True(t, rec.failed)
	assert.Equal(t, 1, rec.markers)
}

type blockingPersister struct {
	release chan struct{}
}

func (p *blockingPersister) LoadAll(ctx context.Context) ([]model.Marker, error) {
	return nil, nil
}

func (p *blockingPersister) SaveAll(ctx context.Context, markers []model.Marker) error {
	<-p.release
	return nil
}
