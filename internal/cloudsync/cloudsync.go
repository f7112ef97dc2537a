// Package cloudsync keeps the local marker list aligned with the account's
// remote copy: a one-shot seed on session start and periodic snapshot pushes
// while the session runs.
package cloudsync

import (
	"context"
	"log/slog"
	"time"

	"github.com/mapmarks/engine/internal/model"
	"github.com/mapmarks/engine/internal/storage"
)

// MarkerStore is the subset of the local store the syncer needs.
type MarkerStore interface {
	Replace(markers []model.Marker)
	Current() []model.Marker
}

// Pusher uploads a full snapshot to the remote service.
type Pusher interface {
	PushAll(ctx context.Context, userID string, markers []model.Marker) error
}

// Dependencies holds everything the syncer needs.
type Dependencies struct {
	Remote storage.RemoteSource
	Pusher Pusher
	Store  MarkerStore
	Logger *slog.Logger
	UserID string

	// Interval between periodic pushes. Zero disables the push loop.
	Interval time.Duration
}

// Syncer seeds from and pushes to the remote marker service.
type Syncer struct {
	deps Dependencies
	stop chan struct{}
	done chan struct{}
}

// New creates a syncer. Call Start to begin periodic pushes.
func New(deps Dependencies) *Syncer {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Syncer{
		deps: deps,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// SeedFromRemote replaces the local list with the account's remote copy.
func (s *Syncer) SeedFromRemote(ctx context.Context) error {
	markers, err := s.deps.Remote.LoadForUser(ctx, s.deps.UserID)
	if err != nil {
		return err
	}
	s.deps.Store.Replace(markers)
	s.deps.Logger.Info("seeded from remote", "userId", s.deps.UserID, "markers", len(markers))
	return nil
}

// PushSnapshot uploads the current local list.
func (s *Syncer) PushSnapshot(ctx context.Context) error {
	snapshot := s.deps.Store.Current()
	if err := s.deps.Pusher.PushAll(ctx, s.deps.UserID, snapshot); err != nil {
		return err
	}
	s.deps.Logger.Debug("pushed snapshot", "markers", len(snapshot))
	return nil
}

// Start begins the periodic push loop. No-op when no interval is configured.
func (s *Syncer) Start() {
	if s.deps.Interval <= 0 || s.deps.Pusher == nil {
		close(s.done)
		return
	}
	go s.pushLoop()
}

// Close stops the push loop.
func (s *Syncer) Close() {
	close(s.stop)
	<-s.done
}

func (s *Syncer) pushLoop() {
	defer close(s.done)

	ticker := time.NewTicker(s.deps.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if err := s.PushSnapshot(context.Background()); err != nil {
				s.deps.Logger.Error("periodic push failed", "error", err)
			}
		}
	}
}
