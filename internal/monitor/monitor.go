package monitor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mapmarks/engine/internal/logging"
	"github.com/mapmarks/engine/internal/model"
	"github.com/mapmarks/engine/internal/session"
)

// MarkerCounts is the subset of the store and engine the monitor reads.
type MarkerCounts interface {
	Current() []model.Marker
}

// VisibleCounts reports the markers currently passing viewport and criteria.
type VisibleCounts interface {
	Snapshot() []model.Marker
}

// PendingCounts reports work queued but not yet flushed.
type PendingCounts interface {
	Pending() int
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Store      MarkerCounts
	Engine     VisibleCounts
	Indexer    PendingCounts
	Session    *session.Context
	LogManager *logging.SlogManager
	StatusDir  string
	Interval   time.Duration
}

// Status is one snapshot of the running session, written to status.txt.
type Status struct {
	Time              time.Time `json:"time"`
	User              string    `json:"user"`
	SessionStart      time.Time `json:"sessionStart"`
	TotalMarkers      int       `json:"totalMarkers"`
	VisibleMarkers    int       `json:"visibleMarkers"`
	PendingEmbeddings int       `json:"pendingEmbeddings"`
}

// Service periodically writes session status to a file so operators can watch
// a long-running sync without attaching to logs.
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetStatus returns the current session status.
func (s *Service) GetStatus() Status {
	st := Status{
		Time: time.Now(),
	}
	if s.deps.Session != nil {
		st.User = s.deps.Session.User()
		st.SessionStart = s.deps.Session.StartedAt()
	}
	if s.deps.Store != nil {
		st.TotalMarkers = len(s.deps.Store.Current())
	}
	if s.deps.Engine != nil {
		st.VisibleMarkers = len(s.deps.Engine.Snapshot())
	}
	if s.deps.Indexer != nil {
		st.PendingEmbeddings = s.deps.Indexer.Pending()
	}
	return st
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	stop := make(chan struct{})
	s.stopChan = stop
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		logger := s.deps.LogManager.Logger()
		logger.Debug("Starting status monitor goroutine")

		statusFile, err := os.Create(filepath.Join(s.deps.StatusDir, "status.txt"))
		if err != nil {
			logger.Error("Error creating status file", "error", err)
		}
		defer func() {
			if statusFile != nil {
				statusFile.Close()
			}
		}()

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if statusFile == nil {
					continue
				}

				statusStr, err := json.MarshalIndent(s.GetStatus(), "", "  ")
				if err != nil {
					logger.Error("Error marshaling status", "error", err)
					continue
				}

				statusFile.Truncate(0)
				statusFile.Seek(0, 0)
				statusFile.Write(statusStr)
				statusFile.WriteString("\n")
			}
		}
	}()

	return nil
}

// Stop stops the status monitor. Safe to call multiple times; the channel is
// nilled under the mutex so repeated calls cannot close it twice, regardless
// of when the goroutine's shutdown completes.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopChan != nil {
		close(s.stopChan)
		s.stopChan = nil
	}
}
