// Package storage defines the persistence backends for the marker list. The
// persisted form is always the full ordered list; backends never patch
// individual rows on save.
package storage

import (
	"context"
	"errors"

	"github.com/mapmarks/engine/internal/model"
)

// ErrDataCorruption marks a payload that exists but cannot be deserialized.
// Callers recover it as an empty list; it is never a hard failure.
var ErrDataCorruption = errors.New("marker data corrupted")

// Backend is the interface all storage implementations must satisfy.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Marker list persistence, always the full ordered list.
	LoadAll(ctx context.Context) ([]model.Marker, error)
	SaveAll(ctx context.Context, markers []model.Marker) error
}

// RemoteSource is an optional interface for backends that can seed the store
// with another user's markers (cloud sync).
type RemoteSource interface {
	LoadForUser(ctx context.Context, userID string) ([]model.Marker, error)
}
