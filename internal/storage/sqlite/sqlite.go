// Package sqlitestorage implements the storage.Backend interface using a
// file-backed SQLite database. It wraps the GORM backend via composition; the
// only SQLite-specific concern is opening the database file.
package sqlitestorage

import (
	"fmt"

	"github.com/mapmarks/engine/internal/config"
	"github.com/mapmarks/engine/internal/database"
	"github.com/mapmarks/engine/internal/logging"
	gormstorage "github.com/mapmarks/engine/internal/storage/gorm"
)

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
}

// New creates a new SQLite storage backend.
func New(cfg config.SQLiteConfig, logManager *logging.SlogManager, userID string) (*Backend, error) {
	db, err := database.GetSqliteDBStandalone(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite DB at %s: %w", cfg.Path, err)
	}

	gormBackend := gormstorage.New(gormstorage.Dependencies{
		DB:         db,
		LogManager: logManager,
		UserID:     userID,
	})

	return &Backend{Backend: gormBackend}, nil
}
