// Package filestorage implements the storage.Backend interface with a single
// JSON document on disk. Saves are atomic: the snapshot is written to a temp
// file and renamed over the previous one.
package filestorage

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mapmarks/engine/internal/config"
	"github.com/mapmarks/engine/internal/logging"
	"github.com/mapmarks/engine/internal/model"
	"github.com/mapmarks/engine/internal/storage"
)

// Backend persists the marker list as a JSON array.
type Backend struct {
	cfg config.FileConfig
	log *logging.SlogManager
}

// New creates a new file storage backend.
func New(cfg config.FileConfig, logManager *logging.SlogManager) *Backend {
	return &Backend{
		cfg: cfg,
		log: logManager,
	}
}

// Init ensures the parent directory exists.
func (b *Backend) Init() error {
	dir := filepath.Dir(b.cfg.Path)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create storage directory %s: %w", dir, err)
	}
	return nil
}

// Close cleans up resources.
func (b *Backend) Close() error {
	return nil
}

// LoadAll reads the persisted marker list. A missing file yields an empty
// list. Undecodable content is reported as storage.ErrDataCorruption.
func (b *Backend) LoadAll(ctx context.Context) ([]model.Marker, error) {
	f, err := os.Open(b.cfg.Path)
	if os.IsNotExist(err) {
		return []model.Marker{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", b.cfg.Path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if b.cfg.CompressOutput {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("%w: %s is not valid gzip: %v", storage.ErrDataCorruption, b.cfg.Path, err)
		}
		defer gz.Close()
		r = gz
	}

	var markers []model.Marker
	if err := json.NewDecoder(r).Decode(&markers); err != nil {
		return nil, fmt.Errorf("%w: failed to decode %s: %v", storage.ErrDataCorruption, b.cfg.Path, err)
	}
	if markers == nil {
		markers = []model.Marker{}
	}
	return markers, nil
}

// SaveAll persists the full marker list, replacing the previous snapshot.
func (b *Backend) SaveAll(ctx context.Context, markers []model.Marker) error {
	tmp, err := os.CreateTemp(filepath.Dir(b.cfg.Path), ".markers-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if err := b.encode(tmp, markers); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpName, b.cfg.Path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", b.cfg.Path, err)
	}
	return nil
}

func (b *Backend) encode(w io.Writer, markers []model.Marker) error {
	if markers == nil {
		markers = []model.Marker{}
	}

	if b.cfg.CompressOutput {
		gz := gzip.NewWriter(w)
		enc := json.NewEncoder(gz)
		if err := enc.Encode(markers); err != nil {
			gz.Close()
			return fmt.Errorf("failed to encode markers: %w", err)
		}
		if err := gz.Close(); err != nil {
			return fmt.Errorf("failed to flush gzip stream: %w", err)
		}
		return nil
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(markers); err != nil {
		return fmt.Errorf("failed to encode markers: %w", err)
	}
	return nil
}
