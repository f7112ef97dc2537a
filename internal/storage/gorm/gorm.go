// Package gormstorage implements the storage.Backend interface on a GORM
// connection. SQLite and Postgres backends build on it via composition.
package gormstorage

import (
	"context"
	"encoding/json"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/mapmarks/engine/internal/geo"
	"github.com/mapmarks/engine/internal/logging"
	"github.com/mapmarks/engine/internal/model"
	"github.com/mapmarks/engine/internal/storage"
)

// MarkerRecord is the persisted form of a marker. Position is a WKB point so
// both dialects store the same bytes; Seq preserves list order across saves.
type MarkerRecord struct {
	ID          string `gorm:"primarykey;size:64"`
	Seq         int    `gorm:"index"`
	Title       string
	Memo        string
	CreatedAt   string
	ColorHue    float64
	Position    []byte
	Attachments datatypes.JSON
	UserID      string `gorm:"index"`
}

// TableName overrides the default pluralized name.
func (MarkerRecord) TableName() string {
	return "markers"
}

type attachments struct {
	ImageURI string `json:"imageUri,omitempty"`
	VideoURI string `json:"videoUri,omitempty"`
}

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB         *gorm.DB
	LogManager *logging.SlogManager
	UserID     string
}

// Backend implements storage.Backend using GORM.
type Backend struct {
	deps Dependencies
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	return &Backend{deps: deps}
}

// DB exposes the underlying connection for dialect-specific extensions.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init runs schema migration.
func (b *Backend) Init() error {
	if err := b.deps.DB.AutoMigrate(&MarkerRecord{}); err != nil {
		return pkgerrors.Wrap(err, "failed to migrate marker schema")
	}
	return nil
}

// Close closes the underlying connection.
func (b *Backend) Close() error {
	sqlDB, err := b.deps.DB.DB()
	if err != nil {
		return pkgerrors.Wrap(err, "failed to access sql interface")
	}
	return sqlDB.Close()
}

// LoadAll reads the persisted marker list in saved order. Records that cannot
// be decoded back into markers are reported as storage.ErrDataCorruption.
func (b *Backend) LoadAll(ctx context.Context) ([]model.Marker, error) {
	var records []MarkerRecord
	err := b.deps.DB.WithContext(ctx).
		Where("user_id = ?", b.deps.UserID).
		Order("seq ASC").
		Find(&records).Error
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to load markers")
	}

	markers := make([]model.Marker, 0, len(records))
	for _, rec := range records {
		m, err := fromRecord(rec)
		if err != nil {
			return nil, pkgerrors.Wrapf(storage.ErrDataCorruption, "marker %s: %v", rec.ID, err)
		}
		markers = append(markers, m)
	}
	return markers, nil
}

// SaveAll replaces the persisted list with the given snapshot in one
// transaction.
func (b *Backend) SaveAll(ctx context.Context, markers []model.Marker) error {
	records := make([]MarkerRecord, 0, len(markers))
	for i, m := range markers {
		rec, err := b.toRecord(m, i)
		if err != nil {
			return pkgerrors.Wrapf(err, "marker %s", m.ID)
		}
		records = append(records, rec)
	}

	err := b.deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", b.deps.UserID).Delete(&MarkerRecord{}).Error; err != nil {
			return pkgerrors.Wrap(err, "failed to clear markers")
		}
		if len(records) == 0 {
			return nil
		}
		if err := tx.Create(&records).Error; err != nil {
			return pkgerrors.Wrap(err, "failed to insert markers")
		}
		return nil
	})
	return err
}

func (b *Backend) toRecord(m model.Marker, seq int) (MarkerRecord, error) {
	att, err := json.Marshal(attachments{ImageURI: m.ImageURI, VideoURI: m.VideoURI})
	if err != nil {
		return MarkerRecord{}, pkgerrors.Wrap(err, "failed to encode attachments")
	}

	return MarkerRecord{
		ID:          m.ID,
		Seq:         seq,
		Title:       m.Title,
		Memo:        m.Memo,
		CreatedAt:   m.CreatedAt,
		ColorHue:    float64(m.ColorHue),
		Position:    geo.PointWKB(m.Position),
		Attachments: datatypes.JSON(att),
		UserID:      b.deps.UserID,
	}, nil
}

func fromRecord(rec MarkerRecord) (model.Marker, error) {
	pos, err := geo.PositionFromWKB(rec.Position)
	if err != nil {
		return model.Marker{}, pkgerrors.Wrap(err, "failed to decode position")
	}

	var att attachments
	if len(rec.Attachments) > 0 {
		if err := json.Unmarshal(rec.Attachments, &att); err != nil {
			return model.Marker{}, pkgerrors.Wrap(err, "failed to decode attachments")
		}
	}

	return model.Marker{
		ID:        rec.ID,
		Position:  pos,
		Title:     rec.Title,
		Memo:      rec.Memo,
		CreatedAt: rec.CreatedAt,
		ColorHue:  model.ColorHue(rec.ColorHue),
		ImageURI:  att.ImageURI,
		VideoURI:  att.VideoURI,
	}, nil
}
