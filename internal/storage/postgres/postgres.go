// Package postgres implements the storage.Backend interface on GORM/Postgres
// and adds what only Postgres can serve: loading another device's markers for
// the same account, and pgvector similarity search over marker embeddings.
package postgres

import (
	"context"

	"github.com/pgvector/pgvector-go"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gorm.io/gorm"

	"github.com/mapmarks/engine/internal/database"
	"github.com/mapmarks/engine/internal/logging"
	"github.com/mapmarks/engine/internal/model"
	"github.com/mapmarks/engine/internal/similarity"
	"github.com/mapmarks/engine/internal/storage"
	gormstorage "github.com/mapmarks/engine/internal/storage/gorm"
)

// ErrVectorUnsupported is returned for embedding operations while running on
// the sqlite fallback; the resolver treats it like any search failure
// (fail-open) and the indexer skips.
var ErrVectorUnsupported = pkgerrors.New("vector operations require postgres")

// EmbeddingRecord stores one embedding per marker and model.
type EmbeddingRecord struct {
	ID        uint            `gorm:"primarykey"`
	MarkerID  string          `gorm:"index:idx_marker_model,unique;size:64"`
	Model     string          `gorm:"index:idx_marker_model,unique;size:128"`
	Embedding pgvector.Vector `gorm:"type:vector(1536)"`
	UserID    string          `gorm:"index"`
}

// TableName overrides the default pluralized name.
func (EmbeddingRecord) TableName() string {
	return "marker_embeddings"
}

// Backend wraps the GORM backend with Postgres-only features.
type Backend struct {
	*gormstorage.Backend
	mgr    *database.Manager
	db     *gorm.DB
	model  string
	userID string
}

var (
	_ storage.Backend      = (*Backend)(nil)
	_ storage.RemoteSource = (*Backend)(nil)
	_ similarity.Searcher  = (*Backend)(nil)
)

// New creates a new Postgres storage backend. embeddingModel names the
// embedding model whose vectors similarity search runs against. When postgres
// is unreachable the connection manager falls back to local sqlite so marker
// persistence survives; vector operations report ErrVectorUnsupported until
// the next session reaches postgres.
func New(logManager *logging.SlogManager, userID, embeddingModel string) (*Backend, error) {
	mgr := database.NewManager(zerolog.Nop())
	mgr.SqliteFilePath = viper.GetString("storage.sqlite.path")
	if err := mgr.Connect(); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to connect to database")
	}
	if mgr.ShouldSaveLocal {
		logManager.Logger().Warn("postgres unreachable, markers persist to local sqlite; similarity search disabled")
	}

	gormBackend := gormstorage.New(gormstorage.Dependencies{
		DB:         mgr.DB,
		LogManager: logManager,
		UserID:     userID,
	})

	return &Backend{
		Backend: gormBackend,
		mgr:     mgr,
		db:      mgr.DB,
		model:   embeddingModel,
		userID:  userID,
	}, nil
}

// Init migrates both tables; on postgres the manager also ensures the
// pgvector extension first.
func (b *Backend) Init() error {
	return b.mgr.Setup(&gormstorage.MarkerRecord{}, &EmbeddingRecord{})
}

// LoadForUser reads the marker list stored under another account id, in saved
// order. Used when seeding this device from the shared database.
func (b *Backend) LoadForUser(ctx context.Context, userID string) ([]model.Marker, error) {
	scoped := gormstorage.New(gormstorage.Dependencies{
		DB:     b.db,
		UserID: userID,
	})
	return scoped.LoadAll(ctx)
}

// UpsertEmbedding stores the embedding for a marker, replacing any previous
// vector for the same marker and model.
func (b *Backend) UpsertEmbedding(ctx context.Context, markerID string, embedding []float32) error {
	if b.mgr.ShouldSaveLocal {
		return ErrVectorUnsupported
	}

	stmt := `
		INSERT INTO marker_embeddings (marker_id, model, embedding, user_id)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (marker_id, model)
		DO UPDATE SET embedding = EXCLUDED.embedding
	`
	vector := pgvector.NewVector(embedding)
	err := b.db.WithContext(ctx).Exec(stmt, markerID, b.model, vector, b.userID).Error
	if err != nil {
		return pkgerrors.Wrap(err, "failed to upsert marker embedding")
	}
	return nil
}

// FindSimilar returns the marker ids closest to the query embedding, most
// similar first. The <=> operator computes cosine distance.
func (b *Backend) FindSimilar(ctx context.Context, embedding []float32, userID string, limit int) ([]similarity.Match, error) {
	if b.mgr.ShouldSaveLocal {
		return nil, ErrVectorUnsupported
	}
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT e.marker_id, 1 - (e.embedding <=> ?) AS score
		FROM marker_embeddings e
		WHERE e.user_id = ? AND e.model = ?
		ORDER BY e.embedding <=> ?
		LIMIT ?
	`

	vector := pgvector.NewVector(embedding)
	rows, err := b.db.WithContext(ctx).Raw(query, vector, userID, b.model, vector, limit).Rows()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to vector search")
	}
	defer rows.Close()

	matches := []similarity.Match{}
	for rows.Next() {
		var m similarity.Match
		if err := rows.Scan(&m.MarkerID, &m.Score); err != nil {
			return nil, pkgerrors.Wrap(err, "failed to scan vector search result")
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return matches, nil
}
