package database

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type note struct {
	ID   uint `gorm:"primarykey"`
	Body string
}

func TestManager_SqliteSetupAndUse(t *testing.T) {
	m := NewManager(zerolog.Nop())

	db, err := m.GetSqliteDB(filepath.Join(t.TempDir(), "markers.db"))
	require.NoError(t, err)
	m.DB = db

	require.NoError(t, m.Setup(&note{}))

	require.NoError(t, db.Create(&note{Body: "hello"}).Error)
	var count int64
	require.NoError(t, db.Model(&note{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestManager_SqliteInMemory(t *testing.T) {
	m := NewManager(zerolog.Nop())

	db, err := m.GetSqliteDB("")
	require.NoError(t, err)
	m.DB = db

	require.NoError(t, m.Setup(&note{}))
	require.NoError(t, db.Create(&note{Body: "ephemeral"}).Error)
}

func TestManager_SqlitePragmas(t *testing.T) {
	m := NewManager(zerolog.Nop())

	db, err := m.GetSqliteDB(filepath.Join(t.TempDir(), "markers.db"))
	require.NoError(t, err)

	var mode string
	require.NoError(t, db.Raw("PRAGMA journal_mode;").Scan(&mode).Error)
	assert.Equal(t, "wal", mode)
}
