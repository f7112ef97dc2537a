package metrics

import (
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapmarks/engine/internal/engine"
)

var _ engine.Metrics = (*Manager)(nil)

func newBackupManager(t *testing.T) *Manager {
	t.Helper()

	m := NewManager(zerolog.Nop(), filepath.Join(t.TempDir(), "metrics_backup.gz"))

	file, err := os.OpenFile(m.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	require.NoError(t, err)
	m.BackupWriter = gzip.NewWriter(file)
	t.Cleanup(func() { m.Close() })
	return m
}

func readBackup(t *testing.T, m *Manager) string {
	t.Helper()
	require.NoError(t, m.BackupWriter.Close())
	m.BackupWriter = nil

	f, err := os.Open(m.BackupPath)
	require.NoError(t, err)
	defer f.Close()

	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	defer gz.Close()

	buf := make([]byte, 64*1024)
	n, _ := gz.Read(buf)
	return string(buf[:n])
}

func TestWritePoint_BackupFallback(t *testing.T) {
	m := newBackupManager(t)

	point := influxdb2_write.NewPointWithMeasurement("recompute").
		AddField("durationMs", 1.5).
		SetTime(time.Now())

	require.NoError(t, m.WritePoint(context.Background(), "engine_performance", point))

	content := readBackup(t, m)
	assert.Contains(t, content, "recompute")
	assert.Contains(t, content, "durationMs")
}

func TestWritePoint_NoWriterNoBackup(t *testing.T) {
	m := NewManager(zerolog.Nop(), "")

	point := influxdb2_write.NewPointWithMeasurement("recompute")
	err := m.WritePoint(context.Background(), "engine_performance", point)
	require.Error(t, err)
}

func TestRecordRecompute_WritesPoint(t *testing.T) {
	m := newBackupManager(t)

	m.RecordRecompute(3*time.Millisecond, 100, 42)

	content := readBackup(t, m)
	assert.Contains(t, content, "recompute")
	assert.Contains(t, content, "totalMarkers=100i")
	assert.Contains(t, content, "visibleMarkers=42i")
}

func TestRecordPersist_WritesPoint(t *testing.T) {
	m := newBackupManager(t)

	m.RecordPersist(12*time.Millisecond, 7, false)

	content := readBackup(t, m)
	assert.Contains(t, content, "persist")
	assert.Contains(t, content, "failed=false")
	assert.Contains(t, content, "markers=7i")
}

func TestRecordSimilarity_WritesPoint(t *testing.T) {
	m := newBackupManager(t)

	m.RecordSimilarity(250*time.Millisecond, "resolved", 5)

	content := readBackup(t, m)
	assert.Contains(t, content, "resolution")
	assert.Contains(t, content, "state=resolved")
	assert.Contains(t, content, "matches=5i")
}
