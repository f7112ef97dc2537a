package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "marksync.cfg.json"), []byte(body), 0644))
	return dir
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"logLevel": "debug",
		"db": { "host": "10.0.0.1", "port": "5433" }
	}`)

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", viper.GetString("logLevel"))
	assert.Equal(t, "10.0.0.1", viper.GetString("db.host"))
	assert.Equal(t, "5433", viper.GetString("db.port"))
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{}`)

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "info", viper.GetString("logLevel"))
	assert.Equal(t, "./marksynclogs", viper.GetString("logsDir"))
	assert.Equal(t, "http://localhost:5000", viper.GetString("cloud.serverUrl"))
	assert.Equal(t, "", viper.GetString("cloud.apiKey"))
	assert.Equal(t, "localhost", viper.GetString("db.host"))
	assert.Equal(t, "5432", viper.GetString("db.port"))
	assert.Equal(t, "postgres", viper.GetString("db.username"))
	assert.Equal(t, "postgres", viper.GetString("db.password"))
	assert.Equal(t, "mapmarks", viper.GetString("db.database"))
	assert.Equal(t, "file", viper.GetString("storage.type"))
	assert.Equal(t, "./markers.json", viper.GetString("storage.file.path"))
	assert.Equal(t, false, viper.GetBool("storage.file.compressOutput"))
	assert.Equal(t, "./markers.db", viper.GetString("storage.sqlite.path"))
	assert.Equal(t, false, viper.GetBool("similarity.enabled"))
	assert.Equal(t, "text-embedding-3-small", viper.GetString("similarity.model"))
	assert.Equal(t, 20, viper.GetInt("similarity.topK"))
	assert.Equal(t, false, viper.GetBool("graylog.enabled"))
	assert.Equal(t, "localhost:12201", viper.GetString("graylog.address"))
	assert.Equal(t, false, viper.GetBool("otel.enabled"))
	assert.Equal(t, "marksync", viper.GetString("otel.serviceName"))
	assert.Equal(t, "5s", viper.GetString("otel.batchTimeout"))
	assert.Equal(t, "", viper.GetString("otel.endpoint"))
	assert.Equal(t, true, viper.GetBool("otel.insecure"))
}

func TestLoad_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load("/nonexistent/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestGetString(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testKey", "testValue")
	assert.Equal(t, "testValue", GetString("testKey"))
}

func TestGetInt(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testInt", 42)
	assert.Equal(t, 42, GetInt("testInt"))
}

func TestGetBool(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testBool", true)
	assert.Equal(t, true, GetBool("testBool"))
}

func TestGetStorageConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{}`)))

	cfg := GetStorageConfig()
	assert.Equal(t, "file", cfg.Type)
	assert.Equal(t, "./markers.json", cfg.File.Path)
	assert.Equal(t, false, cfg.File.CompressOutput)
	assert.Equal(t, "./markers.db", cfg.SQLite.Path)
}

func TestGetStorageConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"storage": {
			"type": "sqlite",
			"file": { "path": "/tmp/out.json", "compressOutput": true },
			"sqlite": { "path": "/tmp/marks.db" }
		}
	}`)
	require.NoError(t, Load(dir))

	sc := GetStorageConfig()
	assert.Equal(t, "sqlite", sc.Type)
	assert.Equal(t, "/tmp/out.json", sc.File.Path)
	assert.Equal(t, true, sc.File.CompressOutput)
	assert.Equal(t, "/tmp/marks.db", sc.SQLite.Path)
}

func TestGetSimilarityConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"similarity": {
			"enabled": true,
			"searcher": "cloud",
			"baseUrl": "https://api.example.com/v1",
			"apiKey": "sk-test",
			"model": "text-embedding-3-large",
			"timeout": "30s",
			"topK": 5
		}
	}`)
	require.NoError(t, Load(dir))

	sc := GetSimilarityConfig()
	assert.Equal(t, true, sc.Enabled)
	assert.Equal(t, "cloud", sc.Searcher)
	assert.Equal(t, "https://api.example.com/v1", sc.BaseURL)
	assert.Equal(t, "sk-test", sc.APIKey)
	assert.Equal(t, "text-embedding-3-large", sc.Model)
	assert.Equal(t, 30*time.Second, sc.Timeout)
	assert.Equal(t, 5, sc.TopK)
}

func TestGetOTelConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"otel": {
			"enabled": true,
			"serviceName": "my-service",
			"batchTimeout": "30s",
			"endpoint": "localhost:4317",
			"insecure": false
		}
	}`)
	require.NoError(t, Load(dir))

	oc := GetOTelConfig()
	assert.Equal(t, true, oc.Enabled)
	assert.Equal(t, "my-service", oc.ServiceName)
	assert.Equal(t, 30*time.Second, oc.BatchTimeout)
	assert.Equal(t, "localhost:4317", oc.Endpoint)
	assert.Equal(t, false, oc.Insecure)
}
