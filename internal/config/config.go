package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileConfig holds JSON file storage backend settings.
type FileConfig struct {
	Path           string `json:"path" mapstructure:"path"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds sqlite storage backend settings.
type SQLiteConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	Type   string       `json:"type" mapstructure:"type"`
	File   FileConfig   `json:"file" mapstructure:"file"`
	SQLite SQLiteConfig `json:"sqlite" mapstructure:"sqlite"`
}

// SimilarityConfig configures embedding and vector search.
type SimilarityConfig struct {
	Enabled  bool          `json:"enabled" mapstructure:"enabled"`
	Searcher string        `json:"searcher" mapstructure:"searcher"`
	BaseURL  string        `json:"baseUrl" mapstructure:"baseUrl"`
	APIKey   string        `json:"apiKey" mapstructure:"apiKey"`
	Model    string        `json:"model" mapstructure:"model"`
	Timeout  time.Duration `json:"timeout" mapstructure:"timeout"`
	TopK     int           `json:"topK" mapstructure:"topK"`
}

// OTelConfig configures the OpenTelemetry exporters.
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	// Set default values
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./marksynclogs")

	viper.SetDefault("cloud.serverUrl", "http://localhost:5000")
	viper.SetDefault("cloud.apiKey", "")
	viper.SetDefault("cloud.userId", "")
	viper.SetDefault("cloud.syncInterval", "5m")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "mapmarks")

	viper.SetDefault("storage.type", "file")
	viper.SetDefault("storage.file.path", "./markers.json")
	viper.SetDefault("storage.file.compressOutput", false)
	viper.SetDefault("storage.sqlite.path", "./markers.db")

	viper.SetDefault("similarity.enabled", false)
	viper.SetDefault("similarity.searcher", "postgres")
	viper.SetDefault("similarity.baseUrl", "")
	viper.SetDefault("similarity.apiKey", "")
	viper.SetDefault("similarity.model", "text-embedding-3-small")
	viper.SetDefault("similarity.timeout", "15s")
	viper.SetDefault("similarity.topK", 20)

	viper.SetDefault("viewport.streamBuffer", 64)

	viper.SetDefault("geocode.baseUrl", "https://nominatim.openstreetmap.org")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "mapmarks-metrics")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "marksync")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetConfigName("marksync.cfg.json")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetStorageConfig returns the typed storage section.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		File: FileConfig{
			Path:           viper.GetString("storage.file.path"),
			CompressOutput: viper.GetBool("storage.file.compressOutput"),
		},
		SQLite: SQLiteConfig{
			Path: viper.GetString("storage.sqlite.path"),
		},
	}
}

// GetSimilarityConfig returns the typed similarity section.
func GetSimilarityConfig() SimilarityConfig {
	return SimilarityConfig{
		Enabled:  viper.GetBool("similarity.enabled"),
		Searcher: viper.GetString("similarity.searcher"),
		BaseURL:  viper.GetString("similarity.baseUrl"),
		APIKey:   viper.GetString("similarity.apiKey"),
		Model:    viper.GetString("similarity.model"),
		Timeout:  viper.GetDuration("similarity.timeout"),
		TopK:     viper.GetInt("similarity.topK"),
	}
}

// GetOTelConfig returns the typed otel section.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}
