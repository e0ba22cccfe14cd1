package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ConfigFileName is looked up in the config directory.
const ConfigFileName = "iburn.cfg.json"

// StorageConfig selects and configures the storage backend
type StorageConfig struct {
	Type     string         `json:"type" mapstructure:"type"`
	SQLite   SQLiteConfig   `json:"sqlite" mapstructure:"sqlite"`
	Postgres PostgresConfig `json:"postgres" mapstructure:"postgres"`
	Memory   MemoryConfig   `json:"memory" mapstructure:"memory"`
}

// MemoryConfig holds settings for the in-memory backend
type MemoryConfig struct {
	SnapshotPath   string `json:"snapshotPath" mapstructure:"snapshotPath"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds embedded database settings
type SQLiteConfig struct {
	Path         string        `json:"path" mapstructure:"path"`
	BundlePath   string        `json:"bundlePath" mapstructure:"bundlePath"`
	DumpPath     string        `json:"dumpPath" mapstructure:"dumpPath"`
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
}

// PostgresConfig holds connection settings for a shared Postgres store
type PostgresConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// DSN returns the libpq style connection string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(`host=%s port=%s user=%s password=%s dbname=%s sslmode=disable`,
		p.Host, p.Port, p.Username, p.Password, p.Database)
}

// APIConfig configures the remote data feed
type APIConfig struct {
	BaseURL         string        `json:"baseUrl" mapstructure:"baseUrl"`
	BundleDir       string        `json:"bundleDir" mapstructure:"bundleDir"`
	Timeout         time.Duration `json:"timeout" mapstructure:"timeout"`
	ManifestTTL     time.Duration `json:"manifestTTL" mapstructure:"manifestTTL"`
	RefreshInterval time.Duration `json:"refreshInterval" mapstructure:"refreshInterval"`
}

// LocationConfig configures GPS polling and breadcrumbs
type LocationConfig struct {
	Enabled       bool          `json:"enabled" mapstructure:"enabled"`
	Static        string        `json:"static" mapstructure:"static"`
	PollInterval  time.Duration `json:"pollInterval" mapstructure:"pollInterval"`
	MinDistance   float64       `json:"minDistance" mapstructure:"minDistance"`
	FlushInterval time.Duration `json:"flushInterval" mapstructure:"flushInterval"`
	Breadcrumbs   bool          `json:"breadcrumbs" mapstructure:"breadcrumbs"`
}

// FestivalConfig sets the festival calendar
type FestivalConfig struct {
	Year      int    `json:"year" mapstructure:"year"`
	StartDate string `json:"startDate" mapstructure:"startDate"`
	Days      int    `json:"days" mapstructure:"days"`
	TimeZone  string `json:"timeZone" mapstructure:"timeZone"`
}

// CacheConfig sizes the object cache
type CacheConfig struct {
	Size          int `json:"size" mapstructure:"size"`
	LowMemorySize int `json:"lowMemorySize" mapstructure:"lowMemorySize"`
}

// OTelConfig configures tracing export
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// ServerConfig configures the local HTTP API
type ServerConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	// Set default values
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("api.baseUrl", "")
	viper.SetDefault("api.bundleDir", "")
	viper.SetDefault("api.timeout", "30s")
	viper.SetDefault("api.manifestTTL", "10m")
	viper.SetDefault("api.refreshInterval", "1h")

	viper.SetDefault("storage.type", "sqlite")
	viper.SetDefault("storage.sqlite.path", "./iburn.sqlite")
	viper.SetDefault("storage.sqlite.bundlePath", "")
	viper.SetDefault("storage.sqlite.dumpPath", "")
	viper.SetDefault("storage.sqlite.dumpInterval", "0s")

	viper.SetDefault("storage.memory.snapshotPath", "")
	viper.SetDefault("storage.memory.compressOutput", true)

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "iburn")

	viper.SetDefault("cache.size", 1000)
	viper.SetDefault("cache.lowMemorySize", 250)

	viper.SetDefault("location.enabled", false)
	viper.SetDefault("location.static", "")
	viper.SetDefault("location.pollInterval", "5s")
	viper.SetDefault("location.minDistance", 10.0)
	viper.SetDefault("location.flushInterval", "30s")
	viper.SetDefault("location.breadcrumbs", true)

	viper.SetDefault("festival.year", 2025)
	viper.SetDefault("festival.startDate", "")
	viper.SetDefault("festival.days", 9)
	viper.SetDefault("festival.timeZone", "America/Los_Angeles")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "iburn")
	viper.SetDefault("influx.interval", "1m")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "iburn")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("server.enabled", true)
	viper.SetDefault("server.address", "127.0.0.1:8080")

	viper.SetDefault("views.refreshInterval", "1m")

	viper.SetEnvPrefix("IBURN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName(ConfigFileName)
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

// GetDuration returns a duration config value.
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}

// GetStorageConfig returns the storage backend settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		SQLite: SQLiteConfig{
			Path:         viper.GetString("storage.sqlite.path"),
			BundlePath:   viper.GetString("storage.sqlite.bundlePath"),
			DumpPath:     viper.GetString("storage.sqlite.dumpPath"),
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
		Postgres: PostgresConfig{
			Host:     viper.GetString("db.host"),
			Port:     viper.GetString("db.port"),
			Username: viper.GetString("db.username"),
			Password: viper.GetString("db.password"),
			Database: viper.GetString("db.database"),
		},
		Memory: MemoryConfig{
			SnapshotPath:   viper.GetString("storage.memory.snapshotPath"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
	}
}

// GetAPIConfig returns the data feed settings.
func GetAPIConfig() APIConfig {
	return APIConfig{
		BaseURL:         viper.GetString("api.baseUrl"),
		BundleDir:       viper.GetString("api.bundleDir"),
		Timeout:         viper.GetDuration("api.timeout"),
		ManifestTTL:     viper.GetDuration("api.manifestTTL"),
		RefreshInterval: viper.GetDuration("api.refreshInterval"),
	}
}

// GetLocationConfig returns the location manager settings.
func GetLocationConfig() LocationConfig {
	return LocationConfig{
		Enabled:       viper.GetBool("location.enabled"),
		Static:        viper.GetString("location.static"),
		PollInterval:  viper.GetDuration("location.pollInterval"),
		MinDistance:   viper.GetFloat64("location.minDistance"),
		FlushInterval: viper.GetDuration("location.flushInterval"),
		Breadcrumbs:   viper.GetBool("location.breadcrumbs"),
	}
}

// GetFestivalConfig returns the festival calendar settings.
func GetFestivalConfig() FestivalConfig {
	return FestivalConfig{
		Year:      viper.GetInt("festival.year"),
		StartDate: viper.GetString("festival.startDate"),
		Days:      viper.GetInt("festival.days"),
		TimeZone:  viper.GetString("festival.timeZone"),
	}
}

// GetCacheConfig returns the object cache sizes.
func GetCacheConfig() CacheConfig {
	return CacheConfig{
		Size:          viper.GetInt("cache.size"),
		LowMemorySize: viper.GetInt("cache.lowMemorySize"),
	}
}

// GetOTelConfig returns the tracing settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetServerConfig returns the local HTTP API settings.
func GetServerConfig() ServerConfig {
	return ServerConfig{
		Enabled: viper.GetBool("server.enabled"),
		Address: viper.GetString("server.address"),
	}
}
