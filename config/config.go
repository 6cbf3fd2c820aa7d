// Package config loads application configuration from file and environment.
// Configuration is resolved with viper: defaults first, then an optional
// config.yaml in the working directory or /etc/docuvault, then environment
// variables prefixed with DOCUVAULT_.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration structure.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Compression CompressionConfig `mapstructure:"compression"`
	Backup      BackupConfig      `mapstructure:"backup"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Quota       QuotaConfig       `mapstructure:"quota"`
	Log         LogConfig         `mapstructure:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`  // seconds
	WriteTimeout int `mapstructure:"write_timeout"` // seconds
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	DSN             string `mapstructure:"dsn"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // seconds
}

// StorageConfig holds the filesystem layout for document payloads.
// Documents, backup payloads and the decompression cache live in separate
// directories under the storage root so that sweeps can walk them
// independently.
type StorageConfig struct {
	DocumentsPath string `mapstructure:"documents_path"`
	BackupsPath   string `mapstructure:"backups_path"`
	CachePath     string `mapstructure:"cache_path"`
}

// CompressionConfig controls the strategy selector and the engine.
// The thresholds are deliberate defaults, not load-bearing constants; every
// install may tune them.
type CompressionConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// MinSize is the smallest file worth compressing, in bytes.
	MinSize int64 `mapstructure:"min_size"`
	// MaxSize is the object size ceiling for uploads, in bytes.
	MaxSize int64 `mapstructure:"max_size"`
	// MinGain is the minimum fractional size reduction a compression result
	// must achieve to be committed (0.05 = 5%). Results below it are skipped.
	MinGain float64 `mapstructure:"min_gain"`
	// TextLevel is the brotli quality used for plain and tabular text.
	TextLevel int `mapstructure:"text_level"`
	// OfficeLevel is the zstd level used for zip-based office formats.
	OfficeLevel int `mapstructure:"office_level"`
	// PDFLevel is the zstd level used for PDFs.
	PDFLevel int `mapstructure:"pdf_level"`
	// DefaultLevel is the zstd level used for unrecognized content.
	DefaultLevel int `mapstructure:"default_level"`
	// TimeoutSeconds bounds the wall clock budget of one compression attempt.
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	// Workers is the size of the background compression worker pool.
	Workers int `mapstructure:"workers"`
	// QueueSize is the capacity of the pending compression queue.
	QueueSize int `mapstructure:"queue_size"`
}

// Timeout returns the attempt budget as a duration.
func (c CompressionConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// BackupConfig controls the original-file safety net.
type BackupConfig struct {
	// TTLHours is how long a backup outlives a verified compression.
	TTLHours int `mapstructure:"ttl_hours"`
}

// TTL returns the backup retention as a duration.
func (c BackupConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

// CacheConfig controls the ephemeral decompression cache.
type CacheConfig struct {
	// TTLMinutes is how long a decompressed artifact stays on disk.
	TTLMinutes int `mapstructure:"ttl_minutes"`
}

// TTL returns the cache retention as a duration.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// QuotaConfig controls per-owner storage accounting.
type QuotaConfig struct {
	// DefaultLimit is the storage ceiling assigned to new owners, in bytes.
	DefaultLimit int64 `mapstructure:"default_limit"`
}

// LogConfig mirrors the logger package configuration.
type LogConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

// Load reads configuration from config.yaml (if present) and the environment.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/docuvault")

	v.SetEnvPrefix("DOCUVAULT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Missing config file is fine, defaults and env apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 30)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "docuvault.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", 3600)

	v.SetDefault("storage.documents_path", "data/documents")
	v.SetDefault("storage.backups_path", "data/backups")
	v.SetDefault("storage.cache_path", "data/cache")

	v.SetDefault("compression.enabled", true)
	v.SetDefault("compression.min_size", int64(100*1024))          // 100 KiB
	v.SetDefault("compression.max_size", int64(5*1024*1024*1024))  // 5 GiB
	v.SetDefault("compression.min_gain", 0.05)
	v.SetDefault("compression.text_level", 8)
	v.SetDefault("compression.office_level", 3)
	v.SetDefault("compression.pdf_level", 9)
	v.SetDefault("compression.default_level", 6)
	v.SetDefault("compression.timeout_seconds", 300)
	v.SetDefault("compression.workers", 4)
	v.SetDefault("compression.queue_size", 256)

	v.SetDefault("backup.ttl_hours", 48)

	v.SetDefault("cache.ttl_minutes", 60)

	v.SetDefault("quota.default_limit", int64(1<<40)) // 1 TiB

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "console")
	v.SetDefault("log.file_path", "logs/docuvault.log")
}

func (c *Config) validate() error {
	if c.Compression.MinGain < 0 || c.Compression.MinGain >= 1 {
		return fmt.Errorf("compression.min_gain must be in [0, 1), got %v", c.Compression.MinGain)
	}
	if c.Compression.MinSize < 0 {
		return fmt.Errorf("compression.min_size must not be negative, got %d", c.Compression.MinSize)
	}
	if c.Compression.MaxSize <= 0 {
		return fmt.Errorf("compression.max_size must be positive, got %d", c.Compression.MaxSize)
	}
	if c.Compression.Workers <= 0 {
		return fmt.Errorf("compression.workers must be positive, got %d", c.Compression.Workers)
	}
	if c.Quota.DefaultLimit <= 0 {
		return fmt.Errorf("quota.default_limit must be positive, got %d", c.Quota.DefaultLimit)
	}
	return nil
}
