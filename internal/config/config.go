package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/stratumdb/stratumdb/pkg/utils"
)

// Chunk cache hashtable sizing limits. A zero configured size selects the
// default; anything outside the band is a configuration error.
const (
	DefaultHashtableSize uint32 = 32
	MinHashtableSize     uint32 = 1
	MaxHashtableSize     uint32 = 1024
)

// Chunk cache backend names accepted in configuration.
const (
	BackendDRAM = "dram"
	BackendFile = "file"
)

// Configuration represents the complete engine configuration.
type Configuration struct {
	Global     GlobalConfig     `yaml:"global"`
	ChunkCache ChunkCacheConfig `yaml:"chunk_cache"`
	Storage    StorageConfig    `yaml:"storage"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
}

// GlobalConfig represents global engine settings.
type GlobalConfig struct {
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

// ChunkCacheConfig represents chunk cache settings.
type ChunkCacheConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Capacity      string `yaml:"capacity"`
	HashtableSize uint32 `yaml:"hashtable_size"`
	Backend       string `yaml:"backend"`
	DirectoryPath string `yaml:"directory_path"`
}

// StorageConfig represents backing storage settings.
type StorageConfig struct {
	S3 S3Config `yaml:"s3"`
}

// S3Config represents remote object store settings.
type S3Config struct {
	Region       string `yaml:"region"`
	Bucket       string `yaml:"bucket"`
	Endpoint     string `yaml:"endpoint"`
	UsePathStyle bool   `yaml:"use_path_style"`
	MaxRetries   int    `yaml:"max_retries"`
}

// MonitoringConfig represents monitoring settings.
type MonitoringConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig represents metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// NewDefault returns a configuration with sensible defaults.
func NewDefault() *Configuration {
	return &Configuration{
		Global: GlobalConfig{
			LogLevel: "INFO",
		},
		ChunkCache: ChunkCacheConfig{
			Enabled:       true,
			Capacity:      "512MB",
			HashtableSize: DefaultHashtableSize,
			Backend:       BackendDRAM,
		},
		Storage: StorageConfig{
			S3: S3Config{
				Region:     "us-east-1",
				MaxRetries: 3,
			},
		},
		Monitoring: MonitoringConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Port:    8080,
				Path:    "/metrics",
			},
		},
	}
}

// LoadFromFile loads configuration from a YAML file.
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// LoadFromEnv loads configuration overrides from environment variables.
func (c *Configuration) LoadFromEnv() error {
	if val := os.Getenv("STRATUMDB_LOG_LEVEL"); val != "" {
		c.Global.LogLevel = val
	}
	if val := os.Getenv("STRATUMDB_LOG_FILE"); val != "" {
		c.Global.LogFile = val
	}

	if val := os.Getenv("STRATUMDB_CHUNK_CACHE_ENABLED"); val != "" {
		c.ChunkCache.Enabled = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("STRATUMDB_CHUNK_CACHE_CAPACITY"); val != "" {
		c.ChunkCache.Capacity = val
	}
	if val := os.Getenv("STRATUMDB_CHUNK_CACHE_HASHTABLE_SIZE"); val != "" {
		if size, err := strconv.ParseUint(val, 10, 32); err == nil {
			c.ChunkCache.HashtableSize = uint32(size)
		}
	}
	if val := os.Getenv("STRATUMDB_CHUNK_CACHE_BACKEND"); val != "" {
		c.ChunkCache.Backend = val
	}
	if val := os.Getenv("STRATUMDB_CHUNK_CACHE_DIRECTORY"); val != "" {
		c.ChunkCache.DirectoryPath = val
	}

	if val := os.Getenv("STRATUMDB_S3_REGION"); val != "" {
		c.Storage.S3.Region = val
	}
	if val := os.Getenv("STRATUMDB_S3_BUCKET"); val != "" {
		c.Storage.S3.Bucket = val
	}
	if val := os.Getenv("STRATUMDB_S3_ENDPOINT"); val != "" {
		c.Storage.S3.Endpoint = val
	}

	if val := os.Getenv("STRATUMDB_METRICS_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.Monitoring.Metrics.Port = port
		}
	}

	return nil
}

// SaveToFile saves the configuration to a YAML file.
func (c *Configuration) SaveToFile(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration.
func (c *Configuration) Validate() error {
	if _, err := utils.ParseLogLevel(c.Global.LogLevel); err != nil {
		return err
	}

	if err := c.ChunkCache.Validate(); err != nil {
		return err
	}

	if c.Monitoring.Metrics.Enabled && c.Monitoring.Metrics.Port <= 0 {
		return fmt.Errorf("metrics port must be greater than 0")
	}

	return nil
}

// Validate validates the chunk cache section. A disabled cache is always
// valid; the remaining fields are only checked when caching is on.
func (c *ChunkCacheConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	capacity, err := c.CapacityBytes()
	if err != nil {
		return err
	}
	if capacity <= 0 {
		return fmt.Errorf("chunk cache capacity must be greater than zero")
	}

	if c.HashtableSize != 0 &&
		(c.HashtableSize < MinHashtableSize || c.HashtableSize > MaxHashtableSize) {
		return fmt.Errorf("chunk cache hashtable size must be between %d and %d entries",
			MinHashtableSize, MaxHashtableSize)
	}

	switch strings.ToLower(c.Backend) {
	case "", BackendDRAM:
	case BackendFile:
		if c.DirectoryPath == "" {
			return fmt.Errorf("chunk cache of type file requires directory_path")
		}
		if !filepath.IsAbs(filepath.Clean(c.DirectoryPath)) {
			return fmt.Errorf("chunk cache directory must be an absolute path: %s", c.DirectoryPath)
		}
	default:
		return fmt.Errorf("unknown chunk cache backend: %s", c.Backend)
	}

	return nil
}

// CapacityBytes parses the configured capacity string.
func (c *ChunkCacheConfig) CapacityBytes() (int64, error) {
	if c.Capacity == "" {
		return 0, fmt.Errorf("chunk cache capacity is not set")
	}
	size, err := utils.ParseSize(c.Capacity)
	if err != nil {
		return 0, fmt.Errorf("invalid chunk cache capacity: %w", err)
	}
	return size, nil
}
