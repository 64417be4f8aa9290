// Package config provides unified configuration for Granary.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/granarydb/granary/internal/codec"
	"github.com/granarydb/granary/internal/partition"
)

// Config holds the configuration for a Granary warehouse.
type Config struct {
	// DataDir is the base directory for all data files
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// PartitionDir is the directory holding partition files
	PartitionDir string `json:"partition_dir" yaml:"partition_dir"`

	// PartitionSize is the target number of rows per partition;
	// together with ExpectedRows it drives the partition count
	PartitionSize int `json:"partition_size" yaml:"partition_size"`

	// ExpectedRows is the expected dataset size used to size the
	// partition count at construction
	ExpectedRows int `json:"expected_rows" yaml:"expected_rows"`

	// Compression selects the partition file encoding: none, snappy
	Compression string `json:"compression" yaml:"compression"`

	// Backup configuration
	Backup BackupConfig `json:"backup" yaml:"backup"`
}

// BackupConfig holds backup storage configuration.
type BackupConfig struct {
	// Type is the backup storage type: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local backup path (for local type)
	Path string `json:"path" yaml:"path"`

	// Concurrency is the number of parallel object transfers
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 backup storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// DefaultConfig returns the default configuration for local development.
func DefaultConfig() *Config {
	return &Config{
		DataDir:       "./data/granary",
		PartitionDir:  "",
		PartitionSize: 1000,
		ExpectedRows:  10000,
		Compression:   string(codec.CompressionNone),
		Backup: BackupConfig{
			Type:        "local",
			Path:        "",
			Concurrency: 4,
		},
	}
}

// Resolve resolves relative paths and sets defaults based on DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/granary"
	}
	if c.PartitionDir == "" {
		c.PartitionDir = filepath.Join(c.DataDir, "partitions")
	}
	if c.Backup.Path == "" {
		c.Backup.Path = filepath.Join(c.DataDir, "backup")
	}
	if c.Backup.Concurrency <= 0 {
		c.Backup.Concurrency = 4
	}
}

// ManifestPath returns the path to the warehouse manifest file.
func (c *Config) ManifestPath() string {
	return filepath.Join(c.PartitionDir, "manifest.json")
}

// PartitionCount returns the partition count implied by this
// configuration. It is fixed for the dataset's lifetime.
func (c *Config) PartitionCount() int {
	return partition.CountFor(c.ExpectedRows, c.PartitionSize)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	if c.PartitionSize <= 0 {
		return fmt.Errorf("partition_size must be positive, got %d", c.PartitionSize)
	}

	if c.ExpectedRows <= 0 {
		return fmt.Errorf("expected_rows must be positive, got %d", c.ExpectedRows)
	}

	if !codec.Compression(c.Compression).Valid() {
		return fmt.Errorf("invalid compression: %s (must be none or snappy)", c.Compression)
	}

	if c.Backup.Type != "local" && c.Backup.Type != "s3" {
		return fmt.Errorf("invalid backup type: %s (must be local or s3)", c.Backup.Type)
	}

	if c.Backup.Type == "s3" && c.Backup.S3.Bucket == "" {
		return fmt.Errorf("backup.s3.bucket is required when backup type is s3")
	}

	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the GRANARY_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("GRANARY_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("GRANARY_PARTITION_DIR"); v != "" {
		cfg.PartitionDir = v
	}
	if v := os.Getenv("GRANARY_PARTITION_SIZE"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.PartitionSize)
	}
	if v := os.Getenv("GRANARY_EXPECTED_ROWS"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.ExpectedRows)
	}
	if v := os.Getenv("GRANARY_COMPRESSION"); v != "" {
		cfg.Compression = v
	}

	// Backup configuration
	if v := os.Getenv("GRANARY_BACKUP_TYPE"); v != "" {
		cfg.Backup.Type = v
	}
	if v := os.Getenv("GRANARY_BACKUP_PATH"); v != "" {
		cfg.Backup.Path = v
	}
	if v := os.Getenv("GRANARY_BACKUP_CONCURRENCY"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Backup.Concurrency)
	}
	if v := os.Getenv("GRANARY_S3_BUCKET"); v != "" {
		cfg.Backup.S3.Bucket = v
	}
	if v := os.Getenv("GRANARY_S3_REGION"); v != "" {
		cfg.Backup.S3.Region = v
	}
	if v := os.Getenv("GRANARY_S3_ENDPOINT"); v != "" {
		cfg.Backup.S3.Endpoint = v
	}
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.DataDir,
		c.PartitionDir,
	}
	if c.Backup.Type == "local" {
		dirs = append(dirs, c.Backup.Path)
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
