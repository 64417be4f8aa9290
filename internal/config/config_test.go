package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
	if cfg.PartitionCount() != 10 {
		t.Errorf("expected 10 partitions for defaults, got %d", cfg.PartitionCount())
	}
}

func TestResolveDerivesPaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "/tmp/gr"
	cfg.Resolve()

	if cfg.PartitionDir != filepath.Join("/tmp/gr", "partitions") {
		t.Errorf("unexpected partition dir: %s", cfg.PartitionDir)
	}
	if cfg.Backup.Path != filepath.Join("/tmp/gr", "backup") {
		t.Errorf("unexpected backup path: %s", cfg.Backup.Path)
	}
	if cfg.ManifestPath() != filepath.Join(cfg.PartitionDir, "manifest.json") {
		t.Errorf("unexpected manifest path: %s", cfg.ManifestPath())
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty data dir", func(c *Config) { c.DataDir = "" }},
		{"zero partition size", func(c *Config) { c.PartitionSize = 0 }},
		{"zero expected rows", func(c *Config) { c.ExpectedRows = 0 }},
		{"bad compression", func(c *Config) { c.Compression = "zstd" }},
		{"bad backup type", func(c *Config) { c.Backup.Type = "ftp" }},
		{"s3 without bucket", func(c *Config) { c.Backup.Type = "s3" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Resolve()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadFromYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "granary.yaml")
	content := `
data_dir: /var/lib/granary
partition_size: 250
expected_rows: 1000
compression: snappy
backup:
  type: s3
  s3:
    bucket: granary-backups
    region: eu-west-1
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if cfg.DataDir != "/var/lib/granary" {
		t.Errorf("unexpected data dir: %s", cfg.DataDir)
	}
	if cfg.PartitionSize != 250 || cfg.ExpectedRows != 1000 {
		t.Errorf("unexpected sizing: %d/%d", cfg.PartitionSize, cfg.ExpectedRows)
	}
	if cfg.PartitionCount() != 4 {
		t.Errorf("expected 4 partitions, got %d", cfg.PartitionCount())
	}
	if cfg.Compression != "snappy" {
		t.Errorf("unexpected compression: %s", cfg.Compression)
	}
	if cfg.Backup.S3.Bucket != "granary-backups" {
		t.Errorf("unexpected bucket: %s", cfg.Backup.S3.Bucket)
	}
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("GRANARY_DATA_DIR", "/env/dir")
	t.Setenv("GRANARY_PARTITION_SIZE", "123")
	t.Setenv("GRANARY_COMPRESSION", "snappy")

	cfg := DefaultConfig()
	LoadFromEnv(cfg)

	if cfg.DataDir != "/env/dir" {
		t.Errorf("unexpected data dir: %s", cfg.DataDir)
	}
	if cfg.PartitionSize != 123 {
		t.Errorf("unexpected partition size: %d", cfg.PartitionSize)
	}
	if cfg.Compression != "snappy" {
		t.Errorf("unexpected compression: %s", cfg.Compression)
	}
}
