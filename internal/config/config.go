// Package config provides YAML-based configuration management.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig represents the root YAML configuration structure
type AppConfig struct {
	// Server configuration
	Server ServerConfig `yaml:"server"`

	// Storage configuration
	Storage StorageConfig `yaml:"storage"`

	// Scan configuration
	Scan ScanConfig `yaml:"scan"`

	// Processing configuration
	Processing ProcessingConfig `yaml:"processing"`

	Logging LoggingConfig `yaml:"logging"`

	Export ExportConfig `yaml:"export"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `yaml:"port"`
	BindAddress  string `yaml:"bind_address"`
	EnableCORS   bool   `yaml:"enable_cors"`
	AllowOrigins string `yaml:"allow_origins"`
	ReadTimeout  int    `yaml:"read_timeout_seconds"`
	WriteTimeout int    `yaml:"write_timeout_seconds"`
	IdleTimeout  int    `yaml:"idle_timeout_seconds"`
	BodyLimit    string `yaml:"body_limit"`
}

// StorageConfig contains file storage settings. ExportsDirectory and
// ArchivePath are relative to DataDirectory unless absolute.
type StorageConfig struct {
	DataDirectory    string `yaml:"data_directory"`
	ExportsDirectory string `yaml:"exports_directory"`
	ArchivePath      string `yaml:"archive_path"`
	EnableArchive    bool   `yaml:"enable_archive"`
}

// ScanConfig contains folder scan settings
type ScanConfig struct {
	Extensions []string `yaml:"extensions"`
	BatchSize  int      `yaml:"batch_size"`
}

// ProcessingConfig contains session settings
type ProcessingConfig struct {
	MaxConcurrentScans     int  `yaml:"max_concurrent_scans"`
	SessionTimeoutMinutes  int  `yaml:"session_timeout_minutes"`
	CleanupIntervalMinutes int  `yaml:"cleanup_interval_minutes"`
	EnableCompression      bool `yaml:"enable_compression"`
	CompressionLevel       int  `yaml:"compression_level"`
}

// LoggingConfig contains log settings
type LoggingConfig struct {
	Level                string `yaml:"level"`
	EnableRequestLogging bool   `yaml:"enable_request_logging"`
}

// ExportConfig contains CSV export settings
type ExportConfig struct {
	S3 S3Config `yaml:"s3"`
}

// S3Config configures the optional export mirror. It is enabled when
// Bucket is set.
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Prefix          string `yaml:"prefix"`
	UsePathStyle    bool   `yaml:"use_path_style"`
}

// Enabled reports whether exports are mirrored to S3.
func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         8089,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "*",
			ReadTimeout:  30,
			WriteTimeout: 0,
			IdleTimeout:  120,
			BodyLimit:    "1M",
		},
		Storage: StorageConfig{
			DataDirectory:    "./data",
			ExportsDirectory: "exports",
			ArchivePath:      "archive/scans.duckdb",
			EnableArchive:    true,
		},
		Scan: ScanConfig{
			Extensions: []string{".jpg", ".jpeg", ".gif", ".tif", ".tiff", ".bmp", ".png", ".pcx"},
			BatchSize:  20,
		},
		Processing: ProcessingConfig{
			MaxConcurrentScans:     4,
			SessionTimeoutMinutes:  30,
			CleanupIntervalMinutes: 5,
			EnableCompression:      true,
			CompressionLevel:       5,
		},
		Logging: LoggingConfig{
			Level:                "info",
			EnableRequestLogging: true,
		},
		Export: ExportConfig{
			S3: S3Config{
				Region:       "us-east-1",
				Prefix:       "exports",
				UsePathStyle: true,
			},
		},
	}
}

const header = "# Image Inspector configuration\n# This file is auto-generated on first run\n\n"

// LoadConfig loads configuration from a YAML file, writing the defaults
// there first if it does not exist.
func LoadConfig(configPath string) (*AppConfig, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Apply environment variable overrides
	config.applyEnvironmentOverrides()

	// Resolve relative paths
	config.resolvePaths(filepath.Dir(configPath))

	return config, nil
}

// Save saves the configuration to a YAML file
func (c *AppConfig) Save(configPath string) error {
	output, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if dir := filepath.Dir(configPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	content := append([]byte(header), output...)
	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}

	if bucket := os.Getenv("EXPORT_S3_BUCKET"); bucket != "" {
		c.Export.S3.Bucket = bucket
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	if !filepath.IsAbs(c.Storage.DataDirectory) {
		c.Storage.DataDirectory = filepath.Join(configDir, c.Storage.DataDirectory)
	}
	if !filepath.IsAbs(c.Storage.ExportsDirectory) {
		c.Storage.ExportsDirectory = filepath.Join(c.Storage.DataDirectory, c.Storage.ExportsDirectory)
	}
	if !filepath.IsAbs(c.Storage.ArchivePath) {
		c.Storage.ArchivePath = filepath.Join(c.Storage.DataDirectory, c.Storage.ArchivePath)
	}
}

// GetDataDir returns the absolute data directory path
func (c *AppConfig) GetDataDir() string {
	return c.Storage.DataDirectory
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// SessionTimeout returns how long an idle finished session is kept.
func (c *AppConfig) SessionTimeout() time.Duration {
	return time.Duration(c.Processing.SessionTimeoutMinutes) * time.Minute
}

// CleanupInterval returns how often stale sessions are swept.
func (c *AppConfig) CleanupInterval() time.Duration {
	if c.Processing.CleanupIntervalMinutes <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.Processing.CleanupIntervalMinutes) * time.Minute
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.ExportsDirectory,
		filepath.Dir(c.Storage.ArchivePath),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
