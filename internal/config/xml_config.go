// Package config provides XML-based configuration management.
package config

import (
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/visualiza/backend/internal/chart"
	"github.com/visualiza/backend/internal/parser"
)

// AppConfig represents the root XML configuration structure
type AppConfig struct {
	XMLName xml.Name `xml:"Visualiza"`

	// Server configuration
	Server ServerConfig `xml:"Server"`

	// Storage configuration
	Storage StorageConfig `xml:"Storage"`

	// Ingestion configuration
	Ingestion IngestionConfig `xml:"Ingestion"`

	// Chart control bounds
	Charts ChartsConfig `xml:"Charts"`

	// Advanced options
	Advanced AdvancedConfig `xml:"Advanced"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `xml:"Port"`
	BindAddress  string `xml:"BindAddress"`
	EnableCORS   bool   `xml:"EnableCORS"`
	AllowOrigins string `xml:"AllowOrigins"`
	ReadTimeout  int    `xml:"ReadTimeoutSeconds"`
	WriteTimeout int    `xml:"WriteTimeoutSeconds"`
	IdleTimeout  int    `xml:"IdleTimeoutSeconds"`
	BodyLimit    string `xml:"BodyLimit"`
}

// StorageConfig contains file storage settings
type StorageConfig struct {
	DataDirectory     string `xml:"DataDirectory"`
	UploadsDirectory  string `xml:"UploadsDirectory"`
	TablesDirectory   string `xml:"TablesDirectory"`
	EnablePersistence bool   `xml:"EnablePersistence"`
}

// IngestionConfig contains upload and parsing settings
type IngestionConfig struct {
	DefaultDelimiter   string `xml:"DefaultDelimiter"`
	LargeFileThreshold int64  `xml:"LargeFileThresholdBytes"`
	MaxUploadSize      int64  `xml:"MaxUploadSizeBytes"`
}

// ChartsConfig mirrors chart.Limits
type ChartsConfig struct {
	DefaultHeight   int `xml:"DefaultHeight"`
	MinHeight       int `xml:"MinHeight"`
	MaxHeight       int `xml:"MaxHeight"`
	DefaultWidth    int `xml:"DefaultWidth"`
	MinWidth        int `xml:"MinWidth"`
	MaxWidth        int `xml:"MaxWidth"`
	DefaultRows     int `xml:"DefaultTableRows"`
	MaxDefaultCells int `xml:"MaxDefaultViewCells"`
}

// AdvancedConfig contains advanced/tuning options
type AdvancedConfig struct {
	LogLevel               string `xml:"LogLevel"`
	LogFormat              string `xml:"LogFormat"`
	EnableRequestLogging   bool   `xml:"EnableRequestLogging"`
	EnableTableCache       bool   `xml:"EnableTableCache"`
	SessionTimeoutMinutes  int    `xml:"SessionTimeoutMinutes"`
	CleanupIntervalMinutes int    `xml:"CleanupIntervalMinutes"`
	TableCacheMaxAgeHours  int    `xml:"TableCacheMaxAgeHours"`
	TableCacheMaxEntries   int    `xml:"TableCacheMaxEntries"`
	DuckDBThreads          int    `xml:"DuckDBThreads"`
	DuckDBMemoryLimit      string `xml:"DuckDBMemoryLimit"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	limits := chart.DefaultLimits()
	return &AppConfig{
		Server: ServerConfig{
			Port:         8089,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "*",
			ReadTimeout:  30,
			WriteTimeout: 60,
			IdleTimeout:  120,
			BodyLimit:    "512M",
		},
		Storage: StorageConfig{
			DataDirectory:     "./data",
			UploadsDirectory:  "./data/uploads",
			TablesDirectory:   "./data/tables",
			EnablePersistence: true,
		},
		Ingestion: IngestionConfig{
			DefaultDelimiter:   parser.DefaultDelimiter,
			LargeFileThreshold: parser.LargeFileThreshold,
			MaxUploadSize:      512 << 20,
		},
		Charts: ChartsConfig{
			DefaultHeight:   limits.DefaultHeight,
			MinHeight:       limits.MinHeight,
			MaxHeight:       limits.MaxHeight,
			DefaultWidth:    limits.DefaultWidth,
			MinWidth:        limits.MinWidth,
			MaxWidth:        limits.MaxWidth,
			DefaultRows:     limits.DefaultRows,
			MaxDefaultCells: limits.MaxDefaultCells,
		},
		Advanced: AdvancedConfig{
			LogLevel:               "info",
			LogFormat:              "text",
			EnableRequestLogging:   true,
			EnableTableCache:       true,
			SessionTimeoutMinutes:  60,
			CleanupIntervalMinutes: 5,
			TableCacheMaxAgeHours:  7 * 24,
			TableCacheMaxEntries:   200,
			DuckDBThreads:          2,
			DuckDBMemoryLimit:      "512MB",
		},
	}
}

// LoadConfig loads configuration from XML file
func LoadConfig(configPath string) (*AppConfig, error) {
	// If file doesn't exist, create default
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		config := DefaultConfig()
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		config.applyEnvironmentOverrides()
		config.resolvePaths(filepath.Dir(configPath))
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := xml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply environment variable overrides
	config.applyEnvironmentOverrides()

	// Resolve relative paths
	config.resolvePaths(filepath.Dir(configPath))

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}
	return config, nil
}

// Save saves the configuration to XML file
func (c *AppConfig) Save(configPath string) error {
	output, err := xml.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(xml.Header + "\n<!-- Visualiza Configuration -->\n<!-- This file is auto-generated on first run -->\n\n")
	content := append(header, output...)

	if dir := filepath.Dir(configPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate rejects settings the chart resolver and ingestion cannot work with.
func (c *AppConfig) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server port %d out of range", c.Server.Port))
	}
	if c.Ingestion.DefaultDelimiter == "" {
		errs = append(errs, errors.New("default delimiter must not be empty"))
	}
	if c.Ingestion.LargeFileThreshold <= 0 {
		errs = append(errs, errors.New("large file threshold must be positive"))
	}
	if c.Ingestion.MaxUploadSize <= 0 {
		errs = append(errs, errors.New("max upload size must be positive"))
	}
	if err := c.ChartLimits().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Advanced.SessionTimeoutMinutes <= 0 {
		errs = append(errs, errors.New("session timeout must be positive"))
	}
	return errors.Join(errs...)
}

// ChartLimits converts the Charts section into resolver limits.
func (c *AppConfig) ChartLimits() chart.Limits {
	return chart.Limits{
		DefaultHeight:   c.Charts.DefaultHeight,
		MinHeight:       c.Charts.MinHeight,
		MaxHeight:       c.Charts.MaxHeight,
		DefaultWidth:    c.Charts.DefaultWidth,
		MinWidth:        c.Charts.MinWidth,
		MaxWidth:        c.Charts.MaxWidth,
		DefaultRows:     c.Charts.DefaultRows,
		MaxDefaultCells: c.Charts.MaxDefaultCells,
	}
}

// DuckOptions returns the DuckDB settings for the table cache.
func (c *AppConfig) DuckOptions() parser.DuckOptions {
	opts := parser.DefaultDuckOptions()
	if c.Advanced.DuckDBMemoryLimit != "" {
		opts.MemoryLimit = c.Advanced.DuckDBMemoryLimit
	}
	if c.Advanced.DuckDBThreads > 0 {
		opts.Threads = c.Advanced.DuckDBThreads
	}
	return opts
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	// PORT override
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	// DATA_DIR moves every storage directory along with it
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
		c.Storage.UploadsDirectory = filepath.Join(dataDir, "uploads")
		c.Storage.TablesDirectory = filepath.Join(dataDir, "tables")
	}

	if level := os.Getenv("VISUALIZA_LOG_LEVEL"); level != "" {
		c.Advanced.LogLevel = level
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	if !filepath.IsAbs(c.Storage.DataDirectory) {
		c.Storage.DataDirectory = filepath.Join(configDir, c.Storage.DataDirectory)
	}
	if !filepath.IsAbs(c.Storage.UploadsDirectory) {
		c.Storage.UploadsDirectory = filepath.Join(configDir, c.Storage.UploadsDirectory)
	}
	if !filepath.IsAbs(c.Storage.TablesDirectory) {
		c.Storage.TablesDirectory = filepath.Join(configDir, c.Storage.TablesDirectory)
	}
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.UploadsDirectory,
		c.Storage.TablesDirectory,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
