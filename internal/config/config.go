// Package config manages paperstore configuration and the .paperstore
// directory structure. It handles loading, saving, and initializing the
// archive configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/yitwn/paperstore/internal/models"
)

const (
	ArchiveDir  = ".paperstore"
	ConfigFile  = "config"
	CatalogFile = "catalog.db"
	ChunksDir   = "chunks"
	ChunksFile  = "chunks.db"
	SpoolDir    = "spool"
)

// Chunk store backends.
const (
	BackendFS    = "fs"
	BackendBbolt = "bbolt"
)

// Config represents the archive configuration.
type Config struct {
	ChunkSize      int    `toml:"chunk_size"`
	Backend        string `toml:"backend"`
	RetryMax       int    `toml:"retry_max"`
	RetryBackoffMS int    `toml:"retry_backoff_ms"`
	path           string // path to .paperstore directory
}

// FindRoot finds the .paperstore directory by walking up from the current directory.
func FindRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		archivePath := filepath.Join(dir, ArchiveDir)
		if info, err := os.Stat(archivePath); err == nil && info.IsDir() {
			return archivePath, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not a paperstore archive (or any parent up to root)")
		}
		dir = parent
	}
}

// Load loads the configuration from the .paperstore directory.
func Load() (*Config, error) {
	archivePath, err := FindRoot()
	if err != nil {
		return nil, err
	}
	return LoadFrom(archivePath)
}

// LoadFrom loads the configuration from a specific .paperstore directory.
func LoadFrom(archivePath string) (*Config, error) {
	configPath := filepath.Join(archivePath, ConfigFile)
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.path = archivePath
	cfg.applyDefaults()
	return &cfg, nil
}

// Save saves the configuration to disk.
func (c *Config) Save() error {
	configPath := filepath.Join(c.path, ConfigFile)
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(configPath, data, 0644)
}

// ArchivePath returns the path to the .paperstore directory.
func (c *Config) ArchivePath() string {
	return c.path
}

// CatalogPath returns the path to the sqlite catalog database.
func (c *Config) CatalogPath() string {
	return filepath.Join(c.path, CatalogFile)
}

// ChunksPath returns the chunk store location for the configured backend:
// a directory for the fs backend, a bbolt file otherwise.
func (c *Config) ChunksPath() string {
	if c.Backend == BackendBbolt {
		return filepath.Join(c.path, ChunksFile)
	}
	return filepath.Join(c.path, ChunksDir)
}

// SpoolPath returns the directory for in-flight ingest temp files.
func (c *Config) SpoolPath() string {
	return filepath.Join(c.path, SpoolDir)
}

// applyDefaults fills unset fields with defaults.
func (c *Config) applyDefaults() {
	if c.ChunkSize <= 0 {
		c.ChunkSize = models.DefaultChunkSize
	}
	if c.Backend == "" {
		c.Backend = BackendFS
	}
	if c.RetryMax <= 0 {
		c.RetryMax = 3
	}
	if c.RetryBackoffMS <= 0 {
		c.RetryBackoffMS = 100
	}
}

// Initialize creates a new .paperstore directory with initial configuration.
func Initialize(chunkSize int, backend string) (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return InitializeAt(cwd, chunkSize, backend)
}

// InitializeAt creates a new .paperstore directory under the given root.
func InitializeAt(root string, chunkSize int, backend string) (*Config, error) {
	archivePath := filepath.Join(root, ArchiveDir)

	// Check if already initialized
	if _, err := os.Stat(archivePath); err == nil {
		return nil, fmt.Errorf("paperstore archive already exists")
	}

	if backend != "" && backend != BackendFS && backend != BackendBbolt {
		return nil, fmt.Errorf("unknown chunk store backend: %q", backend)
	}

	if err := os.MkdirAll(archivePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create .paperstore directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(archivePath, SpoolDir), 0755); err != nil {
		os.RemoveAll(archivePath)
		return nil, fmt.Errorf("failed to create spool directory: %w", err)
	}

	cfg := &Config{
		ChunkSize: chunkSize,
		Backend:   backend,
		path:      archivePath,
	}
	cfg.applyDefaults()

	if err := cfg.Save(); err != nil {
		// Cleanup on failure
		os.RemoveAll(archivePath)
		return nil, err
	}

	return cfg, nil
}
