package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/justyntemme/pikeru/internal/logging"
	"github.com/justyntemme/pikeru/internal/workers"
)

// Config holds all user-configurable settings loaded from config.json
type Config struct {
	Thumbnails   ThumbnailConfig   `json:"thumbnails"`
	Index        IndexConfig       `json:"index"`
	Descriptions DescriptionConfig `json:"descriptions"`
	Watch        WatchConfig       `json:"watch"`
	View         ViewConfig        `json:"view"`
	Logging      LoggingConfig     `json:"logging"`
}

// ThumbnailConfig holds preview generation settings
type ThumbnailConfig struct {
	Size     int    `json:"size"`     // Edge length in pixels
	CacheDir string `json:"cacheDir"` // Empty = user cache dir
	Workers  int    `json:"workers"`  // 0 = derived from available CPUs
}

// IndexConfig holds listing and recursive crawl settings
type IndexConfig struct {
	ShowHidden         bool     `json:"showHidden"`
	Recursive          bool     `json:"recursive"`
	MaxDepth           int      `json:"maxDepth"`    // 0 = unlimited
	IgnoreRules        []string `json:"ignoreRules"` // gitignore syntax, applied at every root
	RespectIgnoreFiles bool     `json:"respectIgnoreFiles"`
	IgnoreFileNames    []string `json:"ignoreFileNames"`
}

// DescriptionConfig holds the description store settings
type DescriptionConfig struct {
	Database string `json:"database"` // Empty = user config dir
}

// WatchConfig holds filesystem watching settings
type WatchConfig struct {
	Backend        string `json:"backend"` // "inotify" | "fsnotify" | "" (platform default)
	RenameWindowMs int    `json:"renameWindowMs"`
}

// ViewConfig holds the default display order
type ViewConfig struct {
	SortBy        string `json:"sortBy"` // "name" | "date" | "size" | "type"
	SortAscending bool   `json:"sortAscending"`
}

// LoggingConfig holds structured logging settings
type LoggingConfig struct {
	Level  string `json:"level"`  // "debug" | "info" | "warn" | "error"
	Format string `json:"format"` // "json" | "console"
}

// Manager handles loading, saving, and accessing configuration
type Manager struct {
	mu       sync.RWMutex
	config   *Config
	path     string
	parseErr error // Stores parsing error if config failed to load
}

// NewManager creates a manager for the config file at path, or at
// ConfigPath() when path is empty.
func NewManager(path string) *Manager {
	if path == "" {
		path = ConfigPath()
	}
	return &Manager{
		config: DefaultConfig(),
		path:   path,
	}
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Thumbnails: ThumbnailConfig{
			Size: 128,
		},
		Index: IndexConfig{
			ShowHidden:         false,
			Recursive:          false,
			MaxDepth:           0,
			IgnoreRules:        []string{"node_modules/", "__pycache__/"},
			RespectIgnoreFiles: true,
			IgnoreFileNames:    []string{".gitignore", ".ignore"},
		},
		Watch: WatchConfig{
			RenameWindowMs: 250,
		},
		View: ViewConfig{
			SortBy:        "name",
			SortAscending: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// ConfigPath returns the config file path: ~/.config/pikeru/config.json
// This is consistent across all platforms (Windows, macOS, Linux)
func ConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "pikeru", "config.json")
}

// Path returns the file this manager reads and writes.
func (m *Manager) Path() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.path
}

// Load reads the configuration from the config file
// If the file doesn't exist, creates it with defaults
// If parsing fails, stores the error and returns defaults
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.parseErr = nil

	configDir := filepath.Dir(m.path)
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("create config dir %s: %w", configDir, err)
	}

	data, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		logging.Info("creating default config", zap.String("path", m.path))
		m.config = DefaultConfig()
		if saveErr := m.saveUnlocked(); saveErr != nil {
			return fmt.Errorf("save default config: %w", saveErr)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	// Unset fields keep their defaults
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		logging.Warn("config parse error, using defaults", zap.String("path", m.path), zap.Error(err))
		m.parseErr = err
		m.config = DefaultConfig()
		return nil // Don't return error - we're using defaults
	}

	logging.Debug("config loaded", zap.String("path", m.path))
	m.config = cfg
	return nil
}

// saveUnlocked saves config without acquiring lock (caller must hold lock)
func (m *Manager) saveUnlocked() error {
	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.path, data, 0o644)
}

// Save writes the current configuration to disk
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveUnlocked()
}

// Get returns a copy of the current configuration
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.config == nil {
		return *DefaultConfig()
	}
	return *m.config
}

// ParseError returns the parsing error if config failed to load
func (m *Manager) ParseError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.parseErr
}

// ThumbnailWorkers returns the configured task width, falling back to two
// per CPU capped at 16.
func (c Config) ThumbnailWorkers() int {
	if c.Thumbnails.Workers > 0 {
		return c.Thumbnails.Workers
	}
	return workers.ForIO(16)
}

// RenameWindow returns the rename pairing window.
func (c Config) RenameWindow() time.Duration {
	return time.Duration(c.Watch.RenameWindowMs) * time.Millisecond
}

// GenerateConfig backs up existing config and creates a fresh default config
// Returns the backup path if a backup was created, or empty string if no existing config
func GenerateConfig(configPath string) (backupPath string, err error) {
	if configPath == "" {
		configPath = ConfigPath()
	}

	if _, err := os.Stat(configPath); err == nil {
		timestamp := time.Now().Format("20060102-150405")
		backupPath = filepath.Join(filepath.Dir(configPath), "config.backup."+timestamp+".json")

		data, err := os.ReadFile(configPath)
		if err != nil {
			return "", fmt.Errorf("failed to read existing config: %w", err)
		}
		if err := os.WriteFile(backupPath, data, 0o644); err != nil {
			return "", fmt.Errorf("failed to write backup: %w", err)
		}
	}

	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return backupPath, fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(DefaultConfig(), "", "  ")
	if err != nil {
		return backupPath, fmt.Errorf("failed to marshal default config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return backupPath, fmt.Errorf("failed to write config: %w", err)
	}

	return backupPath, nil
}
