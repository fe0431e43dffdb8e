// ABOUTME: afterwod configuration: JSON file plus AFTERWOD_* environment overrides.
// ABOUTME: Opens the kv engine and the workout history backend from the resolved settings.

package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/harperreed/afterwod/internal/kv"
	"github.com/harperreed/afterwod/internal/storage"
)

// Config stores afterwod configuration.
type Config struct {
	// Backend selects workout history storage: "auto" (default), "sqlite", or "flat".
	Backend string `json:"backend,omitempty" env:"AFTERWOD_BACKEND"`

	// KVEngine selects the key-value engine: "badger" (default) or "bolt".
	KVEngine string `json:"kv_engine,omitempty" env:"AFTERWOD_KV_ENGINE"`

	// DataDir is the root directory for data storage.
	// SQLite puts afterwod.db here; the kv engine lives beside it.
	// Supports ~ expansion for home directory. Defaults to ~/.local/share/afterwod.
	DataDir string `json:"data_dir,omitempty" env:"AFTERWOD_DATA_DIR"`

	// MonthlyLimit caps current-month records. Zero means 100.
	MonthlyLimit int `json:"monthly_limit,omitempty" env:"AFTERWOD_MONTHLY_LIMIT"`

	LogLevel string `json:"log_level,omitempty" env:"AFTERWOD_LOG_LEVEL"`
	LogFile  string `json:"log_file,omitempty" env:"AFTERWOD_LOG_FILE"`
}

// GetBackend returns the configured backend, defaulting to "auto".
func (c *Config) GetBackend() string {
	if c.Backend == "" {
		return storage.BackendAuto
	}
	return c.Backend
}

// GetKVEngine returns the configured kv engine, defaulting to "badger".
func (c *Config) GetKVEngine() string {
	if c.KVEngine == "" {
		return kv.EngineBadger
	}
	return c.KVEngine
}

// GetDataDir returns the configured data directory with ~ expanded,
// defaulting to the standard XDG data directory.
func (c *Config) GetDataDir() string {
	if c.DataDir == "" {
		return storage.DataDir()
	}
	return ExpandPath(c.DataDir)
}

// GetRetention returns the retention policy for the configured limit.
func (c *Config) GetRetention() storage.RetentionPolicy {
	if c.MonthlyLimit <= 0 {
		return storage.DefaultRetentionPolicy
	}
	return storage.RetentionPolicy{MonthlyLimit: c.MonthlyLimit}
}

// GetLogFile returns the log file path with ~ expanded.
func (c *Config) GetLogFile() string {
	return ExpandPath(c.LogFile)
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// Storage is an opened workout history backend together with the kv store
// it depends on. Close releases both.
type Storage struct {
	storage.Adapter
	kv   kv.Store
	opts storage.Options
}

// KV returns the key-value store holding the migration flag and legacy data.
func (s *Storage) KV() kv.Store {
	return s.kv
}

// OpenBackend opens another backend over the same kv store and data
// directory. The caller closes it.
func (s *Storage) OpenBackend(ctx context.Context, backend string) (storage.Adapter, error) {
	opts := s.opts
	opts.Backend = backend
	return storage.Open(ctx, opts)
}

// Close closes the backend, then the kv store.
func (s *Storage) Close() error {
	var firstErr error
	if s.Adapter != nil {
		firstErr = s.Adapter.Close()
	}
	if s.kv != nil {
		if err := s.kv.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// OpenStorage opens the kv engine and the configured backend. It does not
// call Initialize.
func (c *Config) OpenStorage(ctx context.Context, logger *slog.Logger) (*Storage, error) {
	dataDir := c.GetDataDir()

	store, err := kv.Open(c.GetKVEngine(), dataDir, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: open kv store: %w", storage.ErrStorageUnavailable, err)
	}

	opts := storage.Options{
		DataDir:   dataDir,
		Backend:   c.GetBackend(),
		KV:        store,
		Logger:    logger,
		Retention: c.GetRetention(),
	}
	adapter, err := storage.Open(ctx, opts)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return &Storage{Adapter: adapter, kv: store, opts: opts}, nil
}

// GetConfigPath returns the config file path.
func GetConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, _ := os.UserHomeDir()
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "afterwod", "config.json")
}

// Load reads config from disk, then applies AFTERWOD_* environment overrides.
func Load() (*Config, error) {
	cfg := &Config{}

	path := GetConfigPath()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Save writes config to disk.
func (c *Config) Save() error {
	path := GetConfigPath()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
