// Package config loads and validates cueplay's JSON configuration from
// XDG config paths, with environment variable overrides.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"cueplay.click/internal/backend"
)

// FileLoggingConfig controls the rotating log file.
type FileLoggingConfig struct {
	Enabled    bool   `json:"enabled"`
	Filename   string `json:"filename"` // empty = XDG cache path
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
	Compress   bool   `json:"compress"`
}

// JournalConfig controls transition journaling.
type JournalConfig struct {
	Enabled      bool   `json:"enabled"`
	DatabasePath string `json:"database_path"` // empty = XDG cache path
}

// Config is cueplay's configuration.
type Config struct {
	Volume         float64            `json:"volume"`           // 0.0 to 1.0
	Pan            float64            `json:"pan"`              // -1.0 (left) to 1.0 (right)
	Loops          int                `json:"loops"`            // repeats after the first pass, -1 = forever
	Speed          float64            `json:"speed"`            // playback rate, 1.0 = normal
	Backend        string             `json:"backend"`          // auto, malgo, beep, stub
	PollIntervalMS int                `json:"poll_interval_ms"` // progress poll period
	BasePath       string             `json:"base_path"`        // root for relative sources
	CatalogPaths   []string           `json:"catalog_paths"`    // extra asset catalog files or dirs
	LogLevel       string             `json:"log_level"`        // debug, info, warn, error
	FileLogging    *FileLoggingConfig `json:"file_logging,omitempty"`
	Journal        *JournalConfig     `json:"journal,omitempty"`
}

// Manager loads, saves, and validates configuration.
type Manager struct {
	fs  afero.Fs
	xdg *XDGDirs
	env func(string) string
}

// NewManager creates a configuration manager over the given filesystem
// and environment lookup.
func NewManager(fsys afero.Fs, env func(string) string) *Manager {
	slog.Debug("creating config manager")
	return &Manager{fs: fsys, xdg: NewXDGDirs(), env: env}
}

// Default returns the default configuration.
func (m *Manager) Default() *Config {
	cfg := &Config{
		Volume:         1.0,
		Pan:            0,
		Loops:          0,
		Speed:          1.0,
		Backend:        backend.KindAuto,
		PollIntervalMS: 250,
		LogLevel:       "warn",
		FileLogging: &FileLoggingConfig{
			Enabled:    true,
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
		Journal: &JournalConfig{
			Enabled: true,
		},
	}

	slog.Debug("generated default config",
		"volume", cfg.Volume,
		"backend", cfg.Backend,
		"poll_interval_ms", cfg.PollIntervalMS,
		"log_level", cfg.LogLevel)

	return cfg
}

// LoadFromFile loads and validates configuration from one file.
func (m *Manager) LoadFromFile(path string) (*Config, error) {
	slog.Debug("loading config from file", "path", path)

	data, err := afero.ReadFile(m.fs, path)
	if err != nil {
		slog.Error("failed to read config file", "path", path, "error", err)
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Unmarshal over defaults so absent keys keep their default values.
	cfg := m.Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		slog.Error("failed to parse config JSON", "path", path, "error", err)
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := m.Validate(cfg); err != nil {
		slog.Error("config validation failed", "path", path, "error", err)
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	slog.Debug("config loaded",
		"path", path,
		"volume", cfg.Volume,
		"backend", cfg.Backend)

	return cfg, nil
}

// SaveToFile writes configuration to one file, creating directories as
// needed.
func (m *Manager) SaveToFile(cfg *Config, path string) error {
	slog.Debug("saving config to file", "path", path)

	if err := m.Validate(cfg); err != nil {
		slog.Error("cannot save invalid config", "error", err)
		return fmt.Errorf("cannot save invalid config: %w", err)
	}

	if err := m.fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		slog.Error("failed to create config directory", "path", path, "error", err)
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := afero.WriteFile(m.fs, path, data, 0644); err != nil {
		slog.Error("failed to write config file", "path", path, "error", err)
		return fmt.Errorf("failed to write config file: %w", err)
	}

	slog.Info("config saved", "path", path)
	return nil
}

// Load finds configuration through XDG path discovery, falling back to
// defaults when no file exists.
func (m *Manager) Load() (*Config, error) {
	paths := m.xdg.ConfigPaths("config.json")
	slog.Debug("searching for config file", "paths", paths)

	for _, path := range paths {
		exists, err := afero.Exists(m.fs, path)
		if err != nil || !exists {
			continue
		}
		slog.Debug("found config file", "path", path)
		return m.LoadFromFile(path)
	}

	slog.Debug("no config file found, using defaults")
	return m.Default(), nil
}

// Validate checks configuration values.
func (m *Manager) Validate(cfg *Config) error {
	var errs []string

	if cfg.Volume < 0.0 || cfg.Volume > 1.0 {
		errs = append(errs, fmt.Sprintf("volume must be between 0.0 and 1.0, got %f", cfg.Volume))
	}
	if cfg.Pan < -1.0 || cfg.Pan > 1.0 {
		errs = append(errs, fmt.Sprintf("pan must be between -1.0 and 1.0, got %f", cfg.Pan))
	}
	if cfg.Loops < -1 {
		errs = append(errs, fmt.Sprintf("loops must be >= -1, got %d", cfg.Loops))
	}
	if cfg.Speed <= 0 {
		errs = append(errs, fmt.Sprintf("speed must be positive, got %f", cfg.Speed))
	}
	if cfg.PollIntervalMS < 0 {
		errs = append(errs, fmt.Sprintf("poll_interval_ms must be >= 0, got %d", cfg.PollIntervalMS))
	}

	if cfg.LogLevel != "" {
		switch cfg.LogLevel {
		case "debug", "info", "warn", "error":
		default:
			errs = append(errs, fmt.Sprintf("invalid log level %q, must be one of: debug, info, warn, error", cfg.LogLevel))
		}
	}

	factory := backend.NewFactory()
	if !factory.IsValidKind(cfg.Backend) {
		errs = append(errs, fmt.Sprintf("invalid backend %q, must be one of: %s",
			cfg.Backend, strings.Join(factory.Supported(), ", ")))
	}

	if fl := cfg.FileLogging; fl != nil {
		if fl.MaxSizeMB < 0 {
			errs = append(errs, fmt.Sprintf("file logging max_size_mb must be >= 0, got %d", fl.MaxSizeMB))
		}
		if fl.MaxBackups < 0 {
			errs = append(errs, fmt.Sprintf("file logging max_backups must be >= 0, got %d", fl.MaxBackups))
		}
		if fl.MaxAgeDays < 0 {
			errs = append(errs, fmt.Sprintf("file logging max_age_days must be >= 0, got %d", fl.MaxAgeDays))
		}
	}

	if len(errs) > 0 {
		msg := strings.Join(errs, "; ")
		slog.Error("config validation failed", "errors", msg)
		return fmt.Errorf("config validation failed: %s", msg)
	}

	slog.Debug("config validation passed")
	return nil
}

// ApplyEnvironmentOverrides returns a copy of cfg with CUEPLAY_*
// environment variables applied. Invalid values are warned about and
// skipped.
func (m *Manager) ApplyEnvironmentOverrides(cfg *Config) *Config {
	result := *cfg

	if v := m.env("CUEPLAY_VOLUME"); v != "" {
		if vol, err := strconv.ParseFloat(v, 64); err == nil {
			result.Volume = vol
			slog.Debug("applied volume override from environment", "value", vol)
		} else {
			slog.Warn("invalid CUEPLAY_VOLUME environment variable", "value", v, "error", err)
		}
	}

	if v := m.env("CUEPLAY_BACKEND"); v != "" {
		if backend.NewFactory().IsValidKind(v) {
			result.Backend = v
			slog.Debug("applied backend override from environment", "value", v)
		} else {
			slog.Warn("invalid CUEPLAY_BACKEND environment variable", "value", v)
		}
	}

	if v := m.env("CUEPLAY_LOG_LEVEL"); v != "" {
		result.LogLevel = v
		slog.Debug("applied log level override from environment", "value", v)
	}

	if v := m.env("CUEPLAY_POLL_INTERVAL_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms >= 0 {
			result.PollIntervalMS = ms
			slog.Debug("applied poll interval override from environment", "value", ms)
		} else {
			slog.Warn("invalid CUEPLAY_POLL_INTERVAL_MS environment variable", "value", v)
		}
	}

	if v := m.env("CUEPLAY_BASE_PATH"); v != "" {
		result.BasePath = v
		slog.Debug("applied base path override from environment", "value", v)
	}

	return &result
}

// ResolveLogFilePath returns the log file path, defaulting into the XDG
// cache dir when filename is empty.
func (m *Manager) ResolveLogFilePath(filename string) string {
	if filename != "" {
		return filename
	}
	return filepath.Join(m.xdg.CachePath("logs"), "cueplay.log")
}

// ResolveJournalPath returns the journal database path, defaulting into
// the XDG cache dir when path is empty.
func (m *Manager) ResolveJournalPath(path string) string {
	if path != "" {
		return path
	}
	return filepath.Join(m.xdg.CachePath(""), "journal.db")
}
