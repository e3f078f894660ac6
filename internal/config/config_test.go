package config

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

func envFromMap(m map[string]string) func(string) string {
	return func(key string) string { return m[key] }
}

func newTestManager(fsys afero.Fs) *Manager {
	return NewManager(fsys, envFromMap(nil))
}

func TestDefaultConfig(t *testing.T) {
	manager := newTestManager(afero.NewMemMapFs())
	cfg := manager.Default()

	if cfg.Volume != 1.0 {
		t.Errorf("expected default volume 1.0, got %f", cfg.Volume)
	}
	if cfg.Pan != 0 {
		t.Errorf("expected default pan 0, got %f", cfg.Pan)
	}
	if cfg.Speed != 1.0 {
		t.Errorf("expected default speed 1.0, got %f", cfg.Speed)
	}
	if cfg.Backend != "auto" {
		t.Errorf("expected default backend auto, got %s", cfg.Backend)
	}
	if cfg.PollIntervalMS != 250 {
		t.Errorf("expected default poll interval 250, got %d", cfg.PollIntervalMS)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("expected default log level warn, got %s", cfg.LogLevel)
	}
	if cfg.FileLogging == nil || !cfg.FileLogging.Enabled {
		t.Error("expected file logging enabled by default")
	}
	if cfg.Journal == nil || !cfg.Journal.Enabled {
		t.Error("expected journal enabled by default")
	}

	if err := manager.Validate(cfg); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	fsys := afero.NewMemMapFs()
	manager := newTestManager(fsys)

	configJSON := `{
		"volume": 0.5,
		"pan": -0.3,
		"backend": "stub",
		"catalog_paths": ["/sounds/assets.json"]
	}`
	path := "/config/config.json"
	if err := afero.WriteFile(fsys, path, []byte(configJSON), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := manager.LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if cfg.Volume != 0.5 {
		t.Errorf("expected volume 0.5, got %f", cfg.Volume)
	}
	if cfg.Pan != -0.3 {
		t.Errorf("expected pan -0.3, got %f", cfg.Pan)
	}
	if cfg.Backend != "stub" {
		t.Errorf("expected backend stub, got %s", cfg.Backend)
	}
	if len(cfg.CatalogPaths) != 1 || cfg.CatalogPaths[0] != "/sounds/assets.json" {
		t.Errorf("unexpected catalog paths: %v", cfg.CatalogPaths)
	}

	// Absent keys keep defaults.
	if cfg.Speed != 1.0 {
		t.Errorf("expected default speed 1.0 for absent key, got %f", cfg.Speed)
	}
	if cfg.PollIntervalMS != 250 {
		t.Errorf("expected default poll interval 250 for absent key, got %d", cfg.PollIntervalMS)
	}
}

func TestLoadFromFileErrors(t *testing.T) {
	fsys := afero.NewMemMapFs()
	manager := newTestManager(fsys)

	_, err := manager.LoadFromFile("/nonexistent/config.json")
	if err == nil {
		t.Error("expected error for missing config file")
	}

	afero.WriteFile(fsys, "/bad/config.json", []byte("{not json"), 0644)
	_, err = manager.LoadFromFile("/bad/config.json")
	if err == nil {
		t.Error("expected error for malformed JSON")
	}

	afero.WriteFile(fsys, "/invalid/config.json", []byte(`{"volume": 5.0}`), 0644)
	_, err = manager.LoadFromFile("/invalid/config.json")
	if err == nil {
		t.Error("expected validation error for out-of-range volume")
	}
}

func TestValidate(t *testing.T) {
	manager := newTestManager(afero.NewMemMapFs())

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(c *Config) {}, ""},
		{"volume too high", func(c *Config) { c.Volume = 1.5 }, "volume"},
		{"volume negative", func(c *Config) { c.Volume = -0.1 }, "volume"},
		{"pan out of range", func(c *Config) { c.Pan = 2.0 }, "pan"},
		{"loops below -1", func(c *Config) { c.Loops = -2 }, "loops"},
		{"loops forever ok", func(c *Config) { c.Loops = -1 }, ""},
		{"zero speed", func(c *Config) { c.Speed = 0 }, "speed"},
		{"negative poll interval", func(c *Config) { c.PollIntervalMS = -1 }, "poll_interval_ms"},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, "log level"},
		{"bad backend", func(c *Config) { c.Backend = "pulse" }, "backend"},
		{"negative log size", func(c *Config) { c.FileLogging.MaxSizeMB = -1 }, "max_size_mb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := manager.Default()
			tt.mutate(cfg)

			err := manager.Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("expected valid config, got error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error mentioning %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error mentioning %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	fsys := afero.NewMemMapFs()
	manager := newTestManager(fsys)

	cfg := manager.Default()
	cfg.Volume = 0.7
	cfg.Backend = "stub"
	cfg.BasePath = "/media"

	path := "/home/user/.config/cueplay/config.json"
	if err := manager.SaveToFile(cfg, path); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}

	loaded, err := manager.LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if loaded.Volume != 0.7 {
		t.Errorf("expected volume 0.7 after round trip, got %f", loaded.Volume)
	}
	if loaded.Backend != "stub" {
		t.Errorf("expected backend stub after round trip, got %s", loaded.Backend)
	}
	if loaded.BasePath != "/media" {
		t.Errorf("expected base path /media after round trip, got %s", loaded.BasePath)
	}
}

func TestSaveRejectsInvalidConfig(t *testing.T) {
	fsys := afero.NewMemMapFs()
	manager := newTestManager(fsys)

	cfg := manager.Default()
	cfg.Volume = 3.0

	if err := manager.SaveToFile(cfg, "/config.json"); err == nil {
		t.Error("expected error saving invalid config")
	}

	exists, _ := afero.Exists(fsys, "/config.json")
	if exists {
		t.Error("invalid config should not have been written")
	}
}

func TestLoadFallsBackToDefaults(t *testing.T) {
	manager := newTestManager(afero.NewMemMapFs())

	cfg, err := manager.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Volume != 1.0 || cfg.Backend != "auto" {
		t.Errorf("expected default config when no file exists, got volume=%f backend=%s",
			cfg.Volume, cfg.Backend)
	}
}

func TestApplyEnvironmentOverrides(t *testing.T) {
	env := map[string]string{
		"CUEPLAY_VOLUME":           "0.25",
		"CUEPLAY_BACKEND":          "stub",
		"CUEPLAY_LOG_LEVEL":        "debug",
		"CUEPLAY_POLL_INTERVAL_MS": "100",
		"CUEPLAY_BASE_PATH":        "/var/media",
	}
	manager := NewManager(afero.NewMemMapFs(), envFromMap(env))

	cfg := manager.ApplyEnvironmentOverrides(manager.Default())

	if cfg.Volume != 0.25 {
		t.Errorf("expected volume override 0.25, got %f", cfg.Volume)
	}
	if cfg.Backend != "stub" {
		t.Errorf("expected backend override stub, got %s", cfg.Backend)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected log level override debug, got %s", cfg.LogLevel)
	}
	if cfg.PollIntervalMS != 100 {
		t.Errorf("expected poll interval override 100, got %d", cfg.PollIntervalMS)
	}
	if cfg.BasePath != "/var/media" {
		t.Errorf("expected base path override /var/media, got %s", cfg.BasePath)
	}
}

func TestApplyEnvironmentOverridesSkipsInvalid(t *testing.T) {
	env := map[string]string{
		"CUEPLAY_VOLUME":           "loud",
		"CUEPLAY_BACKEND":          "pulse",
		"CUEPLAY_POLL_INTERVAL_MS": "-5",
	}
	manager := NewManager(afero.NewMemMapFs(), envFromMap(env))

	cfg := manager.ApplyEnvironmentOverrides(manager.Default())

	if cfg.Volume != 1.0 {
		t.Errorf("invalid volume override should be skipped, got %f", cfg.Volume)
	}
	if cfg.Backend != "auto" {
		t.Errorf("invalid backend override should be skipped, got %s", cfg.Backend)
	}
	if cfg.PollIntervalMS != 250 {
		t.Errorf("invalid poll interval override should be skipped, got %d", cfg.PollIntervalMS)
	}
}

func TestResolvePaths(t *testing.T) {
	manager := newTestManager(afero.NewMemMapFs())

	if got := manager.ResolveLogFilePath("/custom/app.log"); got != "/custom/app.log" {
		t.Errorf("explicit log path should pass through, got %s", got)
	}
	if got := manager.ResolveLogFilePath(""); filepath.Base(got) != "cueplay.log" {
		t.Errorf("default log path should end in cueplay.log, got %s", got)
	}

	if got := manager.ResolveJournalPath("/custom/j.db"); got != "/custom/j.db" {
		t.Errorf("explicit journal path should pass through, got %s", got)
	}
	if got := manager.ResolveJournalPath(""); filepath.Base(got) != "journal.db" {
		t.Errorf("default journal path should end in journal.db, got %s", got)
	}
}

func TestXDGConfigPaths(t *testing.T) {
	dirs := NewXDGDirs()

	paths := dirs.ConfigPaths("config.json")
	if len(paths) == 0 {
		t.Fatal("expected at least one config path")
	}
	for _, p := range paths {
		if !strings.Contains(p, "cueplay") {
			t.Errorf("config path missing app dir: %s", p)
		}
		if filepath.Base(p) != "config.json" {
			t.Errorf("config path missing filename: %s", p)
		}
	}

	cache := dirs.CachePath("logs")
	if !strings.Contains(cache, filepath.Join("cueplay", "logs")) {
		t.Errorf("unexpected cache path: %s", cache)
	}
}
