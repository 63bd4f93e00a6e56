package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	cfg := New()

	if cfg.Server.Port != DefaultPort {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, DefaultPort)
	}
	if cfg.Server.Host != DefaultHost {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, DefaultHost)
	}
	if cfg.Session.ResumeWindow != DefaultResumeWindow {
		t.Errorf("Session.ResumeWindow = %q, want %q", cfg.Session.ResumeWindow, DefaultResumeWindow)
	}
	if cfg.Demo.CycleInterval != DefaultCycleInterval {
		t.Errorf("Demo.CycleInterval = %q, want %q", cfg.Demo.CycleInterval, DefaultCycleInterval)
	}
}

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()

	// Test loading non-existent config
	_, err := Load(tmpDir)
	if err == nil {
		t.Error("Expected error for missing config")
	}
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got: %v", err)
	}

	// Create a config file
	configPath := filepath.Join(tmpDir, ConfigFileName)
	configJSON := `{
  "name": "docs-site",
  "server": {
    "port": 9090,
    "host": "0.0.0.0",
    "maxSessions": 64
  },
  "session": {
    "resumeWindow": "2m"
  },
  "assets": {
    "manifest": "dist/manifest.json"
  },
  "demo": {
    "siteName": "Docs"
  }
}
`
	if err := os.WriteFile(configPath, []byte(configJSON), 0644); err != nil {
		t.Fatal(err)
	}

	// Load the config
	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Name != "docs-site" {
		t.Errorf("Name = %q, want %q", cfg.Name, "docs-site")
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9090)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "0.0.0.0")
	}
	if cfg.Server.MaxSessions != 64 {
		t.Errorf("Server.MaxSessions = %d, want %d", cfg.Server.MaxSessions, 64)
	}
	if cfg.Session.ResumeWindow != "2m" {
		t.Errorf("Session.ResumeWindow = %q, want %q", cfg.Session.ResumeWindow, "2m")
	}
	if cfg.Assets.Manifest != "dist/manifest.json" {
		t.Errorf("Assets.Manifest = %q, want %q", cfg.Assets.Manifest, "dist/manifest.json")
	}
	if cfg.Demo.SiteName != "Docs" {
		t.Errorf("Demo.SiteName = %q, want %q", cfg.Demo.SiteName, "Docs")
	}

	// Unset fields pick up defaults
	if cfg.Session.Heartbeat != DefaultHeartbeat {
		t.Errorf("Session.Heartbeat = %q, want %q", cfg.Session.Heartbeat, DefaultHeartbeat)
	}
	if cfg.Demo.CycleInterval != DefaultCycleInterval {
		t.Errorf("Demo.CycleInterval = %q, want %q", cfg.Demo.CycleInterval, DefaultCycleInterval)
	}
}

func TestLoadFile_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ConfigFileName)

	// Write invalid JSON
	if err := os.WriteFile(configPath, []byte("not valid json"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFile(configPath)
	if err == nil {
		t.Error("Expected error for invalid JSON")
	}
}

func TestSave(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ConfigFileName)

	cfg := New()
	cfg.Server.Port = 9000
	cfg.Demo.SiteName = "Staging"

	// Save should fail without configPath set
	err := cfg.Save()
	if err == nil {
		t.Error("Expected error when saving without path")
	}

	// SaveTo should work
	err = cfg.SaveTo(configPath)
	if err != nil {
		t.Fatalf("SaveTo error: %v", err)
	}

	// Reload and verify
	loaded, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if loaded.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want %d", loaded.Server.Port, 9000)
	}
	if loaded.Demo.SiteName != "Staging" {
		t.Errorf("Demo.SiteName = %q, want %q", loaded.Demo.SiteName, "Staging")
	}

	// Now Save should work
	loaded.Server.Port = 9001
	err = loaded.Save()
	if err != nil {
		t.Fatalf("Save error: %v", err)
	}

	// Reload again
	reloaded, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if reloaded.Server.Port != 9001 {
		t.Errorf("Server.Port = %d, want %d", reloaded.Server.Port, 9001)
	}
}

func TestValidate(t *testing.T) {
	cfg := New()

	// Valid config
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate should pass for valid config: %v", err)
	}

	// Invalid port
	cfg.Server.Port = -1
	if err := cfg.Validate(); err == nil {
		t.Error("Validate should fail for negative port")
	}

	cfg.Server.Port = 70000
	if err := cfg.Validate(); err == nil {
		t.Error("Validate should fail for port > 65535")
	}

	// Invalid duration
	cfg = New()
	cfg.Session.ResumeWindow = "five minutes"
	if err := cfg.Validate(); err == nil {
		t.Error("Validate should fail for unparseable duration")
	}

	// Negative max sessions
	cfg = New()
	cfg.Server.MaxSessions = -2
	if err := cfg.Validate(); err == nil {
		t.Error("Validate should fail for negative maxSessions")
	}
}

func TestAddress(t *testing.T) {
	cfg := New()
	cfg.Server.Port = 9090
	cfg.Server.Host = "0.0.0.0"

	addr := cfg.Address()
	if addr != "0.0.0.0:9090" {
		t.Errorf("Address = %q, want %q", addr, "0.0.0.0:9090")
	}
}

func TestURL(t *testing.T) {
	cfg := New()

	url := cfg.URL()
	if url != "http://localhost:8080" {
		t.Errorf("URL = %q, want %q", url, "http://localhost:8080")
	}

	cfg.Server.HTTPS = true
	url = cfg.URL()
	if url != "https://localhost:8080" {
		t.Errorf("URL with HTTPS = %q, want %q", url, "https://localhost:8080")
	}
}

func TestDurations(t *testing.T) {
	cfg := New()

	if got := cfg.ResumeWindow(); got != 5*time.Minute {
		t.Errorf("ResumeWindow = %v, want %v", got, 5*time.Minute)
	}
	if got := cfg.Heartbeat(); got != 30*time.Second {
		t.Errorf("Heartbeat = %v, want %v", got, 30*time.Second)
	}
	if got := cfg.CycleInterval(); got != 4*time.Second {
		t.Errorf("CycleInterval = %v, want %v", got, 4*time.Second)
	}

	cfg.Session.ResumeWindow = "90s"
	if got := cfg.ResumeWindow(); got != 90*time.Second {
		t.Errorf("ResumeWindow = %v, want %v", got, 90*time.Second)
	}

	// Unparseable and non-positive values fall back to the defaults.
	cfg.Session.ResumeWindow = "soon"
	if got := cfg.ResumeWindow(); got != 5*time.Minute {
		t.Errorf("ResumeWindow fallback = %v, want %v", got, 5*time.Minute)
	}
	cfg.Demo.CycleInterval = "-3s"
	if got := cfg.CycleInterval(); got != 4*time.Second {
		t.Errorf("CycleInterval fallback = %v, want %v", got, 4*time.Second)
	}
}

func TestManifestPath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ConfigFileName)

	cfg := New()
	if err := cfg.SaveTo(configPath); err != nil {
		t.Fatal(err)
	}

	// Empty when unconfigured
	if got := cfg.ManifestPath(); got != "" {
		t.Errorf("ManifestPath = %q, want empty", got)
	}

	// Relative path resolves against the config directory
	cfg.Assets.Manifest = "dist/manifest.json"
	if got := cfg.ManifestPath(); got != filepath.Join(tmpDir, "dist/manifest.json") {
		t.Errorf("ManifestPath = %q, want %q", got, filepath.Join(tmpDir, "dist/manifest.json"))
	}

	// Absolute path passes through
	cfg.Assets.Manifest = "/var/www/manifest.json"
	if got := cfg.ManifestPath(); got != "/var/www/manifest.json" {
		t.Errorf("ManifestPath absolute = %q, want %q", got, "/var/www/manifest.json")
	}
}

func TestExists(t *testing.T) {
	tmpDir := t.TempDir()

	if Exists(tmpDir) {
		t.Error("Exists should be false for empty directory")
	}

	// Create config file
	configPath := filepath.Join(tmpDir, ConfigFileName)
	if err := os.WriteFile(configPath, []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}

	if !Exists(tmpDir) {
		t.Error("Exists should be true after creating config")
	}
}

func TestFindProjectRoot(t *testing.T) {
	// Create nested directory structure
	tmpDir := t.TempDir()
	nestedDir := filepath.Join(tmpDir, "a", "b", "c")
	if err := os.MkdirAll(nestedDir, 0755); err != nil {
		t.Fatal(err)
	}

	// Should fail when no config exists
	_, err := FindProjectRoot(nestedDir)
	if err == nil {
		t.Error("FindProjectRoot should fail when no config exists")
	}

	// Create config in root
	configPath := filepath.Join(tmpDir, ConfigFileName)
	if err := os.WriteFile(configPath, []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}

	// Should find root from nested directory
	root, err := FindProjectRoot(nestedDir)
	if err != nil {
		t.Fatalf("FindProjectRoot error: %v", err)
	}
	if root != tmpDir {
		t.Errorf("FindProjectRoot = %q, want %q", root, tmpDir)
	}

	// Should find root from middle directory
	root, err = FindProjectRoot(filepath.Join(tmpDir, "a"))
	if err != nil {
		t.Fatalf("FindProjectRoot error: %v", err)
	}
	if root != tmpDir {
		t.Errorf("FindProjectRoot = %q, want %q", root, tmpDir)
	}
}

func TestItoa(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "0"},
		{1, "1"},
		{10, "10"},
		{123, "123"},
		{8080, "8080"},
		{65535, "65535"},
		{-1, "-1"},
		{-100, "-100"},
	}

	for _, tt := range tests {
		got := itoa(tt.n)
		if got != tt.want {
			t.Errorf("itoa(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	if cfg.Server.Port != DefaultPort {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, DefaultPort)
	}
	if cfg.Server.Host != DefaultHost {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, DefaultHost)
	}
	if cfg.Session.Heartbeat != DefaultHeartbeat {
		t.Errorf("Session.Heartbeat = %q, want %q", cfg.Session.Heartbeat, DefaultHeartbeat)
	}
	if cfg.Demo.SiteName != DefaultSiteName {
		t.Errorf("Demo.SiteName = %q, want %q", cfg.Demo.SiteName, DefaultSiteName)
	}
}
