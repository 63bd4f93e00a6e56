package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "helmet.json"

	// DefaultPort is the default demo server port.
	DefaultPort = 8080

	// DefaultHost is the default demo server host.
	DefaultHost = "localhost"

	// DefaultResumeWindow is how long a detached session stays resumable.
	DefaultResumeWindow = "5m"

	// DefaultHeartbeat is the default WebSocket heartbeat interval.
	DefaultHeartbeat = "30s"

	// DefaultCycleInterval is how often the demo rotates its head views.
	DefaultCycleInterval = "4s"

	// DefaultSiteName is the site name woven into demo titles.
	DefaultSiteName = "Helmet"
)

// ErrNotFound is returned when no helmet.json exists where one was expected.
var ErrNotFound = errors.New("helmet.json not found")

// Config represents the complete helmet.json configuration.
type Config struct {
	// Name is the project name.
	Name string `json:"name,omitempty"`

	// Server contains HTTP/WebSocket server settings.
	Server ServerConfig `json:"server,omitempty"`

	// Session contains session lifecycle settings.
	Session SessionConfig `json:"session,omitempty"`

	// Assets contains asset manifest settings.
	Assets AssetsConfig `json:"assets,omitempty"`

	// Demo contains settings for the head-cycling demo driver.
	Demo DemoConfig `json:"demo,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// ServerConfig contains HTTP/WebSocket server settings.
type ServerConfig struct {
	// Port is the port to listen on.
	Port int `json:"port,omitempty"`

	// Host is the host to bind to.
	Host string `json:"host,omitempty"`

	// MaxSessions caps concurrent sessions. 0 means no limit.
	MaxSessions int `json:"maxSessions,omitempty"`

	// HTTPS reports whether the server sits behind TLS. It only affects
	// the URL helpers; the demo binary itself always serves plain HTTP.
	HTTPS bool `json:"https,omitempty"`
}

// SessionConfig contains session lifecycle settings.
type SessionConfig struct {
	// ResumeWindow is how long a detached session stays resumable (e.g., "5m").
	ResumeWindow string `json:"resumeWindow,omitempty"`

	// Heartbeat is the interval between WebSocket pings (e.g., "30s").
	Heartbeat string `json:"heartbeat,omitempty"`
}

// AssetsConfig contains asset manifest settings.
type AssetsConfig struct {
	// Manifest is the path to a JSON manifest mapping source asset paths
	// to fingerprinted ones. Empty disables rewriting.
	Manifest string `json:"manifest,omitempty"`
}

// DemoConfig contains settings for the head-cycling demo driver.
type DemoConfig struct {
	// SiteName is woven into the demo page titles.
	SiteName string `json:"siteName,omitempty"`

	// CycleInterval is how often each session rotates to the next view (e.g., "4s").
	CycleInterval string `json:"cycleInterval,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Name: "helmet-demo",
		Server: ServerConfig{
			Port: DefaultPort,
			Host: DefaultHost,
		},
		Session: SessionConfig{
			ResumeWindow: DefaultResumeWindow,
			Heartbeat:    DefaultHeartbeat,
		},
		Demo: DemoConfig{
			SiteName:      DefaultSiteName,
			CycleInterval: DefaultCycleInterval,
		},
	}
}

// Load reads configuration from the specified directory.
// It looks for helmet.json in the directory.
func Load(dir string) (*Config, error) {
	configPath := filepath.Join(dir, ConfigFileName)
	return LoadFile(configPath)
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w in %s", ErrNotFound, filepath.Dir(path))
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.New("no config path set, use SaveTo")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	// Add newline at end of file
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Session.ResumeWindow == "" {
		c.Session.ResumeWindow = DefaultResumeWindow
	}
	if c.Session.Heartbeat == "" {
		c.Session.Heartbeat = DefaultHeartbeat
	}
	if c.Demo.SiteName == "" {
		c.Demo.SiteName = DefaultSiteName
	}
	if c.Demo.CycleInterval == "" {
		c.Demo.CycleInterval = DefaultCycleInterval
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range 0-65535", c.Server.Port)
	}
	if c.Server.MaxSessions < 0 {
		return fmt.Errorf("server.maxSessions %d must not be negative", c.Server.MaxSessions)
	}
	for _, d := range []struct {
		field string
		value string
	}{
		{"session.resumeWindow", c.Session.ResumeWindow},
		{"session.heartbeat", c.Session.Heartbeat},
		{"demo.cycleInterval", c.Demo.CycleInterval},
	} {
		if d.value == "" {
			continue
		}
		if _, err := time.ParseDuration(d.value); err != nil {
			return fmt.Errorf("%s: %w", d.field, err)
		}
	}
	return nil
}

// Address returns the listen address string for the server.
func (c *Config) Address() string {
	return c.Server.Host + ":" + itoa(c.Server.Port)
}

// URL returns the full URL for the server.
func (c *Config) URL() string {
	scheme := "http"
	if c.Server.HTTPS {
		scheme = "https"
	}
	return scheme + "://" + c.Address()
}

// ResumeWindow returns the parsed session resume window.
func (c *Config) ResumeWindow() time.Duration {
	return duration(c.Session.ResumeWindow, 5*time.Minute)
}

// Heartbeat returns the parsed heartbeat interval.
func (c *Config) Heartbeat() time.Duration {
	return duration(c.Session.Heartbeat, 30*time.Second)
}

// CycleInterval returns the parsed demo cycle interval.
func (c *Config) CycleInterval() time.Duration {
	return duration(c.Demo.CycleInterval, 4*time.Second)
}

// ManifestPath returns the absolute path to the asset manifest, or empty
// when no manifest is configured.
func (c *Config) ManifestPath() string {
	if c.Assets.Manifest == "" {
		return ""
	}
	if filepath.IsAbs(c.Assets.Manifest) {
		return c.Assets.Manifest
	}
	return filepath.Join(c.Dir(), c.Assets.Manifest)
}

// duration parses s, falling back when it is empty or unparseable.
func duration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	path := filepath.Join(dir, ConfigFileName)
	_, err := os.Stat(path)
	return err == nil
}

// FindProjectRoot walks up directories to find the project root.
// Returns the directory containing helmet.json, or an error if not found.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w in %s or any parent directory", ErrNotFound, startDir)
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads configuration from the current working directory.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root, err := FindProjectRoot(wd)
	if err != nil {
		return nil, err
	}

	return Load(root)
}

// itoa converts int to string without importing strconv.
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	if n < 0 {
		return "-" + itoa(-n)
	}
	digits := make([]byte, 0, 10)
	for n > 0 {
		digits = append(digits, byte('0'+n%10))
		n /= 10
	}
	// Reverse
	for i, j := 0, len(digits)-1; i < j; i, j = i+1, j-1 {
		digits[i], digits[j] = digits[j], digits[i]
	}
	return string(digits)
}
