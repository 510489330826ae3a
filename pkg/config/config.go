// Package config handles loading and saving edumap configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/edumap/config.yaml
//   - Data:    ~/.local/share/edumap/ (snapshot cache)
//   - State:   ~/.local/state/edumap/ (exports)
//
// Environment variables (EDUMAP_BACKEND_URL, EDUMAP_WS_URL, EDUMAP_USER_ID,
// EDUMAP_THEME, EDUMAP_RECONNECT) override the file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/edumap/pkg/api"
	"github.com/vanderheijden86/edumap/pkg/layout"
	"github.com/vanderheijden86/edumap/pkg/livesync"
	"github.com/vanderheijden86/edumap/pkg/render"
)

const appName = "edumap"

// DefaultBackendURL matches the backend's development address.
const DefaultBackendURL = "http://localhost:8000"

// BackendConfig locates the HTTP API and its push endpoint.
type BackendConfig struct {
	URL     string        `yaml:"url"`
	WSURL   string        `yaml:"ws_url,omitempty"` // derived from URL when empty
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// LayoutConfig overrides force simulation parameters. Zero values keep the
// engine defaults.
type LayoutConfig struct {
	Charge             float64 `yaml:"charge,omitempty"`
	LinkDistance       float64 `yaml:"link_distance,omitempty"`
	VelocityDecay      float64 `yaml:"velocity_decay,omitempty"`
	Theta              float64 `yaml:"theta,omitempty"`
	ScaleChargeByCount bool    `yaml:"scale_charge_by_count,omitempty"`
	FitPadding         float64 `yaml:"fit_padding,omitempty"`
}

// ViewportConfig is the size of the offscreen canvas.
type ViewportConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// ExportConfig controls image export.
type ExportConfig struct {
	Scale int    `yaml:"scale,omitempty"`
	Dir   string `yaml:"dir,omitempty"`
}

// NarratorConfig selects the speech command used by tours.
type NarratorConfig struct {
	Command string   `yaml:"command,omitempty"`
	Args    []string `yaml:"args,omitempty"`
}

// CacheConfig controls the local snapshot cache.
type CacheConfig struct {
	Disabled bool   `yaml:"disabled,omitempty"`
	Path     string `yaml:"path,omitempty"`
	Keep     int    `yaml:"keep,omitempty"`
}

// Config is the top-level configuration for edumap.
type Config struct {
	Backend   BackendConfig            `yaml:"backend"`
	UserID    string                   `yaml:"user_id,omitempty"`
	Theme     string                   `yaml:"theme,omitempty"`
	Reconnect livesync.ReconnectPolicy `yaml:"reconnect,omitempty"`
	Viewport  ViewportConfig           `yaml:"viewport,omitempty"`
	Layout    LayoutConfig             `yaml:"layout,omitempty"`
	Export    ExportConfig             `yaml:"export,omitempty"`
	Narrator  NarratorConfig           `yaml:"narrator,omitempty"`
	Cache     CacheConfig              `yaml:"cache,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Backend: BackendConfig{
			URL:     DefaultBackendURL,
			Timeout: api.DefaultTimeout,
		},
		Theme:     render.Dark.Name,
		Reconnect: livesync.ReconnectPolicy{Mode: livesync.ReconnectNone},
		Viewport:  ViewportConfig{Width: 1280, Height: 800},
		Export:    ExportConfig{Scale: render.DefaultExportScale},
		Narrator:  NarratorConfig{Command: "espeak", Args: []string{"-v", "es"}},
	}
}

// ConfigDir returns the XDG config directory for edumap.
func ConfigDir() string {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

// DataDir returns the XDG data directory for edumap.
func DataDir() string {
	return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

// StateDir returns the XDG state directory for edumap.
func StateDir() string {
	return xdgDir("XDG_STATE_HOME", filepath.Join(".local", "state"))
}

func xdgDir(env, fallback string) string {
	if dir := os.Getenv(env); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, fallback, appName)
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory and applies
// environment overrides. Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		cfg := DefaultConfig()
		return cfg, cfg.ApplyEnv(os.LookupEnv)
	}
	cfg, err := LoadFrom(path)
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.ApplyEnv(os.LookupEnv)
}

// LoadFrom reads config from a specific path without environment
// overrides. Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	cfg.Export.Dir = expandHome(cfg.Export.Dir)
	cfg.Cache.Path = expandHome(cfg.Cache.Path)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables read through
// lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("EDUMAP_BACKEND_URL"); ok && v != "" {
		c.Backend.URL = v
	}
	if v, ok := lookup("EDUMAP_WS_URL"); ok && v != "" {
		c.Backend.WSURL = v
	}
	if v, ok := lookup("EDUMAP_USER_ID"); ok && v != "" {
		c.UserID = v
	}
	if v, ok := lookup("EDUMAP_THEME"); ok && v != "" {
		c.Theme = v
	}
	if v, ok := lookup("EDUMAP_RECONNECT"); ok && v != "" {
		mode, err := livesync.ParseReconnectMode(v)
		if err != nil {
			return fmt.Errorf("EDUMAP_RECONNECT: %w", err)
		}
		c.Reconnect.Mode = mode
	}
	return c.Validate()
}

// Validate checks the fields that cannot fall back to a default.
func (c Config) Validate() error {
	var errs []error
	if _, err := parseHTTPURL(c.Backend.URL); err != nil {
		errs = append(errs, fmt.Errorf("backend.url: %w", err))
	}
	if c.Backend.WSURL != "" {
		u, err := url.Parse(c.Backend.WSURL)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
			errs = append(errs, fmt.Errorf("backend.ws_url: %q is not a ws:// or wss:// URL", c.Backend.WSURL))
		}
	}
	if _, err := livesync.ParseReconnectMode(string(c.Reconnect.Mode)); err != nil {
		errs = append(errs, fmt.Errorf("reconnect.mode: %w", err))
	}
	if c.Theme != "" {
		if _, ok := render.ThemeByName(c.Theme); !ok {
			errs = append(errs, fmt.Errorf("theme: unknown theme %q", c.Theme))
		}
	}
	return errors.Join(errs...)
}

func parseHTTPURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%q is not an http(s) URL", raw)
	}
	return u, nil
}

// WebsocketBase returns the push base URL: ws_url when set, otherwise the
// backend URL with http mapped to ws and https to wss.
func (c Config) WebsocketBase() string {
	if c.Backend.WSURL != "" {
		return c.Backend.WSURL
	}
	u, err := parseHTTPURL(c.Backend.URL)
	if err != nil {
		return ""
	}
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	return strings.TrimRight(u.String(), "/")
}

// LayoutOptions converts the layout overrides to engine options.
func (c Config) LayoutOptions() layout.Options {
	return layout.Options{
		Charge:             c.Layout.Charge,
		LinkDistance:       c.Layout.LinkDistance,
		VelocityDecay:      c.Layout.VelocityDecay,
		Theta:              c.Layout.Theta,
		ScaleChargeByCount: c.Layout.ScaleChargeByCount,
		FitPadding:         c.Layout.FitPadding,
	}
}

// ResolvedTheme returns the configured theme, dark when unknown.
func (c Config) ResolvedTheme() render.Theme {
	t, _ := render.ThemeByName(c.Theme)
	return t
}

// CachePath returns the snapshot cache location, or "" when the cache is
// disabled.
func (c Config) CachePath() string {
	if c.Cache.Disabled {
		return ""
	}
	if c.Cache.Path != "" {
		return c.Cache.Path
	}
	dir := DataDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "snapshots.db")
}

// ExportDir returns where exported files are written.
func (c Config) ExportDir() string {
	if c.Export.Dir != "" {
		return c.Export.Dir
	}
	return "."
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
