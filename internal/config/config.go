// Package config loads the optional pkgx-mcp YAML configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values used when a field is left unset.
const (
	DefaultDownloadURL = "https://pkgx.sh"
	DefaultScriptsURL  = "https://pkgxdev.github.io/mash/index.json"
	DefaultHomeName    = "pkgx-mcp"
)

// EnvPath names the environment variable that overrides the config location.
const EnvPath = "PKGX_MCP_CONFIG"

// Config holds the parsed configuration.
// All fields are optional; zero values represent defaults.
type Config struct {
	Version        int           `yaml:"version"`
	RawHome        string        `yaml:"home"`            // isolated HOME for spawned programs
	Pkgx           string        `yaml:"pkgx"`            // explicit pkgx executable, skips probe and download
	ReuseInstalled *bool         `yaml:"reuse_installed"` // reuse a pkgx found on PATH (default true)
	RawDownloadURL string        `yaml:"download_url"`
	RawScriptsURL  string        `yaml:"scripts_url"`
	RawTimeout     string        `yaml:"timeout"`    // e.g. "5m"; empty means no timeout
	RawMaxOutput   int           `yaml:"max_output"` // bytes per stream; 0 means unlimited
	Sandbox        SandboxConfig `yaml:"sandbox"`
}

// SandboxConfig controls the filesystem policy applied on capable platforms.
type SandboxConfig struct {
	Enabled   *bool    `yaml:"enabled"`   // default true
	Writable  []string `yaml:"writable"`  // extra write-allowed path prefixes
	Protected []string `yaml:"protected"` // extra read-denied directories, relative to the real HOME
}

// Home returns the isolated home directory path.
func (c *Config) Home() string {
	if c.RawHome != "" {
		return c.RawHome
	}
	return filepath.Join(os.TempDir(), DefaultHomeName)
}

// Reuse reports whether a pkgx already on PATH should be used instead of
// downloading one.
func (c *Config) Reuse() bool {
	if c.ReuseInstalled != nil {
		return *c.ReuseInstalled
	}
	return true
}

// DownloadURL returns the base URL pkgx release binaries are fetched from.
func (c *Config) DownloadURL() string {
	if c.RawDownloadURL != "" {
		return c.RawDownloadURL
	}
	return DefaultDownloadURL
}

// ScriptsURL returns the location of the mash script index.
func (c *Config) ScriptsURL() string {
	if c.RawScriptsURL != "" {
		return c.RawScriptsURL
	}
	return DefaultScriptsURL
}

// Timeout returns the configured run timeout. Zero means runs are never
// interrupted.
func (c *Config) Timeout() time.Duration {
	if c.RawTimeout != "" {
		d, err := time.ParseDuration(c.RawTimeout)
		if err == nil && d > 0 {
			return d
		}
	}
	return 0
}

// MaxOutputBytes returns the per-stream output cap, or 0 for unlimited.
func (c *Config) MaxOutputBytes() int {
	if c.RawMaxOutput > 0 {
		return c.RawMaxOutput
	}
	return 0
}

// SandboxEnabled reports whether the filesystem policy should be applied
// where the platform supports one.
func (c *Config) SandboxEnabled() bool {
	if c.Sandbox.Enabled != nil {
		return *c.Sandbox.Enabled
	}
	return true
}

// LoadResult holds the parsed config and where it came from.
type LoadResult struct {
	Config *Config
	Path   string // file that was read; empty when defaults were used
}

// Load reads the configuration file at path. When path is empty the
// location comes from $PKGX_MCP_CONFIG, then <UserConfigDir>/pkgx-mcp/config.yaml.
// A missing file is not an error: a default Config is returned.
func Load(path string) (*LoadResult, error) {
	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvPath)
		explicit = path != ""
	}
	if !explicit {
		dir, err := os.UserConfigDir()
		if err != nil {
			return &LoadResult{Config: &Config{}}, nil
		}
		path = filepath.Join(dir, DefaultHomeName, "config.yaml")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return &LoadResult{Config: &Config{}}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &LoadResult{Config: cfg, Path: path}, nil
}
