package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"

	"github.com/outranker/qrimzn-bridge/internal/platform"
)

const envOverride = "QRIMZN_CONFIG"

const (
	DefaultRepo         = "outranker/qrimzn"
	DefaultVersion      = "1.0.0"
	DefaultAssetPattern = "{{.Name}}-v{{.Version}}-{{.OS}}-{{.Arch}}.{{.Ext}}"
	DefaultURLPattern   = "https://github.com/{{.Repo}}/releases/download/v{{.Version}}/{{.Asset}}"
	DefaultMaxRedirects = 5
	DefaultRetries      = 2
)

type Config struct {
	Install InstallConfig `toml:"install"`
	Child   ChildConfig   `toml:"child"`
	Log     LogConfig     `toml:"log"`
	State   StateConfig   `toml:"state"`
}

type InstallConfig struct {
	Root            string `toml:"root"`
	Repo            string `toml:"repo"`
	Version         string `toml:"version"`
	AssetPattern    string `toml:"asset_pattern"`
	URLPattern      string `toml:"url_pattern"`
	MaxRedirects    int    `toml:"max_redirects"`
	Retries         int    `toml:"retries"`
	VerifyChecksum  bool   `toml:"verify_checksum"`
	SmokeCheck      bool   `toml:"smoke_check"`
	UseAPI          bool   `toml:"use_api"`
	GitHubTokenFile string `toml:"github_token_file"`
	GitHubToken     string `toml:"-"` // resolved at load time, never serialized
}

type ChildConfig struct {
	Env     map[string]string `toml:"env"`
	EnvFile string            `toml:"env_file"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type StateConfig struct {
	Path string `toml:"path"`
}

// DefaultChildEnv is the memory and scheduler tuning passed to every child.
func DefaultChildEnv() map[string]string {
	return map[string]string{
		"GOGC":       "25",
		"GOMEMLIMIT": "200MiB",
		"GOMAXPROCS": "1",
	}
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Install: InstallConfig{
			Root:           defaultRoot(),
			Repo:           DefaultRepo,
			Version:        DefaultVersion,
			AssetPattern:   DefaultAssetPattern,
			URLPattern:     DefaultURLPattern,
			MaxRedirects:   DefaultMaxRedirects,
			Retries:        DefaultRetries,
			VerifyChecksum: true,
			SmokeCheck:     true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultPath returns the default configuration file path.
func DefaultPath() string {
	if p := os.Getenv(envOverride); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", "qrimzn.toml")
	}
	return filepath.Join(dir, "qrimzn", "qrimzn.toml")
}

func defaultRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".qrimzn"
	}
	return filepath.Join(home, ".qrimzn")
}

// Load reads configuration from the default path. A missing default file
// yields the defaults; a missing file named by QRIMZN_CONFIG is an error.
func Load() (*Config, error) {
	path := DefaultPath()
	if os.Getenv(envOverride) == "" {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			cfg := Default()
			if err := cfg.finish(); err != nil {
				return nil, err
			}
			return cfg, nil
		}
	}
	return LoadFrom(path)
}

// LoadFrom reads configuration from the given path.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// finish fills derived defaults, validates, and resolves file-backed values.
func (c *Config) finish() error {
	c.Install.Root = expandHome(c.Install.Root)
	if c.Install.Root == "" {
		c.Install.Root = defaultRoot()
	}
	if c.Install.Repo == "" {
		c.Install.Repo = DefaultRepo
	}
	if c.Install.AssetPattern == "" {
		c.Install.AssetPattern = DefaultAssetPattern
	}
	if c.Install.URLPattern == "" {
		c.Install.URLPattern = DefaultURLPattern
	}
	c.Install.Version = strings.TrimPrefix(strings.TrimSpace(c.Install.Version), "v")
	if c.State.Path == "" {
		c.State.Path = filepath.Join(c.Install.Root, "state.db")
	}
	c.State.Path = expandHome(c.State.Path)
	if c.Child.Env == nil {
		c.Child.Env = DefaultChildEnv()
	}

	// Validate
	if owner, name, ok := strings.Cut(c.Install.Repo, "/"); !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return fmt.Errorf("config: install.repo must be owner/name, got %q", c.Install.Repo)
	}
	if c.Install.MaxRedirects < 0 {
		return fmt.Errorf("config: install.max_redirects must not be negative")
	}
	if c.Install.Retries < 0 {
		return fmt.Errorf("config: install.retries must not be negative")
	}
	for field, pattern := range map[string]string{
		"install.asset_pattern": c.Install.AssetPattern,
		"install.url_pattern":   c.Install.URLPattern,
	} {
		if _, err := template.New(field).Parse(pattern); err != nil {
			return fmt.Errorf("config: %s: %w", field, err)
		}
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("config: log.format must be \"text\" or \"json\", got %q", c.Log.Format)
	}

	// Resolve GitHub token from file, falling back to the environment
	if c.Install.GitHubTokenFile != "" {
		data, err := os.ReadFile(expandHome(c.Install.GitHubTokenFile))
		if err != nil {
			return fmt.Errorf("reading github token from %s: %w", c.Install.GitHubTokenFile, err)
		}
		c.Install.GitHubToken = strings.TrimSpace(string(data))
	} else {
		c.Install.GitHubToken = os.Getenv("GITHUB_TOKEN")
	}

	// Dotenv file values sit under the [child.env] table
	if c.Child.EnvFile != "" {
		fileEnv, err := godotenv.Read(expandHome(c.Child.EnvFile))
		if err != nil {
			return fmt.Errorf("reading child env file %s: %w", c.Child.EnvFile, err)
		}
		merged := make(map[string]string, len(fileEnv)+len(c.Child.Env))
		maps.Copy(merged, fileEnv)
		maps.Copy(merged, c.Child.Env)
		c.Child.Env = merged
	}

	return nil
}

// BinDir is the directory holding the installed executable.
func (c *Config) BinDir() string {
	return filepath.Join(c.Install.Root, "bin")
}

// BinaryPath is the fixed location of the executable for goos.
func (c *Config) BinaryPath(goos string) string {
	return filepath.Join(c.BinDir(), platform.BinaryName(goos))
}

// RepoParts splits install.repo into owner and name.
func (c *Config) RepoParts() (owner, name string) {
	owner, name, _ = strings.Cut(c.Install.Repo, "/")
	return owner, name
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

// TemplateConfig returns a TOML template with the default values for first-time setup.
func TemplateConfig() string {
	return `[install]
root            = "~/.qrimzn"
repo            = "outranker/qrimzn"
version         = "1.0.0"
asset_pattern   = "{{.Name}}-v{{.Version}}-{{.OS}}-{{.Arch}}.{{.Ext}}"
url_pattern     = "https://github.com/{{.Repo}}/releases/download/v{{.Version}}/{{.Asset}}"
max_redirects   = 5
retries         = 2
verify_checksum = true
smoke_check     = true
use_api         = false
# github_token_file = "~/.config/qrimzn/github_token"

[child]
# env_file = "~/.config/qrimzn/child.env"

[child.env]
GOGC       = "25"
GOMEMLIMIT = "200MiB"
GOMAXPROCS = "1"

[log]
level  = "info"
format = "text"

[state]
# path = "~/.qrimzn/state.db"
`
}
