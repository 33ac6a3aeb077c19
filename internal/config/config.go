package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/redactyl/piiscan/internal/patterns"
)

// FileConfig is the on-disk YAML configuration shape for piiscan.
type FileConfig struct {
	Extensions      []string          `yaml:"extensions"`
	Patterns        patterns.Pairs    `yaml:"patterns"`
	Include         *string           `yaml:"include"`
	Exclude         *string           `yaml:"exclude"`
	MaxBytes        *int64            `yaml:"max_bytes"`
	DefaultExcludes *bool             `yaml:"default_excludes"`
	Workers         *int              `yaml:"workers"`
	Timeout         *string           `yaml:"timeout"`
	NoColor         *bool             `yaml:"no_color"`
	Languages       map[string]string `yaml:"languages"`
	LexerFallback   *bool             `yaml:"lexer_fallback"`
	Addr            *string           `yaml:"addr"`

	GitHub *GitHubConfig `yaml:"github"`
}

// GitHubConfig holds remote repository access settings.
type GitHubConfig struct {
	// APIURL points at a GitHub Enterprise API root. Empty means github.com.
	APIURL *string `yaml:"api_url"`

	// Token authenticates API calls. GITHUB_TOKEN takes over when unset.
	Token *string `yaml:"token"`

	// Budget caps API calls per scan.
	Budget *int `yaml:"budget"`
}

// LocalNames are the repo-local config file names, in lookup order.
var LocalNames = []string{".piiscan.yml", ".piiscan.yaml", "piiscan.yml", "piiscan.yaml"}

// LoadFile reads a YAML config file from the provided path.
func LoadFile(path string) (FileConfig, error) {
	var cfg FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// LoadLocal searches for a config file in the given root.
func LoadLocal(root string) (FileConfig, error) {
	var cfg FileConfig
	for _, name := range LocalNames {
		p := filepath.Join(root, name)
		if _, err := os.Stat(p); err == nil {
			return LoadFile(p)
		}
	}
	return cfg, errors.New("no local config")
}

// GlobalDir returns $XDG_CONFIG_HOME/piiscan, falling back to ~/.config.
// Empty when no home directory can be determined.
func GlobalDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, _ := os.UserHomeDir()
		if home == "" {
			return ""
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "piiscan")
}

// GlobalPath is the global config file location.
func GlobalPath() string {
	dir := GlobalDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yml")
}

// LoadGlobal loads the global config file.
func LoadGlobal() (FileConfig, error) {
	var cfg FileConfig
	p := GlobalPath()
	if p == "" {
		return cfg, errors.New("no config dir")
	}
	if _, err := os.Stat(p); err == nil {
		return LoadFile(p)
	}
	return cfg, errors.New("no global config")
}

// TimeoutDuration parses Timeout. Unset or invalid values yield 0.
func (fc FileConfig) TimeoutDuration() time.Duration {
	if fc.Timeout == nil {
		return 0
	}
	d, err := time.ParseDuration(*fc.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// GetGitHub returns the GitHub section, never nil.
func (fc FileConfig) GetGitHub() GitHubConfig {
	if fc.GitHub == nil {
		return GitHubConfig{}
	}
	return *fc.GitHub
}

// GetToken returns the configured token, or GITHUB_TOKEN from the
// environment.
func (gc GitHubConfig) GetToken() string {
	if gc.Token != nil && *gc.Token != "" {
		return *gc.Token
	}
	return os.Getenv("GITHUB_TOKEN")
}

// GetAPIURL returns the API root or empty string for github.com.
func (gc GitHubConfig) GetAPIURL() string {
	if gc.APIURL == nil {
		return ""
	}
	return *gc.APIURL
}

// GetBudget returns the per-scan call budget, 0 when unset.
func (gc GitHubConfig) GetBudget() int {
	if gc.Budget == nil {
		return 0
	}
	return *gc.Budget
}

// Template is written by `piiscan config init`.
const Template = `# piiscan configuration
# extensions limit which files are scanned; empty means every file
extensions: [".js", ".ts", ".py", ".go"]

# category: regular expression (RE2). Order is kept in reports.
patterns:
  email: '\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b'
  ssn: '\b\d{3}-\d{2}-\d{4}\b'

# include: "**/*.go,**/*.py"
# exclude: "**/testdata/**"
max_bytes: 1048576
default_excludes: true
# workers: 8
timeout: 2m

# languages:
#   .vue: Vue
# lexer_fallback: true

# addr: ":3000"

github:
  # api_url: https://github.example.com/api/v3/
  # token: read from GITHUB_TOKEN when unset
  budget: 1000
`
