package scanner

import (
	"fmt"
	"os"
	"time"

	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"
)

// Config is the scan configuration. It is built once at process start
// (defaults, then config file, then flags), validated, and treated as
// read-only by the walker, pipeline and detectors.
type Config struct {
	IncludeExt       []string `yaml:"include_ext"`
	IgnoreDirs       []string `yaml:"ignore_dirs"`
	IgnoreFiles      []string `yaml:"ignore_files"`
	MaxFileSize      int64    `yaml:"max_file_size"`
	MaxLineLength    int      `yaml:"max_line_length"`
	EntropyThreshold float64  `yaml:"entropy_threshold"`
	MinTokenLength   int      `yaml:"min_token_length"`
	FailOn           string   `yaml:"fail_on"`
	Threads          int      `yaml:"threads"`
	WebhookURL       string   `yaml:"webhook_url"`
	WebhookSecret    string   `yaml:"webhook_secret"`
	NoBaseline       bool     `yaml:"no_baseline"`

	// Timeout bounds the whole scan. Flag-only; not part of the file
	// format.
	Timeout time.Duration `yaml:"-"`

	failOn      Severity
	ignoreGlobs []glob.Glob
	extSet      map[string]bool
	fileSet     map[string]bool
}

// DefaultConfigFile is the per-project config file probed by the CLI.
const DefaultConfigFile = ".secaudit.yaml"

// DefaultConfig returns the built-in configuration for JS/Node.js
// projects.
func DefaultConfig() *Config {
	return &Config{
		IncludeExt:       []string{".js", ".jsx", ".ts", ".tsx", ".mjs", ".cjs", ".env"},
		IgnoreDirs:       []string{"node_modules", ".git", "dist", "build", "coverage", ".next"},
		IgnoreFiles:      []string{"package-lock.json", "yarn.lock"},
		MaxFileSize:      1 << 20, // 1 MiB
		MaxLineLength:    1000,
		EntropyThreshold: 4.0,
		MinTokenLength:   20,
		Threads:          4,
	}
}

// LoadConfig reads a YAML config file on top of the defaults. A missing
// file is not an error: the defaults are returned. Environment
// variables override the file for webhook credentials so secrets stay
// out of checked-in config.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if url := os.Getenv("SECAUDIT_WEBHOOK_URL"); url != "" {
		cfg.WebhookURL = url
	}
	if secret := os.Getenv("SECAUDIT_WEBHOOK_SECRET"); secret != "" {
		cfg.WebhookSecret = secret
	}

	return cfg, nil
}

// Validate checks the configuration and compiles the derived matchers.
// It must be called once after all overrides are applied; a structurally
// invalid configuration is fatal.
func (c *Config) Validate() error {
	if c.FailOn != "" {
		sev, err := ParseSeverity(c.FailOn)
		if err != nil {
			return fmt.Errorf("invalid fail_on: %w", err)
		}
		c.failOn = sev
	}

	if c.Threads < 1 {
		return fmt.Errorf("threads must be at least 1, got %d", c.Threads)
	}
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("max_file_size must be positive, got %d", c.MaxFileSize)
	}
	if c.EntropyThreshold <= 0 {
		return fmt.Errorf("entropy_threshold must be positive, got %v", c.EntropyThreshold)
	}
	if c.MinTokenLength < 8 {
		return fmt.Errorf("min_token_length must be at least 8, got %d", c.MinTokenLength)
	}

	c.ignoreGlobs = make([]glob.Glob, 0, len(c.IgnoreDirs))
	for _, pattern := range c.IgnoreDirs {
		g, err := glob.Compile(pattern)
		if err != nil {
			return fmt.Errorf("invalid ignore pattern %q: %w", pattern, err)
		}
		c.ignoreGlobs = append(c.ignoreGlobs, g)
	}

	c.extSet = make(map[string]bool, len(c.IncludeExt))
	for _, ext := range c.IncludeExt {
		c.extSet[ext] = true
	}
	c.fileSet = make(map[string]bool, len(c.IgnoreFiles))
	for _, name := range c.IgnoreFiles {
		c.fileSet[name] = true
	}

	return nil
}

// FailOnSeverity returns the parsed gate threshold, or "" when the run
// is informational only.
func (c *Config) FailOnSeverity() Severity { return c.failOn }

// IgnoresDir reports whether a directory name matches an ignore rule.
func (c *Config) IgnoresDir(name string) bool {
	for _, g := range c.ignoreGlobs {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// IncludesExt reports whether files with the given extension are
// scanned.
func (c *Config) IncludesExt(ext string) bool { return c.extSet[ext] }

// IgnoresFile reports whether a file name is excluded by name (lock
// files and similar).
func (c *Config) IgnoresFile(name string) bool { return c.fileSet[name] }
