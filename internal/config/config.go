// Package config holds all evidencer configuration.
// Configuration is loaded from a YAML file with environment-variable
// overrides for the settings operators most commonly change per machine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all evidencer configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Browser session configuration
	Browser BrowserConfig `yaml:"browser"`

	// SSO / console authentication configuration
	SSO SSOConfig `yaml:"sso"`

	// Per-target-class navigation timeout budgets
	Timeouts TimeoutConfig `yaml:"timeouts"`

	// Evidence output and ledger
	Evidence EvidenceConfig `yaml:"evidence"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// BrowserConfig configures the owned browser session.
type BrowserConfig struct {
	Headless            bool   `yaml:"headless"`
	Bin                 string `yaml:"bin"`
	ProfileDir          string `yaml:"profile_dir"`
	ViewportWidth       int    `yaml:"viewport_width"`
	ViewportHeight      int    `yaml:"viewport_height"`
	NavigationTimeoutMs int    `yaml:"navigation_timeout_ms"`
}

// SSOConfig configures the identity-provider endpoints and the target
// account context. Defaults match AWS IAM Identity Center; other IdPs
// are configured by overriding the domains.
type SSOConfig struct {
	StartURL      string `yaml:"start_url"`
	MFADomain     string `yaml:"mfa_domain"`
	SAMLHost      string `yaml:"saml_host"`
	ConsoleDomain string `yaml:"console_domain"`
	Account       string `yaml:"account"`
	Role          string `yaml:"role"`
	MFAWait       string `yaml:"mfa_wait"` // duration string, default "5m"
}

// EvidenceConfig configures where captures land and the ledger database.
type EvidenceConfig struct {
	Dir          string `yaml:"dir"`
	DatabasePath string `yaml:"database_path"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Name:    "evidencer",
		Version: "0.3.0",
		Browser: BrowserConfig{
			Headless:            false,
			ProfileDir:          ".evidencer/profile",
			ViewportWidth:       1920,
			ViewportHeight:      1080,
			NavigationTimeoutMs: 30000,
		},
		SSO: SSOConfig{
			MFADomain:     "awsapps.com",
			SAMLHost:      "signin.aws.amazon.com",
			ConsoleDomain: "console.aws.amazon.com",
			MFAWait:       "5m",
		},
		Timeouts: DefaultTimeoutConfig(),
		Evidence: EvidenceConfig{
			Dir:          ".evidencer/evidence",
			DatabasePath: ".evidencer/evidence/ledger.db",
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads configuration from the given path, falling back to defaults
// for anything unset, then applies environment overrides. A missing file
// is not an error; the defaults plus environment are used.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, cfg.Validate()
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	return cfg, cfg.Validate()
}

// Save writes the configuration to the given path.
func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// applyEnvOverrides maps EVIDENCER_* environment variables onto the
// config. Only settings that vary per machine or per run are exposed.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("EVIDENCER_SSO_START_URL"); v != "" {
		c.SSO.StartURL = v
	}
	if v := os.Getenv("EVIDENCER_ACCOUNT"); v != "" {
		c.SSO.Account = v
	}
	if v := os.Getenv("EVIDENCER_ROLE"); v != "" {
		c.SSO.Role = v
	}
	if v := os.Getenv("EVIDENCER_PROFILE_DIR"); v != "" {
		c.Browser.ProfileDir = v
	}
	if v := os.Getenv("EVIDENCER_HEADLESS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Browser.Headless = b
		}
	}
	if v := os.Getenv("EVIDENCER_EVIDENCE_DIR"); v != "" {
		c.Evidence.Dir = v
	}
	if v := os.Getenv("EVIDENCER_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks the configuration for inconsistencies.
func (c Config) Validate() error {
	if c.Browser.ViewportWidth < 0 || c.Browser.ViewportHeight < 0 {
		return fmt.Errorf("viewport dimensions must be non-negative")
	}
	if c.Browser.NavigationTimeoutMs < 0 {
		return fmt.Errorf("navigation_timeout_ms must be non-negative")
	}
	if _, err := c.MFAWait(); err != nil {
		return fmt.Errorf("invalid sso.mfa_wait: %w", err)
	}
	return c.Timeouts.Validate()
}

// MFAWait returns the MFA approval wait budget.
func (c Config) MFAWait() (time.Duration, error) {
	if c.SSO.MFAWait == "" {
		return 5 * time.Minute, nil
	}
	return time.ParseDuration(c.SSO.MFAWait)
}

// NavigationTimeout returns the document-load timeout.
func (c BrowserConfig) NavigationTimeout() time.Duration {
	if c.NavigationTimeoutMs == 0 {
		return 30 * time.Second
	}
	return time.Duration(c.NavigationTimeoutMs) * time.Millisecond
}
