// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/bankchat/internal/logger"
	"github.com/jeranaias/bankchat/internal/ragapi"
	"github.com/jeranaias/bankchat/internal/session"
	"github.com/jeranaias/bankchat/internal/util"
)

// CurrentVersion is written to new config files.
const CurrentVersion = "1"

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete bankchat configuration.
type Config struct {
	Version string `toml:"version" json:"version" yaml:"version"`

	Server  ServerConfig  `toml:"server" json:"server" yaml:"server"`
	UI      UIConfig      `toml:"ui" json:"ui" yaml:"ui"`
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`
}

// ServerConfig describes how to reach the answering service.
type ServerConfig struct {
	// Endpoint is the full URL questions are posted to.
	Endpoint string `toml:"endpoint" json:"endpoint" yaml:"endpoint" env:"BANKCHAT_ENDPOINT"`
	// Framing is auto, prefix or ndjson.
	Framing string `toml:"framing" json:"framing" yaml:"framing" env:"BANKCHAT_FRAMING"`
	// ConnectTimeout is a Go duration string bounding dial and response headers.
	ConnectTimeout string `toml:"connect_timeout" json:"connect_timeout" yaml:"connect_timeout" env:"BANKCHAT_CONNECT_TIMEOUT"`
}

// UIConfig contains presentation settings.
type UIConfig struct {
	// Theme is "auto", "dark" or "light".
	Theme string `toml:"theme" json:"theme" yaml:"theme" env:"BANKCHAT_THEME"`
	// Greeting opens every session. Empty disables it.
	Greeting string `toml:"greeting" json:"greeting" yaml:"greeting" env:"BANKCHAT_GREETING"`
	// Markdown renders finished answers as markdown.
	Markdown bool `toml:"markdown" json:"markdown" yaml:"markdown" env:"BANKCHAT_MARKDOWN"`
}

// LoggingConfig controls zap output.
type LoggingConfig struct {
	Level string `toml:"level" json:"level" yaml:"level" env:"BANKCHAT_LOG_LEVEL"`
	// File receives logs. Empty logs to stderr.
	File string `toml:"file" json:"file" yaml:"file" env:"BANKCHAT_LOG_FILE"`
}

// Default returns the built-in configuration.
func Default() *Config {
	logFile := ""
	if dir, err := ConfigDir(); err == nil {
		logFile = filepath.Join(dir, "bankchat.log")
	}

	return &Config{
		Version: CurrentVersion,
		Server: ServerConfig{
			Endpoint:       ragapi.DefaultEndpoint,
			Framing:        string(ragapi.FramingAuto),
			ConnectTimeout: ragapi.DefaultConnectTimeout.String(),
		},
		UI: UIConfig{
			Theme:    "auto",
			Greeting: session.DefaultGreeting,
			Markdown: true,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  logFile,
		},
	}
}

// ConnectTimeoutDuration parses Server.ConnectTimeout, falling back to
// ragapi.DefaultConnectTimeout.
func (c *Config) ConnectTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Server.ConnectTimeout)
	if err != nil || d <= 0 {
		return ragapi.DefaultConnectTimeout
	}
	return d
}

// FramingMode parses Server.Framing, falling back to auto.
func (c *Config) FramingMode() ragapi.Framing {
	f, err := ragapi.ParseFraming(c.Server.Framing)
	if err != nil {
		return ragapi.FramingAuto
	}
	return f
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the bankchat configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".bankchat"), nil
}

// EnsureConfigDir creates the config directory with owner-only permissions.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// DefaultPath returns the config file Load would read, preferring TOML.
// The returned file may not exist.
func DefaultPath() (string, error) {
	tomlPath, err := ConfigPathTOML()
	if err != nil {
		return "", err
	}
	if _, statErr := os.Stat(tomlPath); statErr == nil {
		return tomlPath, nil
	}
	jsonPath, err := ConfigPathJSON()
	if err != nil {
		return "", err
	}
	if _, statErr := os.Stat(jsonPath); statErr == nil {
		return jsonPath, nil
	}
	return tomlPath, nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the default config file if one exists.
// Tries TOML first, then JSON, and falls back to defaults. Environment
// overrides are applied last.
func Load() (*Config, error) {
	path, err := DefaultPath()
	if err != nil {
		return finish(Default())
	}
	if _, statErr := os.Stat(path); statErr != nil {
		return finish(Default())
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific file. The format follows
// the extension: .json, .yaml/.yml, anything else is TOML.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = LoadJSON(cfg, path)
	case ".yaml", ".yml":
		err = LoadYAML(cfg, path)
	default:
		err = LoadTOML(cfg, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	return finish(cfg)
}

// finish applies environment overrides, defaults and validation.
func finish(cfg *Config) (*Config, error) {
	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, fmt.Errorf("invalid environment override: %w", err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg. Keys missing from the file keep
// their current values.
func LoadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// LoadYAML decodes a YAML file over cfg.
func LoadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read YAML file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode YAML file: %w", err)
	}
	return nil
}

// LoadDotEnv reads KEY=value pairs from path into the process environment
// without replacing variables that are already set. A missing file is not an
// error.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to read %s: %w", path, err)
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// SaveTOML writes the configuration to a TOML file with owner-only
// permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "# bankchat configuration file")
	fmt.Fprintln(&buf, "# Environment variables BANKCHAT_* override these values.")
	fmt.Fprintln(&buf, "")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Marshal encodes cfg as toml, json or yaml.
func Marshal(cfg *Config, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "", "toml":
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case "yaml", "yml":
		return yaml.Marshal(cfg)
	default:
		return nil, fmt.Errorf("unknown format %q (want toml, json or yaml)", format)
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration and returns every problem found.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if u, err := url.Parse(c.Server.Endpoint); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, ValidationError{
			Field:   "server.endpoint",
			Message: fmt.Sprintf("invalid URL '%s', must be an absolute http or https URL", c.Server.Endpoint),
		})
	}

	if _, err := ragapi.ParseFraming(c.Server.Framing); err != nil {
		errs = append(errs, ValidationError{Field: "server.framing", Message: err.Error()})
	}

	if d, err := time.ParseDuration(c.Server.ConnectTimeout); err != nil || d <= 0 {
		errs = append(errs, ValidationError{
			Field:   "server.connect_timeout",
			Message: fmt.Sprintf("invalid duration '%s', must be positive like \"10s\"", c.Server.ConnectTimeout),
		})
	}

	validThemes := map[string]bool{"auto": true, "dark": true, "light": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: auto, dark, light", c.UI.Theme),
		})
	}

	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, ValidationError{Field: "logging.level", Message: err.Error()})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills empty fields that must not be empty.
// Greeting and log file may legitimately be empty and are left alone.
func (c *Config) SetDefaults() {
	d := Default()
	if c.Version == "" {
		c.Version = d.Version
	}
	if c.Server.Endpoint == "" {
		c.Server.Endpoint = d.Server.Endpoint
	}
	if c.Server.Framing == "" {
		c.Server.Framing = d.Server.Framing
	}
	if c.Server.ConnectTimeout == "" {
		c.Server.ConnectTimeout = d.Server.ConnectTimeout
	}
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies BANKCHAT_* environment variables:
//
//   - BANKCHAT_ENDPOINT: overrides server.endpoint
//   - BANKCHAT_FRAMING: overrides server.framing
//   - BANKCHAT_CONNECT_TIMEOUT: overrides server.connect_timeout
//   - BANKCHAT_THEME, BANKCHAT_GREETING, BANKCHAT_MARKDOWN: override ui.*
//   - BANKCHAT_LOG_LEVEL, BANKCHAT_LOG_FILE: override logging.*
func (c *Config) ApplyEnvOverrides() error {
	return env.Parse(c)
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
