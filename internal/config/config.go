// Package config handles configuration loading from YAML files and environment variables.
// Configuration precedence: CLI flags > environment variables > config file > defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all autostart configuration.
type Config struct {
	App     AppConfig     `yaml:"app"`
	Desktop DesktopConfig `yaml:"desktop"`
	Sandbox SandboxConfig `yaml:"sandbox"`
	Logging LoggingConfig `yaml:"logging"`
}

// AppConfig describes the application being registered.
type AppConfig struct {
	ID            string `yaml:"id"`             // reverse-domain identifier, e.g. com.borgbase.Vorta
	Command       string `yaml:"command"`        // generic launch command found in the template
	DaemonizeFlag string `yaml:"daemonize_flag"` // appended to every generated command line
	BundlePath    string `yaml:"bundle_path"`    // empty means resolve from the running executable
}

// DesktopConfig holds XDG desktop-entry settings.
type DesktopConfig struct {
	TemplatePath string `yaml:"template_path"` // empty means use the embedded template
	FileName     string `yaml:"file_name"`
}

// SandboxConfig holds sandbox detection settings.
type SandboxConfig struct {
	MarkerPath string `yaml:"marker_path"`
	Runner     string `yaml:"runner"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			ID:            "com.borgbase.Vorta",
			Command:       "vorta",
			DaemonizeFlag: "--daemonize",
		},
		Desktop: DesktopConfig{
			FileName: "vorta.desktop",
		},
		Sandbox: SandboxConfig{
			MarkerPath: "/.flatpak-info",
			Runner:     "flatpak",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromBytes parses YAML configuration from a byte slice and merges with defaults.
// Environment variables take highest precedence and override values from the byte slice.
func LoadFromBytes(data []byte) (*Config, error) {
	cfg := DefaultConfig()

	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config data: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// Load reads configuration from a YAML file and merges with defaults.
// If path is empty or the file does not exist, only defaults and environment
// variables are used.
func Load(path string) (*Config, error) {
	if path == "" {
		return LoadFromBytes(nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		return LoadFromBytes(nil)
	}

	return LoadFromBytes(data)
}

// CLIOverrides holds values from command-line flags.
// Empty strings are treated as "not set" and skipped.
type CLIOverrides struct {
	LogLevel string
	Template string
}

// Locate searches standard config file paths and returns the first one found.
// Returns empty string if no config file exists.
func Locate() string {
	for _, p := range configSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// LoadLayered loads configuration with the full precedence chain:
// CLI flags > env vars > YAML file > defaults.
//
// An optional configPath argument controls file discovery:
//   - omitted        → auto-discover via Locate()
//   - explicit value → use that path ("" means no file)
func LoadLayered(cli CLIOverrides, configPath ...string) (*Config, error) {
	var filePath string
	if len(configPath) > 0 {
		filePath = configPath[0]
	} else {
		filePath = Locate()
	}

	cfg, err := Load(filePath)
	if err != nil {
		return nil, err
	}

	if cli.LogLevel != "" {
		cfg.Logging.Level = cli.LogLevel
	}
	if cli.Template != "" {
		cfg.Desktop.TemplatePath = cli.Template
	}

	return cfg, nil
}

// WriteConfig serializes the config to a YAML file at the given path.
// Creates parent directories if needed.
func WriteConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func applyEnvOverrides(cfg *Config) {
	if level := os.Getenv("VORTA_AUTOSTART_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if tmpl := os.Getenv("VORTA_AUTOSTART_TEMPLATE"); tmpl != "" {
		cfg.Desktop.TemplatePath = tmpl
	}
	if bundle := os.Getenv("VORTA_AUTOSTART_BUNDLE"); bundle != "" {
		cfg.App.BundlePath = bundle
	}
}

// Validate checks that the configuration can produce a usable registration.
func (c *Config) Validate() error {
	if c.App.ID == "" {
		return fmt.Errorf("app id is required")
	}
	if c.App.Command == "" {
		return fmt.Errorf("app command is required")
	}
	if strings.ContainsAny(c.App.Command, "\r\n") {
		return fmt.Errorf("app command must be a single line")
	}
	name := c.Desktop.FileName
	if name == "" || filepath.Base(name) != name || !strings.HasSuffix(name, ".desktop") {
		return fmt.Errorf("desktop file name must be a bare *.desktop name (got: %q)", name)
	}
	if c.Sandbox.MarkerPath != "" && !filepath.IsAbs(c.Sandbox.MarkerPath) {
		return fmt.Errorf("sandbox marker path must be absolute (got: %s)", c.Sandbox.MarkerPath)
	}
	return nil
}
