package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileName is the project configuration file name.
const FileName = "bitpack_gen.json"

// Config is the top-level configuration for bitpack-gen
type Config struct {
	// Modes is the mode registry file (.json, .yaml, .yml or .hcl).
	// Empty selects the embedded registry.
	Modes string `json:"modes,omitempty"`

	// TemplateDir holds the template sources. Empty selects the embedded templates.
	TemplateDir string `json:"templateDir,omitempty"`

	// Templates is the ordered list of template names to expand
	Templates []string `json:"templates,omitempty"`

	// OutputDir receives one generated file per template
	OutputDir string `json:"outputDir,omitempty"`

	// Log contains logging options
	Log LogConfig `json:"log,omitempty"`
}

// LogConfig controls diagnostic output
type LogConfig struct {
	// Level is one of "debug", "info", "warn", "error"
	Level string `json:"level,omitempty"`

	// Format is "text" or "json"
	Format string `json:"format,omitempty"`
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		OutputDir: "bitpack_out",
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load finds and loads the configuration file
// Search order:
//  1. ./bitpack_gen.json (current working directory)
//  2. ./.bitpack_gen.json (current working directory)
//  3. <rootPath>/bitpack_gen.json (if different from cwd)
//  4. ~/.config/bitpack_gen/config.json
//
// Returns DefaultConfig if no config file is found
func Load(rootPath string) (*Config, error) {
	cwd, _ := os.Getwd()

	searchPaths := []string{
		filepath.Join(cwd, FileName),
		filepath.Join(cwd, "."+FileName),
	}

	if info, err := os.Stat(rootPath); err == nil && info.IsDir() {
		absRoot, _ := filepath.Abs(rootPath)
		if absRoot != cwd {
			searchPaths = append(searchPaths,
				filepath.Join(rootPath, FileName),
				filepath.Join(rootPath, "."+FileName),
			)
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(home, ".config", "bitpack_gen", "config.json"))
	}

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}

	return DefaultConfig(), nil
}

// LoadFile loads configuration from a specific file. Relative registry and
// template paths are resolved against the file's directory.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.resolvePaths(filepath.Dir(path))
	cfg.applyDefaults()

	return &cfg, nil
}

func (c *Config) resolvePaths(base string) {
	if c.Modes != "" && !filepath.IsAbs(c.Modes) {
		c.Modes = filepath.Join(base, c.Modes)
	}
	if c.TemplateDir != "" && !filepath.IsAbs(c.TemplateDir) {
		c.TemplateDir = filepath.Join(base, c.TemplateDir)
	}
}

// applyDefaults fills in missing configuration with defaults
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.OutputDir == "" {
		c.OutputDir = def.OutputDir
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
}

// Validate rejects option values the generator cannot honor
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q: must be 'debug', 'info', 'warn', or 'error'", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q: must be 'text' or 'json'", c.Log.Format)
	}
	for _, name := range c.Templates {
		if name == "" || filepath.Base(name) != name {
			return fmt.Errorf("invalid template name %q: must be a plain file name", name)
		}
	}
	return nil
}

// Save writes the configuration to a file
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
