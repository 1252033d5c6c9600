package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aristath/lyricflow/internal/scheduler"
)

// Load reads and merges configuration from global and project paths.
// Order of precedence (highest to lowest): project config, global config, defaults.
// Missing files are not errors; malformed files return an error.
func Load(globalPath, projectPath string) (*Config, error) {
	cfg := DefaultConfig()

	if globalPath != "" {
		if err := mergeConfigFile(cfg, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}

	// Project config has the highest precedence
	if projectPath != "" {
		if err := mergeConfigFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault loads configuration from conventional paths.
// Global: ~/.lyricflow/config.json
// Project: .lyricflow/config.json (relative to cwd)
func LoadDefault() (*Config, error) {
	globalPath, err := GlobalPath()
	if err != nil {
		return nil, err
	}
	return Load(globalPath, ProjectPath())
}

// GlobalPath returns ~/.lyricflow/config.json.
func GlobalPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(homeDir, ".lyricflow", "config.json"), nil
}

// ProjectPath returns .lyricflow/config.json relative to the working directory.
func ProjectPath() string {
	return filepath.Join(".lyricflow", "config.json")
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	if len(c.Datasets) == 0 {
		return errors.New("config: no datasets configured")
	}
	for name, dir := range c.Datasets {
		if dir == "" {
			return fmt.Errorf("config: dataset %q has no directory", name)
		}
	}
	if _, err := scheduler.ParseFailurePolicy(c.Scheduler.Policy); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Scheduler.Concurrency < 0 || c.Scheduler.MaxRounds < 0 {
		return errors.New("config: scheduler limits must not be negative")
	}
	if c.Analysis.MinCount < 0 || c.Analysis.MinLength < 0 {
		return errors.New("config: analysis thresholds must not be negative")
	}
	return nil
}

// isYAML reports whether path names a YAML file.
func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// mergeConfigFile decodes a JSON or YAML file over base. Keys present in the
// file replace the base values; dataset entries are merged by name.
// Missing files are silently skipped.
func mergeConfigFile(base *Config, path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	if isYAML(path) {
		err = yaml.Unmarshal(data, base)
	} else {
		err = json.Unmarshal(data, base)
	}
	if err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}
