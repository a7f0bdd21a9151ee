// Package config loads and saves the specpilot TOML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/yubzen/specpilot/internal/prompt"
)

const (
	DefaultExecutable     = "claude"
	DefaultTimeoutMS      = 300000
	DefaultProbeTimeoutMS = 10000
)

type Config struct {
	CLI struct {
		Executable     string   `toml:"executable"`
		TimeoutMS      int      `toml:"timeout_ms"`
		ProbeTimeoutMS int      `toml:"probe_timeout_ms"`
		WorkingDir     string   `toml:"working_dir"`
		AddDirs        []string `toml:"add_dirs"`
		ScrubSecrets   bool     `toml:"scrub_secrets"`
	} `toml:"cli"`
	Context struct {
		MaxSize                    int `toml:"max_size"`
		MaxRequirementsPerCategory int `toml:"max_requirements_per_category"`
		MaxDecisions               int `toml:"max_decisions"`
		MaxSpecs                   int `toml:"max_specs"`
	} `toml:"context"`
	Log struct {
		Level       string `toml:"level"`
		Development bool   `toml:"development"`
	} `toml:"log"`
}

func GetConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "specpilot", "config.toml")
}

func Default() *Config {
	var cfg Config
	cfg.CLI.Executable = DefaultExecutable
	cfg.CLI.TimeoutMS = DefaultTimeoutMS
	cfg.CLI.ProbeTimeoutMS = DefaultProbeTimeoutMS
	cfg.CLI.WorkingDir = "."
	cfg.CLI.ScrubSecrets = true
	cfg.Context.MaxSize = prompt.DefaultMaxSize
	cfg.Context.MaxRequirementsPerCategory = prompt.DefaultMaxRequirementsPerCategory
	cfg.Context.MaxDecisions = prompt.DefaultMaxDecisions
	cfg.Context.MaxSpecs = prompt.DefaultMaxSpecs
	cfg.Log.Level = "warn"
	return &cfg
}

func Load() (*Config, error) {
	return LoadFrom(GetConfigPath())
}

// LoadFrom decodes path over the defaults. A missing file yields the defaults.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return cfg, fmt.Errorf("decode config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Save() error {
	return c.SaveTo(GetConfigPath())
}

func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create config: %w", err)
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(c)
}

func (c *Config) Timeout() time.Duration {
	return time.Duration(c.CLI.TimeoutMS) * time.Millisecond
}

func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.CLI.ProbeTimeoutMS) * time.Millisecond
}

func (c *Config) BuilderOptions() prompt.Options {
	return prompt.Options{
		MaxSize:                    c.Context.MaxSize,
		MaxRequirementsPerCategory: c.Context.MaxRequirementsPerCategory,
		MaxDecisions:               c.Context.MaxDecisions,
		MaxSpecs:                   c.Context.MaxSpecs,
	}
}
