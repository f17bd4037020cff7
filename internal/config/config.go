// Package config loads remsh configuration: defaults, then an optional YAML
// file, then REMSH_ environment overrides. Command-line flags are applied on
// top by the binaries.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/fruitsalade/remsh/internal/logging"
	"github.com/fruitsalade/remsh/internal/shell"
)

// EnvPrefix prefixes every environment override, e.g. REMSH_BACKEND_BIN or
// REMSH_SHELL_SCRATCH_DIR.
const EnvPrefix = "REMSH"

// Config holds all remsh configuration.
type Config struct {
	Backend BackendConfig  `yaml:"backend"`
	Shell   ShellConfig    `yaml:"shell"`
	Log     logging.Config `yaml:"log"`
	Metrics MetricsConfig  `yaml:"metrics"`
	Store   StoreConfig    `yaml:"store"`

	// Viewers adds to or replaces rows of the built-in viewer table.
	Viewers []shell.Viewer `yaml:"viewers" ignored:"true"`
}

// BackendConfig describes how to invoke the backend CLI.
type BackendConfig struct {
	Bin     string   `yaml:"bin"`
	Args    []string `yaml:"args"`
	Retries int      `yaml:"retries"`
}

// ShellConfig holds session settings.
type ShellConfig struct {
	Name          string `yaml:"name"`
	Editor        string `yaml:"editor"`
	Shell         string `yaml:"shell"`
	ScratchDir    string `yaml:"scratch_dir" split_words:"true"`
	HistoryFile   string `yaml:"history_file" split_words:"true"`
	CommentPrefix string `yaml:"comment_prefix" split_words:"true"`
}

// MetricsConfig controls metric export. Both outputs are off when empty.
type MetricsConfig struct {
	Listen   string `yaml:"listen"`
	Textfile string `yaml:"textfile"`
}

// StoreConfig selects the storage behind remsh-backend.
type StoreConfig struct {
	Type string   `yaml:"type"` // local or s3
	Root string   `yaml:"root"`
	S3   S3Config `yaml:"s3"`
}

// S3Config holds S3 connection settings.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key" split_words:"true"`
	SecretKey string `yaml:"secret_key" split_words:"true"`
	Region    string `yaml:"region"`
	Prefix    string `yaml:"prefix"`
}

// Default returns the built-in configuration.
func Default() *Config {
	dir := Dir()
	return &Config{
		Backend: BackendConfig{
			Bin: "remsh-backend",
		},
		Shell: ShellConfig{
			Name:          "remsh",
			HistoryFile:   filepath.Join(dir, "history"),
			CommentPrefix: "#",
		},
		Log: logging.Config{
			Level:      "error",
			Format:     "console",
			OutputPath: "stderr",
		},
		Store: StoreConfig{
			Type: "local",
			Root: filepath.Join(dir, "store"),
			S3: S3Config{
				Region: "us-east-1",
				Bucket: "remsh",
			},
		},
	}
}

// Dir returns the per-user configuration directory, ~/.remsh.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".remsh"
	}
	return filepath.Join(home, ".remsh")
}

// DefaultPath returns the config file read when none is named.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Load builds the configuration. An explicit path must exist; when path is
// empty the default file is read if present.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if err := cfg.loadFile(path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// Validate checks values that would otherwise fail later and less clearly.
func (c *Config) Validate() error {
	if c.Backend.Bin == "" {
		return errors.New("backend.bin is required")
	}
	if c.Backend.Retries < 0 {
		return fmt.Errorf("backend.retries must not be negative, got %d", c.Backend.Retries)
	}
	for i, v := range c.Viewers {
		if v.Name == "" {
			return fmt.Errorf("viewers[%d]: name is required", i)
		}
		if len(v.Command) == 0 {
			return fmt.Errorf("viewer %q: command is required", v.Name)
		}
	}
	switch c.Store.Type {
	case "local", "s3":
	default:
		return fmt.Errorf("store.type must be local or s3, got %q", c.Store.Type)
	}
	return nil
}

// ShellOptions converts the shell section into shell.Options.
func (c *Config) ShellOptions() shell.Options {
	return shell.Options{
		Name:          c.Shell.Name,
		Editor:        c.Shell.Editor,
		Shell:         c.Shell.Shell,
		ScratchDir:    c.Shell.ScratchDir,
		CommentPrefix: c.Shell.CommentPrefix,
		Viewers:       c.Viewers,
	}
}
