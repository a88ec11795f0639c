package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/subosito/gotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables read by FromEnv.
const (
	EnvListen        = "PROMPTSCAN_LISTEN"
	EnvLogLevel      = "PROMPTSCAN_LOG_LEVEL"
	EnvClassifierURL = "PROMPTSCAN_CLASSIFIER_URL"
	EnvMaxPrompt     = "PROMPTSCAN_MAX_PROMPT_BYTES"
	EnvSSLCertFile   = "SSL_CERTFILE"
	EnvSSLKeyFile    = "SSL_KEYFILE"
)

// ErrNotFound is returned by LoadLocal and LoadGlobal when no config file
// exists.
var ErrNotFound = errors.New("config not found")

// FileConfig is the on-disk YAML configuration shape for promptscan. Nil
// fields are unset and fall through to the next layer.
type FileConfig struct {
	// Service
	Listen         *string   `yaml:"listen,omitempty"`
	TLSCertFile    *string   `yaml:"tls_cert_file,omitempty"`
	TLSKeyFile     *string   `yaml:"tls_key_file,omitempty"`
	CORSOrigins    *[]string `yaml:"cors_origins,omitempty"`
	MaxPromptBytes *int      `yaml:"max_prompt_bytes,omitempty"`
	LogLevel       *string   `yaml:"log_level,omitempty"`
	LogJSON        *bool     `yaml:"log_json,omitempty"`

	// Detector
	MatchTimeout *string `yaml:"match_timeout,omitempty"`

	// Classifier
	ClassifierURL           *string  `yaml:"classifier_url,omitempty"`
	ClassifierTimeout       *string  `yaml:"classifier_timeout,omitempty"`
	ClassifierMinConfidence *float64 `yaml:"classifier_min_confidence,omitempty"`

	// File scanning
	Include         *string `yaml:"include,omitempty"`
	Exclude         *string `yaml:"exclude,omitempty"`
	MaxBytes        *int64  `yaml:"max_bytes,omitempty"`
	Threads         *int    `yaml:"threads,omitempty"`
	NoColor         *bool   `yaml:"no_color,omitempty"`
	DefaultExcludes *bool   `yaml:"default_excludes,omitempty"`
}

// LoadFile reads a YAML config file from the provided path.
func LoadFile(path string) (FileConfig, error) {
	var cfg FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LocalNames are the repo-local config file names, in search order.
var LocalNames = []string{".promptscan.yml", ".promptscan.yaml", "promptscan.yml", "promptscan.yaml"}

// LoadLocal searches for a local config file in the given root.
func LoadLocal(root string) (FileConfig, error) {
	var cfg FileConfig
	for _, name := range LocalNames {
		p := filepath.Join(root, name)
		if _, err := os.Stat(p); err == nil {
			return LoadFile(p)
		}
	}
	return cfg, fmt.Errorf("%w: no local config in %s", ErrNotFound, root)
}

// LoadGlobal loads the global config file from XDG base directory or ~/.config.
func LoadGlobal() (FileConfig, error) {
	var cfg FileConfig
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, _ := os.UserHomeDir()
		if home != "" {
			base = filepath.Join(home, ".config")
		}
	}
	if base == "" {
		return cfg, fmt.Errorf("%w: no config dir", ErrNotFound)
	}
	p := filepath.Join(base, "promptscan", "config.yml")
	if _, err := os.Stat(p); err == nil {
		return LoadFile(p)
	}
	return cfg, fmt.Errorf("%w: no global config", ErrNotFound)
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
// Variables that are already set win. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := gotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// FromEnv builds a config layer from environment variables.
func FromEnv() (FileConfig, error) {
	var cfg FileConfig
	if v := os.Getenv(EnvListen); v != "" {
		cfg.Listen = &v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = &v
	}
	if v := os.Getenv(EnvClassifierURL); v != "" {
		cfg.ClassifierURL = &v
	}
	if v := os.Getenv(EnvSSLCertFile); v != "" {
		cfg.TLSCertFile = &v
	}
	if v := os.Getenv(EnvSSLKeyFile); v != "" {
		cfg.TLSKeyFile = &v
	}
	if v := os.Getenv(EnvMaxPrompt); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return cfg, fmt.Errorf("%s: %w", EnvMaxPrompt, err)
		}
		cfg.MaxPromptBytes = &n
	}
	return cfg, nil
}

// Duration parses an optional duration field. Nil or empty yields zero.
func Duration(s *string) (time.Duration, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(*s))
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", *s, err)
	}
	return d, nil
}

// Write serialises cfg as YAML to path.
func Write(path string, cfg FileConfig) error {
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
