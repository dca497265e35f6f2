// Package config loads langcore configuration.
//
// Values are layered: built-in defaults, then the YAML file, then
// environment variables, then command-line flags (applied by the caller).
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dshills/langcore/internal/analysis"
	"github.com/dshills/langcore/internal/provider"
)

// Environment variables overriding file values
const (
	EnvDBPath   = "LANGCORE_DB_PATH"
	EnvLogLevel = "LANGCORE_LOG_LEVEL"
)

// Config is the full server configuration
type Config struct {
	DBPath         string                       `yaml:"db_path"`
	Log            LogConfig                    `yaml:"log"`
	Bridge         BridgeConfig                 `yaml:"bridge"`
	RequestTimeout time.Duration                `yaml:"request_timeout"`
	Cache          CacheConfig                  `yaml:"cache"`
	Analysis       AnalysisConfig               `yaml:"analysis"`
	Watch          bool                         `yaml:"watch"`
	MetricsAddr    string                       `yaml:"metrics_addr"`
	Diagnostics    map[string]DiagnosticsConfig `yaml:"diagnostics"`
}

// LogConfig selects the log level and sink. An empty File logs to stderr.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// BridgeConfig sizes the blocking execution context
type BridgeConfig struct {
	Workers int `yaml:"workers"`
}

// CacheConfig sizes the derived-data caches
type CacheConfig struct {
	RegistrySize int `yaml:"registry_size"`
	ParseSize    int `yaml:"parse_size"`
}

// AnalysisConfig configures the type checker
type AnalysisConfig struct {
	Importer string `yaml:"importer"`
}

// DiagnosticsConfig overrides the external checker for one language
type DiagnosticsConfig struct {
	Command []string `yaml:"command"`
	Pattern string   `yaml:"pattern"`
	Source  string   `yaml:"source"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		DBPath:         "~/.langcore/langcore.db",
		Log:            LogConfig{Level: "info"},
		Bridge:         BridgeConfig{Workers: 1},
		RequestTimeout: 30 * time.Second,
		Cache:          CacheConfig{RegistrySize: 1024, ParseSize: 256},
		Analysis:       AnalysisConfig{Importer: analysis.ImporterSource},
	}
}

// DefaultPath is the configuration file read when none is given
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".langcore", "config.yaml")
}

// Load builds the configuration from defaults, the file at path and the
// environment. An empty path reads DefaultPath if it exists.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return nil, err
			}
		}
	}

	cfg.ApplyEnv()
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides values set in the environment
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvDBPath); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
}

// Validate reports the first invalid value
func (c *Config) Validate() error {
	if c.Bridge.Workers <= 0 {
		return fmt.Errorf("bridge.workers must be positive, got %d", c.Bridge.Workers)
	}
	if c.Cache.RegistrySize <= 0 {
		return fmt.Errorf("cache.registry_size must be positive, got %d", c.Cache.RegistrySize)
	}
	if c.Cache.ParseSize <= 0 {
		return fmt.Errorf("cache.parse_size must be positive, got %d", c.Cache.ParseSize)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Analysis.Importer {
	case analysis.ImporterSource, analysis.ImporterNone:
	default:
		return fmt.Errorf("analysis.importer must be %q or %q, got %q",
			analysis.ImporterSource, analysis.ImporterNone, c.Analysis.Importer)
	}
	_, err := c.Commands()
	return err
}

// ResolvedDBPath expands a leading ~ in DBPath. ":memory:" is returned as is.
func (c *Config) ResolvedDBPath() (string, error) {
	if c.DBPath == "~" || strings.HasPrefix(c.DBPath, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(home, strings.TrimPrefix(c.DBPath, "~")), nil
	}
	return c.DBPath, nil
}

// Commands returns the diagnostics checkers: the defaults, with languages
// named in the file replaced by their configured command.
func (c *Config) Commands() ([]provider.Command, error) {
	byLanguage := make(map[string]provider.Command)
	for _, cmd := range provider.DefaultCommands() {
		byLanguage[cmd.Language] = cmd
	}

	for language, d := range c.Diagnostics {
		cmd, err := provider.NewCommand(language, d.Command, d.Pattern, d.Source)
		if err != nil {
			return nil, err
		}
		byLanguage[language] = cmd
	}

	languages := make([]string, 0, len(byLanguage))
	for language := range byLanguage {
		languages = append(languages, language)
	}
	sort.Strings(languages)

	commands := make([]provider.Command, 0, len(languages))
	for _, language := range languages {
		commands = append(commands, byLanguage[language])
	}
	return commands, nil
}

// ParseLevel converts a level name to a slog level
func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return l, nil
}

// NewLogger creates the process logger. stdout is never used: it carries
// the protocol. The returned closer releases the log file, if any.
func NewLogger(cfg LogConfig) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	var (
		w      io.Writer = os.Stderr
		closer io.Closer = nopCloser{}
	)
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		w, closer = f, f
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(handler), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
