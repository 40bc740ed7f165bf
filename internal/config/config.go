// Package config provides configuration management for devdeck.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const (
	// EnvPrefix prefixes every environment override, e.g. DEVDECK_PORT.
	EnvPrefix = "DEVDECK"

	// DataDirEnv overrides the data directory.
	DataDirEnv = "DEVDECK_DATA_DIR"

	DefaultPort                   = 37800
	DefaultMaxConns               = 4
	DefaultLogLevel               = "info"
	DefaultLogFormat              = "console"
	DefaultTerminalTimeoutSeconds = 30
	DefaultMaxOutputBytes         = 10 * 1024 * 1024
	DefaultMaxConcurrentCommands  = 8
	DefaultGenaiModel             = "gemini-2.5-flash"
	DefaultWSFramesPerSecond      = 20

	dataDirName      = ".devdeck"
	dbFileName       = "devdeck.db"
	settingsJSONName = "settings.json"
	settingsYAMLName = "settings.yaml"
)

// Config holds devdeck settings. Settings file keys equal the environment
// variable names.
type Config struct {
	DBPath                 string `json:"DEVDECK_DB_PATH" yaml:"DEVDECK_DB_PATH" split_words:"true"`
	DatabaseURL            string `json:"DEVDECK_DATABASE_URL" yaml:"DEVDECK_DATABASE_URL" split_words:"true"`
	LogLevel               string `json:"DEVDECK_LOG_LEVEL" yaml:"DEVDECK_LOG_LEVEL" split_words:"true"`
	LogFormat              string `json:"DEVDECK_LOG_FORMAT" yaml:"DEVDECK_LOG_FORMAT" split_words:"true"`
	TerminalWorkdir        string `json:"DEVDECK_TERMINAL_WORKDIR" yaml:"DEVDECK_TERMINAL_WORKDIR" split_words:"true"`
	GenaiAPIKey            string `json:"DEVDECK_GENAI_API_KEY" yaml:"DEVDECK_GENAI_API_KEY" split_words:"true"`
	GenaiModel             string `json:"DEVDECK_GENAI_MODEL" yaml:"DEVDECK_GENAI_MODEL" split_words:"true"`
	Port                   int    `json:"DEVDECK_PORT" yaml:"DEVDECK_PORT" split_words:"true"`
	MaxConns               int    `json:"DEVDECK_MAX_CONNS" yaml:"DEVDECK_MAX_CONNS" split_words:"true"`
	TerminalTimeoutSeconds int    `json:"DEVDECK_TERMINAL_TIMEOUT_SECONDS" yaml:"DEVDECK_TERMINAL_TIMEOUT_SECONDS" split_words:"true"`
	MaxOutputBytes         int    `json:"DEVDECK_MAX_OUTPUT_BYTES" yaml:"DEVDECK_MAX_OUTPUT_BYTES" split_words:"true"`
	MaxConcurrentCommands  int    `json:"DEVDECK_MAX_CONCURRENT_COMMANDS" yaml:"DEVDECK_MAX_CONCURRENT_COMMANDS" split_words:"true"`
	WSFramesPerSecond      int    `json:"DEVDECK_WS_FRAMES_PER_SECOND" yaml:"DEVDECK_WS_FRAMES_PER_SECOND" split_words:"true"`
	StripANSI              bool   `json:"DEVDECK_STRIP_ANSI" yaml:"DEVDECK_STRIP_ANSI" split_words:"true"`
}

var (
	global     *Config
	globalOnce sync.Once
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:                   DefaultPort,
		DBPath:                 DBPath(),
		MaxConns:               DefaultMaxConns,
		LogLevel:               DefaultLogLevel,
		LogFormat:              DefaultLogFormat,
		TerminalTimeoutSeconds: DefaultTerminalTimeoutSeconds,
		MaxOutputBytes:         DefaultMaxOutputBytes,
		MaxConcurrentCommands:  DefaultMaxConcurrentCommands,
		StripANSI:              true,
		GenaiModel:             DefaultGenaiModel,
		WSFramesPerSecond:      DefaultWSFramesPerSecond,
	}
}

// DataDir returns the directory holding the database and settings.
func DataDir() string {
	if dir := os.Getenv(DataDirEnv); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, dataDirName)
}

// DBPath returns the default SQLite database path.
func DBPath() string {
	return filepath.Join(DataDir(), dbFileName)
}

// SettingsPath returns the JSON settings file path.
func SettingsPath() string {
	return filepath.Join(DataDir(), settingsJSONName)
}

// SettingsYAMLPath returns the YAML settings file path, read when no JSON file exists.
func SettingsYAMLPath() string {
	return filepath.Join(DataDir(), settingsYAMLName)
}

// SettingsFiles returns the settings file names that are looked up in DataDir.
func SettingsFiles() []string {
	return []string{settingsJSONName, settingsYAMLName}
}

// EnsureDataDir creates the data directory.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0750)
}

// EnsureSettings writes a settings.json with the defaults when no settings file exists.
func EnsureSettings() error {
	for _, path := range []string{SettingsPath(), SettingsYAMLPath()} {
		if _, err := os.Stat(path); err == nil {
			return nil
		}
	}

	data, err := json.MarshalIndent(Default(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode default settings: %w", err)
	}
	return os.WriteFile(SettingsPath(), data, 0600)
}

// EnsureAll creates the data directory and default settings.
func EnsureAll() error {
	if err := EnsureDataDir(); err != nil {
		return err
	}
	return EnsureSettings()
}

// Load builds the configuration: defaults, then the settings file, then
// DEVDECK_* environment variables. An unreadable or invalid settings file
// yields the defaults. An invalid environment value is reported together
// with the configuration loaded without environment overrides.
func Load() (*Config, error) {
	cfg := Default()
	if err := readSettings(cfg); err != nil {
		log.Warn().Err(err).Msg("Ignoring settings file, using defaults")
		cfg = Default()
	}

	withEnv := *cfg
	if err := envconfig.Process(EnvPrefix, &withEnv); err != nil {
		cfg.normalize()
		return cfg, fmt.Errorf("environment overrides: %w", err)
	}
	withEnv.normalize()
	return &withEnv, nil
}

func readSettings(cfg *Config) error {
	data, err := os.ReadFile(SettingsPath())
	if err == nil {
		return json.Unmarshal(data, cfg)
	}
	if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	data, err = os.ReadFile(SettingsYAMLPath())
	if err == nil {
		return yaml.Unmarshal(data, cfg)
	}
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// normalize replaces out-of-range values with the defaults.
func (c *Config) normalize() {
	if c.Port <= 0 || c.Port > 65535 {
		c.Port = DefaultPort
	}
	if c.DBPath == "" {
		c.DBPath = DBPath()
	}
	if c.MaxConns <= 0 {
		c.MaxConns = DefaultMaxConns
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = DefaultLogFormat
	}
	if c.TerminalTimeoutSeconds <= 0 {
		c.TerminalTimeoutSeconds = DefaultTerminalTimeoutSeconds
	}
	if c.MaxOutputBytes <= 0 {
		c.MaxOutputBytes = DefaultMaxOutputBytes
	}
	if c.MaxConcurrentCommands <= 0 {
		c.MaxConcurrentCommands = DefaultMaxConcurrentCommands
	}
	if c.GenaiModel == "" {
		c.GenaiModel = DefaultGenaiModel
	}
	if c.WSFramesPerSecond <= 0 {
		c.WSFramesPerSecond = DefaultWSFramesPerSecond
	}
}

// TerminalTimeout returns the command timeout as a duration.
func (c *Config) TerminalTimeout() time.Duration {
	return time.Duration(c.TerminalTimeoutSeconds) * time.Second
}

// Addr returns the listen address of the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Get returns the process-wide configuration, loading it on first use.
func Get() *Config {
	globalOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			log.Warn().Err(err).Msg("Invalid environment configuration, ignoring overrides")
		}
		global = cfg
	})
	return global
}

// GetPort returns the HTTP port, preferring a valid DEVDECK_PORT over the
// loaded configuration.
func GetPort() int {
	if v := os.Getenv("DEVDECK_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 && port <= 65535 {
			return port
		}
	}
	return Get().Port
}
