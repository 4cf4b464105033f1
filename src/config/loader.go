package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
)

// Loader handles loading and merging configurations from multiple sources
type Loader struct {
	precedence ConfigPrecedence
	validator  *Validator
	fs         afero.Fs
	lookupEnv  func(string) (string, bool)
}

// NewLoader creates a new configuration loader backed by the OS filesystem
// and process environment
func NewLoader(precedence ConfigPrecedence) *Loader {
	return NewLoaderFs(afero.NewOsFs(), precedence)
}

// NewLoaderFs creates a loader reading files from fs
func NewLoaderFs(fs afero.Fs, precedence ConfigPrecedence) *Loader {
	return &Loader{
		precedence: precedence,
		validator:  NewValidator(),
		fs:         fs,
		lookupEnv:  os.LookupEnv,
	}
}

// Load loads configuration from all sources and merges them
func (l *Loader) Load() (*Config, error) {
	config := DefaultConfig()

	sources := []struct {
		path   string
		source ConfigSource
	}{
		{l.precedence.SystemConfig, SourceSystem},
		{l.precedence.UserConfig, SourceUser},
		{l.precedence.LocalConfig, SourceLocal},
	}

	for _, src := range sources {
		if src.path == "" {
			continue
		}
		if err := l.loadFileInto(src.path, config); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s config from %s: %w", src.source, src.path, err)
		}
	}

	dotenv, err := l.readEnvFile()
	if err != nil {
		return nil, err
	}
	l.applyEnvironmentOverrides(config, dotenv)

	if err := l.validator.Validate(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// loadFileInto decodes a JSON file over config. Keys absent from the file
// keep their current value.
func (l *Loader) loadFileInto(path string, config *Config) error {
	data, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}
	return nil
}

// readEnvFile parses the dotenv file without touching the process environment
func (l *Loader) readEnvFile() (map[string]string, error) {
	if l.precedence.EnvFile == "" {
		return nil, nil
	}
	f, err := l.fs.Open(l.precedence.EnvFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open env file %s: %w", l.precedence.EnvFile, err)
	}
	defer f.Close()

	values, err := godotenv.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse env file %s: %w", l.precedence.EnvFile, err)
	}
	return values, nil
}

// SaveFile saves configuration to a file
func (l *Loader) SaveFile(config *Config, path string) error {
	if err := l.validator.Validate(config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	if err := l.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// the file may carry the access token
	if err := afero.WriteFile(l.fs, path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

// applyEnvironmentOverrides applies environment variable overrides to
// config. The process environment wins over the dotenv file.
func (l *Loader) applyEnvironmentOverrides(config *Config, dotenv map[string]string) {
	get := func(key string) string {
		if v, ok := l.lookupEnv(key); ok && v != "" {
			return v
		}
		return dotenv[key]
	}

	// names used by the backend's own tooling
	if v := get("HA_BASE_URL"); v != "" {
		config.Assistant.BaseURL = v
	}
	if v := get("HA_TOKEN"); v != "" {
		config.Assistant.Token = v
	}

	prefix := l.precedence.EnvironmentPrefix
	if prefix == "" {
		return
	}
	env := func(name string) string { return get(prefix + "_" + name) }

	if v := env("PIPELINE_ID"); v != "" {
		config.Assistant.PipelineID = v
	}
	if v := env("REMOTE_BACKEND"); v != "" {
		config.Remote.Backend = v
	}
	if v := env("REDIS_URL"); v != "" {
		config.Remote.RedisURL = v
	}
	if v := env("SQLITE_PATH"); v != "" {
		config.Remote.SQLitePath = v
	}
	if v := env("HOME_SSID"); v != "" {
		config.Network.HomeSSID = v
	}
	if v := env("TRUST"); v != "" {
		config.Network.Trust = strings.ToLower(v)
	}
	if v := env("ETHERNET_FALLBACK"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.Network.EthernetFallback = b
		}
	}
	if v := env("LOG_LEVEL"); v != "" {
		config.Logging.Level = strings.ToLower(v)
	}
	if v := env("STATE_DIR"); v != "" {
		config.Storage.Directory = v
	}
}

// GetConfigPaths returns the configuration file paths to check
func GetConfigPaths() ConfigPrecedence {
	systemConfigPath := filepath.Join("/etc", appName, "config.json")
	if runtime.GOOS == "windows" {
		systemConfigPath = filepath.Join(os.Getenv("PROGRAMDATA"), appName, "config.json")
	}

	return ConfigPrecedence{
		SystemConfig:      systemConfigPath,
		UserConfig:        GetDefaultUserConfigPath(),
		LocalConfig:       "gizmo.json",
		EnvFile:           ".env",
		EnvironmentPrefix: "GIZMO",
	}
}
