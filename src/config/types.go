package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Config represents the complete configuration for gizmo
type Config struct {
	// Version of the configuration format
	Version string `json:"version"`

	// Assistant backend connection
	Assistant AssistantConfig `json:"assistant"`

	// Shared remote store used for history synchronization
	Remote RemoteConfig `json:"remote"`

	// Trusted network detection
	Network NetworkConfig `json:"network"`

	// Background synchronization
	Sync SyncConfig `json:"sync"`

	// Local state (snapshot, device id)
	Storage StorageConfig `json:"storage"`

	// Logging configuration
	Logging LoggingConfig `json:"logging"`
}

// AssistantConfig defines how to reach the assistant backend
type AssistantConfig struct {
	// BaseURL of the backend, e.g. http://homeassistant.local:8123
	BaseURL string `json:"base_url" validate:"omitempty,url"`

	// Token is a long-lived access token
	Token string `json:"token,omitempty"`

	// PipelineID selects the assist pipeline
	PipelineID string `json:"pipeline_id,omitempty"`

	// WebSocketPath is appended to BaseURL
	WebSocketPath string `json:"websocket_path,omitempty" validate:"omitempty,startswith=/"`

	// HandshakeTimeout bounds each authentication step
	HandshakeTimeout Duration `json:"handshake_timeout" validate:"gt=0"`

	// ReconnectDelay is the pause between connection attempts
	ReconnectDelay Duration `json:"reconnect_delay" validate:"gt=0"`
}

// RemoteConfig selects the shared store
type RemoteConfig struct {
	// Backend is one of redis, sqlite, none
	Backend string `json:"backend" validate:"remote_backend"`

	// RedisURL is used by the redis backend
	RedisURL string `json:"redis_url,omitempty" validate:"required_if=Backend redis"`

	// SQLitePath is used by the sqlite backend
	SQLitePath string `json:"sqlite_path,omitempty" validate:"required_if=Backend sqlite"`

	// HistoryPrefix prefixes history keys
	HistoryPrefix string `json:"history_prefix" validate:"required"`

	// MetaPrefix prefixes metadata keys
	MetaPrefix string `json:"meta_prefix" validate:"required,nefield=HistoryPrefix"`
}

// NetworkConfig defines when the network counts as trusted
type NetworkConfig struct {
	// Trust is auto (detect), always or never
	Trust string `json:"trust" validate:"trust_mode"`

	// HomeSSID is the wireless network considered home
	HomeSSID string `json:"home_ssid,omitempty"`

	// SSIDCommand prints the current SSID, e.g. ["iwgetid", "-r"]
	SSIDCommand []string `json:"ssid_command,omitempty"`

	// EthernetFallback trusts active wired connections when no SSID is known
	EthernetFallback bool `json:"ethernet_fallback"`
}

// SyncConfig controls background synchronization
type SyncConfig struct {
	// Interval between periodic pulls
	Interval Duration `json:"interval" validate:"gt=0"`
}

// StorageConfig locates local state
type StorageConfig struct {
	// Directory holds the snapshot and device id
	Directory string `json:"directory,omitempty"`

	// SnapshotFile is the snapshot file name inside Directory
	SnapshotFile string `json:"snapshot_file" validate:"required,excludesall=/\\"`
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error)
	Level string `json:"level,omitempty" validate:"log_level"`

	// File receives logs of the interactive session
	File string `json:"file,omitempty"`
}

// ConfigPrecedence defines the order of configuration loading
type ConfigPrecedence struct {
	// SystemConfig path
	SystemConfig string

	// UserConfig path
	UserConfig string

	// LocalConfig path, relative to the working directory
	LocalConfig string

	// EnvFile is a dotenv file consulted after the process environment
	EnvFile string

	// EnvironmentPrefix for GIZMO_* style overrides
	EnvironmentPrefix string
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ConfigSource indicates where a configuration value came from
type ConfigSource string

const (
	SourceDefault     ConfigSource = "default"
	SourceSystem      ConfigSource = "system"
	SourceUser        ConfigSource = "user"
	SourceLocal       ConfigSource = "local"
	SourceEnvironment ConfigSource = "environment"
)

// Trust modes
const (
	TrustAuto   = "auto"
	TrustAlways = "always"
	TrustNever  = "never"
)

// ErrMissingAssistant is returned when the backend address or token is unset
var ErrMissingAssistant = errors.New("assistant base url and token are required")

// RequireAssistant checks that the backend can be reached
func (c *Config) RequireAssistant() error {
	var missing []string
	if c.Assistant.BaseURL == "" {
		missing = append(missing, "base_url (HA_BASE_URL)")
	}
	if c.Assistant.Token == "" {
		missing = append(missing, "token (HA_TOKEN)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %v", ErrMissingAssistant, missing)
	}
	return nil
}

// Duration is a time.Duration that reads and writes as "3s" in JSON.
// Plain numbers are taken as nanoseconds.
type Duration time.Duration

// Std returns the value as a time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		*d = Duration(parsed)
	case float64:
		*d = Duration(time.Duration(v))
	default:
		return fmt.Errorf("invalid duration %s", string(data))
	}
	return nil
}
