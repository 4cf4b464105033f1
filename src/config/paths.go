package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

const appName = "gizmo"

// GetDefaultStatePath returns the directory for the snapshot and device id
func GetDefaultStatePath() string {
	// XDG_STATE_HOME holds data that should survive restarts but isn't
	// portable user content
	return filepath.Join(xdg.StateHome, appName)
}

// GetDefaultLogPath returns the log file of interactive sessions
func GetDefaultLogPath() string {
	return filepath.Join(xdg.StateHome, appName, "logs", "gizmo.log")
}

// GetDefaultUserConfigPath returns the per-user config file path
func GetDefaultUserConfigPath() string {
	return filepath.Join(xdg.ConfigHome, appName, "config.json")
}

// SnapshotPath returns the full path of the snapshot file
func (c *Config) SnapshotPath() string {
	return filepath.Join(c.Storage.Directory, c.Storage.SnapshotFile)
}
