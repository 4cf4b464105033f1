package snapshot

import (
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

const (
	// DeviceFileName holds the persistent device identifier
	DeviceFileName = "device_id"

	// UnknownDevice is used when no identifier can be read or persisted
	UnknownDevice = "unknown-device"
)

// DeviceID returns the identifier stored in dir, creating one on first use.
// It never fails: when the file can't be written the fallback id is returned.
func DeviceID(fs afero.Fs, dir string, logger *slog.Logger) string {
	if logger == nil {
		logger = slog.Default()
	}
	path := filepath.Join(dir, DeviceFileName)

	if data, err := afero.ReadFile(fs, path); err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id
		}
	}

	id := uuid.NewString()
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		logger.Warn("cannot create state directory", "path", dir, "error", err)
		return UnknownDevice
	}
	if err := afero.WriteFile(fs, path, []byte(id), 0o600); err != nil {
		logger.Warn("cannot persist device id", "path", path, "error", err)
		return UnknownDevice
	}
	return id
}
