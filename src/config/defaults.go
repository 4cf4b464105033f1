package config

import (
	"time"
)

// DefaultPipelineID is the assist pipeline used unless configured
const DefaultPipelineID = "01hnnbz7n3mszayy67m7q9g90p"

// DefaultConfig returns a default configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Version: "1.0",

		Assistant: AssistantConfig{
			PipelineID:       DefaultPipelineID,
			WebSocketPath:    "/api/websocket",
			HandshakeTimeout: Duration(10 * time.Second),
			ReconnectDelay:   Duration(3 * time.Second),
		},

		Remote: RemoteConfig{
			Backend:       "none",
			HistoryPrefix: "gizmo:conv",
			MetaPrefix:    "gizmo:convmeta",
		},

		Network: NetworkConfig{
			Trust:            TrustAuto,
			EthernetFallback: true,
		},

		Sync: SyncConfig{
			Interval: Duration(5 * time.Minute),
		},

		Storage: StorageConfig{
			Directory:    GetDefaultStatePath(),
			SnapshotFile: "chats.json",
		},

		Logging: LoggingConfig{
			Level: "warn",
			File:  GetDefaultLogPath(),
		},
	}
}
