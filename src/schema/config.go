package schema

import (
	"github.com/gizmoapp/gizmo/src/config"
	jsonschema "github.com/swaggest/jsonschema-go"
)

// ConfigSchema describes config.json. Defaults are taken from
// config.DefaultConfig so the two cannot drift.
func ConfigSchema() *jsonschema.Schema {
	d := config.DefaultConfig()

	assistant := CreateObjectSchema(map[string]*jsonschema.Schema{
		"base_url":          CreateFormattedStringSchema("Backend address, e.g. http://homeassistant.local:8123. HA_BASE_URL overrides it.", "uri"),
		"token":             CreateStringSchema("Long-lived access token. Prefer HA_TOKEN over storing it here."),
		"pipeline_id":       withDefault(CreateStringSchema("Assist pipeline to run"), d.Assistant.PipelineID),
		"websocket_path":    withDefault(CreateStringSchema("WebSocket endpoint path"), d.Assistant.WebSocketPath),
		"handshake_timeout": CreateDurationSchema("Time allowed for each authentication step", d.Assistant.HandshakeTimeout.String()),
		"reconnect_delay":   CreateDurationSchema("Pause between connection attempts", d.Assistant.ReconnectDelay.String()),
	}, nil)

	remote := CreateObjectSchema(map[string]*jsonschema.Schema{
		"backend":        withDefault(CreateStringSchemaEnum("Shared store for chat history", []string{"redis", "sqlite", "none"}), d.Remote.Backend),
		"redis_url":      CreateFormattedStringSchema("Redis URL, required for the redis backend", "uri"),
		"sqlite_path":    CreateStringSchema("Database file, required for the sqlite backend"),
		"history_prefix": withDefault(CreateStringSchema("Key prefix of chat histories"), d.Remote.HistoryPrefix),
		"meta_prefix":    withDefault(CreateStringSchema("Key prefix of chat metadata"), d.Remote.MetaPrefix),
	}, nil)

	network := CreateObjectSchema(map[string]*jsonschema.Schema{
		"trust":             withDefault(CreateStringSchemaEnum("When the network counts as trusted for syncing", []string{config.TrustAuto, config.TrustAlways, config.TrustNever}), d.Network.Trust),
		"home_ssid":         CreateStringSchema("Wireless network considered home"),
		"ssid_command":      CreateStringArraySchema("Command printing the current SSID, e.g. [\"iwgetid\", \"-r\"]"),
		"ethernet_fallback": CreateBoolSchema("Trust an active wired connection when no SSID is known", d.Network.EthernetFallback),
	}, nil)

	sync := CreateObjectSchema(map[string]*jsonschema.Schema{
		"interval": CreateDurationSchema("Time between background pulls", d.Sync.Interval.String()),
	}, nil)

	storage := CreateObjectSchema(map[string]*jsonschema.Schema{
		"directory":     CreateStringSchema("Directory holding the snapshot and device id"),
		"snapshot_file": withDefault(CreateStringSchema("Snapshot file name inside directory"), d.Storage.SnapshotFile),
	}, nil)

	logging := CreateObjectSchema(map[string]*jsonschema.Schema{
		"level": withDefault(CreateStringSchemaEnum("Minimum log level", []string{"debug", "info", "warn", "error"}), d.Logging.Level),
		"file":  CreateStringSchema("Log file of interactive sessions"),
	}, nil)

	root := CreateObjectSchema(map[string]*jsonschema.Schema{
		"version":   withDefault(CreateStringSchema("Configuration format version"), d.Version),
		"assistant": assistant,
		"remote":    remote,
		"network":   network,
		"sync":      sync,
		"storage":   storage,
		"logging":   logging,
	}, nil)

	title := "gizmo configuration"
	draft := "http://json-schema.org/draft-07/schema#"
	root.Title = &title
	root.Schema = &draft
	return root
}

func withDefault(s *jsonschema.Schema, value string) *jsonschema.Schema {
	v := interface{}(value)
	s.Default = &v
	return s
}
