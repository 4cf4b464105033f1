// Package schema provides helper functions for creating JSON Schema definitions.
//
// The helpers build the JSON Schema of gizmo's configuration file, printed by
// `gizmo config schema` so editors can validate and complete config.json.
//
// Example usage:
//
//	import "github.com/gizmoapp/gizmo/src/schema"
//
//	s := schema.ConfigSchema()
//	data, _ := json.MarshalIndent(s, "", "  ")
package schema
