package schema

import (
	"encoding/json"
	"testing"

	"github.com/gizmoapp/gizmo/src/config"
	jsonschema "github.com/swaggest/jsonschema-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// every key written by config.SaveFile must be described
func TestConfigSchemaCoversConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Assistant.Token = "t"
	cfg.Remote.RedisURL = "redis://x"
	cfg.Remote.SQLitePath = "/x.db"
	cfg.Network.HomeSSID = "home"
	cfg.Network.SSIDCommand = []string{"iwgetid", "-r"}

	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &doc))

	root := ConfigSchema()
	for key, value := range doc {
		prop, ok := root.Properties[key]
		require.True(t, ok, "missing top-level property %q", key)

		section, isObject := value.(map[string]interface{})
		if !isObject {
			continue
		}
		for sub := range section {
			_, ok := prop.TypeObject.Properties[sub]
			assert.True(t, ok, "missing property %s.%s", key, sub)
		}
	}
}

func TestConfigSchemaEnums(t *testing.T) {
	root := ConfigSchema()

	backend := root.Properties["remote"].TypeObject.Properties["backend"].TypeObject
	assert.ElementsMatch(t, []interface{}{"redis", "sqlite", "none"}, backend.Enum)

	trust := root.Properties["network"].TypeObject.Properties["trust"].TypeObject
	require.NotNil(t, trust.Default)
	assert.Equal(t, config.TrustAuto, *trust.Default)

	interval := root.Properties["sync"].TypeObject.Properties["interval"].TypeObject
	require.NotNil(t, interval.Default)
	assert.Equal(t, "5m0s", *interval.Default)
}

func TestConfigSchemaMarshals(t *testing.T) {
	data, err := json.Marshal(ConfigSchema())
	require.NoError(t, err)

	var back jsonschema.Schema
	require.NoError(t, json.Unmarshal(data, &back))
	require.NotNil(t, back.Title)
	assert.Equal(t, "gizmo configuration", *back.Title)
}
