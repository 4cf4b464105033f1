package schema

import (
	jsonschema "github.com/swaggest/jsonschema-go"
)

// Helper functions to create JSON schemas

// CreateStringSchema creates a JSON schema for a string field
func CreateStringSchema(description string) *jsonschema.Schema {
	strType := jsonschema.SimpleType("string")
	return &jsonschema.Schema{
		Type:        &jsonschema.Type{SimpleTypes: &strType},
		Description: &description,
	}
}

// CreateFormattedStringSchema creates a string schema with a format such as uri
func CreateFormattedStringSchema(description, format string) *jsonschema.Schema {
	s := CreateStringSchema(description)
	s.Format = &format
	return s
}

// CreateDurationSchema creates a schema for durations written like "3s" or "5m"
func CreateDurationSchema(description, defaultValue string) *jsonschema.Schema {
	s := CreateStringSchema(description)
	pattern := `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`
	defVal := interface{}(defaultValue)
	s.Pattern = &pattern
	s.Default = &defVal
	return s
}

// CreateBoolSchema creates a JSON schema for a boolean field with default value
func CreateBoolSchema(description string, defaultValue bool) *jsonschema.Schema {
	boolType := jsonschema.SimpleType("boolean")
	defVal := interface{}(defaultValue)
	return &jsonschema.Schema{
		Type:        &jsonschema.Type{SimpleTypes: &boolType},
		Description: &description,
		Default:     &defVal,
	}
}

// CreateObjectSchema creates a JSON schema for an object with properties and required fields
func CreateObjectSchema(properties map[string]*jsonschema.Schema, required []string) *jsonschema.Schema {
	schemaProps := make(map[string]jsonschema.SchemaOrBool)
	for name, prop := range properties {
		schemaProps[name] = jsonschema.SchemaOrBool{TypeObject: prop}
	}

	objType := jsonschema.SimpleType("object")
	return &jsonschema.Schema{
		Type:       &jsonschema.Type{SimpleTypes: &objType},
		Properties: schemaProps,
		Required:   required,
	}
}

// CreateStringSchemaEnum creates a JSON schema for a string field with enum values
func CreateStringSchemaEnum(description string, enumValues []string) *jsonschema.Schema {
	strType := jsonschema.SimpleType("string")
	enum := make([]interface{}, len(enumValues))
	for i, v := range enumValues {
		enum[i] = v
	}
	return &jsonschema.Schema{
		Type:        &jsonschema.Type{SimpleTypes: &strType},
		Description: &description,
		Enum:        enum,
	}
}

// CreateStringArraySchema creates a JSON schema for a list of strings
func CreateStringArraySchema(description string) *jsonschema.Schema {
	arrType := jsonschema.SimpleType("array")
	strType := jsonschema.SimpleType("string")
	return &jsonschema.Schema{
		Type:        &jsonschema.Type{SimpleTypes: &arrType},
		Description: &description,
		Items: &jsonschema.Items{
			SchemaOrBool: &jsonschema.SchemaOrBool{
				TypeObject: &jsonschema.Schema{Type: &jsonschema.Type{SimpleTypes: &strType}},
			},
		},
	}
}
