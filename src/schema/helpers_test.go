package schema

import (
	"testing"

	jsonschema "github.com/swaggest/jsonschema-go"
)

func TestCreateStringSchema(t *testing.T) {
	schema := CreateStringSchema("test description")

	if schema == nil {
		t.Fatal("Expected schema to be non-nil")
	}

	if schema.Description == nil || *schema.Description != "test description" {
		t.Errorf("Expected description 'test description', got %v", schema.Description)
	}

	if schema.Type == nil || schema.Type.SimpleTypes == nil {
		t.Fatal("Expected type to be set")
	}

	expectedType := jsonschema.SimpleType("string")
	if *schema.Type.SimpleTypes != expectedType {
		t.Errorf("Expected type 'string', got %v", *schema.Type.SimpleTypes)
	}
}

func TestCreateBoolSchema(t *testing.T) {
	schema := CreateBoolSchema("test bool", true)

	if schema.Type == nil || schema.Type.SimpleTypes == nil {
		t.Fatal("Expected type to be set")
	}

	expectedType := jsonschema.SimpleType("boolean")
	if *schema.Type.SimpleTypes != expectedType {
		t.Errorf("Expected type 'boolean', got %v", *schema.Type.SimpleTypes)
	}

	if schema.Default == nil || *schema.Default != true {
		t.Errorf("Expected default true, got %v", schema.Default)
	}
}

func TestCreateDurationSchema(t *testing.T) {
	schema := CreateDurationSchema("wait", "3s")

	if schema.Pattern == nil || *schema.Pattern == "" {
		t.Fatal("Expected pattern to be set")
	}
	if schema.Default == nil || *schema.Default != "3s" {
		t.Errorf("Expected default 3s, got %v", schema.Default)
	}
}

func TestCreateStringArraySchema(t *testing.T) {
	schema := CreateStringArraySchema("cmd")

	expectedType := jsonschema.SimpleType("array")
	if schema.Type == nil || *schema.Type.SimpleTypes != expectedType {
		t.Fatalf("Expected type 'array', got %v", schema.Type)
	}
	if schema.Items == nil || schema.Items.SchemaOrBool == nil || schema.Items.SchemaOrBool.TypeObject == nil {
		t.Fatal("Expected items schema")
	}
}

func TestCreateObjectSchema(t *testing.T) {
	properties := map[string]*jsonschema.Schema{
		"name":   CreateStringSchema("The name"),
		"active": CreateBoolSchema("Active", false),
	}
	required := []string{"name"}

	schema := CreateObjectSchema(properties, required)

	expectedType := jsonschema.SimpleType("object")
	if schema.Type == nil || *schema.Type.SimpleTypes != expectedType {
		t.Errorf("Expected type 'object', got %v", schema.Type)
	}

	if len(schema.Properties) != 2 {
		t.Errorf("Expected 2 properties, got %d", len(schema.Properties))
	}

	if len(schema.Required) != 1 || schema.Required[0] != "name" {
		t.Errorf("Expected required field 'name', got %v", schema.Required)
	}
}
