package contracts

import (
	"embed"
	"encoding/json"
	"fmt"
	"log"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas
var schemaFS embed.FS

var compiledSchemas = make(map[string]*jsonschema.Schema)

func init() {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true

	schemaPath := "schemas/snapshot-record/v1.json"
	raw, err := schemaFS.Open(schemaPath)
	if err != nil {
		log.Fatalf("failed to open embedded schema %s: %v", schemaPath, err)
	}
	if err := compiler.AddResource(schemaPath, raw); err != nil {
		log.Fatalf("failed to register schema %s: %v", schemaPath, err)
	}
	schema, err := compiler.Compile(schemaPath)
	if err != nil {
		log.Fatalf("failed to compile schema %s: %v", schemaPath, err)
	}

	compiledSchemas["SnapshotRecord/1.0.0"] = schema
}

// ValidateSnapshotRecord checks one snapshot line against the record schema.
func ValidateSnapshotRecord(body []byte) error {
	return validate("SnapshotRecord", "1.0.0", body)
}

func validate(recordType, version string, body []byte) error {
	key := fmt.Sprintf("%s/%s", recordType, version)
	schema, ok := compiledSchemas[key]
	if !ok {
		return fmt.Errorf("schema for record '%s' version '%s' not found", recordType, version)
	}

	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		return fmt.Errorf("record body is not valid JSON: %w", err)
	}

	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("JSON schema validation failed: %w", err)
	}
	return nil
}
