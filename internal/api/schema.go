package api

import (
	"embed"
	"fmt"
	"sync"

	"github.com/kaptinlin/jsonschema"
)

// SchemaName identifies one of the embedded response schemas.
type SchemaName string

const (
	SchemaStatus       SchemaName = "status"
	SchemaRecommend    SchemaName = "recommend"
	SchemaError        SchemaName = "error"
	SchemaMaterials    SchemaName = "materials"
	SchemaAvailability SchemaName = "availability"
	SchemaLogout       SchemaName = "logout"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	schemasOnce sync.Once
	schemas     map[SchemaName]*jsonschema.Schema
	schemasErr  error
)

func loadSchemas() {
	compiler := jsonschema.NewCompiler()
	schemas = map[SchemaName]*jsonschema.Schema{}
	for _, name := range []SchemaName{SchemaStatus, SchemaRecommend, SchemaError, SchemaMaterials, SchemaAvailability, SchemaLogout} {
		data, err := schemaFS.ReadFile("schemas/" + string(name) + ".json")
		if err != nil {
			schemasErr = fmt.Errorf("read schema %s: %w", name, err)
			return
		}
		s, err := compiler.Compile(data)
		if err != nil {
			schemasErr = fmt.Errorf("compile schema %s: %w", name, err)
			return
		}
		schemas[name] = s
	}
}

// Validate checks a JSON body against the named schema.
func Validate(name SchemaName, data []byte) error {
	schemasOnce.Do(loadSchemas)
	if schemasErr != nil {
		return schemasErr
	}
	s, ok := schemas[name]
	if !ok {
		return fmt.Errorf("unknown schema %q", name)
	}
	result := s.ValidateJSON(data)
	if result.IsValid() {
		return nil
	}
	return fmt.Errorf("schema validation failed: %v", result.Errors)
}
