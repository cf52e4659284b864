package survey

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// recordSchema is the JSON Schema every survey record must satisfy.
const recordSchema = `{
  "type": "object",
  "properties": {
    "id":       {"type": "string"},
    "zone":     {"type": "string"},
    "group":    {"type": "string"},
    "taxonomy": {"type": "string", "minLength": 1},
    "height":   {"type": "number", "minimum": 0},
    "area":     {"type": "number", "minimum": 0},
    "cost":     {"type": "number", "minimum": 0},
    "weight":   {"type": "number", "minimum": 0}
  },
  "required": ["taxonomy"]
}`

const recordSchemaURL = "schema://survey-record.json"

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func recordValidator() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		var def any
		if err := json.Unmarshal([]byte(recordSchema), &def); err != nil {
			compileErr = fmt.Errorf("parse record schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(recordSchemaURL, def); err != nil {
			compileErr = fmt.Errorf("add resource: %w", err)
			return
		}
		compiled, compileErr = c.Compile(recordSchemaURL)
	})
	return compiled, compileErr
}

func validateRecord(raw json.RawMessage) error {
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	sch, err := recordValidator()
	if err != nil {
		return err
	}
	if err := sch.Validate(parsed); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}
