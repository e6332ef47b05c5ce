package parser

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

// planSchema only constrains the fields the analyzer reads.
const planSchema = `{
  "title": "MySQL EXPLAIN FORMAT=JSON",
  "type": "object",
  "properties": {
    "query_block": {
      "type": "object",
      "properties": {
        "select_id": {"type": ["integer", "string"]},
        "cost_info": {"$ref": "#/$defs/costInfo"},
        "nested_loop": {"$ref": "#/$defs/sequence"},
        "table": {"$ref": "#/$defs/table"}
      }
    }
  },
  "$defs": {
    "costInfo": {
      "type": "object",
      "properties": {
        "query_cost": {"type": ["number", "string"]},
        "prefix_cost": {"type": ["number", "string"]},
        "read_cost": {"type": ["number", "string"]},
        "eval_cost": {"type": ["number", "string"]}
      }
    },
    "sequence": {
      "type": "array",
      "items": {
        "properties": {
          "table": {"$ref": "#/$defs/table"},
          "nested_loop": {"$ref": "#/$defs/sequence"}
        }
      }
    },
    "table": {
      "type": "object",
      "properties": {
        "table_name": {"type": "string"},
        "access_type": {"type": "string"},
        "possible_keys": {"type": "array", "items": {"type": "string"}},
        "key": {"type": ["string", "null"]},
        "rows_examined_per_scan": {"type": ["number", "string"]},
        "rows_produced_per_join": {"type": ["number", "string"]},
        "cost_info": {"$ref": "#/$defs/costInfo"},
        "attached_condition": {"type": "string"}
      }
    }
  }
}`

var resolvedSchema = sync.OnceValues(func() (*jsonschema.Resolved, error) {
	var schema jsonschema.Schema
	if err := json.Unmarshal([]byte(planSchema), &schema); err != nil {
		return nil, fmt.Errorf("unmarshal plan schema: %w", err)
	}
	resolved, err := schema.Resolve(&jsonschema.ResolveOptions{})
	if err != nil {
		return nil, fmt.Errorf("resolve plan schema: %w", err)
	}
	return resolved, nil
})

// Schema returns the JSON Schema plan documents are validated against.
func Schema() []byte {
	return []byte(planSchema)
}

// Validate checks a single plan object against the plan schema.
func Validate(data []byte) error {
	resolved, err := resolvedSchema()
	if err != nil {
		return err
	}

	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return fmt.Errorf("decode plan: %w", err)
	}
	if err := resolved.Validate(instance); err != nil {
		return fmt.Errorf("validate plan: %w", err)
	}
	return nil
}
