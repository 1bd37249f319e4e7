package llm

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// maxFieldLen bounds any single extracted value; longer text is not a receipt field.
const maxFieldLen = 256

// BuildExtractionJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a generic map.
// Every field is optional and nullable; the sanitizer has already coerced values to strings.
func BuildExtractionJSONSchema() map[string]any {
	props := make(map[string]any, len(FieldKeys))
	for _, k := range FieldKeys {
		props[k] = map[string]any{
			"type":      []string{"string", "null"},
			"minLength": 1,
			"maxLength": maxFieldLen,
		}
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
	}
}

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
