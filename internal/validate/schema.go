package validate

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// SchemaValidator compiles and caches small embedded JSON Schema
// documents used for the structural layer (narrow-filter triples,
// options arrays, metadata blobs) ahead of the semantic coercion pass
// below. Grounded on goadesign-goa-ai's registry.validatePayloadJSONAgainstSchema.
type SchemaValidator struct {
	schemas map[string]*jsonschema.Schema
}

// NewSchemaValidator compiles every named schema document up front so a
// bad embedded schema fails at startup, not on first tool call.
func NewSchemaValidator(docs map[string]string) (*SchemaValidator, error) {
	v := &SchemaValidator{schemas: make(map[string]*jsonschema.Schema, len(docs))}
	for name, raw := range docs {
		var doc any
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("validate: unmarshal schema %q: %w", name, err)
		}
		c := jsonschema.NewCompiler()
		resourceID := name + ".json"
		if err := c.AddResource(resourceID, doc); err != nil {
			return nil, fmt.Errorf("validate: add schema resource %q: %w", name, err)
		}
		schema, err := c.Compile(resourceID)
		if err != nil {
			return nil, fmt.Errorf("validate: compile schema %q: %w", name, err)
		}
		v.schemas[name] = schema
	}
	return v, nil
}

// ValidateStructure checks frame's shape against the named schema. A
// structural failure is reported as a ValidationError-shaped *Error; it
// never attempts the semantic coercions handled elsewhere in this
// package (int-as-string, enum sets) since JSON Schema can't express
// those equivalences.
func (v *SchemaValidator) ValidateStructure(schemaName string, frame map[string]any) error {
	schema, ok := v.schemas[schemaName]
	if !ok {
		return nil // no structural schema registered for this tool; skip
	}
	if err := schema.Validate(frame); err != nil {
		return newError("ValidationError", fmt.Sprintf("%s: %v", schemaName, err))
	}
	return nil
}

// NarrowTermSchema is the structural shape of one {operator, operand,
// negated?} triple, shared by every tool accepting a user-supplied
// narrow list.
const NarrowTermSchema = `{
  "type": "object",
  "required": ["operator", "operand"],
  "properties": {
    "operator": {"type": "string", "minLength": 1},
    "operand": {"type": "string"},
    "negated": {"type": "boolean"}
  }
}`

// NarrowListSchema is the structural shape of a full narrow list.
const NarrowListSchema = `{
  "type": "array",
  "items": ` + NarrowTermSchema + `
}`
