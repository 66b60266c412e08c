// Package schema builds the JSON Schemas that describe tool arguments.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// Reflector is configured for tool schemas.
// DoNotReference inlines all definitions to avoid $ref, which several
// providers reject.
var Reflector = &jsonschema.Reflector{
	DoNotReference: true,
}

// For reflects the schema of T. T should be a struct with json and
// jsonschema tags.
//
//	type Lookup struct {
//	    Query string `json:"query" jsonschema:"required,description=What to look up"`
//	    Limit int    `json:"limit,omitempty"`
//	}
//
//	s := schema.For[Lookup]()
func For[T any]() *jsonschema.Schema {
	var zero T
	return Reflector.Reflect(&zero)
}

// Marshal encodes s for a provider request. The $schema and $id keywords
// are dropped and a nil schema becomes an empty object schema.
func Marshal(s *jsonschema.Schema) (json.RawMessage, error) {
	if s == nil {
		return json.RawMessage(`{"type":"object"}`), nil
	}
	c := *s
	c.Version = ""
	c.ID = ""
	return json.Marshal(&c)
}

// Parse decodes a raw schema such as one announced by an MCP server.
// Empty input yields an empty object schema.
func Parse(raw json.RawMessage) (*jsonschema.Schema, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return &jsonschema.Schema{Type: "object"}, nil
	}
	var s jsonschema.Schema
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parsing schema: %w", err)
	}
	return &s, nil
}
