// Package tools provides the functions a model can call during a turn.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/i2y/parley/schema"
)

// Tool is an executable function exposed to the model.
type Tool interface {
	// Name returns the tool's name as seen by the model.
	Name() string

	// Description returns the tool's description for the model.
	Description() string

	// Parameters returns the JSON schema for the tool's arguments.
	Parameters() *jsonschema.Schema

	// Execute runs the tool with JSON arguments.
	Execute(ctx context.Context, args json.RawMessage) (any, error)
}

// TypedTool is a Tool backed by a typed function. The argument schema is
// reflected from In.
type TypedTool[In any, Out any] struct {
	name        string
	description string
	fn          func(ctx context.Context, in In) (Out, error)
	schema      *jsonschema.Schema
}

// NewTool creates a typed tool.
//
//	type TimeInput struct {
//	    Timezone string `json:"timezone" jsonschema:"description=IANA zone name"`
//	}
//
//	t := tools.NewTool("current_time", "Current time", func(ctx context.Context, in TimeInput) (string, error) {
//	    ...
//	})
func NewTool[In any, Out any](
	name, description string,
	fn func(ctx context.Context, in In) (Out, error),
) *TypedTool[In, Out] {
	return &TypedTool[In, Out]{
		name:        name,
		description: description,
		fn:          fn,
		schema:      schema.For[In](),
	}
}

func (t *TypedTool[In, Out]) Name() string {
	return t.name
}

func (t *TypedTool[In, Out]) Description() string {
	return t.description
}

func (t *TypedTool[In, Out]) Parameters() *jsonschema.Schema {
	return t.schema
}

// Execute decodes args into In and calls the function.
func (t *TypedTool[In, Out]) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	var input In
	if len(args) > 0 {
		if err := json.Unmarshal(args, &input); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tool arguments: %w", err)
		}
	}
	return t.fn(ctx, input)
}

// Call invokes the function with a typed input.
func (t *TypedTool[In, Out]) Call(ctx context.Context, input In) (Out, error) {
	return t.fn(ctx, input)
}
