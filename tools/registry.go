package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/i2y/parley/provider"
	"github.com/i2y/parley/schema"
)

// Registry holds the tools available to an assistant.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry creates a registry holding tools.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool)}
	r.Register(tools...)
	return r
}

// Register adds tools, replacing any with the same name.
func (r *Registry) Register(tools ...Tool) {
	for _, t := range tools {
		r.tools[t.Name()] = t
	}
}

// Get looks a tool up by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Subset returns a registry holding the tools allow accepts.
func (r *Registry) Subset(allow func(name string) bool) *Registry {
	out := NewRegistry()
	for name, t := range r.tools {
		if allow(name) {
			out.tools[name] = t
		}
	}
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.tools)
}

// All returns the tools sorted by name.
func (r *Registry) All() []Tool {
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b Tool) int {
		switch {
		case a.Name() < b.Name():
			return -1
		case a.Name() > b.Name():
			return 1
		}
		return 0
	})
	return out
}

// Definitions returns the tool declarations sent to the provider.
func (r *Registry) Definitions() ([]provider.ToolDef, error) {
	all := r.All()
	defs := make([]provider.ToolDef, 0, len(all))
	for _, t := range all {
		params, err := schema.Marshal(t.Parameters())
		if err != nil {
			return nil, fmt.Errorf("marshaling schema for %q: %w", t.Name(), err)
		}
		defs = append(defs, provider.ToolDef{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  params,
		})
	}
	return defs, nil
}

// Execute runs call and renders the result for the model. Failures inside
// the tool are returned as result text so the model can react; the error
// is non-nil only for unknown tools.
func (r *Registry) Execute(ctx context.Context, call *provider.FunctionCall) (string, error) {
	t, ok := r.Get(call.Name)
	if !ok {
		return "", &NotFoundError{Name: call.Name}
	}

	result, err := t.Execute(ctx, json.RawMessage(call.Arguments))
	if err != nil {
		return "Error: " + (&ExecutionError{Tool: call.Name, Cause: err}).Error(), nil
	}
	if s, ok := result.(string); ok {
		return s, nil
	}
	b, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf("Error marshaling result: %v", err), nil
	}
	return string(b), nil
}
