package engine

import (
	"github.com/anthropics/anthropic-sdk-go"

	"github.com/lunef/agent-go/core"
)

// Registry holds the tools exposed to the model, in registration order.
type Registry struct {
	order []string
	tools map[string]*core.Tool
}

// NewRegistry creates a registry with the given tools.
func NewRegistry(tools ...*core.Tool) *Registry {
	r := &Registry{tools: make(map[string]*core.Tool)}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register adds a tool. Registering the same name twice replaces the handler
// but keeps the original position.
func (r *Registry) Register(t *core.Tool) {
	if _, exists := r.tools[t.Name]; !exists {
		r.order = append(r.order, t.Name)
	}
	r.tools[t.Name] = t
}

// Get returns the tool with the given name.
func (r *Registry) Get(name string) (*core.Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// ToAPITools converts registered tools to Anthropic API tool definitions.
func (r *Registry) ToAPITools() []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]

		schema := anthropic.ToolInputSchemaParam{}
		if props, ok := t.InputSchema["properties"]; ok {
			schema.Properties = props
		}
		if req, ok := t.InputSchema["required"].([]string); ok {
			schema.Required = req
		}

		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: schema,
			},
		})
	}
	return out
}
