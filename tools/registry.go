// Package tools holds the functions a session exposes to generated code.
// Every tool takes named arguments and returns a string; failures are
// reported to the caller as "Error: ..." strings rather than raised, so a
// broken tool never aborts the statement that called it.
package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Func is the signature every tool implements.
type Func func(ctx context.Context, args map[string]any) (string, error)

// Parameter describes one named argument of a tool.
type Parameter struct {
	Name        string `yaml:"name" json:"name" mapstructure:"name"`
	Type        string `yaml:"type" json:"type" mapstructure:"type"`
	Description string `yaml:"description" json:"description" mapstructure:"description"`
	Required    bool   `yaml:"required" json:"required" mapstructure:"required"`
}

// Tool pairs a callable with the metadata shown to the model.
type Tool struct {
	Name        string
	Description string
	// Parameters are ordered; positional calls bind in this order.
	Parameters []Parameter
	Func       Func
}

// Signature renders the tool as a call template, e.g. `run_sql(query)`.
func (t Tool) Signature() string {
	names := make([]string, len(t.Parameters))
	for i, p := range t.Parameters {
		names[i] = p.Name
	}
	return fmt.Sprintf("%s(%s)", t.Name, strings.Join(names, ", "))
}

// Registry manages tool registration and lookup.
type Registry struct {
	tools map[string]*Tool
	mu    sync.RWMutex
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]*Tool),
	}
}

// Register adds or replaces a tool.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name] = &tool
}

// Unregister removes a tool.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// Get returns a registered tool by name, or nil if not found.
func (r *Registry) Get(name string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Tools returns all registered tools sorted by name.
func (r *Registry) Tools() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Call invokes a tool and always returns a string. Unknown tools, missing
// required arguments, errors and panics all come back as "Error: ..." text.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) (out string) {
	tool := r.Get(name)
	if tool == nil {
		return fmt.Sprintf("Error: call to unknown function `%s`", name)
	}
	for _, p := range tool.Parameters {
		if _, ok := args[p.Name]; p.Required && !ok {
			return fmt.Sprintf("Error: missing argument `%s` for call to `%s`", p.Name, name)
		}
	}

	defer func() {
		if rec := recover(); rec != nil {
			out = fmt.Sprintf("Error: failed to call function `%s`: %v", name, rec)
		}
	}()
	result, err := tool.Func(ctx, args)
	if err != nil {
		return fmt.Sprintf("Error: failed to call function `%s`: %v", name, err)
	}
	return result
}

// Describe renders the "Available functions" appendix added to the task
// context, or "" when no tools are registered.
func (r *Registry) Describe() string {
	tools := r.Tools()
	if len(tools) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Available functions:\n")
	for _, t := range tools {
		fmt.Fprintf(&b, "- %s", t.Signature())
		if t.Description != "" {
			fmt.Fprintf(&b, ": %s", t.Description)
		}
		b.WriteByte('\n')
		for _, p := range t.Parameters {
			fmt.Fprintf(&b, "    %s", p.Name)
			if p.Type != "" {
				fmt.Fprintf(&b, " (%s)", p.Type)
			}
			if p.Description != "" {
				fmt.Fprintf(&b, ": %s", p.Description)
			}
			b.WriteByte('\n')
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
