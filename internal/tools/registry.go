package tools

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/michaelbrown/concierge/internal/llm"
)

// Registry maps tool names to their specs. Tools are registered at startup,
// then the registry is sealed; after Seal it is read-only and safe to share
// between conversations. Register must not be called concurrently.
type Registry struct {
	specs       map[string]ToolSpec
	order       []string
	connections map[string]*MCPConnection // server name → connection
	sealed      bool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		specs:       make(map[string]ToolSpec),
		connections: make(map[string]*MCPConnection),
	}
}

// Register adds a tool. Names must be unique.
func (r *Registry) Register(spec ToolSpec) error {
	return r.RegisterAll(spec)
}

// RegisterAll adds several tools at once. Either every spec is registered or,
// on error, none is.
func (r *Registry) RegisterAll(specs ...ToolSpec) error {
	if r.sealed {
		return ErrSealed
	}
	batch := make(map[string]bool, len(specs))
	for _, spec := range specs {
		if spec.Name == "" {
			return fmt.Errorf("tool name is empty")
		}
		if spec.Handler == nil {
			return fmt.Errorf("tool %s has no handler", spec.Name)
		}
		if _, exists := r.specs[spec.Name]; exists || batch[spec.Name] {
			return fmt.Errorf("tool %s already registered", spec.Name)
		}
		batch[spec.Name] = true
	}
	for _, spec := range specs {
		r.specs[spec.Name] = spec
		r.order = append(r.order, spec.Name)
	}
	return nil
}

// RegisterServer launches an MCP tool server and registers each of its tools.
func (r *Registry) RegisterServer(name string, cfg ToolServerConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if r.sealed {
		return ErrSealed
	}

	var env []string
	env = append(env, os.Environ()...)
	for k, v := range cfg.Env {
		// Expand environment variable references like ${VAR}
		if strings.HasPrefix(v, "${") && strings.HasSuffix(v, "}") {
			v = os.Getenv(v[2 : len(v)-1])
		}
		env = append(env, k+"="+v)
	}

	conn, err := NewMCPConnection(name, cfg.Binary, env, cfg.Args...)
	if err != nil {
		return err
	}

	if err := r.RegisterAll(conn.Specs()...); err != nil {
		conn.Close()
		return fmt.Errorf("registering tools from %s: %w", name, err)
	}
	r.connections[name] = conn
	return nil
}

// Seal freezes the registry.
func (r *Registry) Seal() {
	r.sealed = true
}

// Resolve looks a tool up by name.
func (r *Registry) Resolve(name string) (ToolSpec, error) {
	spec, ok := r.specs[name]
	if !ok {
		return ToolSpec{}, &ToolNotFoundError{Name: name}
	}
	return spec, nil
}

// Invoke resolves a tool, fills in declared defaults, calls the handler and
// returns its result as text.
func (r *Registry) Invoke(ctx context.Context, name string, args Args) (string, error) {
	spec, err := r.Resolve(name)
	if err != nil {
		return "", err
	}

	args = spec.Parameters.withDefaults(args)
	if missing := spec.Parameters.missingRequired(args); len(missing) > 0 {
		return "", fmt.Errorf("tool %s: missing required arguments: %s", name, strings.Join(missing, ", "))
	}

	out, err := spec.Handler.Invoke(ctx, args)
	if err != nil {
		return "", fmt.Errorf("tool %s: %w", name, err)
	}
	return encodeResult(out)
}

// Schemas returns tool definitions in registration order.
func (r *Registry) Schemas() []llm.ToolDef {
	defs := make([]llm.ToolDef, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.specs[name].Def())
	}
	return defs
}

// Names returns registered tool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// HasTools returns true if any tools are registered.
func (r *Registry) HasTools() bool {
	return len(r.order) > 0
}

// Filter returns a sealed registry restricted to the named tools. Unknown
// names are ignored. An empty list returns r itself.
func (r *Registry) Filter(names []string) *Registry {
	if len(names) == 0 {
		return r
	}
	allowed := make(map[string]bool, len(names))
	for _, n := range names {
		allowed[n] = true
	}

	sub := NewRegistry()
	for _, name := range r.order {
		if allowed[name] {
			sub.specs[name] = r.specs[name]
			sub.order = append(sub.order, name)
		}
	}
	sub.sealed = true
	return sub
}

// Close shuts down all MCP server connections.
func (r *Registry) Close() {
	for _, conn := range r.connections {
		conn.Close()
	}
}
