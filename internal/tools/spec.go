package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"github.com/michaelbrown/concierge/internal/llm"
)

// Handler executes a tool with a decoded argument record.
type Handler interface {
	Invoke(ctx context.Context, args Args) (any, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, args Args) (any, error)

func (f HandlerFunc) Invoke(ctx context.Context, args Args) (any, error) {
	return f(ctx, args)
}

// Typed builds a Handler whose arguments are decoded into T using the
// struct's json tags. Numbers and strings are converted weakly, so a model
// sending "2" for an integer field still works.
func Typed[T any](fn func(ctx context.Context, args T) (any, error)) Handler {
	return HandlerFunc(func(ctx context.Context, args Args) (any, error) {
		var v T
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &v,
			TagName:          "json",
			WeaklyTypedInput: true,
		})
		if err != nil {
			return nil, err
		}
		if err := dec.Decode(map[string]any(args)); err != nil {
			return nil, fmt.Errorf("decoding arguments: %w", err)
		}
		return fn(ctx, v)
	})
}

// Property describes one parameter of a tool.
type Property struct {
	Name        string         `mapstructure:"-"`
	Type        string         `mapstructure:"type"`
	Description string         `mapstructure:"description"`
	Enum        []string       `mapstructure:"enum"`
	Default     any            `mapstructure:"default"`
	Extra       map[string]any `mapstructure:",remain"`
}

// Schema is the parameter schema of a tool. Properties keep declaration order.
type Schema struct {
	Properties []Property
	Required   []string
}

// JSONSchema renders the schema in the form the model expects:
// {"type":"object","properties":{...},"required":[...]}.
// Property descriptions and the required list are omitted when empty.
func (s Schema) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.Properties))
	for _, p := range s.Properties {
		m := make(map[string]any, 3+len(p.Extra))
		for k, v := range p.Extra {
			m[k] = v
		}
		m["type"] = p.Type
		if p.Description != "" {
			m["description"] = p.Description
		}
		if len(p.Enum) > 0 {
			m["enum"] = p.Enum
		}
		props[p.Name] = m
	}

	out := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(s.Required) > 0 {
		out["required"] = s.Required
	}
	return out
}

// withDefaults returns a copy of args with declared defaults filled in for
// absent (or null) optional fields.
func (s Schema) withDefaults(args Args) Args {
	out := make(Args, len(args)+len(s.Properties))
	for k, v := range args {
		out[k] = v
	}
	for _, p := range s.Properties {
		if p.Default == nil {
			continue
		}
		if v, ok := out[p.Name]; !ok || v == nil {
			out[p.Name] = p.Default
		}
	}
	return out
}

func (s Schema) missingRequired(args Args) []string {
	var missing []string
	for _, name := range s.Required {
		if v, ok := args[name]; !ok || v == nil {
			missing = append(missing, name)
		}
	}
	return missing
}

// ToolSpec pairs a tool's schema with its handler.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  Schema
	Handler     Handler
}

// Def returns the tool definition sent to the model.
func (t ToolSpec) Def() llm.ToolDef {
	return llm.ToolDef{
		Name:        t.Name,
		Description: t.Description,
		Parameters:  t.Parameters.JSONSchema(),
	}
}

// encodeResult turns a handler's return value into tool message content.
// Text passes through unchanged; anything else is JSON-encoded.
func encodeResult(v any) (string, error) {
	switch r := v.(type) {
	case nil:
		return "", nil
	case string:
		return r, nil
	case json.RawMessage:
		return string(r), nil
	case []byte:
		return string(r), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding tool result: %w", err)
	}
	return string(data), nil
}
