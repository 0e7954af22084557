// Command concierge-tools serves the built-in concierge tools over MCP stdio,
// so other agents (or a concierge registry) can call them out of process.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/michaelbrown/concierge/internal/tools"
	"github.com/michaelbrown/concierge/internal/tools/builtin"
)

func main() {
	registry := tools.NewRegistry()
	if err := builtin.Register(registry, nil); err != nil {
		fmt.Fprintf(os.Stderr, "registering tools: %v\n", err)
		os.Exit(1)
	}
	registry.Seal()

	s := server.NewMCPServer("concierge-tools", "0.1.0")
	for _, def := range registry.Schemas() {
		s.AddTool(mcpTool(def.Name, def.Description, def.Parameters), handler(registry, def.Name))
	}

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
	}
}

// mcpTool converts a tool's JSON schema into its MCP description.
func mcpTool(name, description string, params map[string]any) mcp.Tool {
	schema := mcp.ToolInputSchema{Type: "object"}
	if props, ok := params["properties"].(map[string]any); ok {
		schema.Properties = props
	}
	if required, ok := params["required"].([]string); ok {
		schema.Required = required
	}
	return mcp.Tool{
		Name:        name,
		Description: description,
		InputSchema: schema,
	}
}

func handler(registry *tools.Registry, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]any)

		out, err := registry.Invoke(ctx, name, tools.Args(args))
		if err != nil {
			return &mcp.CallToolResult{
				Content: []mcp.Content{mcp.TextContent{Type: "text", Text: "error: " + err.Error()}},
				IsError: true,
			}, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{mcp.TextContent{Type: "text", Text: out}},
		}, nil
	}
}
