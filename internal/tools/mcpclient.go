package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// MCPConnection wraps an mcp-go stdio client for a single tool server.
type MCPConnection struct {
	name   string
	client *client.Client
	tools  []mcp.Tool
}

// NewMCPConnection launches an MCP server subprocess and initializes the connection.
func NewMCPConnection(name, binary string, env []string, args ...string) (*MCPConnection, error) {
	c, err := client.NewStdioMCPClient(binary, env, args...)
	if err != nil {
		return nil, fmt.Errorf("starting MCP server %s (%s): %w", name, binary, err)
	}

	ctx := context.Background()

	_, err = c.Initialize(ctx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ClientInfo: mcp.Implementation{
				Name:    "concierge",
				Version: "0.1.0",
			},
		},
	})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("initializing MCP server %s: %w", name, err)
	}

	result, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("listing tools from %s: %w", name, err)
	}

	return &MCPConnection{
		name:   name,
		client: c,
		tools:  result.Tools,
	}, nil
}

// Specs converts the server's tools into registry specs whose handlers
// forward calls to the server.
func (mc *MCPConnection) Specs() []ToolSpec {
	specs := make([]ToolSpec, 0, len(mc.tools))
	for _, t := range mc.tools {
		toolName := t.Name
		specs = append(specs, ToolSpec{
			Name:        toolName,
			Description: t.Description,
			Parameters:  schemaFromMCP(t.InputSchema),
			Handler: HandlerFunc(func(ctx context.Context, args Args) (any, error) {
				return mc.CallTool(ctx, toolName, args)
			}),
		})
	}
	return specs
}

// schemaFromMCP decodes an MCP input schema into a Schema. Property order
// follows the property names, since MCP delivers them as a map.
func schemaFromMCP(in mcp.ToolInputSchema) Schema {
	names := make([]string, 0, len(in.Properties))
	for name := range in.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	s := Schema{Required: in.Required}
	for _, name := range names {
		var p Property
		if raw, ok := in.Properties[name].(map[string]any); ok {
			// best effort: a property we cannot decode keeps only its name
			_ = mapstructure.Decode(raw, &p)
		}
		p.Name = name
		if p.Type == "" {
			p.Type = "string"
		}
		s.Properties = append(s.Properties, p)
	}
	return s
}

// CallTool invokes a tool on this MCP server and returns the text result.
// A result flagged as an error by the server is returned as an error.
func (mc *MCPConnection) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	result, err := mc.client.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	})
	if err != nil {
		return "", fmt.Errorf("calling tool %s on %s: %w", name, mc.name, err)
	}

	var parts []string
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}

	text := strings.Join(parts, "\n")
	if result.IsError {
		return "", errors.New(text)
	}
	return text, nil
}

// Close shuts down the MCP server subprocess.
func (mc *MCPConnection) Close() {
	mc.client.Close()
}
